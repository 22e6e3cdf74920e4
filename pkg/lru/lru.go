// Package lru implements a bounded, least-recently-used set.
//
// The event store uses it to remember keys it has already written to the
// indexed sink, so a re-ingested line does not cost a database lookup.
// A miss says nothing: the sink remains the source of truth.
//
// Thread Safety: All methods are safe for concurrent access.
package lru

import (
	"container/list"
	"sync"
)

// Set keeps at most capacity keys, evicting the least recently touched.
type Set[K comparable] struct {
	capacity int
	mu       sync.Mutex
	order    *list.List // front = most recent
	items    map[K]*list.Element
}

// New creates a Set. A non-positive capacity defaults to 4096.
func New[K comparable](capacity int) *Set[K] {
	if capacity <= 0 {
		capacity = 4096
	}
	return &Set[K]{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[K]*list.Element, capacity),
	}
}

// Contains reports membership and refreshes the key on a hit.
func (s *Set[K]) Contains(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[key]
	if ok {
		s.order.MoveToFront(elem)
	}
	return ok
}

// Add inserts key, evicting the oldest key when full.
func (s *Set[K]) Add(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.add(key)
}

// AddAll inserts every key under a single lock acquisition.
func (s *Set[K]) AddAll(keys []K) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		s.add(k)
	}
}

func (s *Set[K]) add(key K) {
	if elem, ok := s.items[key]; ok {
		s.order.MoveToFront(elem)
		return
	}
	s.items[key] = s.order.PushFront(key)
	for s.order.Len() > s.capacity {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.items, oldest.Value.(K))
	}
}

func (s *Set[K]) Remove(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.items[key]; ok {
		s.order.Remove(elem)
		delete(s.items, key)
	}
}

func (s *Set[K]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

func (s *Set[K]) Capacity() int {
	return s.capacity
}

func (s *Set[K]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order.Init()
	clear(s.items)
}
