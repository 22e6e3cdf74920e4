package domain

import (
	"slices"
	"strings"
)

// BanSet is the set of addresses a ban-list provider reported at one
// observation. The zero value is the empty set.
type BanSet struct {
	addrs []string
}

func NewBanSet(addrs ...string) BanSet {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	slices.Sort(out)
	return BanSet{addrs: slices.Compact(out)}
}

func (s BanSet) Len() int { return len(s.addrs) }

func (s BanSet) Empty() bool { return len(s.addrs) == 0 }

// Addrs returns a sorted copy of the members.
func (s BanSet) Addrs() []string { return slices.Clone(s.addrs) }

func (s BanSet) Contains(addr string) bool {
	_, ok := slices.BinarySearch(s.addrs, addr)
	return ok
}

func (s BanSet) Equal(other BanSet) bool {
	return slices.Equal(s.addrs, other.addrs)
}

// Added returns members of s that are not in prev.
func (s BanSet) Added(prev BanSet) []string {
	var out []string
	for _, a := range s.addrs {
		if !prev.Contains(a) {
			out = append(out, a)
		}
	}
	return out
}

func (s BanSet) String() string {
	if s.Empty() {
		return "none"
	}
	return strings.Join(s.addrs, ", ")
}
