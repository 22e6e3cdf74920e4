// Package ahocorasick implements an Aho-Corasick automaton over bytes with
// ASCII case folding.
//
// The authentication-log detectors use it to decide, in one pass over a
// line, which signature fragments are present before running the capture
// regexp of the matching signatures only.
//
// Thread Safety: a Matcher is immutable after New() and safe for concurrent use.
package ahocorasick

// Matcher is a compiled set of fragments.
type Matcher struct {
	states   []state
	patterns []string
}

type state struct {
	next   map[byte]int
	fail   int
	output []int
}

// New compiles patterns into a Matcher. Empty patterns are ignored.
// Matching is case-insensitive for ASCII letters.
func New(patterns []string) *Matcher {
	m := &Matcher{
		states:   []state{{next: map[byte]int{}}},
		patterns: patterns,
	}
	for i, p := range patterns {
		if p == "" {
			continue
		}
		m.insert(p, i)
	}
	m.link()
	return m
}

func (m *Matcher) insert(pattern string, index int) {
	cur := 0
	for i := 0; i < len(pattern); i++ {
		b := fold(pattern[i])
		nxt, ok := m.states[cur].next[b]
		if !ok {
			m.states = append(m.states, state{next: map[byte]int{}})
			nxt = len(m.states) - 1
			m.states[cur].next[b] = nxt
		}
		cur = nxt
	}
	m.states[cur].output = append(m.states[cur].output, index)
}

// link builds failure links breadth-first and merges outputs along them.
func (m *Matcher) link() {
	queue := make([]int, 0, len(m.states))
	for _, s := range m.states[0].next {
		m.states[s].fail = 0
		queue = append(queue, s)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for b, child := range m.states[cur].next {
			queue = append(queue, child)
			f := m.states[cur].fail
			for {
				if s, ok := m.states[f].next[b]; ok && s != child {
					m.states[child].fail = s
					break
				}
				if f == 0 {
					m.states[child].fail = 0
					break
				}
				f = m.states[f].fail
			}
			fo := m.states[m.states[child].fail].output
			m.states[child].output = append(m.states[child].output, fo...)
		}
	}
}

func (m *Matcher) step(cur int, b byte) int {
	for {
		if nxt, ok := m.states[cur].next[b]; ok {
			return nxt
		}
		if cur == 0 {
			return 0
		}
		cur = m.states[cur].fail
	}
}

// Match reports whether any pattern occurs in text.
func (m *Matcher) Match(text string) bool {
	_, ok := m.First(text)
	return ok
}

// First returns the index of the pattern whose occurrence ends earliest in text.
func (m *Matcher) First(text string) (int, bool) {
	if len(m.states) == 1 {
		return 0, false
	}
	cur := 0
	for i := 0; i < len(text); i++ {
		cur = m.step(cur, fold(text[i]))
		if out := m.states[cur].output; len(out) > 0 {
			return out[0], true
		}
	}
	return 0, false
}

// MatchAll returns the indices of every pattern found in text, each once,
// in order of first occurrence.
func (m *Matcher) MatchAll(text string) []int {
	if len(m.states) == 1 {
		return nil
	}
	var found []int
	seen := make(map[int]struct{})
	cur := 0
	for i := 0; i < len(text); i++ {
		cur = m.step(cur, fold(text[i]))
		for _, idx := range m.states[cur].output {
			if _, ok := seen[idx]; ok {
				continue
			}
			seen[idx] = struct{}{}
			found = append(found, idx)
		}
	}
	return found
}

func (m *Matcher) PatternCount() int {
	return len(m.patterns)
}

func (m *Matcher) Pattern(i int) string {
	return m.patterns[i]
}

func fold(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}
