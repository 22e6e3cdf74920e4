// Package sanitize cleans attacker-controlled text (log messages, source
// tokens) before it reaches an operator's terminal, mailbox or JSON journal.
package sanitize

import (
	"strings"
	"unicode/utf8"
)

const DefaultMaxLength = 512

// Line strips control characters and ANSI escape sequences and truncates
// to maxLen bytes on a rune boundary, marking truncation with "...".
func Line(s string, maxLen int) string {
	clean := stripControls(s)
	if maxLen <= 0 || len(clean) <= maxLen {
		return clean
	}
	if maxLen <= 3 {
		return clean[:maxLen]
	}
	cut := maxLen - 3
	for cut > 0 && !utf8.RuneStart(clean[cut]) {
		cut--
	}
	return clean[:cut] + "..."
}

func stripControls(s string) string {
	dirty := false
	for i := 0; i < len(s); i++ {
		if c := s[i]; c < 0x20 || c == 0x7F {
			dirty = true
			break
		}
	}
	if !dirty && utf8.ValidString(s) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == 0x1B:
			i = skipEscape(s, i)
			b.WriteString("[ESC]")
			continue
		case c == '\t' || c == '\n':
			b.WriteByte(' ')
		case c == '\r':
			b.WriteString("[CR]")
		case c < 0x20 || c == 0x7F:
			b.WriteString("[CTRL]")
		case c < utf8.RuneSelf:
			b.WriteByte(c)
		default:
			r, size := utf8.DecodeRuneInString(s[i:])
			if r == utf8.RuneError && size == 1 {
				b.WriteRune(utf8.RuneError)
			} else {
				b.WriteString(s[i : i+size])
			}
			i += size
			continue
		}
		i++
	}
	return b.String()
}

// skipEscape returns the index just past an ESC sequence starting at i.
func skipEscape(s string, i int) int {
	i++
	if i < len(s) && s[i] == '[' {
		i++
		for i < len(s) && !isCSIFinal(s[i]) {
			i++
		}
		if i < len(s) {
			i++
		}
	}
	return i
}

func isCSIFinal(c byte) bool {
	return c >= 0x40 && c <= 0x7E
}

// Address keeps only characters that can appear in an IPv4/IPv6 literal or
// a hostname. Returns "[INVALID]" when nothing is left.
func Address(token string) string {
	var b strings.Builder
	b.Grow(len(token))
	for i := 0; i < len(token); i++ {
		c := token[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z',
			c == '.', c == ':', c == '-', c == '%':
			b.WriteByte(c)
		}
	}
	if b.Len() == 0 {
		return "[INVALID]"
	}
	return b.String()
}
