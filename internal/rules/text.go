package rules

import (
	"strings"
	"unicode"
)

// ContainsTerm reports whether lowerText contains term as a whole word or phrase.
// lowerText must already be lowercase. A match must not be glued to a letter or
// digit on either side, so "ai" does not match inside "maintain".
func ContainsTerm(lowerText, term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return false
	}
	from := 0
	for from <= len(lowerText)-len(term) {
		idx := strings.Index(lowerText[from:], term)
		if idx < 0 {
			return false
		}
		start := from + idx
		end := start + len(term)
		if boundaryBefore(lowerText, start, term) && boundaryAfter(lowerText, end, term) {
			return true
		}
		from = start + 1
	}
	return false
}

func boundaryBefore(s string, i int, term string) bool {
	if i == 0 || !isWordByte(term[0]) {
		return true
	}
	return !isWordByte(s[i-1])
}

func boundaryAfter(s string, i int, term string) bool {
	if i >= len(s) || !isWordByte(term[len(term)-1]) {
		return true
	}
	return !isWordByte(s[i])
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b >= 0x80
}

// Words splits text into lowercase words made of letters and digits.
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// WordCount counts whitespace-separated tokens.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
