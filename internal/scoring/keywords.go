package scoring

import (
	"sort"
	"strings"

	"resume-ats/internal/rules"
)

// MaxKeywordList caps the missing and extra keyword lists.
const MaxKeywordList = 10

// KeywordSet is a set of dictionary terms found in a text.
type KeywordSet map[string]struct{}

// ExtractKeywords returns the tech dictionary terms contained in text.
func ExtractKeywords(r *rules.Rules, text string) KeywordSet {
	lower := strings.ToLower(text)
	set := make(KeywordSet)
	for _, term := range r.TechKeywords {
		if rules.ContainsTerm(lower, term) {
			set[term] = struct{}{}
		}
	}
	return set
}

// Sorted returns the terms in ascending order.
func (s KeywordSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Minus returns the sorted terms of s that are not in other.
func (s KeywordSet) Minus(other KeywordSet) []string {
	out := make([]string, 0, len(s))
	for k := range s {
		if _, ok := other[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Overlap returns |s ∩ other| / |other|, or 0 when other is empty.
func (s KeywordSet) Overlap(other KeywordSet) float64 {
	if len(other) == 0 {
		return 0
	}
	n := 0
	for k := range other {
		if _, ok := s[k]; ok {
			n++
		}
	}
	return float64(n) / float64(len(other))
}

// KeywordGap computes the missing (job description only) and extra (resume
// only) terms, each sorted and capped.
func KeywordGap(resume, jd KeywordSet) (missing, extra []string) {
	return capList(jd.Minus(resume), MaxKeywordList), capList(resume.Minus(jd), MaxKeywordList)
}

func capList(in []string, n int) []string {
	if len(in) > n {
		return in[:n]
	}
	return in
}
