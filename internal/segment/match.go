package segment

import (
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"

	"resume-ats/internal/rules"
)

// MatchThreshold is the minimum blended score (0-100) for a header to map to a section.
const MatchThreshold = 55.0

// StandaloneThreshold is the stricter score a bare line without header
// punctuation or underline needs, so titles like "Research Assistant" stay content.
const StandaloneThreshold = 70.0

const (
	weightRatio     = 0.5
	weightPartial   = 0.2
	weightTokenSort = 0.3
)

type synonym struct {
	section Section
	norm    string
	sorted  string
}

type matcher struct {
	synonyms []synonym
}

func newMatcher(sections []rules.SectionRule) *matcher {
	m := &matcher{}
	for _, sr := range sections {
		sec := Section(sr.Name)
		if !sec.Valid() {
			continue
		}
		for _, syn := range sr.Synonyms {
			n := normalizeHeader(syn)
			if n == "" {
				continue
			}
			m.synonyms = append(m.synonyms, synonym{section: sec, norm: n, sorted: sortTokens(n)})
		}
	}
	return m
}

// match returns the best canonical section for a header and its score.
// Ties keep the section declared first.
func (m *matcher) match(header string) (Section, float64, bool) {
	h := normalizeHeader(header)
	if h == "" {
		return "", 0, false
	}
	hs := sortTokens(h)
	var (
		best      Section
		bestScore float64
	)
	for _, syn := range m.synonyms {
		score := blend(h, hs, syn)
		if score > bestScore {
			best, bestScore = syn.section, score
		}
	}
	if bestScore < MatchThreshold {
		return "", bestScore, false
	}
	return best, bestScore, true
}

func blend(h, hSorted string, syn synonym) float64 {
	if h == syn.norm {
		return 100
	}
	return weightRatio*ratio(h, syn.norm) +
		weightPartial*partialRatio(h, syn.norm) +
		weightTokenSort*ratio(hSorted, syn.sorted)
}

// ratio is the normalized edit similarity of a and b on a 0-100 scale.
func ratio(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 100
	}
	d := levenshtein.ComputeDistance(a, b)
	return 100 * (1 - float64(d)/float64(longest))
}

// partialRatio compares the shorter string against every equal-length window
// of the longer one and keeps the best ratio.
func partialRatio(a, b string) float64 {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		return 0
	}
	s := string(short)
	best := 0.0
	for i := 0; i+len(short) <= len(long); i++ {
		r := ratio(s, string(long[i:i+len(short)]))
		if r > best {
			best = r
			if best == 100 {
				break
			}
		}
	}
	return best
}

func sortTokens(s string) string {
	toks := strings.Fields(s)
	sort.Strings(toks)
	return strings.Join(toks, " ")
}

// normalizeHeader lowercases a header, spells out "&" and reduces everything
// that is not a letter to single spaces.
func normalizeHeader(s string) string {
	s = strings.ToLower(strings.ReplaceAll(s, "&", " and "))
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) {
			return r
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
