package scoring

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"resume-ats/internal/rules"
	"resume-ats/internal/segment"
)

const (
	// SectionBodyCap bounds the text embedded per section.
	SectionBodyCap = 2000

	baseWeight    = 0.6
	qualityWeight = 0.4

	bandBonus         = 25.0
	metricBonus       = 25.0
	verbBonus         = 20.0
	minStrongVerbs    = 3
	keywordBonus      = 30.0
	weakPhrasePenalty = 15.0

	emptySectionNote = "empty section"
)

// headerlessOffsets spread section scores around the global score when no
// section could be identified.
var headerlessOffsets = map[segment.Section]int{
	segment.Summary:    5,
	segment.Skills:     0,
	segment.Experience: -5,
	segment.Projects:   -10,
	segment.Education:  -5,
}

// weightedSections returns the sections that carry a weight, in report order.
func weightedSections(r *rules.Rules) []segment.Section {
	out := make([]segment.Section, 0, len(r.SectionWeights))
	for _, s := range segment.All {
		if _, ok := r.SectionWeights[string(s)]; ok {
			out = append(out, s)
		}
	}
	return out
}

// scoreSection combines the base similarity (0-100) of a non-empty section
// body with its quality bonus.
func scoreSection(r *rules.Rules, sec segment.Section, body string, base float64, jdKW KeywordSet) (int, SectionDetail) {
	if strings.TrimSpace(body) == "" {
		return 0, SectionDetail{
			Note:        emptySectionNote,
			Suggestions: []string{fmt.Sprintf("Add a %s section with a clear heading.", sectionTitle(sec))},
		}
	}

	words := rules.WordCount(body)
	hasMetric := r.HasMetric(body)
	verbs := r.CountStrongVerbs(body)
	ratio := ExtractKeywords(r, body).Overlap(jdKW)
	weak := rules.CountPhrases(body, r.WeakPhrases)

	band, hasBand := r.Band(string(sec))
	quality := 0.0
	if hasBand && band.Contains(words) {
		quality += bandBonus
	}
	if hasMetric {
		quality += metricBonus
	}
	if verbs >= minStrongVerbs {
		quality += verbBonus
	}
	quality += ratio * keywordBonus
	quality -= float64(weak) * weakPhrasePenalty
	quality = clampFloat(quality, 0, 100)

	detail := SectionDetail{
		WordCount:         words,
		HasMetrics:        hasMetric,
		KeywordMatchRatio: math.Round(ratio*100) / 100,
		StrongVerbCount:   verbs,
		BaseSimilarity:    int(math.Round(base)),
		QualityBonus:      int(math.Round(quality)),
	}
	detail.Suggestions = sectionSuggestions(r, sec, detail, band, hasBand, weak, jdKW, body)

	score := clampInt(int(math.Round(baseWeight*base+qualityWeight*quality)), 0, 100)
	return score, detail
}

func sectionSuggestions(r *rules.Rules, sec segment.Section, d SectionDetail, band rules.Band, hasBand bool, weak int, jdKW KeywordSet, body string) []string {
	title := sectionTitle(sec)
	out := []string{}
	if hasBand && d.WordCount < band.Min {
		out = append(out, fmt.Sprintf("Expand the %s section to at least %d words.", title, band.Min))
	}
	if hasBand && d.WordCount > band.Max {
		out = append(out, fmt.Sprintf("Trim the %s section to at most %d words.", title, band.Max))
	}
	if len(jdKW) > 0 && d.KeywordMatchRatio < 0.5 {
		missing := jdKW.Minus(ExtractKeywords(r, body))
		if len(missing) > 3 {
			missing = missing[:3]
		}
		if len(missing) > 0 {
			out = append(out, fmt.Sprintf("Mention job keywords in %s: %s.", title, strings.Join(missing, ", ")))
		}
	}
	switch sec {
	case segment.Experience, segment.Projects, segment.Summary:
		if !d.HasMetrics {
			out = append(out, fmt.Sprintf("Add quantified results to %s, e.g. 'Improved X by Y%%'.", title))
		}
	}
	switch sec {
	case segment.Experience, segment.Projects:
		if d.StrongVerbCount < minStrongVerbs {
			out = append(out, fmt.Sprintf("Start %s bullets with strong action verbs such as Built, Led or Optimized.", title))
		}
	}
	if weak > 0 {
		out = append(out, fmt.Sprintf("Replace weak phrasing like \"worked on\" in %s with action verbs.", title))
	}
	return out
}

func sectionTitle(sec segment.Section) string {
	return cases.Title(language.English).String(string(sec))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
