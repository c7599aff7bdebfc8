package scoring

import (
	"fmt"
	"strings"

	"resume-ats/internal/segment"
)

const (
	// MaxSuggestions caps the overall suggestion list.
	MaxSuggestions = 6

	minResumeWords = 300
	maxResumeWords = 800
	targetNudgeAt  = 70

	headingSuggestion = "Add clear section headings (Summary, Skills, Experience, Projects, Education) so ATS parsers can find your content."
	metricSuggestion  = "Quantify your impact: add numbers such as 'Improved X by Y%' or 'Served 10K+ users'."
	targetSuggestion  = "Target an ATS score of 80+: add 2-3 job keywords and at least one metric."
)

type suggestionInput struct {
	missing       []string
	lowestSection segment.Section
	lowestDetail  SectionDetail
	headerless    bool
	hasMetrics    bool
	wordCount     int
	weakBullets   int
	rewrite       string
	atsScore      int
}

// buildSuggestions assembles the report suggestions in priority order:
// keyword gaps, structure, then style.
func buildSuggestions(in suggestionInput) []string {
	mappers := []func(suggestionInput) []string{
		fromMissingKeywords,
		fromSections,
		fromMetrics,
		fromWordCount,
		fromWeakBullets,
		fromTarget,
	}
	out := make([]string, 0, MaxSuggestions)
	seen := make(map[string]struct{})
	for _, mapper := range mappers {
		for _, s := range mapper(in) {
			key := strings.ToLower(strings.TrimSpace(s))
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, s)
		}
	}
	if len(out) > MaxSuggestions {
		out = out[:MaxSuggestions]
	}
	return out
}

func fromMissingKeywords(in suggestionInput) []string {
	if len(in.missing) == 0 {
		return nil
	}
	top := in.missing
	if len(top) > 3 {
		top = top[:3]
	}
	return []string{"Add top missing keywords: " + strings.Join(top, ", ") + "."}
}

func fromSections(in suggestionInput) []string {
	if in.headerless {
		return []string{headingSuggestion}
	}
	if in.lowestSection == "" || len(in.lowestDetail.Suggestions) == 0 {
		return nil
	}
	return []string{in.lowestDetail.Suggestions[0]}
}

func fromMetrics(in suggestionInput) []string {
	if in.hasMetrics {
		return nil
	}
	return []string{metricSuggestion}
}

func fromWordCount(in suggestionInput) []string {
	switch {
	case in.wordCount < minResumeWords:
		return []string{fmt.Sprintf("Your resume is short (%d words); aim for %d-%d words.", in.wordCount, minResumeWords, maxResumeWords)}
	case in.wordCount > maxResumeWords:
		return []string{fmt.Sprintf("Your resume is long (%d words); trim it to %d-%d words.", in.wordCount, minResumeWords, maxResumeWords)}
	}
	return nil
}

func fromWeakBullets(in suggestionInput) []string {
	if in.weakBullets == 0 {
		return nil
	}
	s := fmt.Sprintf("Rewrite %d weak bullet(s) with action verbs and metrics", in.weakBullets)
	if in.rewrite != "" {
		s += fmt.Sprintf(", e.g. %q", in.rewrite)
	}
	return []string{s + "."}
}

func fromTarget(in suggestionInput) []string {
	if in.atsScore >= targetNudgeAt {
		return nil
	}
	return []string{targetSuggestion}
}
