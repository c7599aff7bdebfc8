package scoring

import "resume-ats/internal/rules"

const (
	fallbackScore      = 50
	fallbackSuggestion = "Error analyzing resume. Please try again."
)

// Fallback returns the structurally valid result used when an analysis fails
// outright.
func Fallback(r *rules.Rules) AnalysisResult {
	res := AnalysisResult{
		ATSScore:        fallbackScore,
		GlobalScore:     fallbackScore,
		SectionScores:   map[string]int{},
		SectionDetails:  map[string]SectionDetail{},
		MissingKeywords: []string{},
		ExtraKeywords:   []string{},
		TechStack:       []string{},
		DetectedRole:    GeneralRole,
		WeakBullets:     []string{},
		Suggestions:     []string{fallbackSuggestion},
		SectionsFound:   []string{},
		Fallback:        true,
	}
	if r != nil {
		res.RulesVersion = r.Version
		for _, sec := range weightedSections(r) {
			res.SectionScores[string(sec)] = fallbackScore
		}
	}
	return res
}
