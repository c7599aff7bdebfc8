package scoring

// SectionDetail explains the score of one weighted section.
type SectionDetail struct {
	WordCount         int      `json:"wordCount"`
	HasMetrics        bool     `json:"hasMetrics"`
	KeywordMatchRatio float64  `json:"keywordMatchRatio"`
	StrongVerbCount   int      `json:"strongVerbCount"`
	BaseSimilarity    int      `json:"baseSimilarity"`
	QualityBonus      int      `json:"qualityBonus"`
	Note              string   `json:"note,omitempty"`
	Suggestions       []string `json:"suggestions"`
}

// AnalysisResult is the outcome of scoring one resume against one job description.
type AnalysisResult struct {
	ATSScore          int                      `json:"atsScore"`
	GlobalScore       int                      `json:"globalScore"`
	SectionScores     map[string]int           `json:"sectionScores"`
	SectionDetails    map[string]SectionDetail `json:"sectionDetails"`
	MissingKeywords   []string                 `json:"missingKeywords"`
	ExtraKeywords     []string                 `json:"extraKeywords"`
	TechStack         []string                 `json:"techStack"`
	DetectedRole      string                   `json:"detectedRole"`
	WeakBullets       []string                 `json:"weakBullets"`
	RewriteSuggestion string                   `json:"rewriteSuggestion"`
	Suggestions       []string                 `json:"suggestions"`
	WordCount         int                      `json:"wordCount"`
	SectionsFound     []string                 `json:"sectionsFound"`
	RulesVersion      string                   `json:"rulesVersion"`
	Headerless        bool                     `json:"headerless,omitempty"`
	Degraded          []string                 `json:"degraded,omitempty"`
	Fallback          bool                     `json:"fallback,omitempty"`
}

// Preview is the subset of a result shown before the full report is unlocked.
type Preview struct {
	ATSScore        int    `json:"atsScore"`
	DetectedRole    string `json:"detectedRole"`
	MissingCount    int    `json:"missingKeywordCount"`
	WeakBulletCount int    `json:"weakBulletCount"`
	SectionsFound   int    `json:"sectionsFound"`
	WordCount       int    `json:"wordCount"`
}

// Preview returns the locked view of r.
func (r AnalysisResult) Preview() Preview {
	return Preview{
		ATSScore:        r.ATSScore,
		DetectedRole:    r.DetectedRole,
		MissingCount:    len(r.MissingKeywords),
		WeakBulletCount: len(r.WeakBullets),
		SectionsFound:   len(r.SectionsFound),
		WordCount:       r.WordCount,
	}
}
