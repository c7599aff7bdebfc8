// Package scoring turns a resume and a job description into an explainable
// ATS readiness report.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"resume-ats/internal/embedding"
	"resume-ats/internal/rules"
	"resume-ats/internal/segment"
	"resume-ats/internal/shared/metrics"
	"resume-ats/internal/shared/telemetry"
)

// GlobalBlend is the share of the whole-document similarity in the final ATS
// score; the weighted section scores make up the rest.
const GlobalBlend = 0.3

// neutralSimilarity replaces a similarity that could not be computed.
const neutralSimilarity = 0.5

const headerlessNote = "no section headings detected; estimated from overall similarity"

// Engine scores resumes. It holds no per-call state and is safe for
// concurrent use when its provider is.
type Engine struct {
	provider embedding.Provider
	rules    *rules.Rules
	seg      *segment.Segmenter
}

// New builds an engine. The caller owns the provider's lifecycle.
func New(p embedding.Provider, r *rules.Rules) *Engine {
	return &Engine{provider: p, rules: r, seg: segment.New(r)}
}

// Rules returns the rule tables the engine scores with.
func (e *Engine) Rules() *rules.Rules { return e.rules }

// Segmenter returns the engine's section segmenter.
func (e *Engine) Segmenter() *segment.Segmenter { return e.seg }

// Analyze scores resume against jd. It never fails: steps that break degrade
// to defaults, and an unexpected failure returns Fallback.
func (e *Engine) Analyze(ctx context.Context, resume, jd string) (res AnalysisResult) {
	defer func() {
		if rec := recover(); rec != nil {
			telemetry.Error("scoring.fallback", map[string]any{"panic": fmt.Sprint(rec)})
			metrics.IncScoringFallback()
			res = Fallback(e.rules)
		}
	}()
	a := &analysis{e: e, ctx: ctx}
	return a.run(resume, jd)
}

type analysis struct {
	e        *Engine
	ctx      context.Context
	degraded []string

	jdVec   []float32
	jdEmpty bool
	jdErr   error
}

func (a *analysis) run(resume, jd string) AnalysisResult {
	r := a.e.rules
	res := AnalysisResult{
		SectionScores:   map[string]int{},
		SectionDetails:  map[string]SectionDetail{},
		MissingKeywords: []string{},
		ExtraKeywords:   []string{},
		TechStack:       []string{},
		DetectedRole:    GeneralRole,
		WeakBullets:     []string{},
		SectionsFound:   []string{},
		RulesVersion:    r.Version,
		WordCount:       rules.WordCount(resume),
	}

	sections := segment.NewMap()
	headerless := true
	a.guard("segment", func() {
		sr := a.e.seg.Detailed(resume)
		if sr.Err != nil {
			a.degrade("segment", sr.Err)
		}
		sections = sr.Sections
		headerless = sr.Headerless()
		for _, s := range sections.Found() {
			res.SectionsFound = append(res.SectionsFound, string(s))
		}
	})

	global := neutralSimilarity
	a.guard("global", func() {
		a.embedJD(jd)
		global = a.similarity(resume)
	})
	res.GlobalScore = clampInt(int(math.Round(global*100)), 0, 100)

	resumeKW, jdKW := KeywordSet{}, KeywordSet{}
	a.guard("keywords", func() {
		resumeKW = ExtractKeywords(r, resume)
		jdKW = ExtractKeywords(r, jd)
		res.MissingKeywords, res.ExtraKeywords = KeywordGap(resumeKW, jdKW)
		res.TechStack = resumeKW.Sorted()
	})

	weighted := weightedSections(r)
	if !headerless && allEmpty(sections, weighted) {
		headerless = true
	}
	sectionsOK := false
	if !headerless {
		a.guard("sections", func() {
			for _, sec := range weighted {
				body := sections[sec]
				base := 0.0
				if strings.TrimSpace(body) != "" {
					base = a.similarity(truncateRunes(body, SectionBodyCap)) * 100
				}
				score, detail := scoreSection(r, sec, body, base, jdKW)
				res.SectionScores[string(sec)] = score
				res.SectionDetails[string(sec)] = detail
			}
			sectionsOK = true
		})
	}
	if !sectionsOK {
		res.Headerless = headerless
		for _, sec := range weighted {
			res.SectionScores[string(sec)] = clampInt(res.GlobalScore+headerlessOffsets[sec], 0, 100)
			res.SectionDetails[string(sec)] = SectionDetail{
				WordCount:   rules.WordCount(sections[sec]),
				Note:        headerlessNote,
				Suggestions: []string{headingSuggestion},
			}
		}
	}

	res.ATSScore = res.GlobalScore
	if sectionsOK {
		var sum float64
		for _, sec := range weighted {
			sum += r.SectionWeights[string(sec)] * float64(res.SectionScores[string(sec)])
		}
		res.ATSScore = clampInt(int(math.Round(GlobalBlend*float64(res.GlobalScore)+(1-GlobalBlend)*sum)), 0, 100)
	}

	a.guard("role", func() {
		res.DetectedRole = DetectRole(r, jd)
	})

	a.guard("bullets", func() {
		source := strings.TrimSpace(sections[segment.Experience] + "\n" + sections[segment.Projects])
		if source == "" {
			source = resume
		}
		res.WeakBullets = WeakBullets(r, source)
	})

	a.guard("rewrite", func() {
		if len(res.WeakBullets) > 0 {
			res.RewriteSuggestion = Rewrite(r, res.DetectedRole, res.WeakBullets[0], res.TechStack)
		}
	})

	a.guard("suggestions", func() {
		in := suggestionInput{
			missing:     res.MissingKeywords,
			headerless:  !sectionsOK,
			hasMetrics:  r.HasMetric(resume),
			wordCount:   res.WordCount,
			weakBullets: len(res.WeakBullets),
			rewrite:     res.RewriteSuggestion,
			atsScore:    res.ATSScore,
		}
		if sectionsOK {
			in.lowestSection, in.lowestDetail = lowestSection(weighted, res)
		}
		res.Suggestions = buildSuggestions(in)
	})
	if res.Suggestions == nil {
		res.Suggestions = []string{}
	}

	res.Degraded = a.degraded
	telemetry.Debug("scoring.complete", map[string]any{
		"atsScore":    res.ATSScore,
		"globalScore": res.GlobalScore,
		"role":        res.DetectedRole,
		"headerless":  res.Headerless,
		"degraded":    len(res.Degraded),
	})
	return res
}

func (a *analysis) embedJD(jd string) {
	if strings.TrimSpace(jd) == "" {
		a.jdEmpty = true
		return
	}
	vec, err := a.e.provider.Embed(a.ctx, jd)
	if errors.Is(err, embedding.ErrEmptyText) {
		a.jdEmpty = true
		return
	}
	if err != nil {
		metrics.IncEmbeddingError()
		a.jdErr = err
		a.degrade("embedding", err)
		return
	}
	a.jdVec = vec
}

// similarity returns the cosine similarity of text and the job description,
// clipped to [0, 1]. Empty input scores 0; embedding failures score neutral.
func (a *analysis) similarity(text string) float64 {
	if a.jdEmpty || strings.TrimSpace(text) == "" {
		return 0
	}
	if a.jdErr != nil || a.jdVec == nil {
		return neutralSimilarity
	}
	vec, err := a.e.provider.Embed(a.ctx, text)
	if err != nil {
		if errors.Is(err, embedding.ErrEmptyText) {
			return 0
		}
		metrics.IncEmbeddingError()
		a.degrade("embedding", err)
		return neutralSimilarity
	}
	c, err := embedding.Cosine(vec, a.jdVec)
	if err != nil {
		a.degrade("embedding", err)
		return neutralSimilarity
	}
	return clampFloat(c, 0, 1)
}

// guard runs one scoring step; a panic degrades that step only.
func (a *analysis) guard(step string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			a.degrade(step, fmt.Errorf("panic: %v", rec))
		}
	}()
	fn()
}

func (a *analysis) degrade(step string, err error) {
	telemetry.Warn("scoring.degraded", map[string]any{"step": step, "error": err.Error()})
	metrics.IncScoringDegraded()
	for _, s := range a.degraded {
		if s == step {
			return
		}
	}
	a.degraded = append(a.degraded, step)
}

func lowestSection(weighted []segment.Section, res AnalysisResult) (segment.Section, SectionDetail) {
	var (
		lowest segment.Section
		score  = math.MaxInt
	)
	for _, sec := range weighted {
		if s := res.SectionScores[string(sec)]; s < score {
			lowest, score = sec, s
		}
	}
	return lowest, res.SectionDetails[string(lowest)]
}

func allEmpty(m segment.Map, secs []segment.Section) bool {
	for _, s := range secs {
		if strings.TrimSpace(m[s]) != "" {
			return false
		}
	}
	return true
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
