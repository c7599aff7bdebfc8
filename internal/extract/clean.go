package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"resume-ats/internal/rules"
)

var (
	urlPattern   = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)
	emailPattern = regexp.MustCompile(`(?i)\b[\w.+-]+@[\w-]+(?:\.[\w-]+)+\b`)
	blankRun     = regexp.MustCompile(`\n{3,}`)
)

// CleanText prepares extracted text for segmentation. It folds compatibility
// characters (ligatures, full-width forms), removes URLs, e-mail addresses and
// control characters, and trims trailing space. Line breaks and in-line spacing
// are kept since section detection depends on both.
func CleanText(s string) string {
	s = norm.NFKC.String(s)
	s = strings.NewReplacer("\r\n", "\n", "\r", "\n", "\f", "\n", "\t", "    ").Replace(s)
	s = urlPattern.ReplaceAllString(s, "")
	s = emailPattern.ReplaceAllString(s, "")
	s = strings.Map(func(r rune) rune {
		if r == '\n' {
			return r
		}
		if r == '\u00ad' || r == '\ufeff' || r == '\u200b' {
			return -1
		}
		if unicode.IsControl(r) {
			return -1
		}
		if unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, s)

	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " ")
	}
	s = strings.Join(lines, "\n")
	s = blankRun.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// ErrNotResume is returned by ValidateResume for documents that do not look
// like a resume. Callers may let the user continue anyway.
var ErrNotResume = errors.New("document does not look like a resume")

const (
	// MinResumeWords is the shortest text accepted as a resume.
	MinResumeWords = 50
	// MinResumeSignals is how many distinct resume markers must appear.
	MinResumeSignals = 2
)

// Validation reports what ValidateResume found.
type Validation struct {
	Words   int      `json:"words"`
	Signals []string `json:"signals"`
}

var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// ValidateResume checks that text is long enough and carries resume signals:
// section headings, a degree, year ranges, or action verbs.
func ValidateResume(r *rules.Rules, text string) (Validation, error) {
	v := Validation{Words: rules.WordCount(text)}
	lower := strings.ToLower(text)

	for _, sec := range []string{"experience", "education", "skills", "projects", "summary"} {
		for _, rule := range r.Sections {
			if rule.Name != sec {
				continue
			}
			for _, syn := range rule.Synonyms {
				if rules.ContainsTerm(lower, syn) {
					v.Signals = append(v.Signals, "section:"+sec)
					break
				}
			}
		}
	}
	for _, degree := range []string{"bachelor", "master", "b.tech", "m.tech", "b.sc", "m.sc", "phd", "degree", "university", "college"} {
		if rules.ContainsTerm(lower, degree) {
			v.Signals = append(v.Signals, "education")
			break
		}
	}
	if yearPattern.MatchString(text) {
		v.Signals = append(v.Signals, "dates")
	}
	if r.CountStrongVerbs(text) > 0 {
		v.Signals = append(v.Signals, "action-verbs")
	}

	switch {
	case v.Words < MinResumeWords:
		return v, fmt.Errorf("%w: %d words, need at least %d", ErrNotResume, v.Words, MinResumeWords)
	case len(v.Signals) < MinResumeSignals:
		return v, fmt.Errorf("%w: found %d resume signals, need %d", ErrNotResume, len(v.Signals), MinResumeSignals)
	}
	return v, nil
}
