// Package segment splits resume text into canonical sections using fuzzy
// header matching against the synonym tables in the rule set.
package segment

import (
	"fmt"
	"regexp"
	"strings"

	"resume-ats/internal/rules"
)

const maxHeaderTokens = 5

var (
	headerShape  = regexp.MustCompile(`^[A-Za-z][A-Za-z &]{1,38}[A-Za-z]$`)
	headerInline = regexp.MustCompile(`^([A-Za-z][A-Za-z &]{1,38}[A-Za-z])\s*(?::|\||-{2,}|_{2,})\s*(.*)$`)
	underline    = regexp.MustCompile(`^[-_=]{2,}$`)
	inlineCut    = regexp.MustCompile(`\s*(?::|\|)\s*`)
)

// Header is a header candidate found in the text.
type Header struct {
	Line    int     `json:"line"`
	Text    string  `json:"text"`
	Section Section `json:"section,omitempty"`
	Score   float64 `json:"score"`
	Matched bool    `json:"matched"`

	rest string
	skip int
}

// Result is the detailed outcome of segmenting one resume.
type Result struct {
	Sections  Map      `json:"sections"`
	Headers   []Header `json:"headers"`
	Matched   int      `json:"matched"`
	Fallback  bool     `json:"fallback"`
	TwoColumn bool     `json:"twoColumn"`
	Err       error    `json:"-"`
}

// Headerless reports whether no section header could be identified at all.
func (r Result) Headerless() bool {
	return r.Matched == 0
}

// Segmenter maps resume text to canonical sections. It is safe for concurrent use.
type Segmenter struct {
	m *matcher
}

// New builds a segmenter from the section synonym tables in r.
func New(r *rules.Rules) *Segmenter {
	return &Segmenter{m: newMatcher(r.Sections)}
}

// Segment returns the section map for text. It never fails; malformed input
// yields a map with empty bodies.
func (s *Segmenter) Segment(text string) Map {
	return s.Detailed(text).Sections
}

// MatchHeader fuzzy-matches a single header string.
func (s *Segmenter) MatchHeader(header string) (Section, float64, bool) {
	return s.m.match(header)
}

// Detailed segments text and reports which headers were found.
func (s *Segmenter) Detailed(text string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Sections: NewMap(), Err: fmt.Errorf("segment: recovered panic: %v", r)}
		}
	}()

	raw := splitLines(text)
	two := isTwoColumn(raw)
	lines := titleCaps(flattenColumns(raw))

	headers := s.headers(lines)
	matched := 0
	for _, h := range headers {
		if h.Matched {
			matched++
		}
	}
	if matched == 0 {
		sections, n := s.paragraphs(lines)
		return Result{Sections: sections, Headers: headers, Matched: n, Fallback: true, TwoColumn: two}
	}
	return Result{Sections: s.assemble(lines, headers), Headers: headers, Matched: matched, TwoColumn: two}
}

func (s *Segmenter) headers(lines []string) []Header {
	var out []Header
	for i := 0; i < len(lines); i++ {
		h, ok := s.candidate(lines, i)
		if !ok {
			continue
		}
		out = append(out, h)
		i += h.skip
	}
	return out
}

func (s *Segmenter) candidate(lines []string, i int) (Header, bool) {
	t := strings.TrimSpace(lines[i])
	if t == "" {
		return Header{}, false
	}
	h := Header{Line: i}
	standalone := false
	switch {
	case headerShape.MatchString(t) && i+1 < len(lines) && underline.MatchString(strings.TrimSpace(lines[i+1])):
		h.Text, h.skip = t, 1
	case headerInline.MatchString(t):
		sm := headerInline.FindStringSubmatch(t)
		h.Text, h.rest = strings.TrimSpace(sm[1]), strings.TrimSpace(sm[2])
	case headerShape.MatchString(t) && (isBlank(lines, i-1) || isBlank(lines, i+1)):
		h.Text, standalone = t, true
	default:
		return Header{}, false
	}
	if len(strings.Fields(h.Text)) > maxHeaderTokens {
		return Header{}, false
	}
	h.Section, h.Score, h.Matched = s.m.match(h.Text)
	if standalone && h.Matched && h.Score < StandaloneThreshold {
		h.Section, h.Matched = "", false
	}
	if !h.Matched {
		// "Label: value" lines and lines that open or close a paragraph, such
		// as a job title above its employer, are content unless they name a
		// known section.
		if h.rest != "" || (standalone && !(isBlank(lines, i-1) && isBlank(lines, i+1))) {
			return Header{}, false
		}
	}
	return h, true
}

// assemble collects the body of every header up to the next header. Bodies of
// unmatched headers and text before the first header are dropped.
func (s *Segmenter) assemble(lines []string, headers []Header) Map {
	out := NewMap()
	at := make(map[int]Header, len(headers))
	for _, h := range headers {
		at[h.Line] = h
	}

	var (
		cur  Section
		keep bool
		body []string
	)
	flush := func() {
		if keep {
			appendBody(out, cur, body)
		}
		body = body[:0]
	}
	for i := 0; i < len(lines); i++ {
		if h, ok := at[i]; ok {
			flush()
			cur, keep = h.Section, h.Matched
			if h.rest != "" {
				body = append(body, h.rest)
			}
			i += h.skip
			continue
		}
		body = append(body, strings.TrimRight(lines[i], " \t"))
	}
	flush()
	return out
}

// paragraphs is the fallback for resumes without recognizable headers: each
// blank-line separated paragraph whose first line matches a section goes to it,
// everything else accumulates into the summary.
func (s *Segmenter) paragraphs(lines []string) (Map, int) {
	out := NewMap()
	matched := 0
	var para []string
	flush := func() {
		if len(para) == 0 {
			return
		}
		first := strings.TrimSpace(para[0])
		label, rest := first, ""
		if loc := inlineCut.FindStringIndex(first); loc != nil {
			label, rest = first[:loc[0]], first[loc[1]:]
		}
		if n := len(strings.Fields(label)); n > 0 && n <= maxHeaderTokens {
			if sec, _, ok := s.m.match(label); ok {
				body := para[1:]
				if rest != "" {
					body = append([]string{rest}, body...)
				}
				appendBody(out, sec, body)
				matched++
				para = nil
				return
			}
		}
		appendBody(out, Summary, para)
		para = nil
	}
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		para = append(para, strings.TrimRight(line, " \t"))
	}
	flush()
	return out, matched
}

func appendBody(m Map, sec Section, body []string) {
	text := strings.TrimSpace(strings.Join(body, "\n"))
	if text == "" {
		return
	}
	if m[sec] != "" {
		m[sec] += "\n\n" + text
		return
	}
	m[sec] = text
}
