package segment

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"resume-ats/internal/rules"
)

func newTestSegmenter(t *testing.T) *Segmenter {
	t.Helper()
	r, err := rules.Default()
	if err != nil {
		t.Fatalf("default rules: %v", err)
	}
	return New(r)
}

func TestSegmentHeaderBoundary(t *testing.T) {
	s := newTestSegmenter(t)
	text := strings.Join([]string{
		"Jane Doe",
		"jane@example.com",
		"",
		"SKILLS",
		"Python, Go, Docker, Kubernetes",
		"",
		"EXPERIENCE",
		"Backend Engineer, Acme Corp (2020-2024)",
		"- Built payment APIs in Go serving 2M requests per day",
	}, "\n")

	got := s.Segment(text)
	if got[Skills] != "Python, Go, Docker, Kubernetes" {
		t.Fatalf("skills = %q", got[Skills])
	}
	if strings.Contains(got[Experience], "Kubernetes") {
		t.Fatalf("skills content leaked into experience: %q", got[Experience])
	}
	if !strings.HasPrefix(got[Experience], "Backend Engineer, Acme Corp") {
		t.Fatalf("experience = %q", got[Experience])
	}
	if strings.Contains(got[Summary], "Jane") {
		t.Fatalf("text before the first header should be dropped, summary = %q", got[Summary])
	}
}

func TestSegmentAllKeysPresent(t *testing.T) {
	s := newTestSegmenter(t)
	for _, text := range []string{"", "\n\n\n", "Skills\nGo", "@@@ ### $$$"} {
		got := s.Segment(text)
		if len(got) != len(All) {
			t.Fatalf("%q: got %d keys, want %d", text, len(got), len(All))
		}
		for _, sec := range All {
			if _, ok := got[sec]; !ok {
				t.Fatalf("%q: missing key %s", text, sec)
			}
		}
	}
}

func TestSegmentTwoColumnMatchesSingleColumn(t *testing.T) {
	s := newTestSegmenter(t)
	row := func(l, r string) string { return fmt.Sprintf("%-32s%s", l, r) }

	twoCol := strings.Join([]string{
		row("SKILLS", "EDUCATION"),
		row("Python, Go, Docker", "B.Tech Computer Science"),
		"",
		row("EXPERIENCE", "PROJECTS"),
		row("Built APIs at Acme", "Resume scorer in Go"),
	}, "\n")
	oneCol := strings.Join([]string{
		"Skills",
		"Python, Go, Docker",
		"",
		"Experience",
		"Built APIs at Acme",
		"",
		"Education",
		"B.Tech Computer Science",
		"",
		"Projects",
		"Resume scorer in Go",
	}, "\n")

	two := s.Detailed(twoCol)
	one := s.Detailed(oneCol)
	if !two.TwoColumn {
		t.Fatalf("expected two-column layout to be detected")
	}
	if one.TwoColumn {
		t.Fatalf("single column text detected as two-column")
	}
	if !reflect.DeepEqual(two.Sections, one.Sections) {
		t.Fatalf("sections differ\n two: %#v\n one: %#v", two.Sections, one.Sections)
	}
	if want := []Section{Skills, Experience, Projects, Education}; !reflect.DeepEqual(two.Sections.Found(), want) {
		t.Fatalf("found = %v, want %v", two.Sections.Found(), want)
	}
}

func TestSegmentHeaderlessFallsBackToParagraphs(t *testing.T) {
	s := newTestSegmenter(t)
	text := "Passionate engineer who enjoys building reliable backend systems.\n" +
		"I have written services in Python and Go for several years.\n\n" +
		"Outside work I mentor students and write about distributed systems."

	res := s.Detailed(text)
	if !res.Fallback || !res.Headerless() {
		t.Fatalf("expected headerless fallback, got fallback=%v matched=%d", res.Fallback, res.Matched)
	}
	if !strings.Contains(res.Sections[Summary], "Passionate engineer") ||
		!strings.Contains(res.Sections[Summary], "\n\nOutside work") {
		t.Fatalf("summary = %q", res.Sections[Summary])
	}
	for _, sec := range All[1:] {
		if res.Sections[sec] != "" {
			t.Fatalf("%s should be empty, got %q", sec, res.Sections[sec])
		}
	}
}

func TestSegmentRepeatedHeadersConcatenate(t *testing.T) {
	s := newTestSegmenter(t)
	text := "Projects\nAlpha tool\n\nSkills\nPython, SQL\n\nProjects\nBeta release"
	got := s.Segment(text)
	if got[Projects] != "Alpha tool\n\nBeta release" {
		t.Fatalf("projects = %q", got[Projects])
	}
	if got[Skills] != "Python, SQL" {
		t.Fatalf("skills = %q", got[Skills])
	}
}

func TestSegmentHeaderForms(t *testing.T) {
	s := newTestSegmenter(t)
	tests := []struct {
		name string
		text string
		sec  Section
		want string
	}{
		{"inline colon", "Skills: Python, Go\nExperience | Acme Corp 2021", Skills, "Python, Go"},
		{"inline pipe", "Skills: Python, Go\nExperience | Acme Corp 2021", Experience, "Acme Corp 2021"},
		{"underline", "Education\n---------\nB.Sc Mathematics", Education, "B.Sc Mathematics"},
		{"dashes", "Certifications -- AWS Solutions Architect", Certifications, "AWS Solutions Architect"},
		{"label inside body", "Experience\nNote: contract role\nBuilt APIs", Experience, "Note: contract role\nBuilt APIs"},
		{"ampersand", "Honors & Awards\n\nDean's list 2019", Achievements, "Dean's list 2019"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Segment(tt.text)
			if got[tt.sec] != tt.want {
				t.Fatalf("%s = %q, want %q", tt.sec, got[tt.sec], tt.want)
			}
		})
	}
}

func TestSegmentUnmatchedHeaderDropsBody(t *testing.T) {
	s := newTestSegmenter(t)
	text := "Skills\nPython\n\nRandom Stuff\n\nJuggling\n\nEducation\nB.Sc"
	got := s.Segment(text)
	if got[Skills] != "Python" {
		t.Fatalf("skills = %q", got[Skills])
	}
	if got[Education] != "B.Sc" {
		t.Fatalf("education = %q", got[Education])
	}
	for sec, body := range got {
		if strings.Contains(body, "Juggling") {
			t.Fatalf("body of unmatched header ended up in %s", sec)
		}
	}
}

func TestSegmentKeepsEveryJobInExperience(t *testing.T) {
	s := newTestSegmenter(t)
	text := strings.Join([]string{
		"Experience",
		"Software Engineer",
		"Acme Corp, 2020-2022",
		"- Built payments API",
		"",
		"Data Analyst",
		"Foo Inc, 2018-2020",
		"- Built reporting pipeline",
		"",
		"Research Assistant",
		"State University, 2017",
		"- Ran survey analysis in R",
		"",
		"Education",
		"B.Sc Statistics",
	}, "\n")

	res := s.Detailed(text)
	exp := res.Sections[Experience]
	for _, want := range []string{"Acme Corp", "Data Analyst\nFoo Inc", "Built reporting pipeline", "Research Assistant", "survey analysis"} {
		if !strings.Contains(exp, want) {
			t.Fatalf("experience missing %q: %q", want, exp)
		}
	}
	if res.Sections[Publications] != "" {
		t.Fatalf("publications = %q, want empty", res.Sections[Publications])
	}
	if res.Sections[Education] != "B.Sc Statistics" {
		t.Fatalf("education = %q", res.Sections[Education])
	}
	for _, h := range res.Headers {
		if !h.Matched {
			t.Fatalf("job title accepted as header: %+v", h)
		}
	}
}

func TestSegmentStandaloneTypoHeader(t *testing.T) {
	s := newTestSegmenter(t)
	got := s.Segment("Skils\nPython, Go\n\nEducaton\nB.Sc")
	if got[Skills] != "Python, Go" || got[Education] != "B.Sc" {
		t.Fatalf("skills = %q, education = %q", got[Skills], got[Education])
	}
}

func TestMatchHeader(t *testing.T) {
	s := newTestSegmenter(t)
	tests := []struct {
		header string
		want   Section
		ok     bool
	}{
		{"Work Experience", Experience, true},
		{"TECHNICAL SKILLS", Skills, true},
		{"Professional Experience:", Experience, true},
		{"Skils", Skills, true},
		{"Educaton", Education, true},
		{"Hobbies", Interests, true},
		{"Random Stuff", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, score, ok := s.MatchHeader(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("MatchHeader(%q) = %q, %v (score %.1f), want %q, %v", tt.header, got, ok, score, tt.want, tt.ok)
		}
	}
}

func TestTitleCaps(t *testing.T) {
	got := titleCaps([]string{"WORK EXPERIENCE", "AWS", "Mixed Case", "  SKILLS  "})
	want := []string{"Work Experience", "AWS", "Mixed Case", "Skills"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("titleCaps = %v, want %v", got, want)
	}
}

func TestRatioHelpers(t *testing.T) {
	if r := ratio("skills", "skills"); r != 100 {
		t.Fatalf("ratio identical = %v", r)
	}
	if r := partialRatio("skills", "technical skills"); r != 100 {
		t.Fatalf("partialRatio substring = %v", r)
	}
	if got := sortTokens("skills technical"); got != "skills technical" {
		t.Fatalf("sortTokens = %q", got)
	}
	if got := normalizeHeader("  Honors & Awards: "); got != "honors and awards" {
		t.Fatalf("normalizeHeader = %q", got)
	}
}
