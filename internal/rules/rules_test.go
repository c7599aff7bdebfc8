package rules

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRulesLoad(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)

	assert.NotEmpty(t, r.Version)
	assert.Len(t, r.Sections, 12)
	assert.GreaterOrEqual(t, len(r.TechKeywords), 80)
	assert.LessOrEqual(t, len(r.TechKeywords), 130)

	var sum float64
	for _, w := range r.SectionWeights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.InDelta(t, 0.35, r.SectionWeights["experience"], 1e-9)
}

func TestWeakPhrasesDoNotOverlap(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)
	for i, a := range r.WeakPhrases {
		for j, b := range r.WeakPhrases {
			if i != j {
				assert.False(t, ContainsTerm(a, b), "weak phrase %q contains %q", a, b)
			}
		}
	}
	assert.Equal(t, 1, CountPhrases("Was responsible for the release train", r.WeakPhrases))
}

func TestDefaultReturnsSameInstance(t *testing.T) {
	a, err := Default()
	require.NoError(t, err)
	b, err := Default()
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestParseRejectsBadWeights(t *testing.T) {
	doc := strings.Replace(string(defaultRules), "education: 0.10\n\nword_bands", "education: 0.30\n\nword_bands", 1)
	require.NotEqual(t, string(defaultRules), doc, "fixture replacement did not apply")

	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "section weights")
}

func TestParseRejectsUnknownSection(t *testing.T) {
	doc := strings.Replace(string(defaultRules), "- name: references", "- name: hobbies", 1)
	_, err := Parse([]byte(doc))
	require.Error(t, err)
}

func TestParseRejectsBadMetricPattern(t *testing.T) {
	doc := strings.Replace(string(defaultRules), `pattern: '\d+(\.\d+)?\s?%'`, `pattern: '(\d+'`, 1)
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "percentage")
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	doc := strings.Replace(string(defaultRules), `version: "2026.10.2"`, `version: "custom-1"`, 1)
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "custom-1", r.Version)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestLoadEmptyPathUsesDefault(t *testing.T) {
	r, err := Load("  ")
	require.NoError(t, err)
	def, _ := Default()
	assert.Same(t, def, r)
}

func TestHasMetric(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)

	tests := []struct {
		text string
		want bool
	}{
		{"Improved dashboard load time by 40%", true},
		{"Scaled throughput 3x", true},
		{"Saved $20k in hosting costs", true},
		{"Served 10K+ daily visitors", true},
		{"Onboarded 250 users in the first week", true},
		{"Reduced churn for the mobile app", true},
		{"Worked on a dashboard", false},
		{"Helped the team with code reviews", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, r.HasMetric(tt.text), tt.text)
	}
}

func TestMetricHits(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)
	hits := r.MetricHits("Increased revenue by 12%")
	assert.Contains(t, hits, "percentage")
	assert.Contains(t, hits, "impact")
	assert.Empty(t, r.MetricHits("wrote some code"))
}

func TestCountStrongVerbs(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)
	assert.Equal(t, 3, r.CountStrongVerbs("Led a team. Built APIs and deployed them."))
	assert.Equal(t, 0, r.CountStrongVerbs("worked on stuff"))
}

func TestContainsTerm(t *testing.T) {
	tests := []struct {
		text string
		term string
		want bool
	}{
		{"we need a python expert", "python", true},
		{"maintain the platform", "ai", false},
		{"experience with ai tools", "ai", true},
		{"machine learning and nlp", "machine learning", true},
		{"c++, java", "c++", true},
		{"ci/cd pipelines", "ci/cd", true},
		{"restful services", "rest", false},
		{"rest apis", "rest", true},
		{"node.js backend", "node.js", true},
		{"", "python", false},
		{"python", "", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ContainsTerm(tt.text, tt.term), "%q in %q", tt.term, tt.text)
	}
}

func TestRoleAndMetricPhrase(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)

	role, ok := r.Role("DevOps Engineer")
	require.True(t, ok)
	assert.Equal(t, "infra", role.Category)

	_, ok = r.Role("Astronaut")
	assert.False(t, ok)

	assert.Equal(t, r.MetricPhrases["default"], r.MetricPhrase("unknown"))
	assert.Contains(t, r.MetricPhrase("ml"), "accuracy")
}

func TestBand(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)
	b, ok := r.Band("experience")
	require.True(t, ok)
	assert.True(t, b.Contains(150))
	assert.False(t, b.Contains(20))
	_, ok = r.Band("interests")
	assert.False(t, ok)
}

func TestWordsAndCount(t *testing.T) {
	assert.Equal(t, []string{"built", "apis", "in", "go"}, Words("Built APIs, in Go!"))
	assert.Equal(t, 3, WordCount("  one two\nthree "))
}

func TestRoleLabelAndVerb(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "data science", r.RoleLabel("Data Scientist"))
	assert.Equal(t, "Built", r.RoleVerb("Data Scientist"))
	assert.Equal(t, r.DefaultRoleLabel, r.RoleLabel("General"))
	assert.Equal(t, r.DefaultVerb, r.RoleVerb("General"))
}
