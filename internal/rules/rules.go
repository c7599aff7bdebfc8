package rules

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed default_rules.yaml
var defaultRules []byte

// Rules holds the rule tables used by the segmenter and the scoring engine.
type Rules struct {
	Version          string             `yaml:"version" validate:"required"`
	Sections         []SectionRule      `yaml:"sections" validate:"required,min=1,dive"`
	TechKeywords     []string           `yaml:"tech_keywords" validate:"required,min=1,dive,required"`
	Roles            []RoleRule         `yaml:"roles" validate:"dive"`
	DefaultVerb      string             `yaml:"default_verb" validate:"required"`
	DefaultRoleLabel string             `yaml:"default_role_label" validate:"required"`
	MetricPhrases    map[string]string  `yaml:"metric_phrases" validate:"required"`
	StrongVerbs      []string           `yaml:"strong_verbs" validate:"required,min=1,dive,required"`
	WeakPhrases      []string           `yaml:"weak_phrases" validate:"dive,required"`
	WeakActions      []string           `yaml:"weak_actions" validate:"required,min=1,dive,required"`
	MetricPatterns   []MetricPattern    `yaml:"metric_patterns" validate:"required,min=1,dive"`
	SectionWeights   map[string]float64 `yaml:"section_weights" validate:"required,min=1,dive,gt=0,lte=1"`
	WordBands        map[string]Band    `yaml:"word_bands" validate:"dive"`

	metrics []*regexp.Regexp
	verbs   map[string]struct{}
}

// SectionRule lists the header synonyms of one canonical section.
type SectionRule struct {
	Name     string   `yaml:"name" validate:"required,oneof=summary skills experience projects education certifications achievements languages publications volunteering interests references"`
	Synonyms []string `yaml:"synonyms" validate:"required,min=1,dive,required"`
}

// RoleRule holds the indicator phrases for a target role.
type RoleRule struct {
	Name      string   `yaml:"name" validate:"required"`
	Label     string   `yaml:"label"`
	Category  string   `yaml:"category" validate:"required"`
	Verb      string   `yaml:"verb"`
	Primary   []string `yaml:"primary" validate:"dive,required"`
	Secondary []string `yaml:"secondary" validate:"dive,required"`
}

// MetricPattern is a named regular expression that detects quantified impact.
type MetricPattern struct {
	Name    string `yaml:"name" validate:"required"`
	Pattern string `yaml:"pattern" validate:"required"`
}

// Band is an inclusive word-count range.
type Band struct {
	Min int `yaml:"min" validate:"gte=0"`
	Max int `yaml:"max" validate:"gtefield=Min"`
}

// Contains reports whether n falls inside the band.
func (b Band) Contains(n int) bool {
	return n >= b.Min && n <= b.Max
}

var (
	validate = validator.New()

	defaultOnce sync.Once
	defaultSet  *Rules
	defaultErr  error
)

// Default returns the embedded rule set. It is parsed once per process.
func Default() (*Rules, error) {
	defaultOnce.Do(func() {
		defaultSet, defaultErr = Parse(defaultRules)
	})
	return defaultSet, defaultErr
}

// Load reads rules from path, or returns the embedded defaults when path is empty.
func Load(path string) (*Rules, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("rules %s: %w", path, err)
	}
	return r, nil
}

// Parse decodes and validates a YAML rule document.
func Parse(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	if err := validate.Struct(&r); err != nil {
		return nil, fmt.Errorf("validate rules: %w", err)
	}
	if err := r.check(); err != nil {
		return nil, err
	}
	if err := r.compile(); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *Rules) check() error {
	var sum float64
	for _, w := range r.SectionWeights {
		sum += w
	}
	if math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("section weights sum to %.4f, want 1", sum)
	}
	seen := make(map[string]struct{}, len(r.Sections))
	for _, s := range r.Sections {
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("section %q declared twice", s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	for name := range r.SectionWeights {
		if _, ok := seen[name]; !ok {
			return fmt.Errorf("weighted section %q has no synonyms", name)
		}
	}
	if _, ok := r.MetricPhrases["default"]; !ok {
		return errors.New("metric_phrases needs a default entry")
	}
	return nil
}

func (r *Rules) compile() error {
	r.metrics = make([]*regexp.Regexp, 0, len(r.MetricPatterns))
	for _, p := range r.MetricPatterns {
		re, err := regexp.Compile("(?i)" + p.Pattern)
		if err != nil {
			return fmt.Errorf("metric pattern %s: %w", p.Name, err)
		}
		r.metrics = append(r.metrics, re)
	}
	r.verbs = make(map[string]struct{}, len(r.StrongVerbs))
	for _, v := range r.StrongVerbs {
		r.verbs[strings.ToLower(v)] = struct{}{}
	}
	for i := range r.TechKeywords {
		r.TechKeywords[i] = strings.ToLower(strings.TrimSpace(r.TechKeywords[i]))
	}
	return nil
}

// HasMetric reports whether text contains any quantified-impact pattern.
func (r *Rules) HasMetric(text string) bool {
	for _, re := range r.metrics {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// MetricHits returns the names of the metric patterns found in text.
func (r *Rules) MetricHits(text string) []string {
	var out []string
	for i, re := range r.metrics {
		if re.MatchString(text) {
			out = append(out, r.MetricPatterns[i].Name)
		}
	}
	return out
}

// CountStrongVerbs counts word occurrences of strong action verbs.
func (r *Rules) CountStrongVerbs(text string) int {
	n := 0
	for _, w := range Words(text) {
		if _, ok := r.verbs[w]; ok {
			n++
		}
	}
	return n
}

// CountPhrases counts how many of the phrases appear in text.
func CountPhrases(text string, phrases []string) int {
	lower := strings.ToLower(text)
	n := 0
	for _, p := range phrases {
		if ContainsTerm(lower, p) {
			n++
		}
	}
	return n
}

// Role looks up a role by name.
func (r *Rules) Role(name string) (RoleRule, bool) {
	for _, role := range r.Roles {
		if role.Name == name {
			return role, true
		}
	}
	return RoleRule{}, false
}

// RoleLabel returns the noun used for a role in rewritten bullets.
func (r *Rules) RoleLabel(name string) string {
	if role, ok := r.Role(name); ok && role.Label != "" {
		return role.Label
	}
	return r.DefaultRoleLabel
}

// RoleVerb returns the action verb used for a role in rewritten bullets.
func (r *Rules) RoleVerb(name string) string {
	if role, ok := r.Role(name); ok && role.Verb != "" {
		return role.Verb
	}
	return r.DefaultVerb
}

// MetricPhrase returns the rewrite metric phrase for a role category.
func (r *Rules) MetricPhrase(category string) string {
	if p, ok := r.MetricPhrases[category]; ok && p != "" {
		return p
	}
	return r.MetricPhrases["default"]
}

// Band returns the target word band for a section and whether one is defined.
func (r *Rules) Band(section string) (Band, bool) {
	b, ok := r.WordBands[section]
	return b, ok
}

// Synonyms returns section name to synonyms, in declaration order.
func (r *Rules) Synonyms() []SectionRule {
	out := make([]SectionRule, len(r.Sections))
	copy(out, r.Sections)
	return out
}
