package scoring

import (
	"fmt"
	"sort"
	"strings"

	"resume-ats/internal/rules"
)

const (
	maxRewriteTech  = 2
	fallbackTechTag = "modern tools"
)

// Rewrite builds the templated replacement for a weak bullet:
// "{Verb} a {role} solution using {tech}, {metric}."
func Rewrite(r *rules.Rules, role, bullet string, techStack []string) string {
	verb := r.RoleVerb(role)
	label := r.RoleLabel(role)
	category := ""
	if rr, ok := r.Role(role); ok {
		category = rr.Category
	}
	tech := bulletTech(r, bullet)
	if len(tech) == 0 {
		tech = techStack
	}
	if len(tech) > maxRewriteTech {
		tech = tech[:maxRewriteTech]
	}
	techText := fallbackTechTag
	if len(tech) > 0 {
		techText = strings.Join(tech, " and ")
	}
	return fmt.Sprintf("%s a %s solution using %s, %s.", verb, label, techText, r.MetricPhrase(category))
}

// bulletTech returns the dictionary terms of a bullet in the order they appear.
func bulletTech(r *rules.Rules, bullet string) []string {
	lower := strings.ToLower(bullet)
	type hit struct {
		term string
		pos  int
	}
	var hits []hit
	for _, term := range r.TechKeywords {
		if !rules.ContainsTerm(lower, term) {
			continue
		}
		hits = append(hits, hit{term: term, pos: strings.Index(lower, term)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.term)
	}
	return out
}
