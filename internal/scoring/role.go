package scoring

import (
	"strings"

	"resume-ats/internal/rules"
)

// GeneralRole is reported when no role indicator appears in the job description.
const GeneralRole = "General"

const (
	primaryPoints   = 5
	secondaryPoints = 1
)

// DetectRole scores every role by its indicator phrases in the job description.
// The first role with the strictly highest positive score wins.
func DetectRole(r *rules.Rules, jd string) string {
	lower := strings.ToLower(jd)
	best, bestScore := GeneralRole, 0
	for _, role := range r.Roles {
		score := 0
		for _, p := range role.Primary {
			if rules.ContainsTerm(lower, p) {
				score += primaryPoints
			}
		}
		for _, p := range role.Secondary {
			if rules.ContainsTerm(lower, p) {
				score += secondaryPoints
			}
		}
		if score > bestScore {
			best, bestScore = role.Name, score
		}
	}
	return best
}
