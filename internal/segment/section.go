package segment

// Section is a canonical resume section name.
type Section string

const (
	Summary        Section = "summary"
	Skills         Section = "skills"
	Experience     Section = "experience"
	Projects       Section = "projects"
	Education      Section = "education"
	Certifications Section = "certifications"
	Achievements   Section = "achievements"
	Languages      Section = "languages"
	Publications   Section = "publications"
	Volunteering   Section = "volunteering"
	Interests      Section = "interests"
	References     Section = "references"
)

// All lists the canonical sections in report order.
var All = []Section{
	Summary,
	Skills,
	Experience,
	Projects,
	Education,
	Certifications,
	Achievements,
	Languages,
	Publications,
	Volunteering,
	Interests,
	References,
}

// Valid reports whether s is one of the canonical sections.
func (s Section) Valid() bool {
	for _, c := range All {
		if c == s {
			return true
		}
	}
	return false
}

// Map holds the body text of every canonical section. Every key is present.
type Map map[Section]string

// NewMap returns a map with every canonical section set to "".
func NewMap() Map {
	m := make(Map, len(All))
	for _, s := range All {
		m[s] = ""
	}
	return m
}

// Found returns the sections with a non-empty body, in report order.
func (m Map) Found() []Section {
	out := make([]Section, 0, len(All))
	for _, s := range All {
		if m[s] != "" {
			out = append(out, s)
		}
	}
	return out
}

// Strings converts the map to plain string keys for JSON encoding.
func (m Map) Strings() map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[string(k)] = v
	}
	return out
}
