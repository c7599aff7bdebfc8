package scoring

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"resume-ats/internal/rules"
)

const (
	minBulletLen = 20
	maxBulletLen = 200
)

var bulletMarker = regexp.MustCompile(`^\s*(?:[-*•●▪◦‣–]|\d+[.)]|[a-zA-Z][.)])\s+`)

// SplitBullets breaks text into bullet fragments. A fragment starts at a
// bullet, number or letter marker and continues over following unmarked
// lines until a blank line. Text without any marker yields one fragment per
// non-blank line.
func SplitBullets(text string) []string {
	var lines []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		lines = append(lines, splitInlineBullets(line)...)
	}

	marked := false
	for _, line := range lines {
		if bulletMarker.MatchString(line) {
			marked = true
			break
		}
	}
	if !marked {
		var out []string
		for _, line := range lines {
			if t := strings.TrimSpace(line); t != "" {
				out = append(out, t)
			}
		}
		return out
	}

	var (
		out []string
		cur []string
	)
	flush := func() {
		if len(cur) > 0 {
			out = append(out, strings.Join(cur, " "))
			cur = nil
		}
	}
	for _, line := range lines {
		t := strings.TrimSpace(line)
		switch {
		case t == "":
			flush()
		case bulletMarker.MatchString(line):
			flush()
			if body := strings.TrimSpace(bulletMarker.ReplaceAllString(line, "")); body != "" {
				cur = append(cur, body)
			}
		case len(cur) > 0:
			cur = append(cur, t)
		}
	}
	flush()
	return out
}

// splitInlineBullets splits "• one • two" produced by PDF extraction into
// separate marked lines.
func splitInlineBullets(line string) []string {
	if !strings.Contains(strings.TrimPrefix(strings.TrimSpace(line), "•"), "•") {
		return []string{line}
	}
	parts := strings.Split(line, "•")
	out := make([]string, 0, len(parts))
	if head := strings.TrimSpace(parts[0]); head != "" {
		out = append(out, head)
	}
	for _, p := range parts[1:] {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, "• "+p)
		}
	}
	return out
}

// IsWeakBullet reports whether a fragment uses weak phrasing without any
// quantified result.
func IsWeakBullet(r *rules.Rules, fragment string) bool {
	n := utf8.RuneCountInString(fragment)
	if n < minBulletLen || n > maxBulletLen {
		return false
	}
	if rules.CountPhrases(fragment, r.WeakActions) == 0 {
		return false
	}
	return !r.HasMetric(fragment)
}

// WeakBullets returns the weak fragments of text in document order.
func WeakBullets(r *rules.Rules, text string) []string {
	out := []string{}
	for _, f := range SplitBullets(text) {
		if IsWeakBullet(r, f) {
			out = append(out, f)
		}
	}
	return out
}
