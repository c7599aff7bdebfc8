package segment

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	columnScanLines = 50
	columnThreshold = 3
)

var (
	columnGap   = regexp.MustCompile(`\S[ \t]{5,}\S`)
	columnSplit = regexp.MustCompile(`[ \t]{5,}`)
	allCaps     = regexp.MustCompile(`^[A-Z ]{4,40}$`)
)

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}

func isTwoColumn(lines []string) bool {
	n := 0
	for i, line := range lines {
		if i >= columnScanLines {
			break
		}
		if columnGap.MatchString(line) {
			n++
		}
	}
	return n > columnThreshold
}

// flattenColumns rewrites a two-column layout as the left column followed by
// the right column. Blank rows are kept in both columns.
func flattenColumns(lines []string) []string {
	if !isTwoColumn(lines) {
		return lines
	}
	left := make([]string, 0, len(lines))
	right := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			left = append(left, "")
			right = append(right, "")
			continue
		}
		loc := columnSplit.FindStringIndex(line)
		if loc == nil {
			left = append(left, strings.TrimSpace(line))
			continue
		}
		if l := strings.TrimSpace(line[:loc[0]]); l != "" {
			left = append(left, l)
		}
		if r := strings.TrimSpace(line[loc[1]:]); r != "" {
			right = append(right, r)
		}
	}
	out := make([]string, 0, len(left)+len(right)+1)
	out = append(out, left...)
	out = append(out, "")
	return append(out, right...)
}

// titleCaps turns ALL CAPS heading lines into title case.
func titleCaps(lines []string) []string {
	caser := cases.Title(language.English)
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if allCaps.MatchString(trimmed) {
			lines[i] = caser.String(trimmed)
		}
	}
	return lines
}

func isBlank(lines []string, i int) bool {
	return i < 0 || i >= len(lines) || strings.TrimSpace(lines[i]) == ""
}
