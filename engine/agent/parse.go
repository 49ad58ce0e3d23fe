package agent

import (
	"regexp"
	"strings"
)

var (
	numberedLine = regexp.MustCompile(`^\s*(\d+)[.)]\s+(.+)$`)
	bulletLine   = regexp.MustCompile(`^\s*[-*•]\s+(.+)$`)
)

// extractNumbered pulls numbered steps out of free-form LLM output.
func extractNumbered(text string) []string {
	var steps []string
	for _, line := range strings.Split(text, "\n") {
		if m := numberedLine.FindStringSubmatch(line); m != nil {
			steps = append(steps, strings.TrimSpace(m[2]))
		}
	}
	return steps
}

// extractBullets pulls bulleted items out of free-form LLM output.
func extractBullets(text string) []string {
	var items []string
	for _, line := range strings.Split(text, "\n") {
		if m := bulletLine.FindStringSubmatch(line); m != nil {
			items = append(items, strings.TrimSpace(m[1]))
		}
	}
	return items
}
