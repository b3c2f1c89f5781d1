package analysis

import (
	"regexp"
	"strings"
)

var fencedBlock = regexp.MustCompile("(?s)```(?:python)?\\n(.*?)\\n```")

// codeMarkers identify lines that look like analysis code in an unfenced
// response.
var codeMarkers = []string{"df[", "df.", "=", "result", "groupby", "sum(", "mean("}

// Extract pulls analysis code out of a model response. The first fenced
// block wins; otherwise lines that look like code are kept.
func Extract(response string) string {
	if m := fencedBlock.FindStringSubmatch(response); m != nil {
		return strings.TrimSpace(m[1])
	}

	var lines []string
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		for _, marker := range codeMarkers {
			if strings.Contains(line, marker) {
				lines = append(lines, line)
				break
			}
		}
	}
	return strings.Join(lines, "\n")
}
