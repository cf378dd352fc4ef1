package activity

import (
	"fmt"
	"regexp"
	"strings"
)

// Normalizer canonicalizes raw window titles so captures of the same
// working context group together despite session noise in the title bar.
type Normalizer struct {
	noise  []*regexp.Regexp
	shapes []titleShape
}

type titleShape struct {
	pattern *regexp.Regexp
	render  func(match []string) string
}

var (
	// Session noise the capture tool leaks into titles.
	noisePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\s*\[(?:mem|memory)[^\]]*\]`),  // memory-debug tokens
		regexp.MustCompile(`\s*[-–—]?\s*\d{3,5}x\d{3,5}\b`),    // window dimensions
		regexp.MustCompile(`^[\w.-]+@[\w.-]+:[^$#]*[$#]\s*`),   // shell prompt markers
		regexp.MustCompile(`\s*\b[0-9a-f]{7}(?:[0-9a-f]{33})?\b`), // short or full git hashes
		regexp.MustCompile(`\s+[-–—]\s*$`),                     // dangling separators
	}

	knownSites = map[string]string{
		"github":         "GitHub",
		"stack overflow": "Stack Overflow",
		"stackoverflow":  "Stack Overflow",
		"youtube":        "YouTube",
		"gmail":          "Gmail",
		"google docs":    "Google Docs",
		"jira":           "Jira",
		"notion":         "Notion",
	}
)

func NewNormalizer() *Normalizer {
	sep := `\s*[-–—|]\s*`
	return &Normalizer{
		noise: noisePatterns,
		shapes: []titleShape{
			{
				// "VS Code — main.py" / "main.py — Visual Studio Code"
				pattern: regexp.MustCompile(`(?i)^(?:(?:visual studio code|vs ?code)` + sep + `(.+)|(.+)` + sep + `(?:visual studio code|vs ?code))$`),
				render: func(m []string) string {
					file := m[1]
					if file == "" {
						file = m[2]
					}
					return fmt.Sprintf("Code Development (%s)", strings.TrimSpace(file))
				},
			},
			{
				// "Slack — general" / "#general — Slack" and friends
				pattern: regexp.MustCompile(`(?i)^(?:(slack|discord|teams)` + sep + `#?(.+)|#?(.+)` + sep + `(slack|discord|teams))$`),
				render: func(m []string) string {
					app, channel := m[1], m[2]
					if app == "" {
						app, channel = m[4], m[3]
					}
					return fmt.Sprintf("%s (%s)", titleCase(app), strings.TrimSpace(channel))
				},
			},
			{
				// "GitHub - Pull Requests — Google Chrome" and similar
				pattern: regexp.MustCompile(`(?i)^(.+)` + sep + `(?:google chrome|chromium|firefox|safari|microsoft edge|edge|brave)$`),
				render: func(m []string) string {
					page := strings.ToLower(m[1])
					for needle, label := range knownSites {
						if strings.Contains(page, needle) {
							return fmt.Sprintf("%s (Browser)", label)
						}
					}
					return fmt.Sprintf("%s (Browser)", strings.TrimSpace(m[1]))
				},
			},
			{
				// generic "context — app"
				pattern: regexp.MustCompile(`^(.+?)\s*[-–—|]\s*([^-–—|]+)$`),
				render: func(m []string) string {
					return fmt.Sprintf("%s (%s)", strings.TrimSpace(m[1]), strings.TrimSpace(m[2]))
				},
			},
		},
	}
}

// Normalize strips session noise from title and maps known application
// title shapes onto canonical labels. Unmatched titles come back as the
// cleaned raw string.
func (n *Normalizer) Normalize(title string) string {
	cleaned := strings.TrimSpace(title)
	for _, re := range n.noise {
		cleaned = re.ReplaceAllString(cleaned, "")
	}
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return "Unknown"
	}

	for _, shape := range n.shapes {
		if m := shape.pattern.FindStringSubmatch(cleaned); m != nil {
			return shape.render(m)
		}
	}
	return cleaned
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
