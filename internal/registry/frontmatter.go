package registry

import (
	"log/slog"
	"regexp"

	"gopkg.in/yaml.v3"
)

var frontmatterRe = regexp.MustCompile(`(?s)^---\s*\n(.*?)\n---`)

// parseFrontmatter extracts and decodes the YAML frontmatter block
// (delimited by --- lines) at the top of a markdown file. Returns an
// empty map if there is no frontmatter or it fails to parse.
func parseFrontmatter(content string) map[string]any {
	match := frontmatterRe.FindStringSubmatch(content)
	if match == nil {
		return map[string]any{}
	}

	var data map[string]any
	if err := yaml.Unmarshal([]byte(match[1]), &data); err != nil {
		slog.Warn("registry.frontmatter_parse_failed", "error", err)
		return map[string]any{}
	}
	if data == nil {
		return map[string]any{}
	}
	return data
}
