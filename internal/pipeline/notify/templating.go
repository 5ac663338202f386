package notify

import "strings"

// RenderTemplate substitutes every {{key}} placeholder in tmpl with
// vars[key], leaving unresolved placeholders untouched so a missing
// variable is visible in the sent message rather than silently
// collapsing to an empty string.
func RenderTemplate(tmpl string, vars map[string]string) string {
	out := tmpl
	for key, val := range vars {
		out = strings.ReplaceAll(out, "{{"+key+"}}", val)
	}
	return out
}
