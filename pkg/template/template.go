// Package template interpolates step configuration strings against record
// snapshots, e.g. "Hi {{.owner.first_name}}, {{.pet.name}} is ready for pickup".
package template

import (
	"fmt"
	"strings"
	"text/template"
	"time"
)

// Render executes the template string against the snapshot. Missing fields
// render as empty strings rather than failing the action.
func Render(input string, snapshot map[string]any) (string, error) {
	if !strings.Contains(input, "{{") {
		return input, nil
	}

	tmpl, err := template.
		New("step_config").
		Option("missingkey=zero").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"date": func(v any) string {
				t, ok := v.(time.Time)
				if !ok {
					return fmt.Sprintf("%v", v)
				}

				return t.Format("2006-01-02")
			},
			"upper": strings.ToUpper,
			"lower": strings.ToLower,
			"title": func(s string) string {
				if s == "" {
					return s
				}

				return strings.ToUpper(s[:1]) + s[1:]
			},
		}).Parse(input)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %q: %w", input, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, snapshot)
	if err != nil {
		return "", fmt.Errorf("failed to execute template %q: %w", input, err)
	}

	// text/template renders missing map keys as "<no value>".
	return strings.ReplaceAll(buf.String(), "<no value>", ""), nil
}
