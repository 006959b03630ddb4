package schema

import (
	"strings"
)

// Legacy is the flat two sentence schema for models that reward density
// over structure.
type Legacy struct{}

func (Legacy) Name() string { return "legacy" }

func (Legacy) Format(in Input) (string, error) {
	style := resolveStyle(in)
	styleText := style.desc
	if styleText == "" {
		styleText = style.name
	}

	subject := in.Clip.Subject()
	if subject == "" {
		var parts []string
		if names := in.Clip.CharacterNames(); len(names) > 0 {
			parts = append(parts, strings.Join(names, " and "))
		}
		if loc := locationName(in); loc != "" {
			parts = append(parts, "at "+loc)
		}
		subject = strings.Join(parts, " ")
	}

	var out []string
	for _, s := range []string{styleText, subject} {
		s = strings.TrimRight(strings.TrimSpace(s), ".")
		if s != "" {
			out = append(out, s+".")
		}
	}

	var b strings.Builder
	b.WriteString(strings.Join(out, " "))
	return finish(&b)
}
