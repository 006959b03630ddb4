package payload

import (
	"strconv"
	"strings"
)

// Overrides are quick per-request tweaks given as a whitespace separated
// string, e.g. "ar=9:16 10s strength=7 seed=42 model=veo3".
type Overrides struct {
	Model         string
	AspectRatio   string
	Duration      string
	StyleStrength int
	Seed          *int64
	// Rest holds the tokens that were not recognised, in order.
	Rest string
}

func ParseOverrides(raw string, defaults Overrides) Overrides {
	out := defaults
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return out
	}

	var rest []string
	for _, tok := range strings.Fields(raw) {
		orig := tok
		tok = strings.ToLower(tok)

		key, value, hasValue := strings.Cut(tok, "=")
		if hasValue {
			switch key {
			case "model", "m":
				// model ids are case sensitive for some providers
				_, v, _ := strings.Cut(orig, "=")
				if v = strings.TrimSpace(v); v != "" {
					out.Model = v
					continue
				}
			case "ar", "aspect":
				if ar := NormalizeAspectRatio(value); ar != "" {
					out.AspectRatio = ar
					continue
				}
			case "duration", "d":
				if _, err := strconv.Atoi(strings.TrimSuffix(value, "s")); err == nil {
					out.Duration = strings.TrimSuffix(value, "s")
					continue
				}
			case "strength", "style":
				if n, err := strconv.Atoi(value); err == nil && n >= 1 && n <= 10 {
					out.StyleStrength = n
					continue
				}
			case "seed":
				if n, err := strconv.ParseInt(value, 10, 64); err == nil {
					out.Seed = &n
					continue
				}
			}
			rest = append(rest, orig)
			continue
		}

		if ar := NormalizeAspectRatio(tok); ar != "" {
			out.AspectRatio = ar
			continue
		}
		if strings.HasSuffix(tok, "s") {
			if _, err := strconv.Atoi(strings.TrimSuffix(tok, "s")); err == nil {
				out.Duration = strings.TrimSuffix(tok, "s")
				continue
			}
		}
		rest = append(rest, orig)
	}

	out.Rest = strings.Join(rest, " ")
	return out
}

// Apply copies the set fields onto req.
func (o Overrides) Apply(req Request) Request {
	if o.Model != "" {
		req.Clip.Model = o.Model
	}
	if o.AspectRatio != "" {
		req.AspectRatio = o.AspectRatio
	}
	if o.Duration != "" {
		req.Clip.Duration = o.Duration
	}
	if o.StyleStrength != 0 {
		req.StyleStrength = o.StyleStrength
	}
	if o.Seed != nil {
		seed := *o.Seed
		req.Seed = &seed
	}
	return req
}
