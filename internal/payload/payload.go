package payload

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"episode-studio/internal/models"
	"episode-studio/internal/schema"
)

type GenerationType string

const (
	TextToVideo      GenerationType = "TEXT_2_VIDEO"
	ReferenceToVideo GenerationType = "REFERENCE_2_VIDEO"
	FramesToVideo    GenerationType = "FIRST_AND_LAST_FRAMES_2_VIDEO"
)

// Payload is the provider-neutral generation request. It is built fresh per
// call and not modified once returned.
type Payload struct {
	RequestID         string         `json:"request_id"`
	Family            models.Family  `json:"family"`
	Model             string         `json:"model"`
	Prompt            string         `json:"prompt"`
	ImageURLs         []string       `json:"image_urls,omitempty"`
	GenerationType    GenerationType `json:"generation_type,omitempty"`
	AspectRatio       string         `json:"aspect_ratio,omitempty"`
	Duration          int            `json:"duration,omitempty"`
	GuidanceScale     *float64       `json:"guidance_scale,omitempty"`
	Seed              *int64         `json:"seed,omitempty"`
	Resolution        string         `json:"resolution,omitempty"`
	OutputFormat      string         `json:"output_format,omitempty"`
	EnableFallback    bool           `json:"enable_fallback,omitempty"`
	EnableTranslation bool           `json:"enable_translation,omitempty"`
	Warnings          []string       `json:"warnings,omitempty"`
}

// HasImages reports whether any reference image is attached.
func (p Payload) HasImages() bool {
	return len(p.ImageURLs) > 0
}

// GuidanceScale maps a 1-10 style strength onto 1.5-10.0, rounded to one
// decimal. Out of range strengths are clamped and 0 means the default.
func GuidanceScale(strength int) float64 {
	s := schema.NormalizeStrength(strength)
	g := 1.5 + float64(s-1)*(8.5/9)
	return math.Round(g*10) / 10
}

// SnapDuration parses raw seconds ("10", "10s") and returns it when allowed,
// otherwise def.
func SnapDuration(raw string, allowed []int, def int) int {
	raw = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(raw)), "s")
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	for _, a := range allowed {
		if a == n {
			return n
		}
	}
	return def
}

// NormalizeAspectRatio returns "w:h" with positive integers, or "" when the
// value is not a ratio.
func NormalizeAspectRatio(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return ""
	}
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return ""
	}
	a, errA := strconv.Atoi(strings.TrimSpace(parts[0]))
	b, errB := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errA != nil || errB != nil || a <= 0 || b <= 0 {
		return ""
	}
	return fmt.Sprintf("%d:%d", a, b)
}
