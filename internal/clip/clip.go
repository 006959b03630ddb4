package clip

import (
	"strings"
)

// Descriptor is the clip being generated. Callers own it; the pipeline never mutates it.
type Descriptor struct {
	Title          string `json:"title,omitempty" yaml:"title,omitempty"`
	Action         string `json:"action,omitempty" yaml:"action,omitempty"`
	Dialog         string `json:"dialog,omitempty" yaml:"dialog,omitempty"`
	Character      string `json:"character,omitempty" yaml:"character,omitempty"` // comma separated names
	Location       string `json:"location,omitempty" yaml:"location,omitempty"`
	Camera         string `json:"camera,omitempty" yaml:"camera,omitempty"`
	Style          string `json:"style,omitempty" yaml:"style,omitempty"`
	NegativePrompt string `json:"negative_prompt,omitempty" yaml:"negative_prompt,omitempty"`
	Duration       string `json:"duration,omitempty" yaml:"duration,omitempty"`
	AspectRatio    string `json:"aspect_ratio,omitempty" yaml:"aspect_ratio,omitempty"`
	Model          string `json:"model,omitempty" yaml:"model,omitempty"`
}

// CharacterNames splits the character list, preserving order and dropping blanks.
func (d Descriptor) CharacterNames() []string {
	return SplitNames(d.Character)
}

// Subject is the bare description used when nothing better is available.
func (d Descriptor) Subject() string {
	for _, v := range []string{d.Action, d.Title, d.Dialog} {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func SplitNames(raw string) []string {
	var out []string
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		out = append(out, name)
	}
	return out
}

type Kind string

const (
	KindCharacter Kind = "character"
	KindLocation  Kind = "location"
	KindStyle     Kind = "style"
	KindCamera    Kind = "camera"
)

func (k Kind) Valid() bool {
	switch k {
	case KindCharacter, KindLocation, KindStyle, KindCamera:
		return true
	default:
		return false
	}
}

// AssetRecord is a studio library entry. ReferenceURL is only meaningful for
// characters: it is matched against user attached images.
type AssetRecord struct {
	Kind         Kind   `json:"kind" yaml:"kind"`
	Name         string `json:"name" yaml:"name"`
	Description  string `json:"description,omitempty" yaml:"description,omitempty"`
	Negatives    string `json:"negatives,omitempty" yaml:"negatives,omitempty"`
	ImageURL     string `json:"image_url,omitempty" yaml:"image_url,omitempty"`
	ReferenceURL string `json:"reference_url,omitempty" yaml:"reference_url,omitempty"`
}

// Assets are the records resolved for one clip. Characters is parallel to
// Descriptor.CharacterNames(); a nil entry means no record matched.
type Assets struct {
	Characters []*AssetRecord `json:"characters,omitempty"`
	Location   *AssetRecord   `json:"location,omitempty"`
	Style      *AssetRecord   `json:"style,omitempty"`
	Camera     *AssetRecord   `json:"camera,omitempty"`
}

// Character returns the record for the i-th name, or nil.
func (a Assets) Character(i int) *AssetRecord {
	if i < 0 || i >= len(a.Characters) {
		return nil
	}
	return a.Characters[i]
}

// Pools are the candidate image URLs handed to the selector.
type Pools struct {
	Location   []string `json:"location,omitempty" yaml:"location,omitempty"`
	Characters []string `json:"characters,omitempty" yaml:"characters,omitempty"`
	Explicit   []string `json:"explicit,omitempty" yaml:"explicit,omitempty"`
	Style      string   `json:"style,omitempty" yaml:"style,omitempty"`
}

// ValidURL rejects the junk values upstream collaborators occasionally leak.
func ValidURL(u string) bool {
	u = strings.TrimSpace(u)
	if u == "" || u == "undefined" || u == "null" {
		return false
	}
	return len(u) > 5
}
