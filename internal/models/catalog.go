package models

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Family is the closed set of downstream model families.
type Family int

const (
	StandardVideo Family = iota
	TransitionVideo
	FlatImage
	DenseImage
)

var ErrUnknownFamily = errors.New("unknown model family")

func (f Family) String() string {
	switch f {
	case StandardVideo:
		return "standard_video"
	case TransitionVideo:
		return "transition_video"
	case FlatImage:
		return "flat_image"
	case DenseImage:
		return "dense_image"
	default:
		return fmt.Sprintf("family(%d)", int(f))
	}
}

func (f Family) IsVideo() bool {
	return f == StandardVideo || f == TransitionVideo
}

func (f Family) MarshalText() ([]byte, error) {
	if f < StandardVideo || f > DenseImage {
		return nil, ErrUnknownFamily
	}
	return []byte(f.String()), nil
}

func (f *Family) UnmarshalText(b []byte) error {
	parsed, err := ParseFamily(string(b))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

func ParseFamily(s string) (Family, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "standard_video", "standard", "video":
		return StandardVideo, nil
	case "transition_video", "transition", "s2e":
		return TransitionVideo, nil
	case "flat_image", "flat", "legacy":
		return FlatImage, nil
	case "dense_image", "dense", "nano":
		return DenseImage, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFamily, s)
	}
}

type VideoModels struct {
	Quality           string `yaml:"quality"`
	Fast              string `yaml:"fast"`
	Durations         []int  `yaml:"durations"`
	DefaultDuration   int    `yaml:"default_duration"`
	EnableFallback    bool   `yaml:"enable_fallback"`
	EnableTranslation bool   `yaml:"enable_translation"`
}

type TransitionModels struct {
	ID string `yaml:"id"`
}

type FlatModels struct {
	Marker       string `yaml:"marker"`
	DefaultModel string `yaml:"default_model"`
}

type DenseModels struct {
	Marker       string `yaml:"marker"`
	DefaultModel string `yaml:"default_model"`
	Resolution   string `yaml:"resolution"`
	OutputFormat string `yaml:"output_format"`
}

// Catalog holds every model identifier the pipeline dispatches on.
type Catalog struct {
	Video      VideoModels      `yaml:"video"`
	Transition TransitionModels `yaml:"transition"`
	Flat       FlatModels       `yaml:"flat"`
	Dense      DenseModels      `yaml:"dense"`
}

func DefaultCatalog() Catalog {
	return Catalog{
		Video: VideoModels{
			Quality:           "veo3",
			Fast:              "veo3_fast",
			Durations:         []int{5, 10},
			DefaultDuration:   5,
			EnableFallback:    true,
			EnableTranslation: true,
		},
		Transition: TransitionModels{ID: "veo3_fast_s2e"},
		Flat: FlatModels{
			Marker:       "flux",
			DefaultModel: "flux-kontext-pro",
		},
		Dense: DenseModels{
			Marker:       "nano-banana",
			DefaultModel: "google/nano-banana-pro",
			Resolution:   "2K",
			OutputFormat: "png",
		},
	}
}

// Family resolves a model identifier. Unrecognized identifiers fall back to
// StandardVideo.
func (c Catalog) Family(modelID string) Family {
	id := strings.ToLower(strings.TrimSpace(modelID))
	switch {
	case id != "" && id == strings.ToLower(c.Transition.ID):
		return TransitionVideo
	case c.Flat.Marker != "" && strings.Contains(id, strings.ToLower(c.Flat.Marker)):
		return FlatImage
	case c.Dense.Marker != "" && strings.Contains(id, strings.ToLower(c.Dense.Marker)):
		return DenseImage
	default:
		return StandardVideo
	}
}

// DefaultModel is the identifier used when a request names a family but no model.
func (c Catalog) DefaultModel(f Family) string {
	switch f {
	case TransitionVideo:
		return c.Transition.ID
	case FlatImage:
		return c.Flat.DefaultModel
	case DenseImage:
		return c.Dense.DefaultModel
	default:
		return c.Video.Fast
	}
}

func (c Catalog) Validate() error {
	switch {
	case strings.TrimSpace(c.Video.Quality) == "":
		return errors.New("video.quality is required")
	case strings.TrimSpace(c.Video.Fast) == "":
		return errors.New("video.fast is required")
	case len(c.Video.Durations) == 0:
		return errors.New("video.durations is required")
	case strings.TrimSpace(c.Transition.ID) == "":
		return errors.New("transition.id is required")
	case strings.TrimSpace(c.Flat.Marker) == "":
		return errors.New("flat.marker is required")
	case strings.TrimSpace(c.Dense.Marker) == "":
		return errors.New("dense.marker is required")
	}

	found := false
	for _, d := range c.Video.Durations {
		if d <= 0 {
			return fmt.Errorf("video.durations has non-positive value %d", d)
		}
		if d == c.Video.DefaultDuration {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("video.default_duration %d is not one of %v", c.Video.DefaultDuration, c.Video.Durations)
	}
	return nil
}

// LoadCatalog overlays a YAML file on DefaultCatalog. An empty path returns the defaults.
func LoadCatalog(path string) (Catalog, error) {
	cat := DefaultCatalog()
	path = strings.TrimSpace(path)
	if path == "" {
		return cat, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if err := cat.Validate(); err != nil {
		return Catalog{}, fmt.Errorf("invalid catalog %s: %w", path, err)
	}
	return cat, nil
}
