package prompt

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"episode-studio/internal/clip"
	"episode-studio/internal/models"
	"episode-studio/internal/schema"
	"episode-studio/internal/selector"
)

// FallbackPrompt is used when a render fails and the clip has no subject text.
const FallbackPrompt = "Error building prompt."

type Options struct {
	Catalog models.Catalog
	Linker  selector.Linker
	Logger  *slog.Logger

	// SchemaFor overrides schema dispatch. Nil means schema.For.
	SchemaFor func(models.Family) (schema.Schema, error)
}

type Request struct {
	Clip          clip.Descriptor
	Assets        clip.Assets
	Pools         clip.Pools
	StyleStrength int

	// Family forces a family instead of resolving it from Clip.Model.
	Family *models.Family
}

// Result is a constructed prompt. ImageURLs is always Manifest.SelectedURLs.
// Recovered is set when the schema failed and Prompt holds fallback text;
// Warnings then says what was recovered from.
type Result struct {
	Family    models.Family     `json:"family"`
	Schema    string            `json:"schema"`
	Prompt    string            `json:"prompt"`
	ImageURLs []string          `json:"image_urls"`
	Manifest  selector.Manifest `json:"manifest"`
	Warnings  []string          `json:"warnings,omitempty"`
	Recovered bool              `json:"recovered"`
}

type Constructor struct {
	catalog   models.Catalog
	selector  *selector.Selector
	schemaFor func(models.Family) (schema.Schema, error)
	logger    *slog.Logger
}

func New(opts Options) *Constructor {
	cat := opts.Catalog
	if cat.Transition.ID == "" && cat.Video.Fast == "" {
		cat = models.DefaultCatalog()
	}

	schemaFor := opts.SchemaFor
	if schemaFor == nil {
		schemaFor = schema.For
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Constructor{
		catalog:   cat,
		selector:  selector.New(selector.Options{Linker: opts.Linker}),
		schemaFor: schemaFor,
		logger:    logger,
	}
}

func (c *Constructor) Catalog() models.Catalog {
	return c.catalog
}

// Family resolves the family a request will be rendered with.
func (c *Constructor) Family(req Request) models.Family {
	if req.Family != nil {
		return *req.Family
	}
	return c.catalog.Family(req.Clip.Model)
}

// Construct selects images and renders the prompt for the request's family.
// Errors are contract violations only (malformed input or an unknown family);
// render failures are recovered into Result.
func (c *Constructor) Construct(req Request) (Result, error) {
	family := c.Family(req)

	mode := selector.ModeStandard
	if family == models.TransitionVideo {
		mode = selector.ModeTransition
	}

	manifest, err := c.selector.Select(mode, selector.Input{
		Names:  req.Clip.CharacterNames(),
		Assets: req.Assets,
		Pools:  req.Pools,
	})
	if err != nil {
		return Result{}, fmt.Errorf("select images: %w", err)
	}

	s, err := c.schemaFor(family)
	if err != nil {
		return Result{}, fmt.Errorf("pick schema: %w", err)
	}

	res := Result{
		Family:    family,
		Schema:    s.Name(),
		ImageURLs: append([]string(nil), manifest.SelectedURLs...),
		Manifest:  manifest,
	}

	text, err := render(s, schema.Input{
		Clip:          req.Clip,
		Assets:        req.Assets,
		Manifest:      manifest,
		StyleStrength: req.StyleStrength,
	})
	if err != nil {
		res.Prompt = Fallback(req.Clip)
		res.Recovered = true
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s schema failed, using fallback prompt: %v", s.Name(), err))
		c.logger.Warn("prompt render failed",
			"clip", clipLabel(req.Clip),
			"model", req.Clip.Model,
			"schema", s.Name(),
			"images", len(manifest.SelectedURLs),
			"err", err,
		)
		return res, nil
	}

	res.Prompt = text
	c.logger.Debug("prompt constructed",
		"clip", clipLabel(req.Clip),
		"family", family.String(),
		"schema", s.Name(),
		"images", len(manifest.SelectedURLs),
	)
	return res, nil
}

// Fallback is the bare subject text, never empty.
func Fallback(c clip.Descriptor) string {
	if s := c.Subject(); s != "" {
		return s
	}
	return FallbackPrompt
}

func render(s schema.Schema, in schema.Input) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = ""
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	out, err = s.Format(in)
	if err == nil && strings.TrimSpace(out) == "" {
		err = schema.ErrEmptyPrompt
	}
	return out, err
}

func clipLabel(c clip.Descriptor) string {
	if t := strings.TrimSpace(c.Title); t != "" {
		return t
	}
	s := []rune(c.Subject())
	if len(s) > 40 {
		s = s[:40]
	}
	return string(s)
}
