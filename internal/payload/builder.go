package payload

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"episode-studio/internal/clip"
	"episode-studio/internal/models"
	"episode-studio/internal/prompt"
	"episode-studio/internal/selector"
)

// Request is one clip with its resolved assets and candidate images.
type Request struct {
	Clip          clip.Descriptor
	Assets        clip.Assets
	Pools         clip.Pools
	StyleStrength int
	Seed          *int64
	// AspectRatio overrides Clip.AspectRatio when set.
	AspectRatio string
}

// Builder turns a request into the payload for one model family. The error
// is non-nil only for malformed input; every other failure produces a
// text-only payload with a warning.
type Builder interface {
	Family() models.Family
	Build(req Request) (Payload, error)
}

type Options struct {
	Catalog     models.Catalog
	Constructor *prompt.Constructor
	Logger      *slog.Logger
	NewID       func() string
}

type Factory struct {
	catalog     models.Catalog
	constructor *prompt.Constructor
	logger      *slog.Logger
	newID       func() string
}

func NewFactory(opts Options) *Factory {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	cons := opts.Constructor
	if cons == nil {
		cons = prompt.New(prompt.Options{Catalog: opts.Catalog, Logger: logger})
	}

	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	return &Factory{
		catalog:     cons.Catalog(),
		constructor: cons,
		logger:      logger,
		newID:       newID,
	}
}

func (f *Factory) Catalog() models.Catalog {
	return f.catalog
}

// For returns the builder for a family.
func (f *Factory) For(family models.Family) (Builder, error) {
	switch family {
	case models.StandardVideo:
		return standardVideo{f: f}, nil
	case models.TransitionVideo:
		return transitionVideo{f: f}, nil
	case models.FlatImage:
		return flatImage{f: f}, nil
	case models.DenseImage:
		return denseImage{f: f}, nil
	default:
		return nil, fmt.Errorf("%w: %d", models.ErrUnknownFamily, int(family))
	}
}

// Build resolves the family from the clip's model once and dispatches.
func (f *Factory) Build(req Request) (Payload, error) {
	b, err := f.For(f.catalog.Family(req.Clip.Model))
	if err != nil {
		return Payload{}, err
	}
	return b.Build(req)
}

type standardVideo struct{ f *Factory }

func (standardVideo) Family() models.Family { return models.StandardVideo }

func (b standardVideo) Build(req Request) (p Payload, err error) {
	defer b.f.guard(&p, &err, req, models.StandardVideo)
	model := modelOr(req.Clip.Model, b.f.catalog.DefaultModel(models.StandardVideo))
	return b.f.video(req, req.Pools, model, nil)
}

type transitionVideo struct{ f *Factory }

func (transitionVideo) Family() models.Family { return models.TransitionVideo }

// Build sends both frames when two are available. With fewer it degrades to
// the standard builder: reference mode with one frame, text mode with none.
func (b transitionVideo) Build(req Request) (p Payload, err error) {
	defer b.f.guard(&p, &err, req, models.TransitionVideo)
	f := b.f

	res, err := f.construct(req, models.TransitionVideo, req.Pools)
	if err != nil {
		return f.failed(req, models.TransitionVideo, err)
	}

	if len(res.ImageURLs) >= selector.TransitionImages {
		p = f.base(req, models.TransitionVideo)
		p.Model = modelOr(req.Clip.Model, f.catalog.Transition.ID)
		p.Prompt = res.Prompt
		p.ImageURLs = res.ImageURLs
		p.GenerationType = FramesToVideo
		p.Duration = f.duration(req)
		p.EnableFallback = f.catalog.Video.EnableFallback
		p.EnableTranslation = f.catalog.Video.EnableTranslation
		p.Warnings = res.Warnings
		return p, nil
	}

	mode := "text"
	if len(res.ImageURLs) > 0 {
		mode = "reference"
	}
	reason := fmt.Sprintf("transition needs %d frames, got %d: degraded to %s mode", selector.TransitionImages, len(res.ImageURLs), mode)
	f.logger.Warn("transition degraded",
		"clip", req.Clip.Title,
		"model", req.Clip.Model,
		"images", len(res.ImageURLs),
		"reason", reason,
	)

	pools := clip.Pools{Explicit: res.ImageURLs}
	return f.video(req, pools, f.catalog.Video.Fast, []string{reason})
}

type flatImage struct{ f *Factory }

func (flatImage) Family() models.Family { return models.FlatImage }

func (b flatImage) Build(req Request) (p Payload, err error) {
	defer b.f.guard(&p, &err, req, models.FlatImage)
	f := b.f

	res, err := f.construct(req, models.FlatImage, req.Pools)
	if err != nil {
		return f.failed(req, models.FlatImage, err)
	}

	p = f.flatBase(req)
	p.Prompt = res.Prompt
	if len(res.ImageURLs) > 0 {
		p.ImageURLs = res.ImageURLs
	}
	p.Warnings = res.Warnings
	return p, nil
}

type denseImage struct{ f *Factory }

func (denseImage) Family() models.Family { return models.DenseImage }

func (b denseImage) Build(req Request) (p Payload, err error) {
	defer b.f.guard(&p, &err, req, models.DenseImage)
	f := b.f

	res, err := f.construct(req, models.DenseImage, req.Pools)
	if err != nil {
		return f.failed(req, models.DenseImage, err)
	}

	p = f.denseBase(req)
	p.Prompt = res.Prompt
	p.ImageURLs = res.ImageURLs
	p.Warnings = res.Warnings
	return p, nil
}

// video builds a standard video payload from pools. The quality tier cannot
// take image references, so it is swapped for the fast tier when any image
// is selected.
func (f *Factory) video(req Request, pools clip.Pools, model string, warnings []string) (Payload, error) {
	res, err := f.construct(req, models.StandardVideo, pools)
	if err != nil {
		return f.failed(req, models.StandardVideo, err)
	}

	p := f.base(req, models.StandardVideo)
	p.Model = model
	p.Prompt = res.Prompt
	p.ImageURLs = res.ImageURLs
	p.Duration = f.duration(req)
	p.EnableFallback = f.catalog.Video.EnableFallback
	p.EnableTranslation = f.catalog.Video.EnableTranslation
	p.Warnings = append(append([]string(nil), warnings...), res.Warnings...)

	p.GenerationType = TextToVideo
	if p.HasImages() {
		p.GenerationType = ReferenceToVideo
	}

	if p.HasImages() && strings.EqualFold(p.Model, f.catalog.Video.Quality) {
		reason := fmt.Sprintf("%s does not accept reference images: using %s", p.Model, f.catalog.Video.Fast)
		f.logger.Warn("quality tier downgraded",
			"clip", req.Clip.Title,
			"model", p.Model,
			"images", len(p.ImageURLs),
			"reason", reason,
		)
		p.Model = f.catalog.Video.Fast
		p.Warnings = append(p.Warnings, reason)
	}
	return p, nil
}

func (f *Factory) construct(req Request, family models.Family, pools clip.Pools) (prompt.Result, error) {
	return f.constructor.Construct(prompt.Request{
		Clip:          req.Clip,
		Assets:        req.Assets,
		Pools:         pools,
		StyleStrength: req.StyleStrength,
		Family:        &family,
	})
}

// failed propagates contract violations and turns anything else into a safe
// payload.
func (f *Factory) failed(req Request, family models.Family, err error) (Payload, error) {
	if errors.Is(err, selector.ErrMalformedInput) {
		return Payload{}, err
	}
	f.logger.Error("payload build failed", "clip", req.Clip.Title, "model", req.Clip.Model, "err", err)
	return f.safe(req, family, err.Error()), nil
}

func (f *Factory) guard(p *Payload, err *error, req Request, family models.Family) {
	r := recover()
	if r == nil {
		return
	}
	f.logger.Error("payload build panicked", "clip", req.Clip.Title, "model", req.Clip.Model, "panic", r)
	*p = f.safe(req, family, fmt.Sprintf("payload build panicked: %v", r))
	*err = nil
}

// safe is a text-only payload built from whatever description the clip has.
func (f *Factory) safe(req Request, family models.Family, reason string) Payload {
	var p Payload
	switch family {
	case models.FlatImage:
		p = f.flatBase(req)
	case models.DenseImage:
		p = f.denseBase(req)
	default:
		p = f.base(req, models.StandardVideo)
		p.Model = f.catalog.Video.Fast
		if family == models.StandardVideo {
			p.Model = modelOr(req.Clip.Model, f.catalog.Video.Fast)
		}
		p.GenerationType = TextToVideo
		p.Duration = f.duration(req)
		p.EnableFallback = f.catalog.Video.EnableFallback
		p.EnableTranslation = f.catalog.Video.EnableTranslation
	}
	p.Prompt = prompt.Fallback(req.Clip)
	p.ImageURLs = nil
	p.Warnings = []string{"safe payload: " + reason}
	return p
}

func (f *Factory) base(req Request, family models.Family) Payload {
	return Payload{
		RequestID:   f.newID(),
		Family:      family,
		AspectRatio: aspectRatio(req),
		Seed:        req.Seed,
	}
}

func (f *Factory) flatBase(req Request) Payload {
	p := f.base(req, models.FlatImage)
	p.Model = modelOr(req.Clip.Model, f.catalog.Flat.DefaultModel)
	g := GuidanceScale(req.StyleStrength)
	p.GuidanceScale = &g
	return p
}

func (f *Factory) denseBase(req Request) Payload {
	p := f.base(req, models.DenseImage)
	p.Model = modelOr(req.Clip.Model, f.catalog.Dense.DefaultModel)
	p.Resolution = f.catalog.Dense.Resolution
	p.OutputFormat = f.catalog.Dense.OutputFormat
	return p
}

func (f *Factory) duration(req Request) int {
	return SnapDuration(req.Clip.Duration, f.catalog.Video.Durations, f.catalog.Video.DefaultDuration)
}

func aspectRatio(req Request) string {
	raw := req.AspectRatio
	if strings.TrimSpace(raw) == "" {
		raw = req.Clip.AspectRatio
	}
	if ar := NormalizeAspectRatio(raw); ar != "" {
		return ar
	}
	return strings.TrimSpace(raw)
}

func modelOr(model, def string) string {
	if m := strings.TrimSpace(model); m != "" {
		return m
	}
	return def
}
