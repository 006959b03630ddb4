package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"episode-studio/internal/assets"
	"episode-studio/internal/clip"
	"episode-studio/internal/notify"
	"episode-studio/internal/payload"
	"episode-studio/internal/provider"
)

// Item is one clip of a batch. Images are the user attached references.
type Item struct {
	Clip          clip.Descriptor `json:"clip" yaml:"clip"`
	Images        []string        `json:"images,omitempty" yaml:"images,omitempty"`
	StyleStrength int             `json:"style_strength,omitempty" yaml:"style_strength,omitempty"`
	Seed          *int64          `json:"seed,omitempty" yaml:"seed,omitempty"`
	AspectRatio   string          `json:"aspect_ratio,omitempty" yaml:"aspect_ratio,omitempty"`
}

// Submitter sends a payload to the provider.
type Submitter interface {
	Submit(ctx context.Context, p payload.Payload) (provider.Task, error)
}

type Outcome struct {
	Index   int             `json:"index"`
	Clip    string          `json:"clip"`
	Payload payload.Payload `json:"payload"`
	Task    *provider.Task  `json:"task,omitempty"`
	Error   string          `json:"error,omitempty"`
	Err     error           `json:"-"`
}

type Report struct {
	BatchID  string    `json:"batch_id"`
	Outcomes []Outcome `json:"outcomes"`
}

// Failed counts outcomes with an error.
func (r Report) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

type Options struct {
	Library       assets.Library
	Factory       *payload.Factory
	Submitter     Submitter
	Notifier      notify.Notifier
	MaxConcurrent int
	ItemTimeout   time.Duration
	Logger        *slog.Logger
}

type Runner struct {
	library       assets.Library
	factory       *payload.Factory
	submitter     Submitter
	notifier      notify.Notifier
	maxConcurrent int
	itemTimeout   time.Duration
	logger        *slog.Logger
}

func New(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	factory := opts.Factory
	if factory == nil {
		factory = payload.NewFactory(payload.Options{Logger: logger})
	}

	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}

	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 4
	}

	return &Runner{
		library:       opts.Library,
		factory:       factory,
		submitter:     opts.Submitter,
		notifier:      notifier,
		maxConcurrent: maxConcurrent,
		itemTimeout:   opts.ItemTimeout,
		logger:        logger,
	}
}

// Run builds, and submits when a Submitter is configured, every item with
// bounded parallelism. A failing item never stops the others. Outcomes keep
// the order of items.
func (r *Runner) Run(ctx context.Context, items []Item) Report {
	report := Report{
		BatchID:  uuid.NewString(),
		Outcomes: make([]Outcome, len(items)),
	}

	var eg errgroup.Group
	eg.SetLimit(r.maxConcurrent)
	for i, item := range items {
		i := i
		item := item
		eg.Go(func() error {
			report.Outcomes[i] = r.runItem(ctx, i, item)
			return nil
		})
	}
	_ = eg.Wait()

	r.logger.Info("batch finished",
		"batch", report.BatchID,
		"items", len(items),
		"failed", report.Failed(),
	)

	if err := r.notifier.Notify(ctx, summarize(report)); err != nil {
		r.logger.Warn("batch notify failed", "batch", report.BatchID, "err", err)
	}
	return report
}

func (r *Runner) runItem(ctx context.Context, i int, item Item) (out Outcome) {
	out = Outcome{Index: i, Clip: item.Clip.Title}
	defer func() {
		if out.Err != nil {
			out.Error = out.Err.Error()
			r.logger.Warn("batch item failed", "index", i, "clip", item.Clip.Title, "err", out.Err)
		}
	}()

	if r.itemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.itemTimeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		out.Err = err
		return out
	}

	p, err := Build(ctx, r.library, r.factory, item)
	if err != nil {
		out.Err = err
		return out
	}
	out.Payload = p

	if r.submitter == nil {
		return out
	}
	task, err := r.submitter.Submit(ctx, p)
	if err != nil {
		out.Err = fmt.Errorf("submit: %w", err)
		return out
	}
	out.Task = &task
	return out
}

// Build resolves the item's assets and builds its payload.
func Build(ctx context.Context, lib assets.Library, factory *payload.Factory, item Item) (payload.Payload, error) {
	if factory == nil {
		return payload.Payload{}, errors.New("payload factory is nil")
	}
	resolved, err := assets.Resolve(ctx, lib, item.Clip)
	if err != nil {
		return payload.Payload{}, err
	}
	p, err := factory.Build(payload.Request{
		Clip:          item.Clip,
		Assets:        resolved,
		Pools:         assets.BuildPools(resolved, item.Images),
		StyleStrength: item.StyleStrength,
		Seed:          item.Seed,
		AspectRatio:   item.AspectRatio,
	})
	if err != nil {
		return payload.Payload{}, fmt.Errorf("build payload: %w", err)
	}
	return p, nil
}

func summarize(report Report) notify.Summary {
	s := notify.Summary{BatchID: report.BatchID}
	for _, o := range report.Outcomes {
		res := notify.Result{
			Clip:     o.Clip,
			Model:    o.Payload.Model,
			Warnings: o.Payload.Warnings,
		}
		if o.Task != nil {
			res.TaskID = o.Task.ID
		}
		if o.Err != nil {
			res.Err = o.Err.Error()
		}
		s.Results = append(s.Results, res)
	}
	return s
}

// WithOverrides returns a copy of the item with o applied.
func (it Item) WithOverrides(o payload.Overrides) Item {
	req := o.Apply(payload.Request{
		Clip:          it.Clip,
		StyleStrength: it.StyleStrength,
		Seed:          it.Seed,
		AspectRatio:   it.AspectRatio,
	})
	it.Clip = req.Clip
	it.StyleStrength = req.StyleStrength
	it.Seed = req.Seed
	it.AspectRatio = req.AspectRatio
	return it
}
