package notify

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

type CoalescerOptions struct {
	Debounce time.Duration
	Timeout  time.Duration
	Notifier Notifier
	Logger   *slog.Logger
}

// Coalescer groups results added under the same key and sends them as one
// summary once no result has arrived for the debounce period.
type Coalescer struct {
	mu       sync.Mutex
	debounce time.Duration
	timeout  time.Duration
	notifier Notifier
	logger   *slog.Logger
	pending  map[string]*pendingSummary
	wg       sync.WaitGroup
}

type pendingSummary struct {
	summary Summary
	timer   *time.Timer
}

func NewCoalescer(opts CoalescerOptions) *Coalescer {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 3 * time.Second
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	notifier := opts.Notifier
	if notifier == nil {
		notifier = Nop{}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Coalescer{
		debounce: debounce,
		timeout:  timeout,
		notifier: notifier,
		logger:   logger,
		pending:  make(map[string]*pendingSummary),
	}
}

func (c *Coalescer) Add(key string, r Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ps, ok := c.pending[key]
	if !ok {
		ps = &pendingSummary{summary: Summary{BatchID: key}}
		c.pending[key] = ps
	}
	ps.summary.Results = append(ps.summary.Results, r)

	if ps.timer != nil && ps.timer.Stop() {
		c.wg.Done()
	}
	c.wg.Add(1)
	ps.timer = time.AfterFunc(c.debounce, func() {
		defer c.wg.Done()
		c.flush(key)
	})
}

// Flush sends every pending summary now and waits for scheduled sends.
func (c *Coalescer) Flush() {
	c.mu.Lock()
	keys := make([]string, 0, len(c.pending))
	for key, ps := range c.pending {
		if ps.timer != nil && ps.timer.Stop() {
			c.wg.Done()
		}
		keys = append(keys, key)
	}
	c.mu.Unlock()

	for _, key := range keys {
		c.flush(key)
	}
	c.wg.Wait()
}

func (c *Coalescer) flush(key string) {
	c.mu.Lock()
	ps, ok := c.pending[key]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.pending, key)
	summary := ps.summary
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if err := c.notifier.Notify(ctx, summary); err != nil {
		c.logger.Warn("notify failed", "batch", key, "results", len(summary.Results), "err", err)
	}
}
