package notify

import (
	"context"
	"fmt"
	"strings"
)

// Result is the outcome of one clip in a dispatch.
type Result struct {
	Clip     string
	Model    string
	TaskID   string
	Warnings []string
	Err      string
}

func (r Result) Failed() bool {
	return r.Err != ""
}

type Summary struct {
	BatchID string
	Results []Result
}

func (s Summary) Counts() (ok, failed int) {
	for _, r := range s.Results {
		if r.Failed() {
			failed++
		} else {
			ok++
		}
	}
	return ok, failed
}

type Notifier interface {
	Notify(ctx context.Context, s Summary) error
}

// Nop drops every summary.
type Nop struct{}

func (Nop) Notify(context.Context, Summary) error { return nil }

const maxListed = 20

// FormatSummary renders a plain text message. At most 20 clips are listed.
func FormatSummary(s Summary) string {
	ok, failed := s.Counts()

	var b strings.Builder
	if s.BatchID != "" {
		fmt.Fprintf(&b, "Batch %s: ", s.BatchID)
	}
	fmt.Fprintf(&b, "%d dispatched, %d failed\n", ok, failed)

	for i, r := range s.Results {
		if i == maxListed {
			fmt.Fprintf(&b, "... and %d more\n", len(s.Results)-maxListed)
			break
		}

		name := strings.TrimSpace(r.Clip)
		if name == "" {
			name = fmt.Sprintf("clip %d", i+1)
		}

		switch {
		case r.Failed():
			fmt.Fprintf(&b, "FAIL %s: %s\n", name, r.Err)
		case len(r.Warnings) > 0:
			fmt.Fprintf(&b, "WARN %s [%s] %s: %s\n", name, r.Model, r.TaskID, strings.Join(r.Warnings, "; "))
		default:
			fmt.Fprintf(&b, "OK   %s [%s] %s\n", name, r.Model, r.TaskID)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
