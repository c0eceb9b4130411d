// Package source provides the fetch boundary: one interface over the remote
// telemetry API and local archive files, both yielding raw JSON lines for a
// machine and time window.
package source

import (
	"context"
	"fmt"

	"github.com/ftahirops/xrewind/model"
)

// Source yields the raw telemetry lines for a machine within a time window.
// Implementations may block; callers run Fetch off the interactive loop.
type Source interface {
	// Fetch returns the raw JSON lines for the window. An error covers the
	// whole window; partial results are never returned alongside one.
	Fetch(ctx context.Context, machineID string, span model.Span) ([][]byte, error)
	// Name identifies the source for display and logs.
	Name() string
}

// FetchError is a failure at the fetch boundary. Reason is user-facing;
// the wrapped error carries the transport detail for logs.
type FetchError struct {
	Reason string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *FetchError) Unwrap() error { return e.Err }
