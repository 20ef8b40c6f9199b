// Package gather fills the bar store from external sources.
package gather

import (
	"context"
)

// Gatherer is the interface for all data gathering processes.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run gathers once and returns when done or when ctx is cancelled.
	Run(ctx context.Context) error
}
