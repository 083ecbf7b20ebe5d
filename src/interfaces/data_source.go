package interfaces

import (
	"context"

	"candle-aggregator/src/models"
)

// -----------------------------------------------------------------------------
// ITickSource produces canonical ticks from an upstream provider.
// -----------------------------------------------------------------------------

type ITickSource interface {

	// Name returns the provider identifier
	Name() string

	// -----------------------------------------------------------------------------

	// Run streams ticks into out until ctx is cancelled. It owns reconnects
	// and closes out before returning.
	Run(ctx context.Context, out chan<- models.MTick) error
}
