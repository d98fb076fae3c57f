// Package feed loads option chain snapshots from external sources. The
// scanner only sees the ChainSource interface, so a broker API, a file
// drop or a test fixture all plug in the same way.
package feed

import (
	"context"

	"optionflow/internal/models"
)

// ChainSource supplies the latest chain snapshot for a symbol.
type ChainSource interface {
	// Load returns the current snapshot. A snapshot with no strikes is an
	// error, never a silent empty result.
	Load(ctx context.Context, symbol string) (*models.ChainSnapshot, error)
}
