// Package resultstore persists recently delivered analysis results as an
// append-only, size-capped log per modality. The orchestrator writes to it
// after each dispatch; consumers read it to rebuild dashboards after a
// client reload.
package resultstore

import (
	"context"
	"errors"

	"github.com/theralink/sessionkit/types"
)

// DefaultCapacity is the number of results retained per modality.
const DefaultCapacity = 100

// ErrInvalidModality is returned when the modality name is empty.
var ErrInvalidModality = errors.New("invalid modality")

// Store is an append-only capped log of delivered results keyed by modality.
// Appending beyond capacity evicts the oldest entries.
type Store interface {
	// Append adds one result to the modality's log, evicting the oldest
	// entry when the log is at capacity.
	Append(ctx context.Context, modality types.Modality, result *types.AnalysisResult) error

	// Recent returns up to n results for the modality, newest first.
	// A missing modality yields an empty slice, not an error.
	Recent(ctx context.Context, modality types.Modality, n int) ([]*types.AnalysisResult, error)

	// Count returns the number of retained results for the modality.
	Count(ctx context.Context, modality types.Modality) (int, error)

	// Close releases any resources held by the store.
	Close() error
}
