// Package sources fetches knowledge items from external content
// providers. A source turns a remote feed into models.Knowledge values;
// enrichment and persistence happen downstream.
package sources

import (
	"context"

	"github.com/quantmind/quantmind/pkg/models"
)

// Source fetches knowledge items from a remote provider.
type Source interface {
	// Fetch retrieves items using the source's configured query.
	Fetch(ctx context.Context) ([]models.Knowledge, error)

	Name() string
}
