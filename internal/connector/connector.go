package connector

import (
	"context"

	"jobradar-engine/internal/domain"
)

// Connector turns one external job board into a uniform stream of
// normalized listings. Each variant owns its own pagination, request
// shaping, and failure fallback; the pipeline only ever sees this
// interface, dispatched by the source-type tag from config.
type Connector interface {
	// Name is the display name from config ("NHS Jobs").
	Name() string
	// Type is the source-type tag ("nhs", "dwp", "indeed").
	Type() string
	// Fetch runs one keyword search. maxPages = 0 means keep paging until
	// the source reports no more results. On error the returned slice
	// still holds everything collected before the failure, so a partial
	// run is never thrown away.
	Fetch(ctx context.Context, keyword string, maxPages int) ([]domain.Listing, error)
}
