package ingest

import (
	"context"
	"errors"

	"github.com/c3toronto/groups-sync/app/planningcenter"
	"github.com/c3toronto/groups-sync/app/snapshot"
)

// Error categories surfaced to trigger endpoints and run bookkeeping.
const (
	CategoryUpstream    = "upstream"
	CategoryTransport   = "transport"
	CategoryPersistence = "persistence"
	CategoryCanceled    = "canceled"
	CategoryInternal    = "internal"
)

// Categorize maps a run failure to a coarse category for reporting.
func Categorize(err error) string {
	var upstreamErr *planningcenter.UpstreamError
	if errors.As(err, &upstreamErr) {
		return CategoryUpstream
	}

	var transportErr *planningcenter.TransportError
	if errors.As(err, &transportErr) {
		return CategoryTransport
	}

	var persistenceErr *snapshot.PersistenceError
	if errors.As(err, &persistenceErr) {
		return CategoryPersistence
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CategoryCanceled
	}

	return CategoryInternal
}
