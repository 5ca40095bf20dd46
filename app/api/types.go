package api

import (
	"context"

	"github.com/c3toronto/groups-sync/app/database"
	"github.com/c3toronto/groups-sync/app/ingest"
	"github.com/c3toronto/groups-sync/app/snapshot"
)

type CoordinatorInterface interface {
	Run(ctx context.Context, trigger ingest.Trigger) (*ingest.Result, error)
	Bootstrap(ctx context.Context) (*ingest.Result, error)
	State() ingest.State
	LastOutcome() (*ingest.Result, error)
}

var _ CoordinatorInterface = (*ingest.Coordinator)(nil)

type SnapshotReaderInterface interface {
	Path() string
	Exists() bool
	Load() (*snapshot.Snapshot, error)
}

var _ SnapshotReaderInterface = (*snapshot.Store)(nil)

type Handler struct {
	coordinator CoordinatorInterface
	store       SnapshotReaderInterface
	runRepo     database.RunRepository
}
