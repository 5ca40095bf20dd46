package ingest

import (
	"context"
	"time"

	"github.com/c3toronto/groups-sync/app/groups"
	"github.com/c3toronto/groups-sync/app/planningcenter"
	"github.com/c3toronto/groups-sync/app/snapshot"
)

type FetcherInterface interface {
	CheckConnection(ctx context.Context) error
	FetchAllGroups(ctx context.Context) (*planningcenter.FetchResult, error)
}

var _ FetcherInterface = (*planningcenter.Client)(nil)

type SnapshotStoreInterface interface {
	Write(groupList []groups.Group, source string) (*snapshot.Snapshot, error)
	WriteRaw(result *planningcenter.FetchResult) error
	Exists() bool
	Path() string
}

var _ SnapshotStoreInterface = (*snapshot.Store)(nil)

// Trigger identifies which entry point started a run.
type Trigger string

const (
	TriggerWebhook   Trigger = "webhook"
	TriggerManual    Trigger = "manual"
	TriggerBootstrap Trigger = "bootstrap"
)

// State of the coordinator, readable for health/stats reporting. The
// coordinator always returns to Idle after a run; Succeeded and Failed
// are observable only through the last-outcome accessors.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// Stats summarizes a published group list, mirroring what the trigger
// endpoints report back to callers.
type Stats struct {
	OpenGroups      int                           `json:"openGroups"`
	GroupTypes      map[groups.GroupType]int      `json:"groupTypes"`
	CampusLocations map[groups.CampusLocation]int `json:"campusLocations"`
}

// Result is the conclusion of one ingestion run. Shared is set when the
// run's result was delivered to more than one concurrent trigger.
type Result struct {
	RunID           string        `json:"runId"`
	Trigger         Trigger       `json:"trigger"`
	RawGroups       int           `json:"rawGroups"`
	PublicGroups    int           `json:"publicGroups"`
	ExcludedGroups  int           `json:"excludedGroups"`
	FailedRecords   int           `json:"failedRecords"`
	Pages           int           `json:"pages"`
	Duration        time.Duration `json:"-"`
	SnapshotPath    string        `json:"snapshotPath"`
	LastUpdated     time.Time     `json:"lastUpdated"`
	Stats           Stats         `json:"stats"`
	SkippedExisting bool          `json:"skippedExisting,omitempty"`
	Shared          bool          `json:"shared,omitempty"`
}

func buildStats(groupList []groups.Group) Stats {
	stats := Stats{
		GroupTypes:      make(map[groups.GroupType]int),
		CampusLocations: make(map[groups.CampusLocation]int),
	}
	for _, g := range groupList {
		if g.IsOpen {
			stats.OpenGroups++
		}
		stats.GroupTypes[g.GroupType]++
		stats.CampusLocations[g.CampusLocation]++
	}
	return stats
}
