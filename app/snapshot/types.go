package snapshot

import (
	"fmt"
	"time"

	"github.com/c3toronto/groups-sync/app/groups"
	"github.com/c3toronto/groups-sync/app/planningcenter"
)

const (
	FileName    = "groups.json"
	RawFileName = "groups_raw.json"

	Version              = "1.0"
	SourcePlanningCenter = "planning-center"
	SourceRaw            = "planning-center-raw"

	rawDumpNote = "This file contains the raw Planning Center API data for inspection purposes only. Not published to web."
)

// Snapshot is the single persisted document the presentation layer
// consumes. Immutable once written; replaced whole on each successful run.
type Snapshot struct {
	Metadata Metadata       `json:"metadata"`
	Groups   []groups.Group `json:"groups"`
}

type Metadata struct {
	LastUpdated time.Time `json:"lastUpdated"`
	TotalGroups int       `json:"totalGroups"`
	Version     string    `json:"version"`
	Source      string    `json:"source"`
}

// RawDump is the unpublished webhook-triggered dump of the upstream data,
// written next to the database for inspection, never to the public dir.
type RawDump struct {
	Metadata RawMetadata               `json:"metadata"`
	Groups   []planningcenter.Resource `json:"groups"`
	Included []planningcenter.Resource `json:"included"`
}

type RawMetadata struct {
	LastUpdated            time.Time `json:"lastUpdated"`
	TotalRawGroups         int       `json:"totalRawGroups"`
	TotalIncludedResources int       `json:"totalIncludedResources"`
	Version                string    `json:"version"`
	Source                 string    `json:"source"`
	Note                   string    `json:"note"`
}

// PersistenceError is a snapshot or raw dump write failure.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
