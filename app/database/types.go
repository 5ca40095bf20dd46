package database

import (
	"time"
)

// Run statuses recorded for each coordinator execution
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// Run is one ingestion run's bookkeeping row.
type Run struct {
	ID            string
	TriggerSource string
	Status        string
	RawGroups     int
	PublicGroups  int
	SkippedGroups int
	Pages         int
	Error         string
	StartedAt     time.Time
	FinishedAt    *time.Time
}
