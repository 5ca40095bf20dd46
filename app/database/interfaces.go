package database

type RunRepository interface {
	InsertRun(run Run) error
	FinishRun(run Run) error

	GetRecentRuns(limit int) ([]Run, error)
	GetRunCounts() (succeeded int, failed int, err error)
	GetLastSuccessfulRun() (*Run, error)
}
