package snapshot

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/c3toronto/groups-sync/app/groups"
	"github.com/c3toronto/groups-sync/app/planningcenter"
)

// Store writes and reads the published snapshot and the unpublished raw
// dump. Writes go to a temp file in the destination directory and are
// published with an atomic rename, so a concurrent reader never observes
// a half-written document.
type Store struct {
	publicDir string
	dataDir   string

	// Injected for tests, defaults to the real clock
	now func() time.Time
}

func NewStore(publicDir, dataDir string) *Store {
	return &Store{
		publicDir: publicDir,
		dataDir:   dataDir,
		now:       time.Now,
	}
}

// Path is the published snapshot location.
func (s *Store) Path() string {
	return filepath.Join(s.publicDir, FileName)
}

// Exists reports whether a published snapshot is already present.
func (s *Store) Exists() bool {
	info, err := os.Stat(s.Path())
	return err == nil && !info.IsDir()
}

// Write builds a fresh snapshot around the group list and publishes it.
func (s *Store) Write(groupList []groups.Group, source string) (*Snapshot, error) {
	if groupList == nil {
		groupList = []groups.Group{}
	}

	snap := &Snapshot{
		Metadata: Metadata{
			LastUpdated: s.now().UTC(),
			TotalGroups: len(groupList),
			Version:     Version,
			Source:      source,
		},
		Groups: groupList,
	}

	if err := s.writeJSON(s.publicDir, FileName, snap); err != nil {
		return nil, err
	}

	slog.Info("Snapshot published", "path", s.Path(), "groups", len(groupList))
	return snap, nil
}

// WriteRaw stores the unprocessed fetch result in the data dir.
func (s *Store) WriteRaw(result *planningcenter.FetchResult) error {
	dump := &RawDump{
		Metadata: RawMetadata{
			LastUpdated:            s.now().UTC(),
			TotalRawGroups:         len(result.Groups),
			TotalIncludedResources: len(result.Included),
			Version:                Version,
			Source:                 SourceRaw,
			Note:                   rawDumpNote,
		},
		Groups:   result.Groups,
		Included: result.Included,
	}

	if err := s.writeJSON(s.dataDir, RawFileName, dump); err != nil {
		return err
	}

	slog.Info("Raw dump written", "path", filepath.Join(s.dataDir, RawFileName),
		"groups", len(result.Groups), "included", len(result.Included))
	return nil
}

// Load reads the published snapshot back.
func (s *Store) Load() (*Snapshot, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		return nil, &PersistenceError{Path: s.Path(), Err: err}
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, &PersistenceError{Path: s.Path(), Err: fmt.Errorf("corrupt snapshot: %w", err)}
	}

	return &snap, nil
}

func (s *Store) writeJSON(dir, name string, doc interface{}) error {
	target := filepath.Join(dir, name)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return &PersistenceError{Path: target, Err: err}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return &PersistenceError{Path: target, Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return &PersistenceError{Path: target, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &PersistenceError{Path: target, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &PersistenceError{Path: target, Err: err}
	}

	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return &PersistenceError{Path: target, Err: err}
	}

	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return &PersistenceError{Path: target, Err: err}
	}

	return nil
}
