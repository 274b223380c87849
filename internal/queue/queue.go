// Package queue is the durable, file-backed record of automation jobs:
// one JSON record per issue per pipeline under <state>/issues/.
//
// The store performs no dedup; enrollment policy lives in the labels
// package. Enumeration tolerates partially-written or malformed records
// by skipping them, so a crash mid-write never hides the rest of the
// queue.
package queue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/forgeworks/issuepilot/internal/types"
)

const issuesDir = "issues"

// Store reads and writes queue records for one project.
type Store struct {
	dir string
}

// NewStore creates a queue store rooted at the project state directory.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the directory holding the per-issue records.
func (s *Store) Dir() string {
	return filepath.Join(s.dir, issuesDir)
}

func (s *Store) recordPath(kind types.PipelineKind, issueNumber int) string {
	return filepath.Join(s.Dir(), fmt.Sprintf("%s_%d.json", recordPrefix(kind), issueNumber))
}

// recordPrefix maps a pipeline kind to its on-disk filename prefix.
// The triage and auto-fix prefixes predate the PipelineKind names.
func recordPrefix(kind types.PipelineKind) string {
	if kind == types.PipelineTriage {
		return "triage"
	}
	return "autofix"
}

// UpsertTriage writes the triage record for an issue, creating or
// overwriting its backing file. TriagedAt is stamped if unset.
func (s *Store) UpsertTriage(r *types.TriageResult) error {
	if r.TriagedAt == "" {
		r.TriagedAt = types.Timestamp(time.Now())
	}
	if err := s.writeRecord(types.PipelineTriage, r.IssueNumber, r); err != nil {
		return err
	}
	s.updateIndex()
	return nil
}

// UpsertAutoFix writes the auto-fix record for an issue. UpdatedAt is
// always stamped to the current time; CreatedAt only if unset.
func (s *Store) UpsertAutoFix(st *types.AutoFixState) error {
	now := types.Timestamp(time.Now())
	if st.CreatedAt == "" {
		st.CreatedAt = now
	}
	st.UpdatedAt = now
	if err := s.writeRecord(types.PipelineAutoFix, st.IssueNumber, st); err != nil {
		return err
	}
	s.updateIndex()
	return nil
}

// GetTriage returns the triage record for an issue, or nil if no record
// exists or its file is unreadable.
func (s *Store) GetTriage(issueNumber int) *types.TriageResult {
	var r types.TriageResult
	if !s.readRecord(types.PipelineTriage, issueNumber, &r) {
		return nil
	}
	return &r
}

// GetAutoFix returns the auto-fix record for an issue, or nil.
func (s *Store) GetAutoFix(issueNumber int) *types.AutoFixState {
	var st types.AutoFixState
	if !s.readRecord(types.PipelineAutoFix, issueNumber, &st) {
		return nil
	}
	return &st
}

// ListTriage returns all triage records, most recent first.
func (s *Store) ListTriage() ([]*types.TriageResult, error) {
	var results []*types.TriageResult
	err := s.scan(types.PipelineTriage, func(data []byte) {
		var r types.TriageResult
		if json.Unmarshal(data, &r) == nil {
			results = append(results, &r)
		}
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].TriagedAt > results[j].TriagedAt
	})
	return results, nil
}

// ListAutoFix returns all auto-fix records, most recent first.
func (s *Store) ListAutoFix() ([]*types.AutoFixState, error) {
	var states []*types.AutoFixState
	err := s.scan(types.PipelineAutoFix, func(data []byte) {
		var st types.AutoFixState
		if json.Unmarshal(data, &st) == nil {
			states = append(states, &st)
		}
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(states, func(i, j int) bool {
		return states[i].CreatedAt > states[j].CreatedAt
	})
	return states, nil
}

// QueuedNumbers returns the set of issue numbers with a record for the
// given pipeline, in any status. Used by enrollment dedup.
func (s *Store) QueuedNumbers(kind types.PipelineKind) (map[int]bool, error) {
	queued := make(map[int]bool)
	var collect func(data []byte)
	if kind == types.PipelineTriage {
		collect = func(data []byte) {
			var r types.TriageResult
			if json.Unmarshal(data, &r) == nil {
				queued[r.IssueNumber] = true
			}
		}
	} else {
		collect = func(data []byte) {
			var st types.AutoFixState
			if json.Unmarshal(data, &st) == nil {
				queued[st.IssueNumber] = true
			}
		}
	}
	if err := s.scan(kind, collect); err != nil {
		return nil, err
	}
	return queued, nil
}

// scan reads every record file for a pipeline and hands its bytes to
// collect. Unreadable files are skipped; collect is expected to skip
// malformed payloads.
func (s *Store) scan(kind types.PipelineKind, collect func([]byte)) error {
	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read queue directory: %w", err)
	}

	prefix := recordPrefix(kind) + "_"
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		if len(name) <= len(prefix) || name[:len(prefix)] != prefix {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.Dir(), name))
		if err != nil {
			continue
		}
		collect(data)
	}
	return nil
}

func (s *Store) readRecord(kind types.PipelineKind, issueNumber int, out interface{}) bool {
	data, err := os.ReadFile(s.recordPath(kind, issueNumber))
	if err != nil {
		return false
	}
	return json.Unmarshal(data, out) == nil
}

// writeRecord persists a record via write-temp-then-rename so a crash
// mid-write leaves at worst a skippable partial file.
func (s *Store) writeRecord(kind types.PipelineKind, issueNumber int, record interface{}) error {
	if err := os.MkdirAll(s.Dir(), 0755); err != nil {
		return fmt.Errorf("failed to create queue directory: %w", err)
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal queue record: %w", err)
	}
	path := s.recordPath(kind, issueNumber)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write queue record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace queue record: %w", err)
	}
	return nil
}
