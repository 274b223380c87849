package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/forgeworks/issuepilot/internal/types"
)

// indexFile is a denormalized summary of the queue kept alongside the
// records for cheap consumption by the presentation layer.
const indexFile = "index.json"

type indexDoc struct {
	Triaged      []triageIndexEntry  `json:"triaged"`
	AutoFixQueue []autoFixIndexEntry `json:"auto_fix_queue"`
	LastUpdated  string              `json:"last_updated"`
}

type triageIndexEntry struct {
	IssueNumber int                  `json:"issue_number"`
	Repo        string               `json:"repo"`
	Category    types.TriageCategory `json:"category"`
	Priority    types.Priority       `json:"priority"`
	TriagedAt   string               `json:"triaged_at"`
}

type autoFixIndexEntry struct {
	IssueNumber int                 `json:"issue_number"`
	Repo        string              `json:"repo"`
	Status      types.AutoFixStatus `json:"status"`
	SpecID      string              `json:"spec_id,omitempty"`
	PRNumber    *int                `json:"pr_number,omitempty"`
	UpdatedAt   string              `json:"updated_at"`
}

// updateIndex rebuilds index.json from the current records. Best effort:
// the index is derived data, and a failure here must never fail the
// upsert that triggered it.
func (s *Store) updateIndex() {
	doc := indexDoc{
		Triaged:      []triageIndexEntry{},
		AutoFixQueue: []autoFixIndexEntry{},
		LastUpdated:  types.Timestamp(time.Now()),
	}

	if triaged, err := s.ListTriage(); err == nil {
		for _, r := range triaged {
			doc.Triaged = append(doc.Triaged, triageIndexEntry{
				IssueNumber: r.IssueNumber,
				Repo:        r.Repo,
				Category:    r.Category,
				Priority:    r.Priority,
				TriagedAt:   r.TriagedAt,
			})
		}
	}
	if states, err := s.ListAutoFix(); err == nil {
		for _, st := range states {
			doc.AutoFixQueue = append(doc.AutoFixQueue, autoFixIndexEntry{
				IssueNumber: st.IssueNumber,
				Repo:        st.Repo,
				Status:      st.Status,
				SpecID:      st.SpecID,
				PRNumber:    st.PRNumber,
				UpdatedAt:   st.UpdatedAt,
			})
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return
	}
	path := filepath.Join(s.Dir(), indexFile)
	tmp := path + ".tmp"
	if os.WriteFile(tmp, data, 0644) == nil {
		_ = os.Rename(tmp, path)
	}
}
