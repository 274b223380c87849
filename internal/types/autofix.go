package types

import "fmt"

// AutoFixStatus is the phase of an auto-fix job. The set is closed:
// every transition must appear in the transition table below, and
// anything off the table is rejected rather than accepted silently.
type AutoFixStatus string

const (
	StatusPending      AutoFixStatus = "pending"
	StatusAnalyzing    AutoFixStatus = "analyzing"
	StatusCreatingSpec AutoFixStatus = "creating_spec"
	StatusBuilding     AutoFixStatus = "building"
	StatusQAReview     AutoFixStatus = "qa_review"
	StatusPRCreated    AutoFixStatus = "pr_created"
	StatusCompleted    AutoFixStatus = "completed"
	StatusFailed       AutoFixStatus = "failed"
)

// autoFixTransitions is the explicit transition table: each non-terminal
// status may advance one step forward or drop to failed.
var autoFixTransitions = map[AutoFixStatus][]AutoFixStatus{
	StatusPending:      {StatusAnalyzing, StatusFailed},
	StatusAnalyzing:    {StatusCreatingSpec, StatusFailed},
	StatusCreatingSpec: {StatusBuilding, StatusFailed},
	StatusBuilding:     {StatusQAReview, StatusFailed},
	StatusQAReview:     {StatusPRCreated, StatusFailed},
	StatusPRCreated:    {StatusCompleted, StatusFailed},
	StatusCompleted:    {},
	StatusFailed:       {},
}

// Terminal reports whether no further transitions are permitted.
func (s AutoFixStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is a member of the closed status set.
func (s AutoFixStatus) Valid() bool {
	_, ok := autoFixTransitions[s]
	return ok
}

// CanTransition reports whether from -> to appears in the transition table.
func CanTransition(from, to AutoFixStatus) bool {
	for _, next := range autoFixTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns a descriptive error for any from -> to pair
// that is not in the transition table.
func ValidateTransition(from, to AutoFixStatus) error {
	if !from.Valid() {
		return fmt.Errorf("unknown auto-fix status %q", from)
	}
	if !to.Valid() {
		return fmt.Errorf("unknown auto-fix status %q", to)
	}
	if from.Terminal() {
		return fmt.Errorf("status %q is terminal, cannot transition to %q", from, to)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid transition %s -> %s", from, to)
	}
	return nil
}

// AutoFixState is the persisted record for one auto-fix job. Created at
// enrollment with StatusPending and mutated in place on every phase
// transition; never deleted automatically.
type AutoFixState struct {
	IssueNumber int           `json:"issue_number"`
	IssueURL    string        `json:"issue_url"`
	Repo        string        `json:"repo"`
	Status      AutoFixStatus `json:"status"`
	SpecID      string        `json:"spec_id,omitempty"`
	SpecDir     string        `json:"spec_dir,omitempty"`
	PRNumber    *int          `json:"pr_number,omitempty"`
	PRURL       string        `json:"pr_url,omitempty"`
	BotComments []string      `json:"bot_comments"`
	Error       string        `json:"error,omitempty"`
	CreatedAt   string        `json:"created_at"`
	UpdatedAt   string        `json:"updated_at"`
}
