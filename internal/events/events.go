// Package events carries live status from running jobs to observers.
//
// Events are ephemeral: they exist only on the bus for the duration of
// delivery and are never persisted. The queue store is the single source
// of truth an observer reads back after receiving an event.
package events

import (
	"github.com/forgeworks/issuepilot/internal/types"
)

// ProgressEvent is a phase/percentage/message update for one operation.
type ProgressEvent struct {
	// OperationID identifies the operation: an issue number rendered as
	// a string, or a batch marker for multi-issue triage runs.
	OperationID string
	// Phase is the pipeline phase the operation is in.
	Phase string
	// Progress is a percentage in [0,100].
	Progress int
	// Message is free-text detail suitable for direct display.
	Message string
	// Total and Processed are batch counters for multi-issue triage;
	// zero for single-issue operations.
	Total     int
	Processed int
}

// CompleteEvent is the terminal success notification for an operation.
// Exactly one of AutoFix or TriageResults is set, depending on pipeline.
type CompleteEvent struct {
	OperationID   string
	AutoFix       *types.AutoFixState
	TriageResults []*types.TriageResult
}

// ErrorEvent is the terminal failure notification for an operation.
type ErrorEvent struct {
	// IssueNumber is the failing issue, or nil for batch-level failures.
	IssueNumber *int
	// Err is a human-readable message suitable for direct display.
	Err string
}
