// Package types defines the shared data model for issue automation:
// pipeline kinds, issue snapshots fetched from the tracker, and the
// per-pipeline result records persisted by the queue store.
package types

import "time"

// PipelineKind identifies one of the two independent automation flows.
type PipelineKind string

const (
	// PipelineTriage is the issue classification pipeline
	PipelineTriage PipelineKind = "triage"
	// PipelineAutoFix is the automatic fix/build pipeline
	PipelineAutoFix PipelineKind = "autofix"
)

// Valid reports whether the pipeline kind is one of the known values.
func (p PipelineKind) Valid() bool {
	return p == PipelineTriage || p == PipelineAutoFix
}

// Priority represents issue priority assigned during triage.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Issue is a snapshot of a tracker issue as fetched from the remote API.
// It carries only the fields the automation core needs; the tracker
// client owns the full wire representation.
type Issue struct {
	Number        int      `json:"number"`
	Title         string   `json:"title"`
	Body          string   `json:"body"`
	URL           string   `json:"url"`
	Labels        []string `json:"labels"`
	IsPullRequest bool     `json:"is_pull_request"`
}

// Comment is a single comment on a tracker issue.
type Comment struct {
	Author string `json:"author"`
	Body   string `json:"body"`
}

// Timestamp formats a time the way queue records store it.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
