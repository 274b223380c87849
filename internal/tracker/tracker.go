// Package tracker defines the issue-tracker collaborator boundary.
//
// The automation core depends only on the Client interface; transport
// and authorization errors from an implementation are surfaced to the
// caller unchanged, with no retry inside the core.
package tracker

import (
	"context"

	"github.com/forgeworks/issuepilot/internal/types"
)

// Client is the thin authenticated wrapper around the remote issue API.
type Client interface {
	// FetchOpenIssues lists open issues for a repo. Pull requests are
	// included and flagged, since the upstream API mixes them in.
	FetchOpenIssues(ctx context.Context, repo string) ([]types.Issue, error)
	// FetchIssue fetches a single issue.
	FetchIssue(ctx context.Context, repo string, number int) (*types.Issue, error)
	// FetchComments fetches the comment thread of an issue.
	FetchComments(ctx context.Context, repo string, number int) ([]types.Comment, error)
	// ApplyLabels adds labels to an issue.
	ApplyLabels(ctx context.Context, repo string, number int, labels []string) error
}
