// Package orchestrator sequences the queue store, worker runner, and
// progress bus into a single job lifecycle per issue.
//
// Every phase transition follows the same rule: compute the new state,
// persist it via the queue store, then publish on the bus, strictly in
// that order, so an observer reacting to an event can always read back
// consistent state. The orchestrator is the sole writer of queue
// entries and the only publisher of progress events for a given job.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/forgeworks/issuepilot/internal/activity"
	"github.com/forgeworks/issuepilot/internal/config"
	"github.com/forgeworks/issuepilot/internal/events"
	"github.com/forgeworks/issuepilot/internal/labels"
	"github.com/forgeworks/issuepilot/internal/queue"
	"github.com/forgeworks/issuepilot/internal/tracker"
	"github.com/forgeworks/issuepilot/internal/types"
	"github.com/forgeworks/issuepilot/internal/worker"
)

// ErrPipelineDisabled is returned when the pipeline's configuration has
// enabled=false. Produced before any job exists; no queue entry results.
var ErrPipelineDisabled = errors.New("pipeline is disabled in configuration")

// ErrJobInProgress is returned when a job is refused because the issue
// already has a non-terminal queue entry.
var ErrJobInProgress = errors.New("issue already has a job in progress")

// RunnerFunc spawns the external worker. Injectable for tests.
type RunnerFunc func(ctx context.Context, cfg worker.RunConfig) (*worker.Result, error)

// Options configures an Orchestrator for one project.
type Options struct {
	// ProjectID keys bus events and isolates this project's observers.
	ProjectID string
	// Repo is the tracker repository in owner/name form.
	Repo string
	// ProjectDir is the checkout the worker runs in.
	ProjectDir string
	// StateDir is the durable state directory (config, queue, activity).
	StateDir string
	// WorkerPath is the worker executable; resolved against PATH.
	WorkerPath string

	Tracker tracker.Client
	Bus     *events.Bus
	// Activity is optional; nil disables audit logging.
	Activity *activity.Log
	// Runner defaults to worker.Run.
	Runner RunnerFunc
}

// Orchestrator drives triage and auto-fix jobs for one project.
type Orchestrator struct {
	opts   Options
	config *config.Store
	queue  *queue.Store
	run    RunnerFunc
}

// New creates an orchestrator from options. Stores are constructed over
// StateDir; they only reflect durable storage, so an orchestrator is
// safely reconstructed after a crash.
func New(opts Options) *Orchestrator {
	run := opts.Runner
	if run == nil {
		run = worker.Run
	}
	return &Orchestrator{
		opts:   opts,
		config: config.NewStore(opts.StateDir),
		queue:  queue.NewStore(opts.StateDir),
		run:    run,
	}
}

// Queue exposes the project's queue store for read-only consumers.
func (o *Orchestrator) Queue() *queue.Store {
	return o.queue
}

// Config exposes the project's config store.
func (o *Orchestrator) Config() *config.Store {
	return o.config
}

// DiscoverAutoFix returns the enrollment candidates for the auto-fix
// pipeline: open issues carrying a configured label, minus pull requests
// and minus anything already queued in any status. The queue snapshot is
// taken immediately before matching; two discoveries racing ahead of
// each other's enrollment is an accepted race (callers needing stronger
// guarantees serialize externally).
func (o *Orchestrator) DiscoverAutoFix(ctx context.Context) ([]int, error) {
	cfg := o.config.LoadAutoFix()
	if !cfg.Enabled {
		return nil, ErrPipelineDisabled
	}

	issues, err := o.opts.Tracker.FetchOpenIssues(ctx, o.opts.Repo)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch open issues: %w", err)
	}

	queued, err := o.queue.QueuedNumbers(types.PipelineAutoFix)
	if err != nil {
		return nil, err
	}

	fetched := make([]labels.FetchedIssue, 0, len(issues))
	for _, issue := range issues {
		fetched = append(fetched, labels.FetchedIssue{
			Number:        issue.Number,
			Labels:        issue.Labels,
			IsPullRequest: issue.IsPullRequest,
		})
	}
	return labels.EnrollmentCandidates(cfg.Labels, fetched, queued), nil
}

// EnrollAutoFix admits an issue into the auto-fix pipeline with a
// pending entry. An issue with a non-terminal entry is refused with
// ErrJobInProgress; a terminal entry (completed or failed) is replaced
// by a fresh pending entry, since re-running is an explicit new
// invocation rather than a resume.
func (o *Orchestrator) EnrollAutoFix(ctx context.Context, issueNumber int) (*types.AutoFixState, error) {
	if existing := o.queue.GetAutoFix(issueNumber); existing != nil && !existing.Status.Terminal() {
		return nil, fmt.Errorf("issue #%d is %s: %w", issueNumber, existing.Status, ErrJobInProgress)
	}

	issue, err := o.opts.Tracker.FetchIssue(ctx, o.opts.Repo, issueNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch issue #%d: %w", issueNumber, err)
	}

	state := &types.AutoFixState{
		IssueNumber: issueNumber,
		IssueURL:    issue.URL,
		Repo:        o.opts.Repo,
		Status:      types.StatusPending,
		BotComments: []string{},
	}
	if err := o.queue.UpsertAutoFix(state); err != nil {
		return nil, err
	}
	o.publishAutoFixProgress(state, "enrolled")
	o.logActivity(ctx, activity.EventJobEnrolled, types.PipelineAutoFix, issueNumber,
		activity.SeverityInfo, fmt.Sprintf("issue #%d enrolled for auto-fix", issueNumber), nil)
	return state, nil
}

// transitionAutoFix validates the transition against the table, persists
// the new status, then publishes. Off-table transitions are rejected,
// never accepted silently.
func (o *Orchestrator) transitionAutoFix(ctx context.Context, state *types.AutoFixState, to types.AutoFixStatus, message string) error {
	if err := types.ValidateTransition(state.Status, to); err != nil {
		return err
	}
	from := state.Status
	state.Status = to
	if err := o.queue.UpsertAutoFix(state); err != nil {
		state.Status = from
		return err
	}
	o.publishAutoFixProgress(state, message)
	o.logActivity(ctx, activity.EventPhaseTransition, types.PipelineAutoFix, state.IssueNumber,
		activity.SeverityInfo, fmt.Sprintf("issue #%d: %s -> %s", state.IssueNumber, from, to),
		map[string]interface{}{"from": string(from), "to": string(to)})
	return nil
}

// failAutoFix marks the job failed with the captured error text and
// publishes the terminal error event. Failure of one job never crashes
// or blocks other concurrent jobs.
func (o *Orchestrator) failAutoFix(ctx context.Context, state *types.AutoFixState, cause error) {
	if !state.Status.Terminal() {
		state.Status = types.StatusFailed
		state.Error = cause.Error()
		// Best effort: if the failed status cannot be persisted the
		// error event still goes out so observers see the failure.
		_ = o.queue.UpsertAutoFix(state)
	}
	n := state.IssueNumber
	o.opts.Bus.Error(o.opts.ProjectID, events.ErrorEvent{IssueNumber: &n, Err: cause.Error()})
	o.logActivity(ctx, activity.EventJobFailed, types.PipelineAutoFix, n,
		activity.SeverityError, cause.Error(), nil)
}

// autoFixProgress maps each status to a coarse percentage for observers.
var autoFixProgress = map[types.AutoFixStatus]int{
	types.StatusPending:      0,
	types.StatusAnalyzing:    10,
	types.StatusCreatingSpec: 30,
	types.StatusBuilding:     50,
	types.StatusQAReview:     75,
	types.StatusPRCreated:    90,
	types.StatusCompleted:    100,
	types.StatusFailed:       100,
}

func (o *Orchestrator) publishAutoFixProgress(state *types.AutoFixState, message string) {
	o.opts.Bus.Progress(o.opts.ProjectID, events.ProgressEvent{
		OperationID: strconv.Itoa(state.IssueNumber),
		Phase:       string(state.Status),
		Progress:    autoFixProgress[state.Status],
		Message:     message,
	})
}

func (o *Orchestrator) logActivity(ctx context.Context, evType activity.EventType, pipeline types.PipelineKind, issueNumber int, severity activity.Severity, message string, data map[string]interface{}) {
	if o.opts.Activity == nil {
		return
	}
	// Audit logging is best effort and never fails the job.
	_ = o.opts.Activity.Record(ctx, &activity.Event{
		Type:        evType,
		Pipeline:    pipeline,
		IssueNumber: issueNumber,
		Severity:    severity,
		Message:     message,
		Data:        data,
	})
}

// synthesizeTask builds the worker's task description from the issue
// title, body, and comment thread.
func synthesizeTask(issue *types.Issue, comments []types.Comment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Issue #%d: %s\n\n", issue.Number, issue.Title)
	if issue.Body != "" {
		b.WriteString(issue.Body)
		b.WriteString("\n")
	}
	if len(comments) > 0 {
		b.WriteString("\n## Discussion\n")
		for _, c := range comments {
			fmt.Fprintf(&b, "\n**%s**: %s\n", c.Author, c.Body)
		}
	}
	return b.String()
}
