package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/forgeworks/issuepilot/internal/activity"
	"github.com/forgeworks/issuepilot/internal/events"
	"github.com/forgeworks/issuepilot/internal/types"
	"github.com/forgeworks/issuepilot/internal/worker"
)

// TriageOptions configures one batch triage run.
type TriageOptions struct {
	// IssueNumbers restricts the batch; empty means every open issue.
	IssueNumbers []int
	// ApplyLabels pushes each result's labels_to_add to the tracker
	// during the applying phase.
	ApplyLabels bool
}

// RunTriage drives one batch triage run through fetching, analyzing
// (worker invocation over the whole batch), applying (label pushes),
// and complete. Individual issue failures are published as error events
// and reported in the aggregate; they never abort the batch. Only a
// fetch failure or a worker failure is terminal for the whole run.
func (o *Orchestrator) RunTriage(ctx context.Context, opts TriageOptions) ([]*types.TriageResult, error) {
	cfg := o.config.LoadTriage()
	if !cfg.Enabled {
		return nil, ErrPipelineDisabled
	}

	// Batch marker: triage progress is keyed per run, not per issue.
	opID := "triage-" + uuid.NewString()[:8]

	o.publishTriageProgress(opID, types.PhaseFetching, 0, "fetching open issues", 0, 0)

	numbers := opts.IssueNumbers
	if len(numbers) == 0 {
		issues, err := o.opts.Tracker.FetchOpenIssues(ctx, o.opts.Repo)
		if err != nil {
			err = fmt.Errorf("failed to fetch open issues: %w", err)
			o.failTriage(ctx, err)
			return nil, err
		}
		for _, issue := range issues {
			if !issue.IsPullRequest {
				numbers = append(numbers, issue.Number)
			}
		}
	}
	total := len(numbers)
	if total == 0 {
		o.publishTriageProgress(opID, types.PhaseComplete, 100, "no issues to triage", 0, 0)
		o.opts.Bus.Complete(o.opts.ProjectID, events.CompleteEvent{OperationID: opID})
		return nil, nil
	}

	o.publishTriageProgress(opID, types.PhaseAnalyzing, 10,
		fmt.Sprintf("analyzing %d issues", total), total, 0)

	_, err := o.run(ctx, worker.RunConfig{
		Executable: o.opts.WorkerPath,
		Args:       worker.Command(types.PipelineTriage, o.opts.ProjectDir, numbers, false),
		WorkingDir: o.opts.ProjectDir,
		Env:        []string{"ISSUEPILOT_STATE_DIR=" + o.opts.StateDir},
		OnProgress: func(percent int, message string) {
			o.publishTriageProgress(opID, types.PhaseAnalyzing, percent, message, total, 0)
		},
	})
	if err != nil {
		o.failTriage(ctx, err)
		return nil, err
	}

	// The worker's side effect is the triage records; read them back.
	// An issue the worker skipped gets an error event, not a batch abort.
	var results []*types.TriageResult
	for _, n := range numbers {
		r := o.queue.GetTriage(n)
		if r == nil {
			num := n
			o.opts.Bus.Error(o.opts.ProjectID, events.ErrorEvent{
				IssueNumber: &num,
				Err:         fmt.Sprintf("worker produced no triage result for issue #%d", n),
			})
			continue
		}
		results = append(results, r)
	}

	o.publishTriageProgress(opID, types.PhaseApplying, 80, "applying labels", total, 0)
	if opts.ApplyLabels {
		o.applyTriageLabels(ctx, opID, results, total)
	}

	o.publishTriageProgress(opID, types.PhaseComplete, 100,
		fmt.Sprintf("triaged %d of %d issues", len(results), total), total, len(results))
	o.opts.Bus.Complete(o.opts.ProjectID, events.CompleteEvent{
		OperationID:   opID,
		TriageResults: results,
	})
	o.logActivity(ctx, activity.EventBatchCompleted, types.PipelineTriage, 0,
		activity.SeverityInfo, fmt.Sprintf("triage batch finished: %d of %d issues", len(results), total),
		map[string]interface{}{"total": total, "triaged": len(results)})
	return results, nil
}

// applyTriageLabels pushes labels_to_add for each result with bounded
// concurrency. Per-issue failures are published and logged but the
// batch always continues.
func (o *Orchestrator) applyTriageLabels(ctx context.Context, opID string, results []*types.TriageResult, total int) {
	var mu sync.Mutex
	processed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, r := range results {
		r := r
		g.Go(func() error {
			if len(r.LabelsToAdd) > 0 {
				if err := o.opts.Tracker.ApplyLabels(gctx, r.Repo, r.IssueNumber, r.LabelsToAdd); err != nil {
					num := r.IssueNumber
					o.opts.Bus.Error(o.opts.ProjectID, events.ErrorEvent{
						IssueNumber: &num,
						Err:         fmt.Sprintf("failed to apply labels to issue #%d: %v", r.IssueNumber, err),
					})
					o.logActivity(gctx, activity.EventLabelsApplied, types.PipelineTriage, r.IssueNumber,
						activity.SeverityError, err.Error(), nil)
					return nil
				}
				o.logActivity(gctx, activity.EventLabelsApplied, types.PipelineTriage, r.IssueNumber,
					activity.SeverityInfo, fmt.Sprintf("labels applied to issue #%d", r.IssueNumber),
					map[string]interface{}{"labels": r.LabelsToAdd})
			}
			mu.Lock()
			processed++
			done := processed
			mu.Unlock()
			o.publishTriageProgress(opID, types.PhaseApplying,
				80+(20*done)/max(total, 1), fmt.Sprintf("applied labels for issue #%d", r.IssueNumber), total, done)
			return nil
		})
	}
	_ = g.Wait()
}

func (o *Orchestrator) failTriage(ctx context.Context, cause error) {
	o.opts.Bus.Error(o.opts.ProjectID, events.ErrorEvent{Err: cause.Error()})
	o.logActivity(ctx, activity.EventJobFailed, types.PipelineTriage, 0,
		activity.SeverityError, cause.Error(), nil)
}

func (o *Orchestrator) publishTriageProgress(opID string, phase types.TriagePhase, percent int, message string, total, processed int) {
	o.opts.Bus.Progress(o.opts.ProjectID, events.ProgressEvent{
		OperationID: opID,
		Phase:       string(phase),
		Progress:    percent,
		Message:     message,
		Total:       total,
		Processed:   processed,
	})
}
