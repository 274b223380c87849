package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/forgeworks/issuepilot/internal/activity"
	"github.com/forgeworks/issuepilot/internal/events"
	"github.com/forgeworks/issuepilot/internal/types"
	"github.com/forgeworks/issuepilot/internal/worker"
)

// RunAutoFix drives one auto-fix job from pending through the spec
// handoff: analyzing (task synthesis from the issue and its comments),
// then creating_spec (worker invocation), persisting the worker's spec
// identifier before finishing. The build itself is driven later by the
// surrounding system through Advance; spec_id is the sole linkage it
// needs.
//
// A non-terminal existing entry is refused; a terminal one is replaced
// by a fresh pending entry (an explicit new invocation, never a resume).
func (o *Orchestrator) RunAutoFix(ctx context.Context, issueNumber int) error {
	state := o.queue.GetAutoFix(issueNumber)
	switch {
	case state == nil || state.Status.Terminal():
		var err error
		if state, err = o.EnrollAutoFix(ctx, issueNumber); err != nil {
			return err
		}
	case state.Status != types.StatusPending:
		return fmt.Errorf("issue #%d is %s: %w", issueNumber, state.Status, ErrJobInProgress)
	}

	// Analyzing: gather the issue and its discussion into a task
	// description for the worker.
	if err := o.transitionAutoFix(ctx, state, types.StatusAnalyzing, "analyzing issue"); err != nil {
		return err
	}

	issue, err := o.opts.Tracker.FetchIssue(ctx, o.opts.Repo, issueNumber)
	if err != nil {
		err = fmt.Errorf("failed to fetch issue #%d: %w", issueNumber, err)
		o.failAutoFix(ctx, state, err)
		return err
	}
	comments, err := o.opts.Tracker.FetchComments(ctx, o.opts.Repo, issueNumber)
	if err != nil {
		err = fmt.Errorf("failed to fetch comments for #%d: %w", issueNumber, err)
		o.failAutoFix(ctx, state, err)
		return err
	}

	taskPath, err := o.writeTaskFile(issueNumber, synthesizeTask(issue, comments))
	if err != nil {
		o.failAutoFix(ctx, state, err)
		return err
	}

	// Creating spec: hand off to the worker. Progress lines are
	// forwarded under this fixed phase; phase granularity is the
	// orchestrator's responsibility, not the subprocess's.
	if err := o.transitionAutoFix(ctx, state, types.StatusCreatingSpec, "generating specification"); err != nil {
		return err
	}

	_, err = o.run(ctx, worker.RunConfig{
		Executable: o.opts.WorkerPath,
		Args:       worker.Command(types.PipelineAutoFix, o.opts.ProjectDir, []int{issueNumber}, false),
		WorkingDir: o.opts.ProjectDir,
		Env: []string{
			"ISSUEPILOT_STATE_DIR=" + o.opts.StateDir,
			"ISSUEPILOT_TASK_FILE=" + taskPath,
		},
		OnProgress: func(percent int, message string) {
			o.opts.Bus.Progress(o.opts.ProjectID, events.ProgressEvent{
				OperationID: strconv.Itoa(issueNumber),
				Phase:       string(types.StatusCreatingSpec),
				Progress:    percent,
				Message:     message,
			})
		},
	})
	if err != nil {
		o.failAutoFix(ctx, state, err)
		return err
	}

	// Exit code 0 means the worker wrote its result record; the queue
	// store is authoritative, not captured stdout.
	written := o.queue.GetAutoFix(issueNumber)
	if written == nil || written.SpecID == "" {
		err = fmt.Errorf("worker succeeded but recorded no spec id for issue #%d", issueNumber)
		o.failAutoFix(ctx, state, err)
		return err
	}
	state.SpecID = written.SpecID
	state.SpecDir = written.SpecDir
	if len(written.BotComments) > 0 {
		state.BotComments = written.BotComments
	}
	if err := o.queue.UpsertAutoFix(state); err != nil {
		o.failAutoFix(ctx, state, err)
		return err
	}

	o.opts.Bus.Complete(o.opts.ProjectID, events.CompleteEvent{
		OperationID: strconv.Itoa(issueNumber),
		AutoFix:     state,
	})
	o.logActivity(ctx, activity.EventPhaseTransition, types.PipelineAutoFix, issueNumber,
		activity.SeverityInfo, fmt.Sprintf("issue #%d spec %s ready for build", issueNumber, state.SpecID),
		map[string]interface{}{"spec_id": state.SpecID})
	return nil
}

// Advance moves a job one step along the state machine on behalf of the
// surrounding system (building, qa_review, pr_created, completed). The
// transition is validated against the table; use Fail for failures so
// the error text and terminal error event are recorded properly.
func (o *Orchestrator) Advance(ctx context.Context, issueNumber int, to types.AutoFixStatus, message string) (*types.AutoFixState, error) {
	if to == types.StatusFailed {
		return nil, errors.New("use Fail to record a failure")
	}
	state := o.queue.GetAutoFix(issueNumber)
	if state == nil {
		return nil, fmt.Errorf("issue #%d is not enrolled for auto-fix", issueNumber)
	}
	if err := o.transitionAutoFix(ctx, state, to, message); err != nil {
		return nil, err
	}
	if to == types.StatusCompleted {
		o.opts.Bus.Complete(o.opts.ProjectID, events.CompleteEvent{
			OperationID: strconv.Itoa(issueNumber),
			AutoFix:     state,
		})
		o.logActivity(ctx, activity.EventJobCompleted, types.PipelineAutoFix, issueNumber,
			activity.SeverityInfo, fmt.Sprintf("issue #%d completed", issueNumber), nil)
	}
	return state, nil
}

// Fail records a terminal failure for a job from the surrounding system.
func (o *Orchestrator) Fail(ctx context.Context, issueNumber int, cause error) error {
	state := o.queue.GetAutoFix(issueNumber)
	if state == nil {
		return fmt.Errorf("issue #%d is not enrolled for auto-fix", issueNumber)
	}
	if state.Status.Terminal() {
		return fmt.Errorf("issue #%d is already %s", issueNumber, state.Status)
	}
	o.failAutoFix(ctx, state, cause)
	return nil
}

// RunDiscovered enrolls and runs every current enrollment candidate,
// each as an independent job. One job's failure never aborts the others;
// the combined error reports every failure at the end.
func (o *Orchestrator) RunDiscovered(ctx context.Context) ([]int, error) {
	candidates, err := o.DiscoverAutoFix(ctx)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	var failures []error

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(3)
	for _, n := range candidates {
		n := n
		g.Go(func() error {
			if err := o.RunAutoFix(gctx, n); err != nil {
				mu.Lock()
				failures = append(failures, fmt.Errorf("issue #%d: %w", n, err))
				mu.Unlock()
			}
			// Job failures are already recorded and published; do not
			// cancel sibling jobs.
			return nil
		})
	}
	_ = g.Wait()

	return candidates, errors.Join(failures...)
}

// writeTaskFile persists the synthesized task description next to the
// queue records so the worker can pick it up by path.
func (o *Orchestrator) writeTaskFile(issueNumber int, task string) (string, error) {
	dir := o.queue.Dir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create task directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("task_%d.md", issueNumber))
	if err := os.WriteFile(path, []byte(task), 0644); err != nil {
		return "", fmt.Errorf("failed to write task file: %w", err)
	}
	return path, nil
}
