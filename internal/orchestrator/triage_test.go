package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeworks/issuepilot/internal/events"
	"github.com/forgeworks/issuepilot/internal/queue"
	"github.com/forgeworks/issuepilot/internal/types"
	"github.com/forgeworks/issuepilot/internal/worker"
)

// triageWritingRunner simulates a worker that records a triage result
// for each requested issue before exiting 0.
func triageWritingRunner(q *queue.Store, numbers ...int) RunnerFunc {
	return func(ctx context.Context, cfg worker.RunConfig) (*worker.Result, error) {
		if cfg.OnProgress != nil {
			cfg.OnProgress(50, "classifying issues")
		}
		for _, n := range numbers {
			if err := q.UpsertTriage(&types.TriageResult{
				IssueNumber: n,
				Repo:        "octo/widgets",
				Category:    types.CategoryBug,
				Confidence:  0.91,
				LabelsToAdd: []string{"bug", "triaged"},
			}); err != nil {
				return nil, err
			}
		}
		return &worker.Result{ExitCode: 0}, nil
	}
}

func TestRunTriageDisabled(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.orch.RunTriage(context.Background(), TriageOptions{})
	assert.True(t, errors.Is(err, ErrPipelineDisabled))
}

func TestRunTriageBatch(t *testing.T) {
	var h *testHarness
	h = newHarness(t, func(ctx context.Context, cfg worker.RunConfig) (*worker.Result, error) {
		assert.Contains(t, cfg.Args, "triage")
		return triageWritingRunner(h.queue, 1, 2)(ctx, cfg)
	})
	enableTriage(t, h.orch.Config())

	h.tracker.issues[1] = types.Issue{Number: 1, Title: "panic in parser"}
	h.tracker.issues[2] = types.Issue{Number: 2, Title: "wrong output"}
	h.tracker.issues[3] = types.Issue{Number: 3, Title: "a PR", IsPullRequest: true}

	var completes []events.CompleteEvent
	h.bus.SubscribeComplete("test-project", func(ev events.CompleteEvent) { completes = append(completes, ev) })

	results, err := h.orch.RunTriage(context.Background(), TriageOptions{ApplyLabels: true})
	require.NoError(t, err)
	assert.Len(t, results, 2, "pull requests are excluded from the batch")

	assert.ElementsMatch(t, []string{"bug", "triaged"}, h.tracker.applied[1])
	assert.ElementsMatch(t, []string{"bug", "triaged"}, h.tracker.applied[2])

	require.Len(t, completes, 1)
	assert.Len(t, completes[0].TriageResults, 2)
}

func TestRunTriageLabelFailureDoesNotAbortBatch(t *testing.T) {
	var h *testHarness
	h = newHarness(t, func(ctx context.Context, cfg worker.RunConfig) (*worker.Result, error) {
		return triageWritingRunner(h.queue, 1, 2)(ctx, cfg)
	})
	enableTriage(t, h.orch.Config())
	h.tracker.applyErr[1] = errors.New("403 Forbidden")

	var errs []events.ErrorEvent
	h.bus.SubscribeError("test-project", func(ev events.ErrorEvent) { errs = append(errs, ev) })
	var completes []events.CompleteEvent
	h.bus.SubscribeComplete("test-project", func(ev events.CompleteEvent) { completes = append(completes, ev) })

	results, err := h.orch.RunTriage(context.Background(),
		TriageOptions{IssueNumbers: []int{1, 2}, ApplyLabels: true})
	require.NoError(t, err, "per-issue label failures do not fail the batch")
	assert.Len(t, results, 2)

	require.Len(t, errs, 1)
	require.NotNil(t, errs[0].IssueNumber)
	assert.Equal(t, 1, *errs[0].IssueNumber)
	assert.ElementsMatch(t, []string{"bug", "triaged"}, h.tracker.applied[2],
		"the sibling issue still gets its labels")
	assert.Len(t, completes, 1, "batch completion is still announced")
}

func TestRunTriageMissingResult(t *testing.T) {
	var h *testHarness
	h = newHarness(t, func(ctx context.Context, cfg worker.RunConfig) (*worker.Result, error) {
		// Worker only produces a record for issue 1.
		return triageWritingRunner(h.queue, 1)(ctx, cfg)
	})
	enableTriage(t, h.orch.Config())

	var errs []events.ErrorEvent
	h.bus.SubscribeError("test-project", func(ev events.ErrorEvent) { errs = append(errs, ev) })

	results, err := h.orch.RunTriage(context.Background(), TriageOptions{IssueNumbers: []int{1, 2}})
	require.NoError(t, err)
	assert.Len(t, results, 1)
	require.Len(t, errs, 1)
	require.NotNil(t, errs[0].IssueNumber)
	assert.Equal(t, 2, *errs[0].IssueNumber)
}

func TestRunTriageWorkerFailure(t *testing.T) {
	h := newHarness(t, func(ctx context.Context, cfg worker.RunConfig) (*worker.Result, error) {
		return &worker.Result{ExitCode: 2, Stderr: "model unavailable"}, errors.New("model unavailable")
	})
	enableTriage(t, h.orch.Config())

	var errs []events.ErrorEvent
	h.bus.SubscribeError("test-project", func(ev events.ErrorEvent) { errs = append(errs, ev) })

	_, err := h.orch.RunTriage(context.Background(), TriageOptions{IssueNumbers: []int{1}})
	require.Error(t, err)
	require.Len(t, errs, 1)
	assert.Nil(t, errs[0].IssueNumber, "worker failure is batch-level, not per issue")
	assert.Contains(t, errs[0].Err, "model unavailable")
}

func TestRunTriageEmptyBatch(t *testing.T) {
	h := newHarness(t, func(ctx context.Context, cfg worker.RunConfig) (*worker.Result, error) {
		t.Fatal("worker must not run for an empty batch")
		return nil, nil
	})
	enableTriage(t, h.orch.Config())

	results, err := h.orch.RunTriage(context.Background(), TriageOptions{})
	require.NoError(t, err)
	assert.Nil(t, results)
}
