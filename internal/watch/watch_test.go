package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeworks/issuepilot/internal/queue"
	"github.com/forgeworks/issuepilot/internal/types"
)

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestWatchAutoFixRecord(t *testing.T) {
	stateDir := t.TempDir()
	q := queue.NewStore(stateDir)
	require.NoError(t, q.UpsertAutoFix(&types.AutoFixState{
		IssueNumber: 1, Repo: "octo/widgets", Status: types.StatusPending,
	}))

	got := make(chan *types.AutoFixState, 16)
	seen := make(chan struct{})
	w, err := New(Options{
		Dir:      q.Dir(),
		Debounce: 20 * time.Millisecond,
		OnAutoFix: func(s *types.AutoFixState) {
			got <- s
			if s.Status == types.StatusAnalyzing {
				close(seen)
			}
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()

	require.NoError(t, q.UpsertAutoFix(&types.AutoFixState{
		IssueNumber: 1, Repo: "octo/widgets", Status: types.StatusAnalyzing,
	}))

	waitFor(t, seen, "analyzing record reload")
	cancel()
	waitFor(t, done, "watcher shutdown")
}

func TestWatchTriageRecord(t *testing.T) {
	stateDir := t.TempDir()
	q := queue.NewStore(stateDir)
	require.NoError(t, os.MkdirAll(q.Dir(), 0755))

	seen := make(chan struct{})
	var reloaded *types.TriageResult
	w, err := New(Options{
		Dir:      q.Dir(),
		Debounce: 20 * time.Millisecond,
		OnTriage: func(r *types.TriageResult) {
			reloaded = r
			close(seen)
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	require.NoError(t, q.UpsertTriage(&types.TriageResult{
		IssueNumber: 9, Repo: "octo/widgets", Category: types.CategoryBug, Confidence: 0.9,
	}))

	waitFor(t, seen, "triage record reload")
	assert.Equal(t, 9, reloaded.IssueNumber)
	assert.Equal(t, types.CategoryBug, reloaded.Category)
}

func TestWatchSkipsMalformedRecord(t *testing.T) {
	stateDir := t.TempDir()
	q := queue.NewStore(stateDir)
	require.NoError(t, os.MkdirAll(q.Dir(), 0755))

	errs := make(chan error, 16)
	triaged := make(chan struct{})
	w, err := New(Options{
		Dir:      q.Dir(),
		Debounce: 20 * time.Millisecond,
		OnTriage: func(r *types.TriageResult) { close(triaged) },
		OnError:  func(err error) { errs <- err },
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	require.NoError(t, os.WriteFile(filepath.Join(q.Dir(), "triage_5.json"), []byte("{not json"), 0644))

	select {
	case err := <-errs:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for decode error")
	}

	// A good record afterwards still comes through.
	require.NoError(t, q.UpsertTriage(&types.TriageResult{IssueNumber: 6, Repo: "octo/widgets"}))
	waitFor(t, triaged, "valid record after malformed one")
}

func TestWatchIgnoresUnrelatedFiles(t *testing.T) {
	stateDir := t.TempDir()
	q := queue.NewStore(stateDir)
	require.NoError(t, os.MkdirAll(q.Dir(), 0755))

	called := make(chan struct{}, 1)
	w, err := New(Options{
		Dir:       q.Dir(),
		Debounce:  20 * time.Millisecond,
		OnTriage:  func(r *types.TriageResult) { called <- struct{}{} },
		OnAutoFix: func(s *types.AutoFixState) { called <- struct{}{} },
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	require.NoError(t, os.WriteFile(filepath.Join(q.Dir(), "index.json"), []byte("{}"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(q.Dir(), "task_3.md"), []byte("# task"), 0644))

	select {
	case <-called:
		t.Fatal("unrelated files must not trigger record callbacks")
	case <-time.After(300 * time.Millisecond):
	}
}
