package tracker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchOpenIssues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "/repos/octo/widgets/issues", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]map[string]interface{}{
			{
				"number": 1, "title": "Crash on startup", "html_url": "https://example.com/1",
				"labels": []map[string]string{{"name": "bug"}, {"name": "auto-fix"}},
			},
			{
				"number": 2, "title": "Some PR", "html_url": "https://example.com/2",
				"labels":       []map[string]string{{"name": "auto-fix"}},
				"pull_request": map[string]string{"url": "https://example.com/pr/2"},
			},
		})
	}))
	defer srv.Close()

	c := NewGitHubClient("test-token", WithBaseURL(srv.URL))
	issues, err := c.FetchOpenIssues(context.Background(), "octo/widgets")
	require.NoError(t, err)
	require.Len(t, issues, 2)

	assert.Equal(t, 1, issues[0].Number)
	assert.Equal(t, []string{"bug", "auto-fix"}, issues[0].Labels)
	assert.False(t, issues[0].IsPullRequest)
	assert.True(t, issues[1].IsPullRequest, "pull_request key must flag the issue as a PR")
}

func TestFetchIssueAndComments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/octo/widgets/issues/5":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"number": 5, "title": "Flaky test", "body": "fails sometimes",
			})
		case "/repos/octo/widgets/issues/5/comments":
			_ = json.NewEncoder(w).Encode([]map[string]interface{}{
				{"user": map[string]string{"login": "alice"}, "body": "repro attached"},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewGitHubClient("", WithBaseURL(srv.URL))

	issue, err := c.FetchIssue(context.Background(), "octo/widgets", 5)
	require.NoError(t, err)
	assert.Equal(t, "Flaky test", issue.Title)

	comments, err := c.FetchComments(context.Background(), "octo/widgets", 5)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "alice", comments[0].Author)
	assert.Equal(t, "repro attached", comments[0].Body)
}

func TestApplyLabels(t *testing.T) {
	var gotBody map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/repos/octo/widgets/issues/3/labels", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewGitHubClient("t", WithBaseURL(srv.URL))
	err := c.ApplyLabels(context.Background(), "octo/widgets", 3, []string{"triaged", "bug"})
	require.NoError(t, err)
	assert.Equal(t, []string{"triaged", "bug"}, gotBody["labels"])
}

func TestApplyLabelsNoopOnEmpty(t *testing.T) {
	c := NewGitHubClient("t", WithBaseURL("http://127.0.0.1:0"))
	assert.NoError(t, c.ApplyLabels(context.Background(), "octo/widgets", 3, nil))
}

func TestErrorSurfacedVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Bad credentials"}`))
	}))
	defer srv.Close()

	c := NewGitHubClient("bad", WithBaseURL(srv.URL))
	_, err := c.FetchOpenIssues(context.Background(), "octo/widgets")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "Bad credentials")
}
