// Package labels decides which fetched issues qualify for automatic
// enrollment into the auto-fix pipeline.
//
// The matcher is a pure function over already-fetched data: no network,
// no disk. Dedup against the queue happens here, not in the queue store.
package labels

import "strings"

// FetchedIssue is the subset of an issue the matcher needs.
type FetchedIssue struct {
	Number        int
	Labels        []string
	IsPullRequest bool
}

// EnrollmentCandidates returns the issue numbers eligible for auto-fix
// enrollment. An issue is excluded when:
//   - the upstream API marks it as a pull request,
//   - it already has a queue entry in any status (re-enrollment requires
//     explicit user action, not automatic rediscovery), or
//   - its labels do not intersect the configured set, compared
//     case-insensitively.
//
// Order of the returned numbers is not significant.
func EnrollmentCandidates(configured []string, issues []FetchedIssue, queued map[int]bool) []int {
	want := make(map[string]bool, len(configured))
	for _, l := range configured {
		want[strings.ToLower(l)] = true
	}

	var candidates []int
	for _, issue := range issues {
		if issue.IsPullRequest {
			continue
		}
		if queued[issue.Number] {
			continue
		}
		if !hasAnyLabel(issue.Labels, want) {
			continue
		}
		candidates = append(candidates, issue.Number)
	}
	return candidates
}

func hasAnyLabel(labels []string, want map[string]bool) bool {
	for _, l := range labels {
		if want[strings.ToLower(l)] {
			return true
		}
	}
	return false
}
