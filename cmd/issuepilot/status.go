package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/forgeworks/issuepilot/internal/queue"
	"github.com/forgeworks/issuepilot/internal/types"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue status for both pipelines",
	RunE: func(cmd *cobra.Command, args []string) error {
		q := queue.NewStore(stateDir)

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== issuepilot status ==="))

		fmt.Printf("%s\n", yellow("Auto-fix queue:"))
		states, err := q.ListAutoFix()
		if err != nil {
			return err
		}
		if len(states) == 0 {
			fmt.Printf("  %s\n", gray("empty"))
		}
		for _, st := range states {
			icon, paint := statusStyle(st.Status)
			fmt.Printf("  %s #%-5d %-14s", paint(icon), st.IssueNumber, paint(string(st.Status)))
			if st.SpecID != "" {
				fmt.Printf("  spec %s", st.SpecID)
			}
			if st.PRNumber != nil {
				fmt.Printf("  PR #%d", *st.PRNumber)
			}
			if st.Error != "" {
				fmt.Printf("  %s", gray(st.Error))
			}
			fmt.Println()
		}

		fmt.Printf("\n%s\n", yellow("Triaged:"))
		results, err := q.ListTriage()
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Printf("  %s\n", gray("none"))
		}
		for _, r := range results {
			fmt.Printf("  #%-5d %-14s %.0f%%", r.IssueNumber, r.Category, r.Confidence*100)
			if r.IsDuplicate && r.DuplicateOf != nil {
				fmt.Printf("  duplicate of #%d", *r.DuplicateOf)
			}
			fmt.Println()
		}
		fmt.Println()
		return nil
	},
}

// statusStyle maps a job status to its listing icon and color.
func statusStyle(s types.AutoFixStatus) (string, func(a ...interface{}) string) {
	switch {
	case s == types.StatusCompleted:
		return "●", color.New(color.FgGreen).SprintFunc()
	case s == types.StatusFailed:
		return "✗", color.New(color.FgRed).SprintFunc()
	case s == types.StatusPending:
		return "○", color.New(color.FgHiBlack).SprintFunc()
	default:
		return "●", color.New(color.FgYellow).SprintFunc()
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
