package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/forgeworks/issuepilot/internal/activity"
	"github.com/forgeworks/issuepilot/internal/types"
)

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Show the audit trail of pipeline events",
	Long: `List recorded pipeline events, newest first. With --issue the
history of that one issue is shown oldest first instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		issue, _ := cmd.Flags().GetInt("issue")
		pipeline, _ := cmd.Flags().GetString("pipeline")

		log := openActivityLog()
		if log == nil {
			return fmt.Errorf("activity log unavailable under %s", stateDir)
		}
		defer log.Close()

		ctx := context.Background()
		var events []*activity.Event
		var err error
		if issue > 0 {
			kind := types.PipelineKind(pipeline)
			if !kind.Valid() {
				return fmt.Errorf("--pipeline must be %q or %q", types.PipelineTriage, types.PipelineAutoFix)
			}
			events, err = log.ByIssue(ctx, kind, issue)
		} else {
			events, err = log.Recent(ctx, limit)
		}
		if err != nil {
			return err
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		for _, ev := range events {
			paint := gray
			if ev.Severity == activity.SeverityError {
				paint = red
			}
			fmt.Printf("%s %s %-10s #%-5d %s\n",
				gray(ev.Timestamp.Format("2006-01-02 15:04:05")),
				paint(string(ev.Severity)), ev.Pipeline, ev.IssueNumber, ev.Message)
		}
		if len(events) == 0 {
			fmt.Printf("%s\n", gray("No recorded events"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(activityCmd)
	activityCmd.Flags().Int("limit", 50, "maximum events to show")
	activityCmd.Flags().Int("issue", 0, "show one issue's history")
	activityCmd.Flags().String("pipeline", "autofix", "pipeline for --issue (triage or autofix)")
}
