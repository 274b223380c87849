package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/forgeworks/issuepilot/internal/events"
	"github.com/forgeworks/issuepilot/internal/orchestrator"
)

var triageCmd = &cobra.Command{
	Use:   "triage [issue numbers...]",
	Short: "Run batch triage over open issues",
	Long: `Classify open issues in one batch worker run and optionally apply
the suggested labels. With no arguments every open issue is triaged;
pull requests are always excluded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		applyLabels, _ := cmd.Flags().GetBool("apply-labels")

		numbers := make([]int, 0, len(args))
		for _, a := range args {
			n, err := strconv.Atoi(a)
			if err != nil {
				return fmt.Errorf("invalid issue number %q", a)
			}
			numbers = append(numbers, n)
		}

		orch, bus, cleanup, err := buildOrchestrator()
		if err != nil {
			return err
		}
		defer cleanup()

		gray := color.New(color.FgHiBlack).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		unsubProgress := bus.SubscribeProgress(projectID, func(ev events.ProgressEvent) {
			fmt.Printf("%s [%3d%%] %s\n", gray(ev.Phase), ev.Progress, ev.Message)
		})
		defer unsubProgress()
		unsubErrors := bus.SubscribeError(projectID, func(ev events.ErrorEvent) {
			fmt.Fprintf(os.Stderr, "%s %s\n", red("✗"), ev.Err)
		})
		defer unsubErrors()

		results, err := orch.RunTriage(context.Background(), orchestrator.TriageOptions{
			IssueNumbers: numbers,
			ApplyLabels:  applyLabels,
		})
		if err != nil {
			if errors.Is(err, orchestrator.ErrPipelineDisabled) {
				return fmt.Errorf("triage is disabled: run 'issuepilot config set triage_enabled true'")
			}
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Println()
		for _, r := range results {
			conf := fmt.Sprintf("%.0f%%", r.Confidence*100)
			fmt.Printf("  #%d %s (%s confidence)", r.IssueNumber, yellow(string(r.Category)), conf)
			if len(r.LabelsToAdd) > 0 {
				fmt.Printf("  +%v", r.LabelsToAdd)
			}
			if r.IsDuplicate && r.DuplicateOf != nil {
				fmt.Printf("  duplicate of #%d", *r.DuplicateOf)
			}
			fmt.Println()
		}
		fmt.Printf("\n%s Triaged %d issues\n", green("✓"), len(results))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(triageCmd)
	triageCmd.Flags().Bool("apply-labels", false, "apply suggested labels to the tracker")
}
