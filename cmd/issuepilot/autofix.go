package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/forgeworks/issuepilot/internal/events"
	"github.com/forgeworks/issuepilot/internal/orchestrator"
)

var autofixCmd = &cobra.Command{
	Use:   "autofix",
	Short: "Manage the auto-fix pipeline",
}

var autofixDiscoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List issues eligible for auto-fix enrollment",
	Long: `Match open issues against the configured auto-fix labels and list
the ones that would be enrolled. Pull requests and issues already in
the queue (in any status) are excluded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		orch, _, cleanup, err := buildOrchestrator()
		if err != nil {
			return err
		}
		defer cleanup()

		candidates, err := orch.DiscoverAutoFix(context.Background())
		if err != nil {
			if errors.Is(err, orchestrator.ErrPipelineDisabled) {
				return fmt.Errorf("auto-fix is disabled: run 'issuepilot config set auto_fix_enabled true'")
			}
			return err
		}

		if len(candidates) == 0 {
			gray := color.New(color.FgHiBlack).SprintFunc()
			fmt.Printf("%s\n", gray("No eligible issues"))
			return nil
		}
		for _, n := range candidates {
			fmt.Printf("  #%d\n", n)
		}
		fmt.Printf("\n%d issues eligible for auto-fix\n", len(candidates))
		return nil
	},
}

var autofixRunCmd = &cobra.Command{
	Use:   "run [issue numbers...]",
	Short: "Run the auto-fix pipeline",
	Long: `Enroll issues and drive each through analysis and spec generation.
With explicit issue numbers only those are run; with none, every
current enrollment candidate is run.

When require_human_approval is set the run is confirmed interactively
first; --yes skips the prompt.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		skipApproval, _ := cmd.Flags().GetBool("yes")

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

		ctx := context.Background()
		if len(numbers) == 0 {
			if numbers, err = orch.DiscoverAutoFix(ctx); err != nil {
				if errors.Is(err, orchestrator.ErrPipelineDisabled) {
					return fmt.Errorf("auto-fix is disabled: run 'issuepilot config set auto_fix_enabled true'")
				}
				return err
			}
			if len(numbers) == 0 {
				fmt.Println("No eligible issues")
				return nil
			}
		}

		cfg := orch.Config().LoadAutoFix()
		if cfg.RequireHumanApproval && !skipApproval {
			ok, err := confirmRun(numbers)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Aborted")
				return nil
			}
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		unsubProgress := bus.SubscribeProgress(projectID, func(ev events.ProgressEvent) {
			fmt.Printf("%s #%s [%3d%%] %s\n", gray(ev.Phase), ev.OperationID, ev.Progress, ev.Message)
		})
		defer unsubProgress()
		unsubComplete := bus.SubscribeComplete(projectID, func(ev events.CompleteEvent) {
			if ev.AutoFix != nil {
				fmt.Printf("%s issue #%d: spec %s ready\n", green("✓"), ev.AutoFix.IssueNumber, ev.AutoFix.SpecID)
			}
		})
		defer unsubComplete()
		unsubErrors := bus.SubscribeError(projectID, func(ev events.ErrorEvent) {
			fmt.Fprintf(os.Stderr, "%s %s\n", red("✗"), ev.Err)
		})
		defer unsubErrors()

		var failures []error
		for _, n := range numbers {
			if err := orch.RunAutoFix(ctx, n); err != nil {
				failures = append(failures, err)
			}
		}
		if len(failures) > 0 {
			return fmt.Errorf("%d of %d jobs failed", len(failures), len(numbers))
		}
		return nil
	},
}

// confirmRun prompts for approval before starting the listed jobs.
func confirmRun(numbers []int) (bool, error) {
	strs := make([]string, len(numbers))
	for i, n := range numbers {
		strs[i] = fmt.Sprintf("#%d", n)
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt: fmt.Sprintf("Run auto-fix for %s? [y/N] ", strings.Join(strs, ", ")),
	})
	if err != nil {
		return false, fmt.Errorf("failed to open prompt: %w", err)
	}
	defer rl.Close()

	line, err := rl.Readline()
	if err != nil {
		// Ctrl-C or EOF means no.
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func init() {
	rootCmd.AddCommand(autofixCmd)
	autofixCmd.AddCommand(autofixDiscoverCmd)
	autofixCmd.AddCommand(autofixRunCmd)
	autofixRunCmd.Flags().BoolP("yes", "y", false, "skip the approval prompt")
}
