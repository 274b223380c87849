package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/forgeworks/issuepilot/internal/queue"
	"github.com/forgeworks/issuepilot/internal/types"
	"github.com/forgeworks/issuepilot/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Tail queue records as they change",
	Long: `Watch the queue directory and print each record change as it lands
on disk, including changes made by other processes (a running worker,
another issuepilot invocation). Ctrl-C stops.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		q := queue.NewStore(stateDir)

		yellow := color.New(color.FgYellow).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		w, err := watch.New(watch.Options{
			Dir: q.Dir(),
			OnAutoFix: func(s *types.AutoFixState) {
				paint := yellow
				switch s.Status {
				case types.StatusCompleted:
					paint = green
				case types.StatusFailed:
					paint = red
				}
				fmt.Printf("autofix #%-5d %s", s.IssueNumber, paint(string(s.Status)))
				if s.Error != "" {
					fmt.Printf("  %s", gray(s.Error))
				}
				fmt.Println()
			},
			OnTriage: func(r *types.TriageResult) {
				fmt.Printf("triage  #%-5d %s (%.0f%%)\n", r.IssueNumber, r.Category, r.Confidence*100)
			},
			OnError: func(err error) {
				fmt.Fprintf(os.Stderr, "%s %v\n", red("✗"), err)
			},
		})
		if err != nil {
			return err
		}

		fmt.Printf("%s\n", gray(fmt.Sprintf("watching %s (Ctrl-C to stop)", q.Dir())))
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
