package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/forgeworks/issuepilot/internal/activity"
	"github.com/forgeworks/issuepilot/internal/events"
	"github.com/forgeworks/issuepilot/internal/orchestrator"
	"github.com/forgeworks/issuepilot/internal/tracker"
)

var (
	projectDir string
	stateDir   string
	repoName   string
	workerPath string
	projectID  string
)

var rootCmd = &cobra.Command{
	Use:   "issuepilot",
	Short: "Automated triage and auto-fix pipelines for repository issues",
	Long: `issuepilot drives two pipelines over a repository's issue tracker:

- triage: classify open issues in batch and optionally apply labels
- autofix: enroll labeled issues and drive them through spec generation

State lives under the project's state directory (config.json, queue
records, activity log). The heavy lifting is delegated to an external
worker process; issuepilot owns enrollment, phase sequencing, label
application, and progress reporting.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return resolveProject()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&projectDir, "project", "", "project checkout directory (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", "", "state directory (default: <project>/.issuepilot)")
	rootCmd.PersistentFlags().StringVar(&repoName, "repo", "", "tracker repository in owner/name form")
	rootCmd.PersistentFlags().StringVar(&workerPath, "worker", "", "worker executable (default: issuepilot-worker)")
}

// projectFile is the optional .issuepilot.yaml at the project root.
// Flags win over the file; the file wins over defaults.
type projectFile struct {
	Repo      string `yaml:"repo"`
	Worker    string `yaml:"worker"`
	StateDir  string `yaml:"state_dir"`
	ProjectID string `yaml:"project_id"`
}

// resolveProject fills unset globals from .issuepilot.yaml and defaults.
func resolveProject() error {
	if projectDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		projectDir = cwd
	}
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		return err
	}
	projectDir = abs

	if data, err := os.ReadFile(filepath.Join(projectDir, ".issuepilot.yaml")); err == nil {
		var pf projectFile
		if err := yaml.Unmarshal(data, &pf); err != nil {
			return fmt.Errorf("invalid .issuepilot.yaml: %w", err)
		}
		if repoName == "" {
			repoName = pf.Repo
		}
		if workerPath == "" {
			workerPath = pf.Worker
		}
		if stateDir == "" {
			stateDir = pf.StateDir
		}
		if projectID == "" {
			projectID = pf.ProjectID
		}
	}

	if stateDir == "" {
		stateDir = filepath.Join(projectDir, ".issuepilot")
	}
	if workerPath == "" {
		workerPath = "issuepilot-worker"
	}
	if projectID == "" {
		projectID = filepath.Base(projectDir)
	}
	return nil
}

// requireRepo guards commands that talk to the tracker.
func requireRepo() error {
	if repoName == "" {
		return fmt.Errorf("no repository configured: pass --repo owner/name or set repo in .issuepilot.yaml")
	}
	return nil
}

// openActivityLog opens the audit log, or returns nil if it cannot be
// opened. Commands keep working without it.
func openActivityLog() *activity.Log {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil
	}
	log, err := activity.Open(filepath.Join(stateDir, "activity.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: activity log unavailable: %v\n", err)
		return nil
	}
	return log
}

// buildOrchestrator assembles the orchestrator for the resolved project.
// The returned cleanup closes the activity log.
func buildOrchestrator() (*orchestrator.Orchestrator, *events.Bus, func(), error) {
	if err := requireRepo(); err != nil {
		return nil, nil, nil, err
	}
	bus := events.NewBus()
	log := openActivityLog()
	orch := orchestrator.New(orchestrator.Options{
		ProjectID:  projectID,
		Repo:       repoName,
		ProjectDir: projectDir,
		StateDir:   stateDir,
		WorkerPath: workerPath,
		Tracker:    tracker.NewGitHubClient(os.Getenv("GITHUB_TOKEN")),
		Bus:        bus,
		Activity:   log,
	})
	cleanup := func() {
		if log != nil {
			_ = log.Close()
		}
	}
	return orch, bus, cleanup, nil
}
