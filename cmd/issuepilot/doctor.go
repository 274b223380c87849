package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"
)

// minWorkerVersion is the oldest worker whose record format this
// version reads back correctly.
const minWorkerVersion = "v0.3.0"

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check installation and environment health",
	Long: `Run health checks to diagnose common configuration and environment
issues.

This command checks for:
- Worker executable presence and version
- State directory writability
- Tracker token presence
- Repository configuration

Exit codes:
  0 - All checks passed
  1 - One or more checks failed`,
	Run: func(cmd *cobra.Command, args []string) {
		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()

		fmt.Printf("Running issuepilot health checks...\n\n")
		var failures, warnings []string

		fmt.Printf("%s Worker executable\n", cyan("→"))
		if path, err := exec.LookPath(workerPath); err != nil {
			failures = append(failures, fmt.Sprintf("worker %q not found on PATH", workerPath))
			fmt.Printf("  %s not found: %s\n", red("✗"), workerPath)
		} else {
			fmt.Printf("  %s %s\n", green("✓"), path)
			checkWorkerVersion(path, &warnings, green, yellow)
		}

		fmt.Printf("%s State directory\n", cyan("→"))
		if err := checkWritable(stateDir); err != nil {
			failures = append(failures, fmt.Sprintf("state dir not writable: %v", err))
			fmt.Printf("  %s %s: %v\n", red("✗"), stateDir, err)
		} else {
			fmt.Printf("  %s %s\n", green("✓"), stateDir)
		}

		fmt.Printf("%s Tracker token\n", cyan("→"))
		if os.Getenv("GITHUB_TOKEN") == "" {
			warnings = append(warnings, "GITHUB_TOKEN is not set; tracker calls will be unauthenticated")
			fmt.Printf("  %s GITHUB_TOKEN not set\n", yellow("⚠"))
		} else {
			fmt.Printf("  %s GITHUB_TOKEN set\n", green("✓"))
		}

		fmt.Printf("%s Repository\n", cyan("→"))
		if repoName == "" {
			warnings = append(warnings, "no repository configured (--repo or .issuepilot.yaml)")
			fmt.Printf("  %s not configured\n", yellow("⚠"))
		} else {
			fmt.Printf("  %s %s\n", green("✓"), repoName)
		}

		fmt.Println()
		for _, w := range warnings {
			fmt.Printf("%s %s\n", yellow("⚠"), w)
		}
		if len(failures) > 0 {
			for _, f := range failures {
				fmt.Printf("%s %s\n", red("✗"), f)
			}
			os.Exit(1)
		}
		fmt.Printf("%s All checks passed\n", green("✓"))
	},
}

// checkWorkerVersion asks the worker for its version and compares it
// against the minimum supported release. A worker without --version
// support is only a warning.
func checkWorkerVersion(path string, warnings *[]string, green, yellow func(a ...interface{}) string) {
	out, err := exec.Command(path, "--version").Output()
	if err != nil {
		*warnings = append(*warnings, "worker does not report a version")
		fmt.Printf("  %s version unknown\n", yellow("⚠"))
		return
	}
	version := strings.TrimSpace(string(out))
	if !strings.HasPrefix(version, "v") {
		version = "v" + version
	}
	if !semver.IsValid(version) {
		*warnings = append(*warnings, fmt.Sprintf("worker reported unparseable version %q", version))
		fmt.Printf("  %s version %s (unparseable)\n", yellow("⚠"), version)
		return
	}
	if semver.Compare(version, minWorkerVersion) < 0 {
		*warnings = append(*warnings, fmt.Sprintf("worker %s is older than supported %s", version, minWorkerVersion))
		fmt.Printf("  %s version %s (< %s)\n", yellow("⚠"), version, minWorkerVersion)
		return
	}
	fmt.Printf("  %s version %s\n", green("✓"), version)
}

// checkWritable verifies the directory exists (creating it if needed)
// and accepts writes.
func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	probe := filepath.Join(dir, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		return err
	}
	return os.Remove(probe)
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
