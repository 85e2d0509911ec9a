// cmd/run.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/glimpse/internal/agent"
	"github.com/xkilldash9x/glimpse/internal/observability"
)

func newRunCmd(f *factories) *cobra.Command {
	var (
		maxIterations   int
		saveScreenshots bool
		exampleName     string
	)

	runCmd := &cobra.Command{
		Use:   "run [task]",
		Short: "Runs a natural-language task against the display",
		Long: `Captures the display, asks the vision model for the next action and performs it,
repeating until the model reports the task finished, the iteration limit is reached or
the run is aborted (Ctrl+C, or the pointer parked in the reserved corner).`,
		Example: `  glimpse run "Open the settings page"
  glimpse run --example notepad
  glimpse run --max-iterations 10 --save-screenshots "Search for the weather in Paris"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg, err := configFrom(ctx)
			if err != nil {
				return err
			}

			task := strings.TrimSpace(strings.Join(args, " "))
			if exampleName != "" {
				ex, err := lookupExample(exampleName)
				if err != nil {
					return err
				}
				if task == "" {
					task = ex.Task
				}
				if ex.StartURL != "" {
					cfg.DisplayCfg.StartURL = ex.StartURL
				}
				if !cmd.Flags().Changed("max-iterations") {
					maxIterations = ex.MaxIterations
				}
			}
			if task == "" {
				return errors.New("a task is required: pass it as an argument or use --example")
			}

			save := cfg.Agent().SaveScreenshots
			if cmd.Flags().Changed("save-screenshots") {
				save = saveScreenshots
			}

			rt, err := f.newRuntime(ctx, cfg, runtimeOptions{SaveScreenshots: save}, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := rt.Close(); err != nil {
					logger.Warn("Failed to release runtime cleanly", zap.Error(err))
				}
			}()

			result := rt.loop.Run(ctx, task, maxIterations, save)
			printSummary(cmd.OutOrStdout(), result)

			if rt.store != nil {
				// The run context may already be cancelled; history is still worth keeping.
				if err := rt.store.SaveRun(context.WithoutCancel(ctx), result); err != nil {
					logger.Warn("Failed to store run history", zap.String("run_id", result.RunID.String()), zap.Error(err))
				}
			}
			return runError(result)
		},
	}

	runCmd.Flags().IntVarP(&maxIterations, "max-iterations", "n", 0, "iteration limit (0 uses agent.max_iterations)")
	runCmd.Flags().BoolVar(&saveScreenshots, "save-screenshots", false, "write every captured screenshot to capture.screenshot_dir")
	runCmd.Flags().StringVarP(&exampleName, "example", "e", "", "run a built-in example task (see 'glimpse examples')")
	return runCmd
}

// runError maps a finished run onto the command's error. An aborted run wraps
// context.Canceled so the process exits cleanly.
func runError(res agent.RunResult) error {
	switch res.Status {
	case agent.StatusSuccess:
		return nil
	case agent.StatusAborted:
		return fmt.Errorf("run %s aborted: %w", res.RunID, context.Canceled)
	case agent.StatusMaxIterations:
		return fmt.Errorf("run %s stopped after %d iterations without finishing", res.RunID, res.IterationCount)
	default:
		if res.LastError != nil {
			return fmt.Errorf("run %s failed: %w", res.RunID, res.LastError)
		}
		return fmt.Errorf("run %s failed", res.RunID)
	}
}

func printSummary(w io.Writer, res agent.RunResult) {
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "Run:        %s\n", res.RunID)
	fmt.Fprintf(w, "Task:       %s\n", res.Task)
	fmt.Fprintf(w, "Status:     %s\n", res.Status)
	fmt.Fprintf(w, "Iterations: %d\n", res.IterationCount)
	fmt.Fprintf(w, "Elapsed:    %s\n", res.ElapsedTime.Round(10*time.Millisecond))
	if res.FinalMessage != "" {
		fmt.Fprintf(w, "Message:    %s\n", res.FinalMessage)
	}
	if res.LastError != nil {
		fmt.Fprintf(w, "Error:      %s\n", res.LastError)
	}
	fmt.Fprintln(w, strings.Repeat("=", 60))
}
