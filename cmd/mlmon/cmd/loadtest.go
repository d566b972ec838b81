package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/psantana5/mlmon/pkg/cooldown"
	"github.com/psantana5/mlmon/pkg/hub"
	"github.com/psantana5/mlmon/pkg/loadtest"
	"github.com/psantana5/mlmon/pkg/models"
	"github.com/psantana5/mlmon/pkg/pipeline"
	"github.com/psantana5/mlmon/pkg/report"
	"github.com/psantana5/mlmon/pkg/sampler"
	"github.com/psantana5/mlmon/pkg/store"
)

var (
	planPath          string
	ltInterval        time.Duration
	ltStageTimeout    time.Duration
	cooldownTolerance float64
	cooldownTimeout   time.Duration
	cooldownPoll      time.Duration
	resultsDir        string
	ltDBPath          string
	ltPerRowLatency   time.Duration
)

var loadtestCmd = &cobra.Command{
	Use:   "loadtest",
	Short: "Run a sequential load test over a dataset plan",
	Long: `Loadtest trains every dataset in the plan one at a time, measuring each
against a fresh resource baseline. Between datasets the run waits for
the host to cool back down to baseline before starting the next test.

Example:
  mlmon loadtest --plan datasets.yaml
  mlmon loadtest --plan datasets.yaml --tolerance 5 --cooldown-timeout 30s`,
	RunE: runLoadtest,
}

func init() {
	rootCmd.AddCommand(loadtestCmd)

	loadtestCmd.Flags().StringVar(&planPath, "plan", "", "YAML dataset plan (required)")
	loadtestCmd.MarkFlagRequired("plan")
	loadtestCmd.Flags().DurationVar(&ltInterval, "interval", 5*time.Second, "broadcast tick interval")
	loadtestCmd.Flags().DurationVar(&ltStageTimeout, "stage-timeout", 2*time.Minute, "per-stage time ceiling (0 disables)")
	loadtestCmd.Flags().Float64Var(&cooldownTolerance, "tolerance", 5.0, "cooldown tolerance in percentage points")
	loadtestCmd.Flags().DurationVar(&cooldownTimeout, "cooldown-timeout", 30*time.Second, "maximum wait for the host to settle between tests")
	loadtestCmd.Flags().DurationVar(&cooldownPoll, "cooldown-poll", time.Second, "cooldown poll interval")
	loadtestCmd.Flags().StringVar(&resultsDir, "results-dir", "./test_results", "directory for run summary JSON files")
	loadtestCmd.Flags().StringVar(&ltDBPath, "db", "", "SQLite database to archive reports into (optional)")
	loadtestCmd.Flags().DurationVar(&ltPerRowLatency, "per-row-latency", 100*time.Microsecond, "training time added per dataset row")
}

func runLoadtest(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	plan, err := loadtest.LoadPlan(planPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hostSampler := sampler.NewHostSampler()
	h := hub.New(hostSampler, ltInterval, logger)
	h.Start(ctx)
	defer h.Stop()

	coordinator := cooldown.New(hostSampler, cooldownPoll, logger)
	provider := &pipeline.ScaledProvider{Base: time.Second, PerRow: ltPerRowLatency}

	config := loadtest.Config{
		StageTimeout:      ltStageTimeout,
		CooldownTolerance: cooldownTolerance,
		CooldownTimeout:   cooldownTimeout,
	}

	orchestrator := loadtest.NewOrchestrator(h, coordinator, provider, config, logger)
	summary, err := orchestrator.Run(ctx, plan.Descriptors())
	if err != nil {
		return fmt.Errorf("load test aborted: %w", err)
	}

	if ltDBPath != "" {
		if err := archiveRun(summary, ltDBPath); err != nil {
			logger.Warn("failed to archive run", map[string]interface{}{"error": err.Error()})
		}
	}

	writer := report.NewWriter(resultsDir, logger)
	if _, err := writer.WriteRun(summary); err != nil {
		logger.Warn("failed to write run summary", map[string]interface{}{"error": err.Error()})
	}

	return printSummary(summary)
}

// archiveRun stores the summary and its reports in SQLite
func archiveRun(summary *models.RunSummary, dbPath string) error {
	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.SaveRun(summary); err != nil {
		return err
	}
	for i := range summary.Reports {
		if err := st.SaveReport(&summary.Reports[i]); err != nil {
			return err
		}
	}
	return nil
}

func printSummary(summary *models.RunSummary) error {
	if IsJSONOutput() {
		output, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Dataset", "Outcome", "Accuracy", "Peak CPU %", "Peak Mem %", "Mem Delta MB", "Train Time", "Flags")

	for _, rep := range summary.Reports {
		outcome := "completed"
		accuracy := "-"
		if rep.JobFailed {
			outcome = "failed: " + string(rep.FailureReason)
		} else if rep.JobResult != nil {
			accuracy = fmt.Sprintf("%.4f", rep.JobResult.Accuracy)
		}

		var flags []string
		if rep.DirtyBaseline {
			flags = append(flags, "dirty-baseline")
		}
		if rep.Degraded {
			flags = append(flags, "degraded")
		}
		flagCol := "-"
		if len(flags) > 0 {
			flagCol = ""
			for i, f := range flags {
				if i > 0 {
					flagCol += ","
				}
				flagCol += f
			}
		}

		if rep.Degraded {
			table.Append(rep.Dataset.Name, outcome, accuracy, "-", "-", "-",
				rep.TrainingDuration.Round(time.Millisecond).String(), flagCol)
			continue
		}
		table.Append(
			rep.Dataset.Name,
			outcome,
			accuracy,
			fmt.Sprintf("%.1f", rep.PeakCPU),
			fmt.Sprintf("%.1f", rep.PeakMemory),
			fmt.Sprintf("%.1f", rep.MemoryDeltaMB),
			rep.TrainingDuration.Round(time.Millisecond).String(),
			flagCol,
		)
	}

	table.Render()

	if summary.Passed {
		fmt.Println("\nMeasurement checks: PASSED")
	} else {
		fmt.Printf("\nMeasurement checks: FAILED (%d violations)\n", len(summary.Violations))
		for _, v := range summary.Violations {
			fmt.Printf("  - %s\n", v)
		}
	}
	return nil
}
