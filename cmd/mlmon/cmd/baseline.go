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
	"github.com/psantana5/mlmon/pkg/sampler"
)

var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Capture and print a host resource baseline",
	RunE:  runBaseline,
}

func init() {
	rootCmd.AddCommand(baselineCmd)
}

func runBaseline(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	coordinator := cooldown.New(sampler.NewHostSampler(), time.Second, logger)
	baseline, err := coordinator.CaptureBaseline(ctx)
	if err != nil {
		return fmt.Errorf("failed to capture baseline: %w", err)
	}

	if IsJSONOutput() {
		output, err := json.MarshalIndent(baseline, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	snap := baseline.Snapshot
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Metric", "Value")
	table.Append("CPU %", fmt.Sprintf("%.2f", snap.CPUPercent))
	table.Append("Memory %", fmt.Sprintf("%.2f", snap.MemoryPercent))
	table.Append("Memory Used MB", fmt.Sprintf("%.1f", snap.MemoryUsedMB))
	table.Append("Disk %", fmt.Sprintf("%.2f", snap.DiskPercent))
	table.Append("Processes", fmt.Sprintf("%d", snap.ProcessCount))
	table.Append("Captured At", baseline.CapturedAt.Format(time.RFC3339))
	table.Render()

	return nil
}
