package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
)

var metricsPrefix string

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Fetch and display the server's Prometheus metrics",
	Long: `Metrics fetches the /metrics endpoint of a running server, parses the
Prometheus text exposition, and prints one row per sample.

Example:
  mlmon metrics
  mlmon metrics --prefix mlmon_hub`,
	RunE: runMetrics,
}

func init() {
	rootCmd.AddCommand(metricsCmd)
	metricsCmd.Flags().StringVar(&metricsPrefix, "prefix", "", "only show metrics whose name starts with this prefix")
}

func runMetrics(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(GetServerURL() + "/metrics")
	if err != nil {
		return fmt.Errorf("failed to fetch metrics: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("metrics endpoint returned %s", resp.Status)
	}

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to parse metrics: %w", err)
	}

	names := make([]string, 0, len(families))
	for name := range families {
		if metricsPrefix != "" && !strings.HasPrefix(name, metricsPrefix) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	type row struct {
		Name  string  `json:"name"`
		Type  string  `json:"type"`
		Value float64 `json:"value"`
	}
	var rows []row

	for _, name := range names {
		mf := families[name]
		for _, m := range mf.GetMetric() {
			var value float64
			switch {
			case m.GetCounter() != nil:
				value = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				value = m.GetGauge().GetValue()
			case m.GetUntyped() != nil:
				value = m.GetUntyped().GetValue()
			default:
				continue
			}
			rows = append(rows, row{
				Name:  name,
				Type:  mf.GetType().String(),
				Value: value,
			})
		}
	}

	if IsJSONOutput() {
		output, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Metric", "Type", "Value")
	for _, r := range rows {
		table.Append(r.Name, r.Type, fmt.Sprintf("%g", r.Value))
	}
	table.Render()

	return nil
}
