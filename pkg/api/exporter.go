package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/prometheus/common/expfmt"

	"github.com/psantana5/mlmon/pkg/models"
)

// Metrics serves the Prometheus text endpoint. Job counts are written
// by hand from the store; the hub's registered collectors are appended
// through the text encoder.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	jobs := s.store.ListJobs()
	byStage := make(map[models.TrainingStage]int)
	for _, job := range jobs {
		byStage[job.CurrentStage]++
	}

	fmt.Fprintf(w, "# HELP mlmon_jobs_total Total training jobs by current stage\n")
	fmt.Fprintf(w, "# TYPE mlmon_jobs_total gauge\n")
	for _, stage := range append(models.WorkStages(), models.StageComplete, models.StageFailed) {
		fmt.Fprintf(w, "mlmon_jobs_total{stage=\"%s\"} %d\n", stage, byStage[stage])
	}

	snap := s.hub.LastSnapshot()
	if !snap.IsZero() {
		fmt.Fprintf(w, "\n# HELP mlmon_host_cpu_percent Last sampled host CPU utilization\n")
		fmt.Fprintf(w, "# TYPE mlmon_host_cpu_percent gauge\n")
		fmt.Fprintf(w, "mlmon_host_cpu_percent %.2f\n", snap.CPUPercent)

		fmt.Fprintf(w, "\n# HELP mlmon_host_memory_percent Last sampled host memory utilization\n")
		fmt.Fprintf(w, "# TYPE mlmon_host_memory_percent gauge\n")
		fmt.Fprintf(w, "mlmon_host_memory_percent %.2f\n", snap.MemoryPercent)

		fmt.Fprintf(w, "\n# HELP mlmon_host_memory_used_mb Last sampled host memory in use\n")
		fmt.Fprintf(w, "# TYPE mlmon_host_memory_used_mb gauge\n")
		fmt.Fprintf(w, "mlmon_host_memory_used_mb %.2f\n", snap.MemoryUsedMB)

		fmt.Fprintf(w, "\n# HELP mlmon_host_process_count Last sampled host process count\n")
		fmt.Fprintf(w, "# TYPE mlmon_host_process_count gauge\n")
		fmt.Fprintf(w, "mlmon_host_process_count %d\n", snap.ProcessCount)
	}

	fmt.Fprintf(w, "\n")

	metricFamilies, err := s.hub.Registry().Gather()
	if err != nil {
		fmt.Fprintf(w, "# Error gathering registered metrics: %v\n", err)
		return
	}

	var buf bytes.Buffer
	encoder := expfmt.NewEncoder(&buf, expfmt.FmtText)
	for _, mf := range metricFamilies {
		if err := encoder.Encode(mf); err != nil {
			fmt.Fprintf(w, "# Error encoding metric %s: %v\n", mf.GetName(), err)
		}
	}
	w.Write(buf.Bytes())
}
