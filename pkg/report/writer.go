package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/psantana5/mlmon/pkg/logging"
	"github.com/psantana5/mlmon/pkg/models"
)

// Writer persists run summaries as JSON files for later inspection
type Writer struct {
	outputDir string
	logger    *logging.Logger
}

// NewWriter creates a writer targeting outputDir
func NewWriter(outputDir string, logger *logging.Logger) *Writer {
	if outputDir != "" {
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			logger.Warn("failed to create results directory", map[string]interface{}{
				"dir":   outputDir,
				"error": err.Error(),
			})
		}
	}
	return &Writer{outputDir: outputDir, logger: logger}
}

// WriteRun writes one run summary to a timestamped JSON file and returns
// its path. A writer with no output directory configured is a no-op.
func (w *Writer) WriteRun(summary *models.RunSummary) (string, error) {
	if w.outputDir == "" {
		return "", nil
	}

	filename := fmt.Sprintf("loadtest_%s.json", time.Now().Format("20060102_150405"))
	path := filepath.Join(w.outputDir, filename)

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal run summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write run summary: %w", err)
	}

	w.logger.Info("run summary written", map[string]interface{}{"path": path})
	return path, nil
}
