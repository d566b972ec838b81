package loadtest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/psantana5/mlmon/pkg/models"
)

// Plan declares the datasets a load-test run exercises, in order
type Plan struct {
	Name     string        `yaml:"name"`
	Datasets []PlanDataset `yaml:"datasets"`
}

// PlanDataset is one dataset entry in a plan file
type PlanDataset struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Rows      int    `yaml:"rows"`
	Columns   int    `yaml:"columns"`
	SizeBytes int64  `yaml:"size_bytes"`
}

// LoadPlan reads and validates a YAML plan file
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}

	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse plan file: %w", err)
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

// Validate checks the plan holds at least one well-formed dataset
func (p *Plan) Validate() error {
	if len(p.Datasets) == 0 {
		return fmt.Errorf("plan declares no datasets")
	}
	seen := make(map[string]bool)
	for i, ds := range p.Datasets {
		if ds.ID == "" {
			return fmt.Errorf("dataset %d has no id", i)
		}
		if seen[ds.ID] {
			return fmt.Errorf("dataset id %s declared twice", ds.ID)
		}
		seen[ds.ID] = true
		if ds.Rows <= 0 {
			return fmt.Errorf("dataset %s has non-positive row count", ds.ID)
		}
	}
	return nil
}

// Descriptors converts the plan entries into dataset descriptors
func (p *Plan) Descriptors() []models.DatasetDescriptor {
	out := make([]models.DatasetDescriptor, 0, len(p.Datasets))
	for _, ds := range p.Datasets {
		out = append(out, models.DatasetDescriptor{
			ID:        ds.ID,
			Name:      ds.Name,
			Rows:      ds.Rows,
			Columns:   ds.Columns,
			SizeBytes: ds.SizeBytes,
		})
	}
	return out
}
