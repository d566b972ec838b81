package models

import (
	"time"
)

// MetricSnapshot is one atomic reading of host resource metrics.
// All fields are captured in a single sampling call; a snapshot is never
// mutated after creation.
type MetricSnapshot struct {
	Timestamp     time.Time `json:"timestamp"`
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
	MemoryUsedMB  float64   `json:"memory_used_mb"`
	DiskPercent   float64   `json:"disk_percent"`
	ProcessCount  int       `json:"process_count"`
}

// IsZero reports whether the snapshot has never been populated.
func (s MetricSnapshot) IsZero() bool {
	return s.Timestamp.IsZero()
}

// Valid reports whether all fields are inside their documented ranges.
func (s MetricSnapshot) Valid() bool {
	if s.Timestamp.IsZero() {
		return false
	}
	if s.CPUPercent < 0 || s.CPUPercent > 100 {
		return false
	}
	if s.MemoryPercent < 0 || s.MemoryPercent > 100 {
		return false
	}
	if s.DiskPercent < 0 || s.DiskPercent > 100 {
		return false
	}
	if s.MemoryUsedMB < 0 || s.ProcessCount < 0 {
		return false
	}
	return true
}
