package models

import (
	"fmt"
)

// TrainingStage represents one phase of a training job's lifecycle
type TrainingStage string

// Strict stage states for the training FSM
const (
	StageUploading     TrainingStage = "uploading"     // Dataset is being ingested
	StageValidating    TrainingStage = "validating"    // Dataset shape and labels checked
	StagePreprocessing TrainingStage = "preprocessing" // Feature encoding and split
	StageTraining      TrainingStage = "training"      // Model fit
	StageEvaluating    TrainingStage = "evaluating"    // Hold-out accuracy measurement
	StageComplete      TrainingStage = "complete"      // Job finished successfully
	StageFailed        TrainingStage = "failed"        // Job failed permanently
)

// stageSequence is the linear progression of a healthy job. Re-entry or
// skipping is forbidden; the only branch is into StageFailed.
var stageSequence = []TrainingStage{
	StageUploading,
	StageValidating,
	StagePreprocessing,
	StageTraining,
	StageEvaluating,
	StageComplete,
}

// validTransitions maps from-stage to allowed to-stages
var validTransitions = map[TrainingStage]map[TrainingStage]bool{
	StageUploading: {
		StageValidating: true,
		StageFailed:     true,
	},
	StageValidating: {
		StagePreprocessing: true,
		StageFailed:        true,
	},
	StagePreprocessing: {
		StageTraining: true,
		StageFailed:   true,
	},
	StageTraining: {
		StageEvaluating: true,
		StageFailed:     true,
	},
	StageEvaluating: {
		StageComplete: true,
		StageFailed:   true,
	},
	// Terminal stages (no transitions allowed)
	StageComplete: {},
	StageFailed:   {},
}

// ValidateTransition checks if a stage transition is valid
func ValidateTransition(from, to TrainingStage) error {
	allowed, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("unknown source stage: %s", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	return nil
}

// IsTerminalStage returns true if the stage is terminal (no further transitions)
func IsTerminalStage(stage TrainingStage) bool {
	return stage == StageComplete || stage == StageFailed
}

// NextStage returns the stage that follows s in the linear progression.
// ok is false for terminal stages and unknown values.
func NextStage(s TrainingStage) (next TrainingStage, ok bool) {
	for i, stage := range stageSequence {
		if stage == s && i+1 < len(stageSequence) {
			return stageSequence[i+1], true
		}
	}
	return "", false
}

// StageIndex returns the position of s in the linear progression, or -1
// for StageFailed and unknown values. Used to assert ordering in reports.
func StageIndex(s TrainingStage) int {
	for i, stage := range stageSequence {
		if stage == s {
			return i
		}
	}
	return -1
}

// WorkStages returns the stages that carry a work function, in execution
// order. Terminal stages have no associated work.
func WorkStages() []TrainingStage {
	return []TrainingStage{
		StageUploading,
		StageValidating,
		StagePreprocessing,
		StageTraining,
		StageEvaluating,
	}
}
