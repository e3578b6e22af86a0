package pipeline

import (
	"math"

	"github.com/reelforge/reelforge/domains/integration"
	"github.com/reelforge/reelforge/domains/job"
)

// Stage is one of the five sequential pipeline steps. Stages cannot be
// skipped or reordered; the engine walks this list front to back.
type Stage string

const (
	StageScript   Stage = "generating_script"
	StageVoice    Stage = "generating_voice"
	StageMedia    Stage = "fetching_media"
	StageVideo    Stage = "generating_video"
	StageAssembly Stage = "assembling"
)

// Stages is the pipeline in execution order.
var Stages = []Stage{StageScript, StageVoice, StageMedia, StageVideo, StageAssembly}

// Status maps a stage to the job status reported while it runs.
func (s Stage) Status() job.Status {
	return job.Status(s)
}

// Category maps a stage to the provider category that backs it.
func (s Stage) Category() integration.Category {
	switch s {
	case StageScript:
		return integration.CategoryScript
	case StageVoice:
		return integration.CategoryVoice
	case StageMedia:
		return integration.CategoryMedia
	case StageVideo:
		return integration.CategoryVideoAI
	case StageAssembly:
		return integration.CategoryAssembly
	}
	return ""
}

// StageFromName resolves a stage by its wire name.
func StageFromName(name string) (Stage, bool) {
	for _, s := range Stages {
		if string(s) == name {
			return s, true
		}
	}
	return "", false
}

func stageIndex(s Stage) int {
	for i, known := range Stages {
		if known == s {
			return i
		}
	}
	return -1
}

// progressAfter returns the progress value once stage i (zero-based) has
// completed: stage i of n maps to round(100 * (i+1) / n).
func progressAfter(i int) int {
	return int(math.Round(100 * float64(i+1) / float64(len(Stages))))
}
