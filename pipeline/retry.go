package pipeline

import (
	"fmt"

	"github.com/reelforge/reelforge/domains/job"
	pkgError "github.com/reelforge/reelforge/pkg/error"
)

// RetryDecision is the explicit recovery choice for a failed job. Retry
// state lives here rather than inside error strings.
type RetryDecision struct {
	Stage         Stage
	PriorProvider string
	NextProvider  string
	AttemptCount  int
}

// Swap reports whether the decision changes the provider for the stage.
func (d RetryDecision) Swap() bool {
	return d.NextProvider != "" && d.NextProvider != d.PriorProvider
}

// DecideRetry builds the decision for a failed job from its recorded error
// payload and the caller's request. A bare retry is rejected once the cap
// for the current provider is reached; a swap is always accepted.
func DecideRetry(v job.Video, requestedStage, requestedProvider string, bareCap int) (RetryDecision, error) {
	if v.Status != job.StatusFailed {
		return RetryDecision{}, pkgError.ValidationError("only failed jobs can be retried")
	}
	if v.ErrorPayload == nil {
		return RetryDecision{}, pkgError.ValidationError("job has no failure record to retry from")
	}

	stageName := requestedStage
	if stageName == "" {
		stageName = v.ErrorPayload.FailingStage
	}
	if stageName == "" {
		// Pre-stage failures (quota, cancellation before start) restart the
		// whole pipeline from the first stage.
		stageName = string(Stages[0])
	}
	stage, ok := StageFromName(stageName)
	if !ok {
		return RetryDecision{}, pkgError.ValidationError(fmt.Sprintf("unknown stage %q", stageName))
	}

	decision := RetryDecision{
		Stage:         stage,
		PriorProvider: v.ErrorPayload.Provider,
		NextProvider:  requestedProvider,
		AttemptCount:  v.RetryCount,
	}

	if !decision.Swap() && decision.AttemptCount >= bareCap {
		return RetryDecision{}, pkgError.RetryExhaustedError(fmt.Sprintf(
			"retry cap reached for provider %q on stage %s; supply a different provider",
			decision.PriorProvider, stage))
	}
	return decision, nil
}
