package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/reelforge/reelforge/domains/identity"
	"github.com/reelforge/reelforge/domains/integration"
	"github.com/reelforge/reelforge/domains/job"
	"github.com/reelforge/reelforge/domains/quota"
	pkgError "github.com/reelforge/reelforge/pkg/error"
	"github.com/reelforge/reelforge/pkg/jobpool"
	"github.com/sirupsen/logrus"
)

// VideoStore is the slice of persistence the engine needs.
type VideoStore interface {
	GetByID(ctx context.Context, id string) (job.Video, error)
	Update(ctx context.Context, v job.Video) error
}

// QuotaGate charges the daily allowance before the first transition out of
// pending.
type QuotaGate interface {
	CheckAndReserve(ctx context.Context, user identity.User) (quota.Quota, error)
	Release(ctx context.Context, userID string, at time.Time) error
}

// Dispatcher hands a pipeline run to a worker.
type Dispatcher interface {
	TryDispatch(pj jobpool.PipelineJob) bool
}

// Notifier receives lifecycle events for external delivery.
type Notifier interface {
	Emit(ctx context.Context, event string, payload map[string]any)
}

// StartOptions tunes how a pipeline run enters the state machine.
type StartOptions struct {
	// FromStage re-enters mid-pipeline (retry path). Nil starts from the
	// job's current position.
	FromStage *Stage
	// ProviderOverride pins the provider for the entry stage only.
	ProviderOverride string
	// QuotaReserved marks that the caller already charged the quota
	// synchronously (direct job creation).
	QuotaReserved bool
	// Force re-arms a job whose persisted planning state is stuck in
	// generating. Logged as an anomaly; it never bypasses the in-flight
	// registry.
	Force bool
}

// Engine drives generation jobs through the five pipeline stages. All
// trigger sources share StartPipeline, so the at-most-one-run-per-job
// guarantee holds regardless of where the trigger came from.
type Engine struct {
	store     VideoStore
	quota     QuotaGate
	providers ProviderResolver
	pool      Dispatcher
	notifier  Notifier

	invokers map[string]Invoker
	inflight *inflightRegistry

	cancelMu sync.Mutex
	cancels  map[string]struct{}

	retention    time.Duration
	bareRetryCap int

	// OnProgress is called after every persisted status change.
	OnProgress func(v job.Video)
}

func NewEngine(store VideoStore, quotaGate QuotaGate, providers ProviderResolver, pool Dispatcher, retention time.Duration, bareRetryCap int) *Engine {
	return &Engine{
		store:        store,
		quota:        quotaGate,
		providers:    providers,
		pool:         pool,
		invokers:     make(map[string]Invoker),
		inflight:     newInflightRegistry(),
		cancels:      make(map[string]struct{}),
		retention:    retention,
		bareRetryCap: bareRetryCap,
	}
}

// RegisterInvoker binds a provider name to its capability adapter.
func (e *Engine) RegisterInvoker(provider string, invoker Invoker) {
	e.invokers[provider] = invoker
}

func (e *Engine) SetNotifier(n Notifier) {
	e.notifier = n
}

// BareRetryCap exposes the configured same-provider retry limit.
func (e *Engine) BareRetryCap() int {
	return e.bareRetryCap
}

// InFlight reports whether a run is currently executing for the job id.
func (e *Engine) InFlight(id string) bool {
	return e.inflight.InFlight(id)
}

// StartPipeline is the single entry point for every trigger source.
func (e *Engine) StartPipeline(ctx context.Context, v job.Video, opts StartOptions) error {
	if v.Status.Terminal() && opts.FromStage == nil {
		return pkgError.ValidationError("job is already in a terminal state")
	}

	if !e.inflight.Acquire(v.ID) {
		return pkgError.ConcurrentTriggerError(fmt.Sprintf("job %s already has a pipeline run in flight", v.ID))
	}
	if opts.Force {
		logrus.Warnf("[PIPELINE] Force re-trigger for job %s; previous run state is being overridden", v.ID)
	}

	dispatched := e.pool.TryDispatch(jobpool.PipelineJob{
		VideoID: v.ID,
		Handler: func(runCtx context.Context) error {
			return e.runPipeline(runCtx, v.ID, opts)
		},
	})
	if !dispatched {
		e.inflight.Release(v.ID)
		return fmt.Errorf("pipeline worker queue is full, job %s not started", v.ID)
	}
	return nil
}

// Retry re-enters the state machine at the failing stage, reusing every
// artifact produced by earlier stages.
func (e *Engine) Retry(ctx context.Context, v job.Video, decision RetryDecision) error {
	stage := decision.Stage

	provider := decision.NextProvider
	if decision.Swap() {
		// Swapping resets only the failing stage's cached output.
		clearStageArtifact(&v, stage)
		v.RetryCount = 0
	} else {
		if provider == "" {
			provider = decision.PriorProvider
		}
		v.RetryCount++
	}

	v.Status = stage.Status()
	v.CurrentStep = string(stage)
	v.ErrorMessage = ""
	v.ErrorPayload = nil
	if v.Planned() {
		v.PlanningStatus = job.PlanningGenerating
	}
	if err := e.store.Update(ctx, v); err != nil {
		return err
	}

	return e.StartPipeline(ctx, v, StartOptions{
		FromStage:        &stage,
		ProviderOverride: provider,
		QuotaReserved:    true, // quota is charged per attempted generation, not per retry
	})
}

// RequestCancel sets the cooperative cancellation flag for an in-flight
// run. Cancellation cannot interrupt a stage already running; it prevents
// the next one from starting. Returns false when no run is in flight.
func (e *Engine) RequestCancel(id string) bool {
	if !e.inflight.InFlight(id) {
		return false
	}
	e.cancelMu.Lock()
	e.cancels[id] = struct{}{}
	e.cancelMu.Unlock()
	return true
}

func (e *Engine) cancelRequested(id string) bool {
	e.cancelMu.Lock()
	defer e.cancelMu.Unlock()
	_, ok := e.cancels[id]
	return ok
}

func (e *Engine) clearCancel(id string) {
	e.cancelMu.Lock()
	defer e.cancelMu.Unlock()
	delete(e.cancels, id)
}

func (e *Engine) runPipeline(ctx context.Context, id string, opts StartOptions) error {
	defer e.inflight.Release(id)
	defer e.clearCancel(id)

	v, err := e.store.GetByID(ctx, id)
	if err != nil {
		return err
	}

	startIdx := 0
	if opts.FromStage != nil {
		startIdx = stageIndex(*opts.FromStage)
		if startIdx < 0 {
			return fmt.Errorf("unknown re-entry stage %q", *opts.FromStage)
		}
	}

	// Quota is checked once, before the first transition out of pending.
	charged := opts.QuotaReserved
	if v.Status == job.StatusPending && !charged {
		if _, err := e.quota.CheckAndReserve(ctx, identity.User{ID: v.UserID, Tier: v.UserTier}); err != nil {
			var quotaErr pkgError.QuotaExceededError
			if errors.As(err, &quotaErr) {
				e.failJob(ctx, &v, job.ErrorKindQuota, "", "", quotaErr.Error())
				return nil
			}
			return err
		}
		charged = true
	}

	scriptStarted := startIdx > 0

	for i := startIdx; i < len(Stages); i++ {
		stage := Stages[i]

		if e.cancelRequested(id) {
			e.failJob(ctx, &v, job.ErrorKindCancellation, stage, "", "cancellation requested by user")
			e.maybeReleaseQuota(ctx, v, charged, scriptStarted)
			return nil
		}

		provider, err := e.resolveStageProvider(ctx, v.UserID, stage, i == startIdx, opts.ProviderOverride)
		if err != nil {
			e.failJob(ctx, &v, job.ErrorKindNoProvider, stage, "", err.Error())
			e.maybeReleaseQuota(ctx, v, charged, scriptStarted)
			return nil
		}

		v.Status = stage.Status()
		v.CurrentStep = string(stage)
		if err := e.store.Update(ctx, v); err != nil {
			return err
		}
		e.emitProgress(v)

		if stage == StageScript {
			// The quota charge is consumed once generation is attempted.
			scriptStarted = true
		}

		invoker, ok := e.invokers[provider.Provider]
		if !ok {
			e.failJob(ctx, &v, job.ErrorKindStage, stage, provider.Provider,
				fmt.Sprintf("no adapter registered for provider %q", provider.Provider))
			e.maybeReleaseQuota(ctx, v, charged, scriptStarted)
			return nil
		}

		if err := invoker.Invoke(ctx, stage, provider, &v); err != nil {
			e.failJob(ctx, &v, job.ErrorKindStage, stage, provider.Provider, err.Error())
			return nil
		}

		v.Progress = progressAfter(i)
		if err := e.store.Update(ctx, v); err != nil {
			return err
		}
		e.emitProgress(v)
	}

	now := time.Now().UTC()
	expires := now.Add(e.retention)
	v.Status = job.StatusCompleted
	v.Progress = 100
	v.CurrentStep = ""
	v.CompletedAt = &now
	v.ExpiresAt = &expires
	v.VideoURL = v.Artifacts.VideoURL
	v.ThumbnailURL = v.Artifacts.ThumbnailURL
	v.DurationSeconds = v.Artifacts.DurationSeconds
	if v.Planned() && v.PlanningStatus == job.PlanningGenerating {
		v.PlanningStatus = job.PlanningReady
	}
	if err := e.store.Update(ctx, v); err != nil {
		return err
	}
	e.emitProgress(v)
	e.emitEvent(ctx, "job.completed", v)

	logrus.Infof("[PIPELINE] Job %s completed, artifacts expire at %s", v.ID, expires.Format(time.RFC3339))
	return nil
}

func (e *Engine) resolveStageProvider(ctx context.Context, userID string, stage Stage, entryStage bool, override string) (integration.Integration, error) {
	if entryStage && override != "" {
		return e.providers.ResolveNamed(ctx, userID, stage.Category(), override)
	}
	return e.providers.Resolve(ctx, userID, stage.Category())
}

func (e *Engine) failJob(ctx context.Context, v *job.Video, kind job.ErrorKind, stage Stage, provider, detail string) {
	v.Status = job.StatusFailed
	v.CurrentStep = ""
	v.ErrorMessage = detail
	v.ErrorPayload = &job.ErrorPayload{
		Kind:         kind,
		FailingStage: string(stage),
		Provider:     provider,
		Detail:       detail,
	}
	if v.Planned() && v.PlanningStatus == job.PlanningGenerating {
		v.PlanningStatus = job.PlanningFailed
	}
	if err := e.store.Update(ctx, *v); err != nil {
		logrus.WithError(err).Errorf("[PIPELINE] Failed to persist failure for job %s", v.ID)
		return
	}
	e.emitProgress(*v)
	e.emitEvent(ctx, "job.failed", *v)
}

// maybeReleaseQuota returns the reservation when the job failed before the
// script stage started; once an attempt begins the charge is kept.
func (e *Engine) maybeReleaseQuota(ctx context.Context, v job.Video, charged, scriptStarted bool) {
	if !charged || scriptStarted {
		return
	}
	if err := e.quota.Release(ctx, v.UserID, time.Now().UTC()); err != nil {
		logrus.WithError(err).Warnf("[PIPELINE] Failed to release quota for user %s", v.UserID)
	}
}

func (e *Engine) emitProgress(v job.Video) {
	if e.OnProgress != nil {
		e.OnProgress(v)
	}
}

func (e *Engine) emitEvent(ctx context.Context, event string, v job.Video) {
	if e.notifier == nil {
		return
	}
	payload := map[string]any{
		"job_id":   v.ID,
		"user_id":  v.UserID,
		"status":   v.Status,
		"progress": v.Progress,
	}
	if v.ErrorPayload != nil {
		payload["error"] = v.ErrorPayload
	}
	e.notifier.Emit(ctx, event, payload)
}

func clearStageArtifact(v *job.Video, stage Stage) {
	switch stage {
	case StageScript:
		v.Artifacts.Script = ""
	case StageVoice:
		v.Artifacts.VoiceURL = ""
	case StageMedia:
		v.Artifacts.MediaURLs = nil
	case StageVideo:
		v.Artifacts.RenderURL = ""
	case StageAssembly:
		v.Artifacts.VideoURL = ""
		v.Artifacts.ThumbnailURL = ""
	}
}
