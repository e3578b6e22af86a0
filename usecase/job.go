package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/reelforge/reelforge/domains/identity"
	domainJob "github.com/reelforge/reelforge/domains/job"
	domainQuota "github.com/reelforge/reelforge/domains/quota"
	"github.com/reelforge/reelforge/pipeline"
	pkgError "github.com/reelforge/reelforge/pkg/error"
	"github.com/reelforge/reelforge/repository"
	"github.com/reelforge/reelforge/validations"
	"github.com/sirupsen/logrus"
)

type serviceJob struct {
	repo   repository.IVideoRepository
	quota  domainQuota.IQuotaUsecase
	engine *pipeline.Engine
}

func NewJobService(repo repository.IVideoRepository, quotaUC domainQuota.IQuotaUsecase, engine *pipeline.Engine) domainJob.IJobUsecase {
	return &serviceJob{repo: repo, quota: quotaUC, engine: engine}
}

// Create registers a job and starts its pipeline run immediately. The quota
// slot is reserved synchronously so an exhausted allowance is reported to
// the caller instead of failing the job later.
func (s *serviceJob) Create(ctx context.Context, user identity.User, request domainJob.CreateJobRequest) (domainJob.Video, error) {
	if err := validations.ValidateCreateJob(ctx, request); err != nil {
		return domainJob.Video{}, err
	}

	if _, err := s.quota.CheckAndReserve(ctx, user); err != nil {
		return domainJob.Video{}, err
	}

	title := request.Title
	if title == "" && request.Suggestion != nil {
		title = request.Suggestion.Title
	}

	v := domainJob.Video{
		ID:                 uuid.NewString(),
		UserID:             user.ID,
		UserTier:           user.Tier,
		Title:              title,
		Topic:              request.Topic,
		CustomInstructions: request.CustomInstructions,
		TemplateID:         request.TemplateID,
		Status:             domainJob.StatusPending,
		PlanningStatus:     domainJob.PlanningNone,
		Suggestion:         request.Suggestion,
		CreatedAt:          time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, v); err != nil {
		_ = s.quota.Release(ctx, user.ID, time.Now().UTC())
		return domainJob.Video{}, err
	}

	if err := s.engine.StartPipeline(ctx, v, pipeline.StartOptions{QuotaReserved: true}); err != nil {
		_ = s.quota.Release(ctx, user.ID, time.Now().UTC())
		return domainJob.Video{}, err
	}

	logrus.Infof("[JOB] Created job %s for user %s", v.ID, user.ID)
	return v, nil
}

func (s *serviceJob) GetStatus(ctx context.Context, userID, jobID string) (domainJob.Video, error) {
	return s.repo.GetForUser(ctx, userID, jobID)
}

// Retry re-enters a failed job at its failing stage. A bare retry keeps the
// provider and is capped; supplying a different provider resets the count
// and clears only that stage's artifact.
func (s *serviceJob) Retry(ctx context.Context, user identity.User, jobID string, request domainJob.RetryJobRequest) (domainJob.Video, error) {
	v, err := s.repo.GetForUser(ctx, user.ID, jobID)
	if err != nil {
		return domainJob.Video{}, err
	}

	decision, err := pipeline.DecideRetry(v, request.Stage, request.Provider, s.engine.BareRetryCap())
	if err != nil {
		return domainJob.Video{}, err
	}

	if err := s.engine.Retry(ctx, v, decision); err != nil {
		return domainJob.Video{}, err
	}
	return s.repo.GetForUser(ctx, user.ID, jobID)
}

// Cancel requests cooperative cancellation of an in-flight run. A pending
// job with no run in flight is failed directly.
func (s *serviceJob) Cancel(ctx context.Context, userID, jobID string) error {
	v, err := s.repo.GetForUser(ctx, userID, jobID)
	if err != nil {
		return err
	}
	if v.Status.Terminal() {
		return pkgError.CancelledError("job is already in a terminal state")
	}

	if s.engine.RequestCancel(jobID) {
		logrus.Infof("[JOB] Cancellation requested for in-flight job %s", jobID)
		return nil
	}

	if v.Status != domainJob.StatusPending {
		// The run finished between the read and the cancel request.
		return pkgError.CancelledError("job has no pipeline run in flight")
	}

	v.Status = domainJob.StatusFailed
	v.ErrorMessage = "cancellation requested by user"
	v.ErrorPayload = &domainJob.ErrorPayload{
		Kind:   domainJob.ErrorKindCancellation,
		Detail: "cancellation requested by user",
	}
	if v.Planned() && v.PlanningStatus == domainJob.PlanningGenerating {
		v.PlanningStatus = domainJob.PlanningFailed
	}
	if err := s.repo.Update(ctx, v); err != nil {
		return err
	}
	if !v.Planned() {
		// The reservation from Create is returned; no stage ever started.
		_ = s.quota.Release(ctx, userID, time.Now().UTC())
	}
	return nil
}
