package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/reelforge/reelforge/domains/identity"
	domainJob "github.com/reelforge/reelforge/domains/job"
	domainPlanning "github.com/reelforge/reelforge/domains/planning"
	"github.com/reelforge/reelforge/pipeline"
	pkgError "github.com/reelforge/reelforge/pkg/error"
	"github.com/reelforge/reelforge/pkg/timeutils"
	"github.com/reelforge/reelforge/repository"
	"github.com/reelforge/reelforge/validations"
	"github.com/sirupsen/logrus"
)

type servicePlanning struct {
	repo   repository.IVideoRepository
	engine *pipeline.Engine
	jobs   domainJob.IJobUsecase
	lead   time.Duration
	wake   func(ctx context.Context)
}

func NewPlanningService(repo repository.IVideoRepository, engine *pipeline.Engine, jobs domainJob.IJobUsecase, lead time.Duration) *servicePlanning {
	return &servicePlanning{repo: repo, engine: engine, jobs: jobs, lead: lead}
}

// SetWakeSignal wires the sweep wake-up, so a freshly planned near-term job
// does not wait out the full sweep interval.
func (s *servicePlanning) SetWakeSignal(fn func(ctx context.Context)) {
	s.wake = fn
}

func (s *servicePlanning) signalWake(ctx context.Context) {
	if s.wake != nil {
		s.wake(ctx)
	}
}

func (s *servicePlanning) ScheduleSingle(ctx context.Context, user identity.User, request domainPlanning.ScheduleSingleRequest) (domainJob.Video, error) {
	if err := validations.ValidateScheduleSingle(ctx, request); err != nil {
		return domainJob.Video{}, err
	}

	now := time.Now().UTC()
	if err := s.checkLead(request.ScheduledPostTime, now); err != nil {
		return domainJob.Video{}, err
	}

	v := s.plannedVideo(user, request.Suggestion, request.ScheduledPostTime, request.Platforms, "", nil, now)
	if err := s.repo.Create(ctx, v); err != nil {
		return domainJob.Video{}, err
	}
	logrus.Infof("[PLANNING] Scheduled job %s for %s", v.ID, request.ScheduledPostTime.Format(time.RFC3339))
	s.signalWake(ctx)
	return v, nil
}

// CreateSeries plans a batch of related videos under one series name.
// Items are validated independently; valid ones are created even when
// others are rejected. Series order follows ascending post time.
func (s *servicePlanning) CreateSeries(ctx context.Context, user identity.User, request domainPlanning.CreateSeriesRequest) (domainPlanning.PlanResult, error) {
	if err := validations.ValidateCreateSeries(ctx, request); err != nil {
		return domainPlanning.PlanResult{}, err
	}

	now := time.Now().UTC()
	items := make([]domainPlanning.MonthlyItem, len(request.Schedule))
	for i, item := range request.Schedule {
		items[i] = domainPlanning.MonthlyItem{
			SuggestionIndex:   item.SuggestionIndex,
			ScheduledPostTime: item.ScheduledPostTime,
			Platforms:         item.Platforms,
			SeriesName:        request.SeriesName,
		}
	}

	// Appending to an existing series continues its numbering.
	base := map[string]int{}
	existing, err := s.repo.ListBySeries(ctx, user.ID, request.SeriesName)
	if err != nil {
		return domainPlanning.PlanResult{}, err
	}
	for _, v := range existing {
		if v.SeriesOrder != nil && *v.SeriesOrder+1 > base[request.SeriesName] {
			base[request.SeriesName] = *v.SeriesOrder + 1
		}
	}

	result := s.planBatch(user, request.Suggestions, items, request.Platforms, now, nil, base)
	if err := s.repo.CreateBatch(ctx, result.Created); err != nil {
		return domainPlanning.PlanResult{}, err
	}
	if len(result.Created) > 0 {
		s.signalWake(ctx)
	}
	return result, nil
}

// CreateMonthlyPlan plans a full month of content. Depending on the plan
// type, items form no series, one series, or several caller-named series.
func (s *servicePlanning) CreateMonthlyPlan(ctx context.Context, user identity.User, request domainPlanning.CreateMonthlyPlanRequest) (domainPlanning.PlanResult, error) {
	if err := validations.ValidateCreateMonthlyPlan(ctx, request); err != nil {
		return domainPlanning.PlanResult{}, err
	}

	monthStart, err := time.Parse("2006-01", request.Month)
	if err != nil {
		return domainPlanning.PlanResult{}, pkgError.ValidationError(fmt.Sprintf("invalid month %q, want YYYY-MM", request.Month))
	}
	monthEnd := monthStart.AddDate(0, 1, 0)

	items := make([]domainPlanning.MonthlyItem, len(request.Schedule))
	copy(items, request.Schedule)
	for i := range items {
		switch request.PlanType {
		case domainPlanning.PlanTypeVariety:
			items[i].SeriesName = ""
		case domainPlanning.PlanTypeSingleSeries:
			items[i].SeriesName = request.Name
		}
	}

	now := time.Now().UTC()
	inMonth := func(t time.Time) error {
		if t.UTC().Before(monthStart) || !t.UTC().Before(monthEnd) {
			return fmt.Errorf("scheduled time falls outside %s", request.Month)
		}
		return nil
	}

	result := s.planBatch(user, request.Suggestions, items, request.Platforms, now, inMonth, nil)
	if err := s.repo.CreateBatch(ctx, result.Created); err != nil {
		return domainPlanning.PlanResult{}, err
	}
	logrus.Infof("[PLANNING] Monthly plan %q created %d jobs, rejected %d", request.Name, len(result.Created), len(result.Rejected))
	if len(result.Created) > 0 {
		s.signalWake(ctx)
	}
	return result, nil
}

// planBatch applies per-item validation with partial success: one bad item
// never sinks the batch. Duplicate post times and reused suggestion
// indices within the batch are rejected, keeping the first occurrence.
func (s *servicePlanning) planBatch(user identity.User, suggestions []domainJob.Suggestion, items []domainPlanning.MonthlyItem, fallbackPlatforms []string, now time.Time, extra func(time.Time) error, baseOrders map[string]int) domainPlanning.PlanResult {
	// Ascending post time determines series order.
	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return items[order[a]].ScheduledPostTime.Before(items[order[b]].ScheduledPostTime)
	})

	var result domainPlanning.PlanResult
	seenTimes := make(map[time.Time]bool)
	seenIndex := make(map[int]bool)
	nextOrder := make(map[string]int)
	for name, n := range baseOrders {
		nextOrder[name] = n
	}

	for _, idx := range order {
		item := items[idx]
		reject := func(reason string) {
			result.Rejected = append(result.Rejected, domainPlanning.RejectedItem{
				SuggestionIndex: item.SuggestionIndex,
				Reason:          reason,
			})
		}

		if item.SuggestionIndex < 0 || item.SuggestionIndex >= len(suggestions) {
			reject(fmt.Sprintf("suggestion index %d out of range", item.SuggestionIndex))
			continue
		}
		if seenIndex[item.SuggestionIndex] {
			reject(fmt.Sprintf("suggestion index %d already used in this batch", item.SuggestionIndex))
			continue
		}
		at := item.ScheduledPostTime.UTC()
		if seenTimes[at] {
			reject("duplicate scheduled post time within the batch")
			continue
		}
		if err := s.checkLead(at, now); err != nil {
			reject(err.Error())
			continue
		}
		if extra != nil {
			if err := extra(at); err != nil {
				reject(err.Error())
				continue
			}
		}
		seenTimes[at] = true
		seenIndex[item.SuggestionIndex] = true

		platforms := item.Platforms
		if len(platforms) == 0 {
			platforms = fallbackPlatforms
		}

		var seriesOrder *int
		if item.SeriesName != "" {
			n := nextOrder[item.SeriesName]
			nextOrder[item.SeriesName] = n + 1
			seriesOrder = &n
		}

		v := s.plannedVideo(user, suggestions[item.SuggestionIndex], at, platforms, item.SeriesName, seriesOrder, now)
		result.Created = append(result.Created, v)
	}
	return result
}

func (s *servicePlanning) plannedVideo(user identity.User, suggestion domainJob.Suggestion, at time.Time, platforms []string, seriesName string, seriesOrder *int, now time.Time) domainJob.Video {
	sugg := suggestion
	if len(platforms) == 0 {
		platforms = sugg.RecommendedPlatforms
	}
	scheduled := at.UTC()
	// The tier is snapshotted so a sweep-triggered run charges quota
	// against the tier the caller had when the job was planned.
	return domainJob.Video{
		ID:                uuid.NewString(),
		UserID:            user.ID,
		UserTier:          user.Tier,
		Title:             sugg.Title,
		Topic:             sugg.Title,
		Status:            domainJob.StatusPending,
		PlanningStatus:    domainJob.PlanningPlanned,
		ScheduledPostTime: &scheduled,
		SeriesName:        seriesName,
		SeriesOrder:       seriesOrder,
		TargetPlatforms:   platforms,
		Suggestion:        &sugg,
		CreatedAt:         now,
	}
}

func (s *servicePlanning) ListPlanned(ctx context.Context, userID string, filters domainPlanning.ListFilters) ([]domainJob.Video, error) {
	return s.repo.ListPlanned(ctx, userID, filters)
}

// UpdatePlanned edits content metadata. Allowed only while the job is
// still planned; once generation starts the brief is frozen.
func (s *servicePlanning) UpdatePlanned(ctx context.Context, userID, jobID string, request domainPlanning.UpdatePlannedRequest) (domainJob.Video, error) {
	v, err := s.repo.GetForUser(ctx, userID, jobID)
	if err != nil {
		return domainJob.Video{}, err
	}
	if v.PlanningStatus != domainJob.PlanningPlanned {
		return domainJob.Video{}, pkgError.ValidationError(fmt.Sprintf(
			"job in planning status %s cannot be edited", v.PlanningStatus))
	}

	if request.Title != nil {
		v.Title = *request.Title
	}
	if len(request.Platforms) > 0 {
		v.TargetPlatforms = request.Platforms
	}
	if request.Suggestion != nil {
		v.Suggestion = request.Suggestion
		if request.Title == nil && request.Suggestion.Title != "" {
			v.Title = request.Suggestion.Title
		}
	}

	if err := s.repo.Update(ctx, v); err != nil {
		return domainJob.Video{}, err
	}
	return v, nil
}

func (s *servicePlanning) DeletePlanned(ctx context.Context, userID, jobID string) error {
	v, err := s.repo.GetForUser(ctx, userID, jobID)
	if err != nil {
		return err
	}
	if v.PlanningStatus == domainJob.PlanningGenerating || s.engine.InFlight(jobID) {
		return pkgError.ValidationError("job is generating and cannot be deleted")
	}
	return s.repo.Delete(ctx, userID, jobID)
}

func (s *servicePlanning) Reschedule(ctx context.Context, userID, jobID string, newTime time.Time) (domainJob.Video, error) {
	v, err := s.repo.GetForUser(ctx, userID, jobID)
	if err != nil {
		return domainJob.Video{}, err
	}

	switch v.PlanningStatus {
	case domainJob.PlanningPlanned:
		// Moving the slot earlier still has to leave room to generate.
		if err := s.checkLead(newTime, time.Now().UTC()); err != nil {
			return domainJob.Video{}, err
		}
	case domainJob.PlanningReady, domainJob.PlanningFailed:
		// Content already exists (or generation is being redone); any
		// future slot is acceptable.
		if newTime.Before(time.Now().UTC()) {
			return domainJob.Video{}, pkgError.ValidationError("new post time must be in the future")
		}
	default:
		return domainJob.Video{}, pkgError.ValidationError(fmt.Sprintf(
			"job in planning status %s cannot be rescheduled", v.PlanningStatus))
	}

	scheduled := newTime.UTC()
	v.ScheduledPostTime = &scheduled
	if err := s.repo.Update(ctx, v); err != nil {
		return domainJob.Video{}, err
	}
	s.signalWake(ctx)
	return v, nil
}

// TriggerGenerateNow starts generation ahead of the scheduled trigger. The
// planned → generating transition is a guarded update so a concurrent
// sweep and a manual trigger cannot both start a run.
func (s *servicePlanning) TriggerGenerateNow(ctx context.Context, userID, jobID string, force bool) (domainJob.Video, error) {
	v, err := s.repo.GetForUser(ctx, userID, jobID)
	if err != nil {
		return domainJob.Video{}, err
	}
	if !v.Planned() {
		return domainJob.Video{}, pkgError.ValidationError("job is not a planned job")
	}

	now := time.Now().UTC()
	armed, err := s.repo.MarkGenerating(ctx, jobID, force, now)
	if err != nil {
		return domainJob.Video{}, err
	}
	if !armed {
		return domainJob.Video{}, pkgError.ConcurrentTriggerError(fmt.Sprintf(
			"job is in planning status %s and cannot start generating", v.PlanningStatus))
	}

	v, err = s.repo.GetByID(ctx, jobID)
	if err != nil {
		return domainJob.Video{}, err
	}
	if err := s.engine.StartPipeline(ctx, v, pipeline.StartOptions{Force: force}); err != nil {
		return domainJob.Video{}, err
	}
	return v, nil
}

// ReportPostResult is the posting callback: it settles a ready/posting job
// as posted or failed.
func (s *servicePlanning) ReportPostResult(ctx context.Context, jobID string, request domainPlanning.PostResultRequest) (domainJob.Video, error) {
	v, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return domainJob.Video{}, err
	}
	if v.PlanningStatus != domainJob.PlanningReady && v.PlanningStatus != domainJob.PlanningPosting {
		return domainJob.Video{}, pkgError.ValidationError(fmt.Sprintf(
			"job in planning status %s cannot accept a post result", v.PlanningStatus))
	}

	if request.Success {
		now := time.Now().UTC()
		v.PlanningStatus = domainJob.PlanningPosted
		v.PostedAt = &now
	} else {
		v.PlanningStatus = domainJob.PlanningFailed
		if request.Detail != "" {
			v.ErrorMessage = request.Detail
		}
	}
	if err := s.repo.Update(ctx, v); err != nil {
		return domainJob.Video{}, err
	}
	return v, nil
}

// ApplyActionCard dispatches one tagged card to the operation matching its
// type. The card is validated as a union before dispatch.
func (s *servicePlanning) ApplyActionCard(ctx context.Context, user identity.User, card domainPlanning.ActionCard) (domainPlanning.PlanResult, error) {
	if err := validations.ValidateActionCard(ctx, card); err != nil {
		return domainPlanning.PlanResult{}, err
	}

	switch card.Type {
	case domainPlanning.ActionCardSingleVideo:
		v, err := s.jobs.Create(ctx, user, *card.SingleVideo)
		if err != nil {
			return domainPlanning.PlanResult{}, err
		}
		return domainPlanning.PlanResult{Created: []domainJob.Video{v}}, nil
	case domainPlanning.ActionCardSchedule:
		v, err := s.ScheduleSingle(ctx, user, *card.Schedule)
		if err != nil {
			return domainPlanning.PlanResult{}, err
		}
		return domainPlanning.PlanResult{Created: []domainJob.Video{v}}, nil
	case domainPlanning.ActionCardSeries:
		return s.CreateSeries(ctx, user, *card.Series)
	case domainPlanning.ActionCardMonthlyPlan:
		return s.CreateMonthlyPlan(ctx, user, *card.MonthlyPlan)
	}
	return domainPlanning.PlanResult{}, pkgError.ValidationError(fmt.Sprintf("unknown action card type %q", card.Type))
}

func (s *servicePlanning) checkLead(at, now time.Time) error {
	if !timeutils.LeadSatisfied(at, now, s.lead) {
		return pkgError.ValidationError(fmt.Sprintf(
			"scheduled post time %s leaves less than the %s generation lead time",
			at.UTC().Format(time.RFC3339), s.lead))
	}
	return nil
}
