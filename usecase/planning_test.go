package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/reelforge/reelforge/domains/identity"
	domainIntegration "github.com/reelforge/reelforge/domains/integration"
	domainJob "github.com/reelforge/reelforge/domains/job"
	domainPlanning "github.com/reelforge/reelforge/domains/planning"
	domainQuota "github.com/reelforge/reelforge/domains/quota"
	"github.com/reelforge/reelforge/pipeline"
	pkgError "github.com/reelforge/reelforge/pkg/error"
	"github.com/reelforge/reelforge/pkg/jobpool"
	"github.com/reelforge/reelforge/pkg/timeutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeVideoRepo is an in-memory IVideoRepository used across usecase tests.
type fakeVideoRepo struct {
	mu     sync.Mutex
	videos map[string]domainJob.Video
}

func newFakeVideoRepo(vs ...domainJob.Video) *fakeVideoRepo {
	r := &fakeVideoRepo{videos: make(map[string]domainJob.Video)}
	for _, v := range vs {
		r.videos[v.ID] = v
	}
	return r
}

func (r *fakeVideoRepo) Init(_ context.Context) error { return nil }

func (r *fakeVideoRepo) Create(_ context.Context, v domainJob.Video) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.videos[v.ID] = v
	return nil
}

func (r *fakeVideoRepo) CreateBatch(ctx context.Context, vs []domainJob.Video) error {
	for _, v := range vs {
		if err := r.Create(ctx, v); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeVideoRepo) GetByID(_ context.Context, id string) (domainJob.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.videos[id]
	if !ok {
		return domainJob.Video{}, pkgError.NotFoundError("job not found")
	}
	return v, nil
}

func (r *fakeVideoRepo) GetForUser(ctx context.Context, userID, id string) (domainJob.Video, error) {
	v, err := r.GetByID(ctx, id)
	if err != nil || v.UserID != userID {
		return domainJob.Video{}, pkgError.NotFoundError("job not found")
	}
	return v, nil
}

func (r *fakeVideoRepo) Update(_ context.Context, v domainJob.Video) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.videos[v.ID] = v
	return nil
}

func (r *fakeVideoRepo) Delete(ctx context.Context, userID, id string) error {
	if _, err := r.GetForUser(ctx, userID, id); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.videos, id)
	return nil
}

func (r *fakeVideoRepo) ListPlanned(_ context.Context, userID string, filters domainPlanning.ListFilters) ([]domainJob.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domainJob.Video
	for _, v := range r.videos {
		if v.UserID != userID || !v.Planned() {
			continue
		}
		if filters.PlanningStatus != "" && string(v.PlanningStatus) != filters.PlanningStatus {
			continue
		}
		if filters.SeriesName != "" && v.SeriesName != filters.SeriesName {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *fakeVideoRepo) ListBySeries(_ context.Context, userID, seriesName string) ([]domainJob.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domainJob.Video
	for _, v := range r.videos {
		if v.UserID == userID && v.SeriesName == seriesName {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *fakeVideoRepo) ListDue(_ context.Context, horizon time.Time, _ int) ([]domainJob.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domainJob.Video
	for _, v := range r.videos {
		if v.PlanningStatus == domainJob.PlanningPlanned && v.ScheduledPostTime != nil && v.ScheduledPostTime.Before(horizon) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *fakeVideoRepo) ListRange(_ context.Context, userID string, start, end time.Time) ([]domainJob.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domainJob.Video
	for _, v := range r.videos {
		if v.UserID != userID || v.ScheduledPostTime == nil {
			continue
		}
		if timeutils.InRange(v.ScheduledPostTime.UTC(), start, end) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *fakeVideoRepo) ListExpired(_ context.Context, now time.Time, _ int) ([]domainJob.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domainJob.Video
	for _, v := range r.videos {
		if v.ExpiresAt != nil && v.ExpiresAt.Before(now) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *fakeVideoRepo) MarkGenerating(_ context.Context, id string, force bool, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.videos[id]
	if !ok {
		return false, nil
	}
	armed := v.PlanningStatus == domainJob.PlanningPlanned ||
		(force && v.PlanningStatus == domainJob.PlanningGenerating)
	if !armed {
		return false, nil
	}
	v.PlanningStatus = domainJob.PlanningGenerating
	v.GenerationTriggeredAt = &at
	r.videos[id] = v
	return true, nil
}

// --- helpers ---

func suggestionNamed(title string) domainJob.Suggestion {
	return domainJob.Suggestion{Title: title, RecommendedPlatforms: []string{"tiktok"}}
}

var planningUser = identity.User{ID: "user-1", Tier: identity.TierFree}

func planningForTest(repo *fakeVideoRepo) domainPlanning.IPlanningUsecase {
	return NewPlanningService(repo, nil, nil, time.Hour)
}

func TestPlanning_ScheduleSingle_LeadTimeRejected(t *testing.T) {
	svc := planningForTest(newFakeVideoRepo())

	_, err := svc.ScheduleSingle(context.Background(), planningUser, domainPlanning.ScheduleSingleRequest{
		Suggestion:        suggestionNamed("Too soon"),
		ScheduledPostTime: time.Now().UTC().Add(30 * time.Minute),
	})
	require.Error(t, err)

	var validationErr pkgError.ValidationError
	assert.ErrorAs(t, err, &validationErr)
	assert.Contains(t, err.Error(), "lead time")
}

func TestPlanning_ScheduleSingle_CreatesPlannedJob(t *testing.T) {
	repo := newFakeVideoRepo()
	svc := planningForTest(repo)

	at := time.Now().UTC().Add(3 * time.Hour)
	v, err := svc.ScheduleSingle(context.Background(), planningUser, domainPlanning.ScheduleSingleRequest{
		Suggestion:        suggestionNamed("Ocean currents"),
		ScheduledPostTime: at,
	})
	require.NoError(t, err)

	assert.Equal(t, domainJob.StatusPending, v.Status)
	assert.Equal(t, domainJob.PlanningPlanned, v.PlanningStatus)
	require.NotNil(t, v.ScheduledPostTime)
	assert.True(t, v.ScheduledPostTime.Equal(at))
	// platforms fall back to the suggestion's recommendation
	assert.Equal(t, []string{"tiktok"}, v.TargetPlatforms)

	stored, err := repo.GetByID(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, domainJob.PlanningPlanned, stored.PlanningStatus)
}

func TestPlanning_CreateSeries_OrderFollowsPostTime(t *testing.T) {
	repo := newFakeVideoRepo()
	svc := planningForTest(repo)

	base := time.Now().UTC().Add(24 * time.Hour)
	// schedule deliberately out of chronological order
	result, err := svc.CreateSeries(context.Background(), planningUser, domainPlanning.CreateSeriesRequest{
		SeriesName:  "Deep Sea",
		Suggestions: []domainJob.Suggestion{suggestionNamed("Part A"), suggestionNamed("Part B"), suggestionNamed("Part C")},
		Schedule: []domainPlanning.SeriesItem{
			{SuggestionIndex: 0, ScheduledPostTime: base.Add(48 * time.Hour)},
			{SuggestionIndex: 1, ScheduledPostTime: base},
			{SuggestionIndex: 2, ScheduledPostTime: base.Add(24 * time.Hour)},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Created, 3)
	assert.Empty(t, result.Rejected)

	// series order 0..2 follows ascending post time, not input order
	titles := []string{}
	for i, v := range result.Created {
		require.NotNil(t, v.SeriesOrder)
		assert.Equal(t, i, *v.SeriesOrder)
		assert.Equal(t, "Deep Sea", v.SeriesName)
		assert.Equal(t, planningUser.Tier, v.UserTier)
		titles = append(titles, v.Title)
	}
	assert.Equal(t, []string{"Part B", "Part C", "Part A"}, titles)
}

func TestPlanning_CreateSeries_PartialSuccess(t *testing.T) {
	repo := newFakeVideoRepo()
	svc := planningForTest(repo)

	now := time.Now().UTC()
	slot := now.Add(24 * time.Hour)
	result, err := svc.CreateSeries(context.Background(), planningUser, domainPlanning.CreateSeriesRequest{
		SeriesName:  "Deep Sea",
		Suggestions: []domainJob.Suggestion{suggestionNamed("Part A"), suggestionNamed("Part B")},
		Schedule: []domainPlanning.SeriesItem{
			{SuggestionIndex: 0, ScheduledPostTime: slot},
			{SuggestionIndex: 1, ScheduledPostTime: slot},                      // duplicate slot
			{SuggestionIndex: 7, ScheduledPostTime: now.Add(48 * time.Hour)},   // bad index
			{SuggestionIndex: 1, ScheduledPostTime: now.Add(10 * time.Minute)}, // violates lead
		},
	})
	require.NoError(t, err)

	require.Len(t, result.Created, 1)
	assert.Equal(t, "Part A", result.Created[0].Title)
	require.Len(t, result.Rejected, 3)

	reasons := map[int]string{}
	for _, rej := range result.Rejected {
		reasons[rej.SuggestionIndex] = rej.Reason
	}
	assert.Contains(t, reasons[7], "out of range")
	assert.Contains(t, reasons[1], "duplicate")
}

func TestPlanning_CreateSeries_AppendContinuesNumbering(t *testing.T) {
	two := 2
	existing := domainJob.Video{
		ID:             "existing",
		UserID:         "user-1",
		Title:          "Part B",
		PlanningStatus: domainJob.PlanningPosted,
		SeriesName:     "Deep Sea",
		SeriesOrder:    &two,
	}
	repo := newFakeVideoRepo(existing)
	svc := planningForTest(repo)

	result, err := svc.CreateSeries(context.Background(), planningUser, domainPlanning.CreateSeriesRequest{
		SeriesName:  "Deep Sea",
		Suggestions: []domainJob.Suggestion{suggestionNamed("Part C")},
		Schedule: []domainPlanning.SeriesItem{
			{SuggestionIndex: 0, ScheduledPostTime: time.Now().UTC().Add(24 * time.Hour)},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Created, 1)
	require.NotNil(t, result.Created[0].SeriesOrder)
	assert.Equal(t, 3, *result.Created[0].SeriesOrder)
}

func TestPlanning_CreateMonthlyPlan_PlanTypes(t *testing.T) {
	month := time.Now().UTC().AddDate(0, 2, 0)
	monthKey := month.Format("2006-01")
	monthStart := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)

	makeRequest := func(planType domainPlanning.PlanType, items []domainPlanning.MonthlyItem) domainPlanning.CreateMonthlyPlanRequest {
		return domainPlanning.CreateMonthlyPlanRequest{
			Name:        "September push",
			Month:       monthKey,
			PlanType:    planType,
			Suggestions: []domainJob.Suggestion{suggestionNamed("One"), suggestionNamed("Two")},
			Schedule:    items,
		}
	}

	t.Run("variety drops series grouping", func(t *testing.T) {
		svc := planningForTest(newFakeVideoRepo())
		result, err := svc.CreateMonthlyPlan(context.Background(), planningUser, makeRequest(domainPlanning.PlanTypeVariety,
			[]domainPlanning.MonthlyItem{
				{SuggestionIndex: 0, ScheduledPostTime: monthStart.Add(24 * time.Hour), SeriesName: "ignored"},
			}))
		require.NoError(t, err)
		require.Len(t, result.Created, 1)
		assert.Empty(t, result.Created[0].SeriesName)
		assert.Nil(t, result.Created[0].SeriesOrder)
	})

	t.Run("single series uses the plan name", func(t *testing.T) {
		svc := planningForTest(newFakeVideoRepo())
		result, err := svc.CreateMonthlyPlan(context.Background(), planningUser, makeRequest(domainPlanning.PlanTypeSingleSeries,
			[]domainPlanning.MonthlyItem{
				{SuggestionIndex: 0, ScheduledPostTime: monthStart.Add(24 * time.Hour)},
				{SuggestionIndex: 1, ScheduledPostTime: monthStart.Add(48 * time.Hour)},
			}))
		require.NoError(t, err)
		require.Len(t, result.Created, 2)
		for i, v := range result.Created {
			assert.Equal(t, "September push", v.SeriesName)
			require.NotNil(t, v.SeriesOrder)
			assert.Equal(t, i, *v.SeriesOrder)
		}
	})

	t.Run("slots outside the month are rejected", func(t *testing.T) {
		svc := planningForTest(newFakeVideoRepo())
		result, err := svc.CreateMonthlyPlan(context.Background(), planningUser, makeRequest(domainPlanning.PlanTypeVariety,
			[]domainPlanning.MonthlyItem{
				{SuggestionIndex: 0, ScheduledPostTime: monthStart.Add(24 * time.Hour)},
				{SuggestionIndex: 1, ScheduledPostTime: monthStart.AddDate(0, 1, 2)},
			}))
		require.NoError(t, err)
		assert.Len(t, result.Created, 1)
		require.Len(t, result.Rejected, 1)
		assert.Contains(t, result.Rejected[0].Reason, "outside")
	})

	t.Run("a suggestion is planned at most once per batch", func(t *testing.T) {
		svc := planningForTest(newFakeVideoRepo())
		result, err := svc.CreateMonthlyPlan(context.Background(), planningUser, makeRequest(domainPlanning.PlanTypeVariety,
			[]domainPlanning.MonthlyItem{
				{SuggestionIndex: 0, ScheduledPostTime: monthStart.Add(24 * time.Hour)},
				{SuggestionIndex: 0, ScheduledPostTime: monthStart.Add(48 * time.Hour)},
			}))
		require.NoError(t, err)
		require.Len(t, result.Created, 1)
		require.Len(t, result.Rejected, 1)
		assert.Contains(t, result.Rejected[0].Reason, "already used")
	})

	t.Run("multiple series requires per-item names", func(t *testing.T) {
		svc := planningForTest(newFakeVideoRepo())
		_, err := svc.CreateMonthlyPlan(context.Background(), planningUser, makeRequest(domainPlanning.PlanTypeMultipleSeries,
			[]domainPlanning.MonthlyItem{
				{SuggestionIndex: 0, ScheduledPostTime: monthStart.Add(24 * time.Hour)},
			}))
		var validationErr pkgError.ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})
}

func TestPlanning_UpdatePlanned_FrozenOnceGenerating(t *testing.T) {
	at := time.Now().UTC().Add(3 * time.Hour)
	repo := newFakeVideoRepo(domainJob.Video{
		ID: "job-1", UserID: "user-1", Title: "Old title",
		Status: domainJob.StatusGeneratingScript, PlanningStatus: domainJob.PlanningGenerating,
		ScheduledPostTime: &at,
	})
	svc := planningForTest(repo)

	title := "New title"
	_, err := svc.UpdatePlanned(context.Background(), "user-1", "job-1", domainPlanning.UpdatePlannedRequest{Title: &title})
	var validationErr pkgError.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestPlanning_Reschedule(t *testing.T) {
	now := time.Now().UTC()
	at := now.Add(3 * time.Hour)

	t.Run("planned keeps the lead time", func(t *testing.T) {
		repo := newFakeVideoRepo(domainJob.Video{
			ID: "job-1", UserID: "user-1", Status: domainJob.StatusPending,
			PlanningStatus: domainJob.PlanningPlanned, ScheduledPostTime: &at,
		})
		svc := planningForTest(repo)

		_, err := svc.Reschedule(context.Background(), "user-1", "job-1", now.Add(10*time.Minute))
		var validationErr pkgError.ValidationError
		assert.ErrorAs(t, err, &validationErr)

		v, err := svc.Reschedule(context.Background(), "user-1", "job-1", now.Add(5*time.Hour))
		require.NoError(t, err)
		assert.True(t, v.ScheduledPostTime.Equal(now.Add(5*time.Hour)))
	})

	t.Run("ready accepts any future slot", func(t *testing.T) {
		repo := newFakeVideoRepo(domainJob.Video{
			ID: "job-2", UserID: "user-1", Status: domainJob.StatusCompleted,
			PlanningStatus: domainJob.PlanningReady, ScheduledPostTime: &at,
		})
		svc := planningForTest(repo)

		v, err := svc.Reschedule(context.Background(), "user-1", "job-2", now.Add(10*time.Minute))
		require.NoError(t, err)
		assert.True(t, v.ScheduledPostTime.Equal(now.Add(10*time.Minute)))
	})

	t.Run("posted is frozen", func(t *testing.T) {
		repo := newFakeVideoRepo(domainJob.Video{
			ID: "job-3", UserID: "user-1", Status: domainJob.StatusCompleted,
			PlanningStatus: domainJob.PlanningPosted, ScheduledPostTime: &at,
		})
		svc := planningForTest(repo)

		_, err := svc.Reschedule(context.Background(), "user-1", "job-3", now.Add(5*time.Hour))
		var validationErr pkgError.ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})
}

func TestPlanning_ReportPostResult(t *testing.T) {
	t.Run("success settles as posted", func(t *testing.T) {
		repo := newFakeVideoRepo(domainJob.Video{
			ID: "job-1", UserID: "user-1", Status: domainJob.StatusCompleted,
			PlanningStatus: domainJob.PlanningReady,
		})
		svc := planningForTest(repo)

		v, err := svc.ReportPostResult(context.Background(), "job-1", domainPlanning.PostResultRequest{Success: true})
		require.NoError(t, err)
		assert.Equal(t, domainJob.PlanningPosted, v.PlanningStatus)
		assert.NotNil(t, v.PostedAt)
	})

	t.Run("failure records the detail", func(t *testing.T) {
		repo := newFakeVideoRepo(domainJob.Video{
			ID: "job-2", UserID: "user-1", Status: domainJob.StatusCompleted,
			PlanningStatus: domainJob.PlanningPosting,
		})
		svc := planningForTest(repo)

		v, err := svc.ReportPostResult(context.Background(), "job-2", domainPlanning.PostResultRequest{
			Success: false, Detail: "platform rejected the upload",
		})
		require.NoError(t, err)
		assert.Equal(t, domainJob.PlanningFailed, v.PlanningStatus)
		assert.Equal(t, "platform rejected the upload", v.ErrorMessage)
	})

	t.Run("only ready or posting jobs accept results", func(t *testing.T) {
		repo := newFakeVideoRepo(domainJob.Video{
			ID: "job-3", UserID: "user-1", Status: domainJob.StatusPending,
			PlanningStatus: domainJob.PlanningPlanned,
		})
		svc := planningForTest(repo)

		_, err := svc.ReportPostResult(context.Background(), "job-3", domainPlanning.PostResultRequest{Success: true})
		var validationErr pkgError.ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})
}

// --- engine-backed trigger tests ---

type noopQuotaGate struct{}

func (noopQuotaGate) CheckAndReserve(_ context.Context, _ identity.User) (domainQuota.Quota, error) {
	return domainQuota.Quota{Unlimited: true}, nil
}
func (noopQuotaGate) Release(_ context.Context, _ string, _ time.Time) error { return nil }

// tierQuotaGate grants only unlimited tiers, modeling a free allowance
// that is already used up.
type tierQuotaGate struct{}

func (tierQuotaGate) CheckAndReserve(_ context.Context, user identity.User) (domainQuota.Quota, error) {
	if user.Tier.Unlimited() {
		return domainQuota.Quota{Unlimited: true}, nil
	}
	return domainQuota.Quota{}, pkgError.QuotaExceededError("daily generation limit reached")
}
func (tierQuotaGate) Release(_ context.Context, _ string, _ time.Time) error { return nil }

type syncDispatcher struct{}

func (syncDispatcher) TryDispatch(pj jobpool.PipelineJob) bool {
	_ = pj.Handler(context.Background())
	return true
}

type staticResolver struct{ provider string }

func (r staticResolver) Resolve(_ context.Context, _ string, category domainIntegration.Category) (domainIntegration.Integration, error) {
	return domainIntegration.Integration{Provider: r.provider, Category: category, Valid: true, Active: true}, nil
}
func (r staticResolver) ResolveNamed(_ context.Context, _ string, category domainIntegration.Category, provider string) (domainIntegration.Integration, error) {
	return domainIntegration.Integration{Provider: provider, Category: category, Valid: true, Active: true}, nil
}

func TestPlanning_TriggerGenerateNow_Guarded(t *testing.T) {
	at := time.Now().UTC().Add(3 * time.Hour)
	repo := newFakeVideoRepo(domainJob.Video{
		ID: "job-1", UserID: "user-1", UserTier: identity.TierPremium, Title: "Planned",
		Status: domainJob.StatusPending, PlanningStatus: domainJob.PlanningPlanned,
		ScheduledPostTime: &at,
	})

	engine := pipeline.NewEngine(repo, noopQuotaGate{}, staticResolver{provider: "primary"}, syncDispatcher{}, 48*time.Hour, 1)
	engine.RegisterInvoker("primary", pipeline.InvokerFunc(func(_ context.Context, _ pipeline.Stage, _ domainIntegration.Integration, _ *domainJob.Video) error {
		return nil
	}))
	svc := NewPlanningService(repo, engine, nil, time.Hour)

	v, err := svc.TriggerGenerateNow(context.Background(), "user-1", "job-1", false)
	require.NoError(t, err)
	assert.Equal(t, domainJob.PlanningGenerating, v.PlanningStatus)
	assert.NotNil(t, v.GenerationTriggeredAt)

	// pipeline ran synchronously to completion
	final, err := repo.GetByID(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, domainJob.StatusCompleted, final.Status)
	assert.Equal(t, domainJob.PlanningReady, final.PlanningStatus)

	// the guarded transition rejects a second trigger
	_, err = svc.TriggerGenerateNow(context.Background(), "user-1", "job-1", false)
	var concurrentErr pkgError.ConcurrentTriggerError
	assert.ErrorAs(t, err, &concurrentErr)
}

func TestPlanning_ScheduleSingle_SnapshotsCallerTier(t *testing.T) {
	repo := newFakeVideoRepo()
	engine := pipeline.NewEngine(repo, tierQuotaGate{}, staticResolver{provider: "primary"}, syncDispatcher{}, 48*time.Hour, 1)
	engine.RegisterInvoker("primary", pipeline.InvokerFunc(func(_ context.Context, _ pipeline.Stage, _ domainIntegration.Integration, _ *domainJob.Video) error {
		return nil
	}))
	svc := NewPlanningService(repo, engine, nil, time.Hour)

	premium := identity.User{ID: "user-premium", Tier: identity.TierPremium}
	v, err := svc.ScheduleSingle(context.Background(), premium, domainPlanning.ScheduleSingleRequest{
		Suggestion:        suggestionNamed("Premium clip"),
		ScheduledPostTime: time.Now().UTC().Add(3 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, identity.TierPremium, v.UserTier)

	// The sweep charges quota from the stored snapshot, not from the
	// request context. With the free allowance exhausted, only the
	// snapshotted premium tier lets the run through.
	armed, err := repo.MarkGenerating(context.Background(), v.ID, false, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, armed)

	stored, err := repo.GetByID(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, identity.TierPremium, stored.UserTier)
	require.NoError(t, engine.StartPipeline(context.Background(), stored, pipeline.StartOptions{}))

	final, err := repo.GetByID(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, domainJob.StatusCompleted, final.Status)
	assert.Equal(t, domainJob.PlanningReady, final.PlanningStatus)
}

// --- action card dispatch ---

type recordingJobUsecase struct {
	created []domainJob.CreateJobRequest
}

func (r *recordingJobUsecase) Create(_ context.Context, _ identity.User, request domainJob.CreateJobRequest) (domainJob.Video, error) {
	r.created = append(r.created, request)
	return domainJob.Video{ID: "created-job", Title: request.Title, Status: domainJob.StatusPending}, nil
}
func (r *recordingJobUsecase) GetStatus(_ context.Context, _, _ string) (domainJob.Video, error) {
	return domainJob.Video{}, nil
}
func (r *recordingJobUsecase) Retry(_ context.Context, _ identity.User, _ string, _ domainJob.RetryJobRequest) (domainJob.Video, error) {
	return domainJob.Video{}, nil
}
func (r *recordingJobUsecase) Cancel(_ context.Context, _, _ string) error { return nil }

func TestPlanning_ApplyActionCard(t *testing.T) {
	user := identity.User{ID: "user-1", Tier: identity.TierFree}

	t.Run("single_video routes through job creation", func(t *testing.T) {
		jobs := &recordingJobUsecase{}
		svc := NewPlanningService(newFakeVideoRepo(), nil, jobs, time.Hour)

		result, err := svc.ApplyActionCard(context.Background(), user, domainPlanning.ActionCard{
			Type:        domainPlanning.ActionCardSingleVideo,
			SingleVideo: &domainJob.CreateJobRequest{Title: "Right now"},
		})
		require.NoError(t, err)
		require.Len(t, result.Created, 1)
		require.Len(t, jobs.created, 1)
		assert.Equal(t, "Right now", jobs.created[0].Title)
	})

	t.Run("schedule card plans a job", func(t *testing.T) {
		repo := newFakeVideoRepo()
		svc := NewPlanningService(repo, nil, nil, time.Hour)

		result, err := svc.ApplyActionCard(context.Background(), user, domainPlanning.ActionCard{
			Type: domainPlanning.ActionCardSchedule,
			Schedule: &domainPlanning.ScheduleSingleRequest{
				Suggestion:        suggestionNamed("Planned clip"),
				ScheduledPostTime: time.Now().UTC().Add(4 * time.Hour),
			},
		})
		require.NoError(t, err)
		require.Len(t, result.Created, 1)
		assert.Equal(t, domainJob.PlanningPlanned, result.Created[0].PlanningStatus)
	})

	t.Run("two payloads are rejected", func(t *testing.T) {
		svc := NewPlanningService(newFakeVideoRepo(), nil, nil, time.Hour)

		_, err := svc.ApplyActionCard(context.Background(), user, domainPlanning.ActionCard{
			Type:        domainPlanning.ActionCardSingleVideo,
			SingleVideo: &domainJob.CreateJobRequest{Title: "A"},
			Schedule:    &domainPlanning.ScheduleSingleRequest{},
		})
		var validationErr pkgError.ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})

	t.Run("payload must match the declared type", func(t *testing.T) {
		svc := NewPlanningService(newFakeVideoRepo(), nil, nil, time.Hour)

		_, err := svc.ApplyActionCard(context.Background(), user, domainPlanning.ActionCard{
			Type:     domainPlanning.ActionCardSeries,
			Schedule: &domainPlanning.ScheduleSingleRequest{},
		})
		var validationErr pkgError.ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})
}
