package planning

import (
	"context"
	"time"

	"github.com/reelforge/reelforge/domains/identity"
	"github.com/reelforge/reelforge/domains/job"
)

type PlanType string

const (
	PlanTypeVariety        PlanType = "variety"
	PlanTypeSingleSeries   PlanType = "single_series"
	PlanTypeMultipleSeries PlanType = "multiple_series"
)

type ScheduleSingleRequest struct {
	Suggestion        job.Suggestion `json:"suggestion"`
	ScheduledPostTime time.Time      `json:"scheduled_post_time"`
	Platforms         []string       `json:"platforms"`
}

// SeriesItem maps a suggestion index to a post slot within a series.
type SeriesItem struct {
	SuggestionIndex   int       `json:"suggestion_index"`
	ScheduledPostTime time.Time `json:"scheduled_post_time"`
	Platforms         []string  `json:"platforms,omitempty"`
}

type CreateSeriesRequest struct {
	SeriesName  string           `json:"series_name"`
	Suggestions []job.Suggestion `json:"suggestions"`
	Schedule    []SeriesItem     `json:"schedule"`
	Platforms   []string         `json:"platforms,omitempty"`
}

// MonthlyItem extends SeriesItem with a caller-supplied series grouping,
// used when the plan type is multiple_series.
type MonthlyItem struct {
	SuggestionIndex   int       `json:"suggestion_index"`
	ScheduledPostTime time.Time `json:"scheduled_post_time"`
	Platforms         []string  `json:"platforms,omitempty"`
	SeriesName        string    `json:"series_name,omitempty"`
}

type CreateMonthlyPlanRequest struct {
	Name        string           `json:"name"`
	Month       string           `json:"month"` // "2026-09"
	PlanType    PlanType         `json:"plan_type"`
	Suggestions []job.Suggestion `json:"suggestions"`
	Schedule    []MonthlyItem    `json:"schedule"`
	Platforms   []string         `json:"platforms,omitempty"`
}

// RejectedItem reports one schedule entry that failed validation; the rest
// of the batch is still created.
type RejectedItem struct {
	SuggestionIndex int    `json:"suggestion_index"`
	Reason          string `json:"reason"`
}

type PlanResult struct {
	Created  []job.Video    `json:"created"`
	Rejected []RejectedItem `json:"rejected,omitempty"`
}

type ListFilters struct {
	PlanningStatus string     `query:"planning_status"`
	SeriesName     string     `query:"series_name"`
	From           *time.Time `query:"from"`
	To             *time.Time `query:"to"`
}

type UpdatePlannedRequest struct {
	Title      *string         `json:"title,omitempty"`
	Platforms  []string        `json:"platforms,omitempty"`
	Suggestion *job.Suggestion `json:"suggestion,omitempty"`
}

type PostResultRequest struct {
	Success bool   `json:"success"`
	Detail  string `json:"detail,omitempty"`
}

// ActionCardType discriminates the tagged action-card payload union.
type ActionCardType string

const (
	ActionCardSingleVideo ActionCardType = "single_video"
	ActionCardSeries      ActionCardType = "series"
	ActionCardMonthlyPlan ActionCardType = "monthly_plan"
	ActionCardSchedule    ActionCardType = "schedule"
)

// ActionCard carries exactly one payload matching its Type; validated at
// the planning boundary instead of being trusted as an opaque blob.
type ActionCard struct {
	Type        ActionCardType            `json:"type"`
	SingleVideo *job.CreateJobRequest     `json:"single_video,omitempty"`
	Series      *CreateSeriesRequest      `json:"series,omitempty"`
	MonthlyPlan *CreateMonthlyPlanRequest `json:"monthly_plan,omitempty"`
	Schedule    *ScheduleSingleRequest    `json:"schedule,omitempty"`
}

type IPlanningUsecase interface {
	ScheduleSingle(ctx context.Context, user identity.User, request ScheduleSingleRequest) (job.Video, error)
	CreateSeries(ctx context.Context, user identity.User, request CreateSeriesRequest) (PlanResult, error)
	CreateMonthlyPlan(ctx context.Context, user identity.User, request CreateMonthlyPlanRequest) (PlanResult, error)
	ListPlanned(ctx context.Context, userID string, filters ListFilters) ([]job.Video, error)
	UpdatePlanned(ctx context.Context, userID, jobID string, request UpdatePlannedRequest) (job.Video, error)
	DeletePlanned(ctx context.Context, userID, jobID string) error
	Reschedule(ctx context.Context, userID, jobID string, newTime time.Time) (job.Video, error)
	TriggerGenerateNow(ctx context.Context, userID, jobID string, force bool) (job.Video, error)
	ReportPostResult(ctx context.Context, jobID string, request PostResultRequest) (job.Video, error)
	// ApplyActionCard dispatches one tagged card to the matching operation.
	ApplyActionCard(ctx context.Context, user identity.User, card ActionCard) (PlanResult, error)
}
