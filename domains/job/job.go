package job

import (
	"context"
	"time"

	"github.com/reelforge/reelforge/domains/identity"
)

// Status is the pipeline state of a generation job. Stages advance strictly
// in order; failed is reachable from any non-terminal state.
type Status string

const (
	StatusPending          Status = "pending"
	StatusGeneratingScript Status = "generating_script"
	StatusGeneratingVoice  Status = "generating_voice"
	StatusFetchingMedia    Status = "fetching_media"
	StatusGeneratingVideo  Status = "generating_video"
	StatusAssembling       Status = "assembling"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
)

// Terminal reports whether the status freezes the job.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// PlanningStatus tracks the scheduling lifecycle of a planned job.
type PlanningStatus string

const (
	PlanningNone       PlanningStatus = "none"
	PlanningPlanned    PlanningStatus = "planned"
	PlanningGenerating PlanningStatus = "generating"
	PlanningReady      PlanningStatus = "ready"
	PlanningPosting    PlanningStatus = "posting"
	PlanningPosted     PlanningStatus = "posted"
	PlanningFailed     PlanningStatus = "failed"
)

// ErrorKind labels the failure class recorded on a failed job.
type ErrorKind string

const (
	ErrorKindQuota        ErrorKind = "quota_exceeded"
	ErrorKindNoProvider   ErrorKind = "no_provider_configured"
	ErrorKindStage        ErrorKind = "stage_execution_error"
	ErrorKindCancellation ErrorKind = "cancellation_requested"
)

// ErrorPayload is the structured failure record used by the retry/swap flow.
type ErrorPayload struct {
	Kind         ErrorKind `json:"kind"`
	FailingStage string    `json:"failing_stage,omitempty"`
	Provider     string    `json:"provider,omitempty"`
	Detail       string    `json:"detail"`
}

// Suggestion is the immutable content brief that seeds one job.
type Suggestion struct {
	Title                string   `json:"title"`
	Hook                 string   `json:"hook,omitempty"`
	ScriptOutline        []string `json:"script_outline,omitempty"`
	Hashtags             []string `json:"hashtags,omitempty"`
	DurationSeconds      int      `json:"duration_seconds,omitempty"`
	Tone                 string   `json:"tone,omitempty"`
	TargetAudience       string   `json:"target_audience,omitempty"`
	RecommendedPlatforms []string `json:"recommended_platforms,omitempty"`
}

// Artifacts holds per-stage outputs so retries can resume mid-pipeline.
type Artifacts struct {
	Script          string   `json:"script,omitempty"`
	VoiceURL        string   `json:"voice_url,omitempty"`
	MediaURLs       []string `json:"media_urls,omitempty"`
	RenderURL       string   `json:"render_url,omitempty"`
	VideoURL        string   `json:"video_url,omitempty"`
	ThumbnailURL    string   `json:"thumbnail_url,omitempty"`
	DurationSeconds int      `json:"duration_seconds,omitempty"`
}

// Video is one generation job, optionally extended with planning metadata.
type Video struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	// UserTier is snapshotted at creation so sweep-triggered runs can
	// charge quota without the identity provider present.
	UserTier           identity.Tier `json:"-"`
	Title              string        `json:"title"`
	Topic              string        `json:"topic,omitempty"`
	CustomInstructions string        `json:"custom_instructions,omitempty"`
	TemplateID         string        `json:"template_id,omitempty"`

	Status       Status        `json:"status"`
	Progress     int           `json:"progress"`
	CurrentStep  string        `json:"current_step,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	ErrorPayload *ErrorPayload `json:"error_payload,omitempty"`
	RetryCount   int           `json:"retry_count,omitempty"`

	Artifacts       Artifacts `json:"-"`
	VideoURL        string    `json:"video_url,omitempty"`
	ThumbnailURL    string    `json:"thumbnail_url,omitempty"`
	DurationSeconds int       `json:"duration_seconds,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`

	// Planning extension
	PlanningStatus        PlanningStatus `json:"planning_status"`
	ScheduledPostTime     *time.Time     `json:"scheduled_post_time,omitempty"`
	GenerationTriggeredAt *time.Time     `json:"generation_triggered_at,omitempty"`
	PostedAt              *time.Time     `json:"posted_at,omitempty"`
	SeriesName            string         `json:"series_name,omitempty"`
	SeriesOrder           *int           `json:"series_order,omitempty"`
	TargetPlatforms       []string       `json:"target_platforms,omitempty"`
	Suggestion            *Suggestion    `json:"ai_suggestion_data,omitempty"`
}

// Planned reports whether the job carries scheduling metadata.
func (v Video) Planned() bool {
	return v.PlanningStatus != "" && v.PlanningStatus != PlanningNone
}

type CreateJobRequest struct {
	Title              string      `json:"title"`
	Topic              string      `json:"topic"`
	CustomInstructions string      `json:"custom_instructions"`
	TemplateID         string      `json:"template_id"`
	Suggestion         *Suggestion `json:"suggestion,omitempty"`
}

type RetryJobRequest struct {
	// Stage defaults to the recorded failing stage.
	Stage string `json:"stage,omitempty"`
	// Provider swaps the provider for the failing stage. Empty means a bare
	// retry with the same provider, which is capped.
	Provider string `json:"provider,omitempty"`
}

type IJobUsecase interface {
	Create(ctx context.Context, user identity.User, request CreateJobRequest) (Video, error)
	GetStatus(ctx context.Context, userID, jobID string) (Video, error)
	Retry(ctx context.Context, user identity.User, jobID string, request RetryJobRequest) (Video, error)
	Cancel(ctx context.Context, userID, jobID string) error
}
