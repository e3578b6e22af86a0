package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/reelforge/reelforge/domains/identity"
	"github.com/reelforge/reelforge/domains/job"
	"github.com/reelforge/reelforge/domains/planning"
	pkgError "github.com/reelforge/reelforge/pkg/error"
	"gorm.io/gorm"
)

// IVideoRepository is the persistence contract for jobs and their planning
// extension. Jobs are mutated only by the pipeline engine and the planning
// usecase; reads are plain queries.
type IVideoRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, v job.Video) error
	CreateBatch(ctx context.Context, vs []job.Video) error
	GetByID(ctx context.Context, id string) (job.Video, error)
	GetForUser(ctx context.Context, userID, id string) (job.Video, error)
	Update(ctx context.Context, v job.Video) error
	Delete(ctx context.Context, userID, id string) error
	ListPlanned(ctx context.Context, userID string, filters planning.ListFilters) ([]job.Video, error)
	ListBySeries(ctx context.Context, userID, seriesName string) ([]job.Video, error)
	ListDue(ctx context.Context, horizon time.Time, limit int) ([]job.Video, error)
	ListRange(ctx context.Context, userID string, start, end time.Time) ([]job.Video, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]job.Video, error)
	// MarkGenerating transitions planned → generating with a guarded UPDATE
	// and reports whether the transition happened. With force it also
	// re-arms a job stuck in generating.
	MarkGenerating(ctx context.Context, id string, force bool, at time.Time) (bool, error)
}

// --- Persistence model ---

type videoModel struct {
	ID                 string         `gorm:"primaryKey;column:id"`
	UserID             string         `gorm:"column:user_id;not null;index;index:idx_series_order,unique"`
	UserTier           string         `gorm:"column:user_tier;not null;default:'free'"`
	Title              string         `gorm:"column:title;not null"`
	Topic              sql.NullString `gorm:"column:topic"`
	CustomInstructions sql.NullString `gorm:"column:custom_instructions"`
	TemplateID         sql.NullString `gorm:"column:template_id"`

	Status       string         `gorm:"column:status;not null;default:'pending';index"`
	Progress     int            `gorm:"column:progress;default:0"`
	CurrentStep  sql.NullString `gorm:"column:current_step"`
	ErrorMessage sql.NullString `gorm:"column:error_message"`
	ErrorPayload sql.NullString `gorm:"column:error_payload"` // JSON
	RetryCount   int            `gorm:"column:retry_count;default:0"`

	Artifacts       sql.NullString `gorm:"column:artifacts"` // JSON
	VideoURL        sql.NullString `gorm:"column:video_url"`
	ThumbnailURL    sql.NullString `gorm:"column:thumbnail_url"`
	DurationSeconds int            `gorm:"column:duration_seconds;default:0"`

	CreatedAt   time.Time  `gorm:"column:created_at;not null"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
	ExpiresAt   *time.Time `gorm:"column:expires_at;index"`

	PlanningStatus        string         `gorm:"column:planning_status;not null;default:'none';index"`
	ScheduledPostTime     *time.Time     `gorm:"column:scheduled_post_time;index"`
	GenerationTriggeredAt *time.Time     `gorm:"column:generation_triggered_at"`
	PostedAt              *time.Time     `gorm:"column:posted_at"`
	SeriesName            sql.NullString `gorm:"column:series_name;index:idx_series_order,unique"`
	SeriesOrder           *int           `gorm:"column:series_order;index:idx_series_order,unique"`
	TargetPlatforms       sql.NullString `gorm:"column:target_platforms"` // JSON
	Suggestion            sql.NullString `gorm:"column:suggestion"`       // JSON
	UpdatedAt             time.Time      `gorm:"column:updated_at;not null"`
}

func (videoModel) TableName() string { return "videos" }

// --- Repository implementation ---

type VideoGormRepository struct {
	db *gorm.DB
}

func NewVideoGormRepository(db *gorm.DB) *VideoGormRepository {
	return &VideoGormRepository{db: db}
}

func (r *VideoGormRepository) Init(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&videoModel{})
}

func (r *VideoGormRepository) Create(ctx context.Context, v job.Video) error {
	model := toVideoModel(v)
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *VideoGormRepository) CreateBatch(ctx context.Context, vs []job.Video) error {
	if len(vs) == 0 {
		return nil
	}
	models := make([]videoModel, len(vs))
	for i, v := range vs {
		models[i] = toVideoModel(v)
	}
	return r.db.WithContext(ctx).Create(&models).Error
}

func (r *VideoGormRepository) GetByID(ctx context.Context, id string) (job.Video, error) {
	var m videoModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return job.Video{}, pkgError.NotFoundError("job not found")
		}
		return job.Video{}, err
	}
	return fromVideoModel(m), nil
}

func (r *VideoGormRepository) GetForUser(ctx context.Context, userID, id string) (job.Video, error) {
	var m videoModel
	if err := r.db.WithContext(ctx).First(&m, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return job.Video{}, pkgError.NotFoundError("job not found")
		}
		return job.Video{}, err
	}
	return fromVideoModel(m), nil
}

func (r *VideoGormRepository) Update(ctx context.Context, v job.Video) error {
	model := toVideoModel(v)
	model.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Save(&model).Error
}

func (r *VideoGormRepository) Delete(ctx context.Context, userID, id string) error {
	res := r.db.WithContext(ctx).Delete(&videoModel{}, "id = ? AND user_id = ?", id, userID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgError.NotFoundError("job not found")
	}
	return nil
}

func (r *VideoGormRepository) ListPlanned(ctx context.Context, userID string, filters planning.ListFilters) ([]job.Video, error) {
	q := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("planning_status <> ?", string(job.PlanningNone))
	if filters.PlanningStatus != "" {
		q = q.Where("planning_status = ?", filters.PlanningStatus)
	}
	if filters.SeriesName != "" {
		q = q.Where("series_name = ?", filters.SeriesName)
	}
	if filters.From != nil {
		q = q.Where("scheduled_post_time >= ?", filters.From.UTC())
	}
	if filters.To != nil {
		q = q.Where("scheduled_post_time < ?", filters.To.UTC())
	}

	var models []videoModel
	if err := q.Order("scheduled_post_time asc").Find(&models).Error; err != nil {
		return nil, err
	}
	return fromVideoModels(models), nil
}

func (r *VideoGormRepository) ListBySeries(ctx context.Context, userID, seriesName string) ([]job.Video, error) {
	var models []videoModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND series_name = ?", userID, seriesName).
		Order("series_order asc").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return fromVideoModels(models), nil
}

func (r *VideoGormRepository) ListDue(ctx context.Context, horizon time.Time, limit int) ([]job.Video, error) {
	var models []videoModel
	q := r.db.WithContext(ctx).
		Where("planning_status = ?", string(job.PlanningPlanned)).
		Where("scheduled_post_time <= ?", horizon.UTC()).
		Order("scheduled_post_time asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	return fromVideoModels(models), nil
}

func (r *VideoGormRepository) ListRange(ctx context.Context, userID string, start, end time.Time) ([]job.Video, error) {
	var models []videoModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("planning_status <> ?", string(job.PlanningNone)).
		Where("scheduled_post_time >= ? AND scheduled_post_time < ?", start.UTC(), end.UTC()).
		Order("scheduled_post_time asc").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return fromVideoModels(models), nil
}

func (r *VideoGormRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]job.Video, error) {
	var models []videoModel
	q := r.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now.UTC()).
		Where("video_url IS NOT NULL AND video_url <> ''")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	return fromVideoModels(models), nil
}

func (r *VideoGormRepository) MarkGenerating(ctx context.Context, id string, force bool, at time.Time) (bool, error) {
	allowed := []string{string(job.PlanningPlanned)}
	if force {
		allowed = append(allowed, string(job.PlanningGenerating))
	}

	res := r.db.WithContext(ctx).Model(&videoModel{}).
		Where("id = ? AND planning_status IN ?", id, allowed).
		Updates(map[string]any{
			"planning_status":         string(job.PlanningGenerating),
			"generation_triggered_at": at.UTC(),
			"updated_at":              time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// --- Mappers ---

func toVideoModel(v job.Video) videoModel {
	m := videoModel{
		ID:                 v.ID,
		UserID:             v.UserID,
		UserTier:           string(v.UserTier),
		Title:              v.Title,
		Topic:              nullString(v.Topic),
		CustomInstructions: nullString(v.CustomInstructions),
		TemplateID:         nullString(v.TemplateID),
		Status:             string(v.Status),
		Progress:           v.Progress,
		CurrentStep:        nullString(v.CurrentStep),
		ErrorMessage:       nullString(v.ErrorMessage),
		RetryCount:         v.RetryCount,
		VideoURL:           nullString(v.VideoURL),
		ThumbnailURL:       nullString(v.ThumbnailURL),
		DurationSeconds:    v.DurationSeconds,
		CreatedAt:          v.CreatedAt,
		CompletedAt:        v.CompletedAt,
		ExpiresAt:          v.ExpiresAt,
		PlanningStatus:     string(v.PlanningStatus),
		ScheduledPostTime:  v.ScheduledPostTime,

		GenerationTriggeredAt: v.GenerationTriggeredAt,
		PostedAt:              v.PostedAt,
		SeriesName:            nullString(v.SeriesName),
		SeriesOrder:           v.SeriesOrder,
		UpdatedAt:             time.Now().UTC(),
	}
	if m.PlanningStatus == "" {
		m.PlanningStatus = string(job.PlanningNone)
	}
	m.ErrorPayload = nullJSON(v.ErrorPayload)
	if len(v.TargetPlatforms) > 0 {
		m.TargetPlatforms = nullJSON(v.TargetPlatforms)
	}
	m.Suggestion = nullJSON(v.Suggestion)
	m.Artifacts = nullJSON(v.Artifacts)
	return m
}

func fromVideoModel(m videoModel) job.Video {
	v := job.Video{
		ID:                 m.ID,
		UserID:             m.UserID,
		UserTier:           identity.Tier(m.UserTier),
		Title:              m.Title,
		Topic:              m.Topic.String,
		CustomInstructions: m.CustomInstructions.String,
		TemplateID:         m.TemplateID.String,
		Status:             job.Status(m.Status),
		Progress:           m.Progress,
		CurrentStep:        m.CurrentStep.String,
		ErrorMessage:       m.ErrorMessage.String,
		RetryCount:         m.RetryCount,
		VideoURL:           m.VideoURL.String,
		ThumbnailURL:       m.ThumbnailURL.String,
		DurationSeconds:    m.DurationSeconds,
		CreatedAt:          m.CreatedAt,
		CompletedAt:        m.CompletedAt,
		ExpiresAt:          m.ExpiresAt,
		PlanningStatus:     job.PlanningStatus(m.PlanningStatus),
		ScheduledPostTime:  m.ScheduledPostTime,

		GenerationTriggeredAt: m.GenerationTriggeredAt,
		PostedAt:              m.PostedAt,
		SeriesName:            m.SeriesName.String,
		SeriesOrder:           m.SeriesOrder,
	}
	if m.ErrorPayload.Valid {
		var payload job.ErrorPayload
		if err := json.Unmarshal([]byte(m.ErrorPayload.String), &payload); err == nil {
			v.ErrorPayload = &payload
		}
	}
	if m.TargetPlatforms.Valid {
		_ = json.Unmarshal([]byte(m.TargetPlatforms.String), &v.TargetPlatforms)
	}
	if m.Suggestion.Valid {
		var s job.Suggestion
		if err := json.Unmarshal([]byte(m.Suggestion.String), &s); err == nil {
			v.Suggestion = &s
		}
	}
	if m.Artifacts.Valid {
		_ = json.Unmarshal([]byte(m.Artifacts.String), &v.Artifacts)
	}
	return v
}

func fromVideoModels(models []videoModel) []job.Video {
	out := make([]job.Video, len(models))
	for i, m := range models {
		out[i] = fromVideoModel(m)
	}
	return out
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullJSON(v any) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	switch t := v.(type) {
	case *job.ErrorPayload:
		if t == nil {
			return sql.NullString{}
		}
	case *job.Suggestion:
		if t == nil {
			return sql.NullString{}
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(data), Valid: true}
}
