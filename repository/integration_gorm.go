package repository

import (
	"context"
	"time"

	"github.com/reelforge/reelforge/domains/integration"
	pkgError "github.com/reelforge/reelforge/pkg/error"
	"gorm.io/gorm"
)

type IIntegrationRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, in integration.Integration) error
	GetForUser(ctx context.Context, userID, id string) (integration.Integration, error)
	ListByUser(ctx context.Context, userID string) ([]integration.Integration, error)
	// ListConfigured returns active valid integrations for a category,
	// default-flagged first, then oldest first.
	ListConfigured(ctx context.Context, userID string, category integration.Category) ([]integration.Integration, error)
	Update(ctx context.Context, in integration.Integration) error
	ClearDefault(ctx context.Context, userID string, category integration.Category) error
	Delete(ctx context.Context, userID, id string) error
}

type integrationModel struct {
	ID        string    `gorm:"primaryKey;column:id"`
	UserID    string    `gorm:"column:user_id;not null;index:idx_user_category"`
	Provider  string    `gorm:"column:provider;not null"`
	Category  string    `gorm:"column:category;not null;index:idx_user_category"`
	Valid     bool      `gorm:"column:valid;default:false"`
	Active    bool      `gorm:"column:active;default:true"`
	IsDefault bool      `gorm:"column:is_default;default:false"`
	APIKey    string    `gorm:"column:api_key"` // ciphertext, encrypted by the usecase
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (integrationModel) TableName() string { return "integrations" }

type IntegrationGormRepository struct {
	db *gorm.DB
}

func NewIntegrationGormRepository(db *gorm.DB) *IntegrationGormRepository {
	return &IntegrationGormRepository{db: db}
}

func (r *IntegrationGormRepository) Init(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&integrationModel{})
}

func (r *IntegrationGormRepository) Create(ctx context.Context, in integration.Integration) error {
	model := toIntegrationModel(in)
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *IntegrationGormRepository) GetForUser(ctx context.Context, userID, id string) (integration.Integration, error) {
	var m integrationModel
	if err := r.db.WithContext(ctx).First(&m, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return integration.Integration{}, pkgError.NotFoundError("integration not found")
		}
		return integration.Integration{}, err
	}
	return fromIntegrationModel(m), nil
}

func (r *IntegrationGormRepository) ListByUser(ctx context.Context, userID string) ([]integration.Integration, error) {
	var models []integrationModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("category asc, created_at asc").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return fromIntegrationModels(models), nil
}

func (r *IntegrationGormRepository) ListConfigured(ctx context.Context, userID string, category integration.Category) ([]integration.Integration, error) {
	var models []integrationModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND category = ? AND active = ? AND valid = ?", userID, string(category), true, true).
		Order("is_default desc, created_at asc").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return fromIntegrationModels(models), nil
}

func (r *IntegrationGormRepository) Update(ctx context.Context, in integration.Integration) error {
	model := toIntegrationModel(in)
	model.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Save(&model).Error
}

func (r *IntegrationGormRepository) ClearDefault(ctx context.Context, userID string, category integration.Category) error {
	return r.db.WithContext(ctx).Model(&integrationModel{}).
		Where("user_id = ? AND category = ?", userID, string(category)).
		UpdateColumn("is_default", false).Error
}

func (r *IntegrationGormRepository) Delete(ctx context.Context, userID, id string) error {
	res := r.db.WithContext(ctx).Delete(&integrationModel{}, "id = ? AND user_id = ?", id, userID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgError.NotFoundError("integration not found")
	}
	return nil
}

func toIntegrationModel(in integration.Integration) integrationModel {
	return integrationModel{
		ID:        in.ID,
		UserID:    in.UserID,
		Provider:  in.Provider,
		Category:  string(in.Category),
		Valid:     in.Valid,
		Active:    in.Active,
		IsDefault: in.Default,
		APIKey:    in.APIKey,
		CreatedAt: in.CreatedAt,
		UpdatedAt: in.UpdatedAt,
	}
}

func fromIntegrationModel(m integrationModel) integration.Integration {
	return integration.Integration{
		ID:        m.ID,
		UserID:    m.UserID,
		Provider:  m.Provider,
		Category:  integration.Category(m.Category),
		Valid:     m.Valid,
		Active:    m.Active,
		Default:   m.IsDefault,
		HasAPIKey: m.APIKey != "",
		APIKey:    m.APIKey,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func fromIntegrationModels(models []integrationModel) []integration.Integration {
	out := make([]integration.Integration, len(models))
	for i, m := range models {
		out[i] = fromIntegrationModel(m)
	}
	return out
}
