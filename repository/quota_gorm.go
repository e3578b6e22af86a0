package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// IQuotaRepository persists per-user daily generation counters. Reserve must
// be atomic with respect to concurrent reservations for the same user.
type IQuotaRepository interface {
	Init(ctx context.Context) error
	// Reserve consumes one slot for (userID, day) against limit and returns
	// the new used count. ErrQuotaExhausted is returned when the day bucket
	// is already at the limit.
	Reserve(ctx context.Context, userID, day string, limit int) (int, error)
	// Release returns one slot; a no-op when the counter is already zero.
	Release(ctx context.Context, userID, day string) error
	Used(ctx context.Context, userID, day string) (int, error)
}

// ErrQuotaExhausted is the sentinel for a daily allowance already spent.
var ErrQuotaExhausted = errors.New("daily quota exhausted")

type quotaModel struct {
	UserID    string    `gorm:"column:user_id;primaryKey"`
	Day       string    `gorm:"column:day;primaryKey"` // "2006-01-02" UTC
	Used      int       `gorm:"column:used;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (quotaModel) TableName() string { return "daily_quotas" }

type QuotaGormRepository struct {
	db *gorm.DB
}

func NewQuotaGormRepository(db *gorm.DB) *QuotaGormRepository {
	return &QuotaGormRepository{db: db}
}

func (r *QuotaGormRepository) Init(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&quotaModel{})
}

func (r *QuotaGormRepository) Reserve(ctx context.Context, userID, day string, limit int) (int, error) {
	var used int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Guarded increment: succeeds only while under the limit.
		res := tx.Model(&quotaModel{}).
			Where("user_id = ? AND day = ? AND used < ?", userID, day, limit).
			UpdateColumn("used", gorm.Expr("used + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			return tx.Model(&quotaModel{}).
				Where("user_id = ? AND day = ?", userID, day).
				Select("used").Scan(&used).Error
		}

		// No row matched: either the bucket does not exist yet or it is full.
		var existing quotaModel
		err := tx.Where("user_id = ? AND day = ?", userID, day).First(&existing).Error
		if err == nil {
			return ErrQuotaExhausted
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if limit <= 0 {
			return ErrQuotaExhausted
		}

		now := time.Now().UTC()
		if err := tx.Create(&quotaModel{UserID: userID, Day: day, Used: 1, CreatedAt: now, UpdatedAt: now}).Error; err != nil {
			// A concurrent reservation created the row first; retry the
			// guarded increment once.
			res := tx.Model(&quotaModel{}).
				Where("user_id = ? AND day = ? AND used < ?", userID, day, limit).
				UpdateColumn("used", gorm.Expr("used + 1"))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrQuotaExhausted
			}
			return tx.Model(&quotaModel{}).
				Where("user_id = ? AND day = ?", userID, day).
				Select("used").Scan(&used).Error
		}
		used = 1
		return nil
	})
	if err != nil {
		return 0, err
	}
	return used, nil
}

func (r *QuotaGormRepository) Release(ctx context.Context, userID, day string) error {
	return r.db.WithContext(ctx).Model(&quotaModel{}).
		Where("user_id = ? AND day = ? AND used > 0", userID, day).
		UpdateColumn("used", gorm.Expr("used - 1")).Error
}

func (r *QuotaGormRepository) Used(ctx context.Context, userID, day string) (int, error) {
	var m quotaModel
	err := r.db.WithContext(ctx).Where("user_id = ? AND day = ?", userID, day).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return m.Used, nil
}
