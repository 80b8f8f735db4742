package repository

import (
	"staff_training_backend/internal/model"

	"gorm.io/gorm"
)

// SkipAttemptLogRepository 跳页审计记录仓库，只追加
type SkipAttemptLogRepository struct {
	DB *gorm.DB
}

func NewSkipAttemptLogRepository(db *gorm.DB) *SkipAttemptLogRepository {
	return &SkipAttemptLogRepository{DB: db}
}

func (r *SkipAttemptLogRepository) Append(entry *model.SkipAttemptLog) error {
	return r.DB.Create(entry).Error
}

// ListRecent 最近的跳页尝试，管理端审计页用
func (r *SkipAttemptLogRepository) ListRecent(limit int) ([]model.SkipAttemptLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var entries []model.SkipAttemptLog
	err := r.DB.Order("created_at DESC").Limit(limit).Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ListByUser 指定用户的跳页尝试
func (r *SkipAttemptLogRepository) ListByUser(userID uint, limit int) ([]model.SkipAttemptLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var entries []model.SkipAttemptLog
	err := r.DB.Where("user_id = ?", userID).
		Order("created_at DESC").Limit(limit).Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
