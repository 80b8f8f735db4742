package repository

import (
	"staff_training_backend/internal/model"
	"staff_training_backend/internal/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VideoProgressRepository 视频观看进度仓库，结构与课件进度仓库一致
type VideoProgressRepository struct {
	DB *gorm.DB
}

func NewVideoProgressRepository(db *gorm.DB) *VideoProgressRepository {
	return &VideoProgressRepository{DB: db}
}

func (r *VideoProgressRepository) GetOrCreate(userID, videoID uint) (*model.VideoProgress, error) {
	rec := &model.VideoProgress{
		UserID:  userID,
		VideoID: videoID,
	}

	if err := r.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(rec).Error; err != nil {
		return nil, err
	}

	var out model.VideoProgress
	err := r.DB.Where("user_id = ? AND video_id = ?", userID, videoID).
		First(&out).Error
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Get 只读取出，不存在时返回 ErrProgressNotFound
func (r *VideoProgressRepository) Get(userID, videoID uint) (*model.VideoProgress, error) {
	var out model.VideoProgress
	err := r.DB.Where("user_id = ? AND video_id = ?", userID, videoID).
		First(&out).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.ErrProgressNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (r *VideoProgressRepository) SaveOptimistic(rec *model.VideoProgress) error {
	prev := rec.LockVersion
	rec.LockVersion = prev + 1

	res := r.DB.Model(&model.VideoProgress{}).
		Where("id = ? AND lock_version = ?", rec.ID, prev).
		Select("*").
		Omit("id", "created_at", "deleted_at").
		Updates(rec)

	if res.Error != nil {
		rec.LockVersion = prev
		return res.Error
	}
	if res.RowsAffected == 0 {
		rec.LockVersion = prev
		return util.ErrStaleRecord
	}
	return nil
}

// PurgeByVideo 视频删除时级联清理进度
func (r *VideoProgressRepository) PurgeByVideo(videoID uint) error {
	return r.DB.Unscoped().
		Where("video_id = ?", videoID).
		Delete(&model.VideoProgress{}).Error
}
