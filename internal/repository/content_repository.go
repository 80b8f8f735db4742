package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"staff_training_backend/internal/model"
	"staff_training_backend/internal/util"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

const (
	interactiveCourseCacheKey = "content:interactive:%d"
	courseVideoCacheKey       = "content:video:%d"
	contentCacheTTL           = 10 * time.Minute
)

// ContentRepository 内容元数据只读仓库
// 防跳过校验每次请求都要查 total_slides / duration，元数据又极少变化，
// 放一层 Redis 缓存，失效由删除路径负责。
type ContentRepository struct {
	DB    *gorm.DB
	Redis *redis.Client
}

func NewContentRepository(db *gorm.DB, rdb *redis.Client) *ContentRepository {
	return &ContentRepository{DB: db, Redis: rdb}
}

// GetInteractiveCourse 按 ID 取交互式课件元数据，优先走缓存
func (r *ContentRepository) GetInteractiveCourse(ctx context.Context, id uint) (*model.InteractiveCourse, error) {
	key := fmt.Sprintf(interactiveCourseCacheKey, id)

	if r.Redis != nil {
		if val, err := r.Redis.Get(ctx, key).Result(); err == nil {
			var course model.InteractiveCourse
			if jsonErr := json.Unmarshal([]byte(val), &course); jsonErr == nil {
				return &course, nil
			}
		}
	}

	var course model.InteractiveCourse
	err := r.DB.First(&course, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}

	if r.Redis != nil {
		if data, jsonErr := json.Marshal(&course); jsonErr == nil {
			r.Redis.Set(ctx, key, data, contentCacheTTL)
		}
	}

	return &course, nil
}

// GetVideo 按 ID 取视频元数据，优先走缓存
func (r *ContentRepository) GetVideo(ctx context.Context, id uint) (*model.CourseVideo, error) {
	key := fmt.Sprintf(courseVideoCacheKey, id)

	if r.Redis != nil {
		if val, err := r.Redis.Get(ctx, key).Result(); err == nil {
			var video model.CourseVideo
			if jsonErr := json.Unmarshal([]byte(val), &video); jsonErr == nil {
				return &video, nil
			}
		}
	}

	var video model.CourseVideo
	err := r.DB.First(&video, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrVideoNotFound
		}
		return nil, err
	}

	if r.Redis != nil {
		if data, jsonErr := json.Marshal(&video); jsonErr == nil {
			r.Redis.Set(ctx, key, data, contentCacheTTL)
		}
	}

	return &video, nil
}

// ListActiveInteractiveCourses 上架中的交互式课件列表
func (r *ContentRepository) ListActiveInteractiveCourses(ctx context.Context) ([]model.InteractiveCourse, error) {
	var courses []model.InteractiveCourse
	err := r.DB.Where("is_active = ?", true).
		Order("order_index, created_at").
		Find(&courses).Error
	if err != nil {
		return nil, err
	}
	return courses, nil
}

// DeleteInteractiveCourse 下架并删除课件，同时作废缓存
// 进度记录的级联清理由调用方（ContentService）在同一事务外完成
func (r *ContentRepository) DeleteInteractiveCourse(ctx context.Context, id uint) error {
	res := r.DB.Delete(&model.InteractiveCourse{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrCourseNotFound
	}
	if r.Redis != nil {
		r.Redis.Del(ctx, fmt.Sprintf(interactiveCourseCacheKey, id))
	}
	return nil
}
