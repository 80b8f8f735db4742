package repository

import (
	"staff_training_backend/internal/model"
	"staff_training_backend/internal/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InteractiveProgressRepository 交互式课件进度仓库
// 唯一索引 (user_id, interactive_course_id) 保证每对至多一条记录，
// 并发首次访问靠 OnConflict DoNothing + 回读收敛到同一条。
type InteractiveProgressRepository struct {
	DB *gorm.DB
}

func NewInteractiveProgressRepository(db *gorm.DB) *InteractiveProgressRepository {
	return &InteractiveProgressRepository{DB: db}
}

// GetOrCreate 取出或原子创建 (user, course) 的进度记录
func (r *InteractiveProgressRepository) GetOrCreate(userID, courseID uint) (*model.InteractiveProgress, error) {
	rec := &model.InteractiveProgress{
		UserID:              userID,
		InteractiveCourseID: courseID,
	}
	rec.EnsureMaps()

	// 撞唯一索引时静默放弃插入，随后的回读两边都会拿到同一条
	if err := r.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(rec).Error; err != nil {
		return nil, err
	}

	var out model.InteractiveProgress
	err := r.DB.Where("user_id = ? AND interactive_course_id = ?", userID, courseID).
		First(&out).Error
	if err != nil {
		return nil, err
	}
	out.EnsureMaps()
	return &out, nil
}

// Get 只读取出，不存在时返回 ErrProgressNotFound
func (r *InteractiveProgressRepository) Get(userID, courseID uint) (*model.InteractiveProgress, error) {
	var out model.InteractiveProgress
	err := r.DB.Where("user_id = ? AND interactive_course_id = ?", userID, courseID).
		First(&out).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.ErrProgressNotFound
		}
		return nil, err
	}
	out.EnsureMaps()
	return &out, nil
}

// SaveOptimistic 乐观锁整行保存
// lock_version 不匹配说明有并发写抢先落库，返回 ErrStaleRecord 由服务层重载重放。
// 同一 (user, course) 的写入因此被串行化，不同键之间互不干扰。
func (r *InteractiveProgressRepository) SaveOptimistic(rec *model.InteractiveProgress) error {
	prev := rec.LockVersion
	rec.LockVersion = prev + 1

	res := r.DB.Model(&model.InteractiveProgress{}).
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

// ListByUser 用户在一组课件上的进度，列表页用
func (r *InteractiveProgressRepository) ListByUser(userID uint, courseIDs []uint) (map[uint]*model.InteractiveProgress, error) {
	var records []model.InteractiveProgress
	err := r.DB.Where("user_id = ? AND interactive_course_id IN ?", userID, courseIDs).
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	out := make(map[uint]*model.InteractiveProgress, len(records))
	for i := range records {
		records[i].EnsureMaps()
		out[records[i].InteractiveCourseID] = &records[i]
	}
	return out, nil
}

// PurgeByCourse 课件删除时级联清掉全部进度记录
func (r *InteractiveProgressRepository) PurgeByCourse(courseID uint) error {
	return r.DB.Unscoped().
		Where("interactive_course_id = ?", courseID).
		Delete(&model.InteractiveProgress{}).Error
}
