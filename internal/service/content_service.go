package service

import (
	"context"

	"staff_training_backend/internal/model"
	"staff_training_backend/internal/repository"
	"staff_training_backend/pkg/logger"

	"go.uber.org/zap"
)

// InteractiveCourseListItem 课件列表项，附带调用者自己的进度
type InteractiveCourseListItem struct {
	Course   *model.InteractiveCourse `json:"course"`
	Progress *ProgressState           `json:"progress,omitempty"`
}

// ContentService 内容侧的少量编排：列表页和删除级联
// 课件的上传、解压、元数据解析都在内容管理后台，这里不碰
type ContentService struct {
	ContentRepo  *repository.ContentRepository
	ProgressRepo *repository.InteractiveProgressRepository
}

func NewContentService(
	contentRepo *repository.ContentRepository,
	progressRepo *repository.InteractiveProgressRepository,
) *ContentService {
	return &ContentService{
		ContentRepo:  contentRepo,
		ProgressRepo: progressRepo,
	}
}

// ListWithProgress 上架课件列表 + 调用者在每个课件上的进度
func (s *ContentService) ListWithProgress(ctx context.Context, userID uint) ([]InteractiveCourseListItem, error) {
	courses, err := s.ContentRepo.ListActiveInteractiveCourses(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(courses))
	for i := range courses {
		ids = append(ids, courses[i].ID)
	}

	progressByID := map[uint]*model.InteractiveProgress{}
	if len(ids) > 0 {
		progressByID, err = s.ProgressRepo.ListByUser(userID, ids)
		if err != nil {
			return nil, err
		}
	}

	items := make([]InteractiveCourseListItem, 0, len(courses))
	for i := range courses {
		item := InteractiveCourseListItem{Course: &courses[i]}
		if p, ok := progressByID[courses[i].ID]; ok {
			item.Progress = snapshot(p, &courses[i])
		}
		items = append(items, item)
	}
	return items, nil
}

// DeleteInteractiveCourse 删除课件并级联清理全部进度记录
func (s *ContentService) DeleteInteractiveCourse(ctx context.Context, id uint) error {
	if err := s.ProgressRepo.PurgeByCourse(id); err != nil {
		return err
	}
	if err := s.ContentRepo.DeleteInteractiveCourse(ctx, id); err != nil {
		return err
	}
	logger.Log.Info("interactive course deleted with progress cascade",
		zap.Uint("course_id", id),
	)
	return nil
}
