package service

import (
	"context"
	"errors"

	"staff_training_backend/internal/config"
	"staff_training_backend/internal/model"
	"staff_training_backend/internal/repository"
	"staff_training_backend/internal/util"
	"staff_training_backend/pkg/logger"
	"staff_training_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// ProgressUpdateRequest 客户端进度上报，各字段相互独立、均可缺省
// 字段的处理顺序是固定契约（见 SlideGuard.Apply），不随字段出现顺序变化
type ProgressUpdateRequest struct {
	// 当前所在幻灯片（导航上报）
	CurrentSlide *int `json:"current_slide"`
	// 客户端自报的最高到达页，仅做防御校验
	HighestSlideClaim *int `json:"highest_slide_reached"`
	// 显式完成声明（Next 按钮）
	SlideCompleted *int `json:"slide_completed"`
	// 学习时长增量（秒）
	TimeSpentDeltaSeconds *int `json:"time_spent"`
	// 课件内测验得分（百分制），由课件播放器或测验协作方上报
	QuizScore *float64 `json:"quiz_score"`
	// SCORM 数据透传
	ScormData        map[string]interface{} `json:"scorm_data"`
	ScormSuspendData *string                `json:"scorm_suspend_data"`
	// 客户端完成信号，只作旁证
	ContentCompleted *bool `json:"content_completed"`
}

// ProgressState 权威进度快照，成功与拒绝都会带上
type ProgressState struct {
	CurrentSlide         int      `json:"current_slide"`
	HighestSlideReached  int      `json:"highest_slide_reached"`
	AllowedNextSlide     int      `json:"allowed_next_slide"`
	TotalSlides          int      `json:"total_slides"`
	SlidesCompleted      int      `json:"slides_completed"`
	CompletionPercentage int      `json:"completion_percentage"`
	ContentCompleted     bool     `json:"content_completed"`
	QuizScore            *float64 `json:"quiz_score"`
	QuizPassed           *bool    `json:"quiz_passed"`
	QuizAttempts         int      `json:"quiz_attempts"`
	CanTakeQuiz          bool     `json:"can_take_quiz"`
	IsCompleted          bool     `json:"is_completed"`
	TotalTimeSpent       int      `json:"total_time_spent"`
}

// PlayState 播放页状态：进度快照 + 续播所需的 SCORM 挂起数据
type PlayState struct {
	State            *ProgressState `json:"state"`
	ScormSuspendData string         `json:"scorm_suspend_data"`
	LaunchURL        string         `json:"launch_url"`
}

// ProgressService 进度更新的事务边界
// 取出（或原子创建）记录 → SlideGuard 裁决 → CompletionEvaluator 重算 →
// 乐观锁整体落库，冲突则重载重放。除落库和审计外没有任何副作用。
type ProgressService struct {
	ContentRepo  *repository.ContentRepository
	ProgressRepo *repository.InteractiveProgressRepository
	Guard        *SlideGuard
	Evaluator    *CompletionEvaluator
	Audit        *AuditSink
	Config       *config.Config
}

func NewProgressService(
	contentRepo *repository.ContentRepository,
	progressRepo *repository.InteractiveProgressRepository,
	guard *SlideGuard,
	evaluator *CompletionEvaluator,
	audit *AuditSink,
	cfg *config.Config,
) *ProgressService {
	return &ProgressService{
		ContentRepo:  contentRepo,
		ProgressRepo: progressRepo,
		Guard:        guard,
		Evaluator:    evaluator,
		Audit:        audit,
		Config:       cfg,
	}
}

// ApplyUpdate 应用一次客户端进度上报
// 返回 (*ProgressState, nil) 或 (nil, *Rejection)；拒绝也带权威快照。
// 其他 error 为基础设施故障。
func (s *ProgressService) ApplyUpdate(ctx context.Context, userID, courseID uint, req *ProgressUpdateRequest) (*ProgressState, error) {
	course, err := s.ContentRepo.GetInteractiveCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	attempts := s.Config.Progress.SaveRetryAttempts
	for i := 0; i < attempts; i++ {
		rec, err := s.ProgressRepo.GetOrCreate(userID, courseID)
		if err != nil {
			return nil, err
		}

		work, rej := s.Guard.Apply(rec, course, req)
		if rej != nil {
			if err := s.saveRejected(rec, work, rej); err != nil {
				if errors.Is(err, util.ErrStaleRecord) {
					continue
				}
				return nil, err
			}
			if rej.Audited() {
				s.Audit.RecordSkipAttempt(userID, courseID, skipKind(rej.Code), rej.Requested, work.HighestSlideReached)
			}
			rej.State = snapshot(work, course)
			return nil, rej
		}

		now := s.Guard.Clock.Now()

		// 测验结果顺带到达时也走资格判定：内容未完成则忽略，不报错
		if req.QuizScore != nil {
			if !s.Evaluator.RecordQuizResult(work, *req.QuizScore, now) {
				logger.Log.Debug("quiz result ignored before content completion",
					zap.Uint("user_id", userID),
					zap.Uint("course_id", courseID),
				)
			}
		}

		contentSignal := req.ContentCompleted != nil && *req.ContentCompleted
		s.Evaluator.Recompute(work, course, now, contentSignal)

		if err := s.ProgressRepo.SaveOptimistic(work); err != nil {
			if errors.Is(err, util.ErrStaleRecord) {
				continue
			}
			return nil, err
		}

		if newUnits := work.SlidesCompletedCount() - rec.SlidesCompletedCount(); newUnits > 0 {
			monitoring.SlideCompletedCounter.Add(float64(newUnits))
		}
		if work.ContentCompleted && !rec.ContentCompleted {
			monitoring.ContentCompletedCounter.Inc()
		}

		return snapshot(work, course), nil
	}

	logger.Log.Error("progress save exhausted optimistic retries",
		zap.Uint("user_id", userID),
		zap.Uint("course_id", courseID),
		zap.Int("attempts", attempts),
	)
	return nil, util.ErrSaveRetriesExceeded
}

// RecordQuizResult 测验协作方的回写入口
// 只在内容已完成时接受，否则返回 ErrQuizBeforeContent。
func (s *ProgressService) RecordQuizResult(ctx context.Context, userID, courseID uint, score float64) (*ProgressState, error) {
	course, err := s.ContentRepo.GetInteractiveCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	attempts := s.Config.Progress.SaveRetryAttempts
	for i := 0; i < attempts; i++ {
		rec, err := s.ProgressRepo.GetOrCreate(userID, courseID)
		if err != nil {
			return nil, err
		}

		work := rec.Clone()
		work.EnsureMaps()
		if !s.Evaluator.RecordQuizResult(work, score, s.Guard.Clock.Now()) {
			return nil, util.ErrQuizBeforeContent
		}

		if err := s.ProgressRepo.SaveOptimistic(work); err != nil {
			if errors.Is(err, util.ErrStaleRecord) {
				continue
			}
			return nil, err
		}
		return snapshot(work, course), nil
	}
	return nil, util.ErrSaveRetriesExceeded
}

// PlayState 播放页入口：取出（或创建）记录并做续播安全钳制
// current_slide 永远不允许停在棘轮之外，防止残留状态把人带进未解锁的页。
func (s *ProgressService) PlayState(ctx context.Context, userID, courseID uint) (*PlayState, error) {
	course, err := s.ContentRepo.GetInteractiveCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	rec, err := s.ProgressRepo.GetOrCreate(userID, courseID)
	if err != nil {
		return nil, err
	}

	if rec.HighestSlideReached > 0 && rec.CurrentSlide > rec.HighestSlideReached {
		work := rec.Clone()
		work.CurrentSlide = work.HighestSlideReached
		if err := s.ProgressRepo.SaveOptimistic(work); err != nil {
			// 钳制失败不致命，响应里仍返回钳制后的值
			logger.Log.Warn("resume clamp save failed", zap.Error(err))
		}
		rec = work
	}

	return &PlayState{
		State:            snapshot(rec, course),
		ScormSuspendData: rec.ScormSuspendData,
		LaunchURL:        course.LaunchURL(),
	}, nil
}

// Completion 证书/测验协作方消费的完成门，只暴露派生布尔与百分比
func (s *ProgressService) Completion(ctx context.Context, userID, courseID uint) (*ProgressState, error) {
	course, err := s.ContentRepo.GetInteractiveCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	rec, err := s.ProgressRepo.Get(userID, courseID)
	if err != nil {
		if errors.Is(err, util.ErrProgressNotFound) {
			// 未开始学习：空进度，门全关
			empty := &model.InteractiveProgress{}
			empty.EnsureMaps()
			return snapshot(empty, course), nil
		}
		return nil, err
	}
	return snapshot(rec, course), nil
}

// saveRejected 拒绝路径落库：副本里只有许可变更（跳页计数/开始时间戳）
// 没有任何实际变更时跳过写库（invalid_slide / invalid_payload）。
func (s *ProgressService) saveRejected(rec, pen *model.InteractiveProgress, rej *Rejection) error {
	switch rej.Code {
	case CodeInvalidSlide, CodeInvalidPayload:
		return nil
	}
	return s.ProgressRepo.SaveOptimistic(pen)
}

func skipKind(code RejectCode) string {
	if code == CodeSlideLocked {
		return model.SkipKindSlideLocked
	}
	return model.SkipKindSlideSkip
}

func snapshot(p *model.InteractiveProgress, course *model.InteractiveCourse) *ProgressState {
	return &ProgressState{
		CurrentSlide:         p.CurrentSlide,
		HighestSlideReached:  p.HighestSlideReached,
		AllowedNextSlide:     p.AllowedNextSlide(),
		TotalSlides:          course.TotalSlides,
		SlidesCompleted:      p.SlidesCompletedCount(),
		CompletionPercentage: p.CompletionPercentage,
		ContentCompleted:     p.ContentCompleted,
		QuizScore:            p.QuizScore,
		QuizPassed:           p.QuizPassed,
		QuizAttempts:         p.QuizAttempts,
		CanTakeQuiz:          p.ContentCompleted,
		IsCompleted:          p.IsCompleted,
		TotalTimeSpent:       p.TotalTimeSpent,
	}
}
