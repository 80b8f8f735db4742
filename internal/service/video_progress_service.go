package service

import (
	"context"
	"errors"

	"staff_training_backend/internal/config"
	"staff_training_backend/internal/model"
	"staff_training_backend/internal/repository"
	"staff_training_backend/internal/util"
	"staff_training_backend/pkg/logger"

	"go.uber.org/zap"
)

// VideoProgressUpdateRequest 视频播放器的进度上报
type VideoProgressUpdateRequest struct {
	// 当前播放位置（秒）
	Position *int `json:"position"`
	// 本次上报新增的观看秒数
	WatchedDelta *int `json:"watched_delta"`
}

// VideoProgressState 视频进度权威快照
type VideoProgressState struct {
	WatchedSeconds       int  `json:"watched_seconds"`
	LastPosition         int  `json:"last_position"`
	DurationSeconds      int  `json:"duration_seconds"`
	CompletionPercentage int  `json:"completion_percentage"`
	IsCompleted          bool `json:"is_completed"`
}

// VideoProgressService 视频观看进度（时长型内容的防跳过变体）
// 观看前沿 = 已观看秒数：seek 超过前沿一个容忍值即拒绝并计入跳页计数，
// 完成判定交给 CompletionEvaluator（95% 比例 / 未知时长 60s 兜底）。
type VideoProgressService struct {
	ContentRepo  *repository.ContentRepository
	ProgressRepo *repository.VideoProgressRepository
	Evaluator    *CompletionEvaluator
	Audit        *AuditSink
	Clock        Clock
	Config       *config.Config
}

func NewVideoProgressService(
	contentRepo *repository.ContentRepository,
	progressRepo *repository.VideoProgressRepository,
	evaluator *CompletionEvaluator,
	audit *AuditSink,
	clock Clock,
	cfg *config.Config,
) *VideoProgressService {
	return &VideoProgressService{
		ContentRepo:  contentRepo,
		ProgressRepo: progressRepo,
		Evaluator:    evaluator,
		Audit:        audit,
		Clock:        clock,
		Config:       cfg,
	}
}

// ApplyUpdate 应用一次视频进度上报，语义与幻灯片侧一致：
// 拒绝只动跳页计数，成功整体落库，乐观锁冲突重载重放。
func (s *VideoProgressService) ApplyUpdate(ctx context.Context, userID, videoID uint, req *VideoProgressUpdateRequest) (*VideoProgressState, error) {
	video, err := s.ContentRepo.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}

	if (req.Position != nil && *req.Position < 0) || (req.WatchedDelta != nil && *req.WatchedDelta < 0) {
		return nil, &Rejection{
			Code:    CodeInvalidPayload,
			Message: "position and watched_delta must be non-negative.",
		}
	}

	attempts := s.Config.Progress.SaveRetryAttempts
	for i := 0; i < attempts; i++ {
		rec, err := s.ProgressRepo.GetOrCreate(userID, videoID)
		if err != nil {
			return nil, err
		}

		work := rec.Clone()
		now := s.Clock.Now()
		if work.StartedAt == nil {
			t := now
			work.StartedAt = &t
		}

		// seek 防跳过：位置不得越过观看前沿 + 容忍值
		if req.Position != nil {
			pos := *req.Position
			frontier := work.WatchedSeconds + s.Config.Progress.VideoSeekToleranceSeconds
			if pos > frontier {
				pen := rec.Clone()
				pen.SkipAttempts++
				if err := s.ProgressRepo.SaveOptimistic(pen); err != nil {
					if errors.Is(err, util.ErrStaleRecord) {
						continue
					}
					return nil, err
				}
				s.Audit.RecordSkipAttempt(userID, videoID, model.SkipKindVideoForward, pos, pen.WatchedSeconds)
				return nil, &Rejection{
					Code:       CodeSeekTooFar,
					Message:    "Seeking past the watched portion is not allowed.",
					Requested:  pos,
					VideoState: s.videoSnapshot(pen, video),
				}
			}
			work.LastPosition = pos
		}

		if req.WatchedDelta != nil {
			work.WatchedSeconds += *req.WatchedDelta
			// 已知时长时封顶，刷时长没有意义
			if video.DurationSeconds > 0 && work.WatchedSeconds > video.DurationSeconds {
				work.WatchedSeconds = video.DurationSeconds
			}
		}

		s.Evaluator.EvaluateVideo(work, video, now)

		if err := s.ProgressRepo.SaveOptimistic(work); err != nil {
			if errors.Is(err, util.ErrStaleRecord) {
				continue
			}
			return nil, err
		}
		return s.videoSnapshot(work, video), nil
	}

	logger.Log.Error("video progress save exhausted optimistic retries",
		zap.Uint("user_id", userID),
		zap.Uint("video_id", videoID),
	)
	return nil, util.ErrSaveRetriesExceeded
}

// Completion 证书协作方消费的视频完成门
func (s *VideoProgressService) Completion(ctx context.Context, userID, videoID uint) (*VideoProgressState, error) {
	video, err := s.ContentRepo.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	rec, err := s.ProgressRepo.GetOrCreate(userID, videoID)
	if err != nil {
		return nil, err
	}
	return s.videoSnapshot(rec, video), nil
}

func (s *VideoProgressService) videoSnapshot(p *model.VideoProgress, video *model.CourseVideo) *VideoProgressState {
	return &VideoProgressState{
		WatchedSeconds:       p.WatchedSeconds,
		LastPosition:         p.LastPosition,
		DurationSeconds:      video.DurationSeconds,
		CompletionPercentage: s.Evaluator.VideoCompletionPercentage(p, video),
		IsCompleted:          p.IsCompleted,
	}
}
