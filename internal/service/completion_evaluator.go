package service

import (
	"staff_training_backend/internal/config"
	"staff_training_backend/internal/model"
	"time"
)

// CompletionEvaluator 完成度派生
// 只重算派生字段（百分比、内容完成、最终完成），不碰别的状态。
// 测验解锁、证书签发等下游协作方必须消费这里派生出的布尔门，
// 不允许自己从原始幻灯片计数再推一遍。
type CompletionEvaluator struct {
	Config *config.Config
}

func NewCompletionEvaluator(cfg *config.Config) *CompletionEvaluator {
	return &CompletionEvaluator{Config: cfg}
}

// Recompute 幻灯片型内容的派生字段重算
// contentSignal 是客户端上报的"内容已完成"旁证：只有计数派生同样成立时才有意义，
// 单独出现时是空操作（计数派生始终是权威）。
func (e *CompletionEvaluator) Recompute(p *model.InteractiveProgress, course *model.InteractiveCourse, now time.Time, contentSignal bool) {
	completed := p.SlidesCompletedCount()

	if course.TotalSlides > 0 {
		pct := completed * 100 / course.TotalSlides
		if pct > 100 {
			pct = 100
		}
		// 百分比只增不减，重算不会让它回退
		if pct > p.CompletionPercentage {
			p.CompletionPercentage = pct
		}
	}

	// 内容完成一旦置真不可回退，时间戳只写一次
	if course.TotalSlides > 0 && completed >= course.TotalSlides {
		e.markContentCompleted(p, now)
	}

	// 客户端信号只是旁证：计数派生同样成立时等效于上面那条路径，
	// 单独出现时不起任何作用
	if contentSignal && course.TotalSlides > 0 && completed >= course.TotalSlides {
		e.markContentCompleted(p, now)
	}

	e.recomputeFinal(p, now)
}

// RecordQuizResult 回写测验结果
// 只在内容已完成时接受；测验本身是否合法由测验协作方判断，这里只判断资格。
func (e *CompletionEvaluator) RecordQuizResult(p *model.InteractiveProgress, score float64, now time.Time) bool {
	if !p.ContentCompleted {
		return false
	}

	p.QuizScore = &score
	p.QuizAttempts++
	passed := score >= e.Config.Progress.QuizPassScore
	p.QuizPassed = &passed

	e.recomputeFinal(p, now)
	return true
}

// EvaluateVideo 视频型内容的完成判定
// 观看比例达到阈值（默认 95%）算完成；时长未知时按观看秒数下限（默认 60s）兜底。
func (e *CompletionEvaluator) EvaluateVideo(p *model.VideoProgress, video *model.CourseVideo, now time.Time) {
	if p.IsCompleted {
		return
	}

	done := false
	if video.DurationSeconds > 0 {
		ratio := float64(p.WatchedSeconds) / float64(video.DurationSeconds)
		done = ratio >= e.Config.Progress.VideoCompletionRatio
	} else {
		done = p.WatchedSeconds >= e.Config.Progress.VideoMinWatchSeconds
	}

	if done {
		p.IsCompleted = true
		if p.CompletedAt == nil {
			t := now
			p.CompletedAt = &t
		}
	}
}

// VideoCompletionPercentage 证书协作方消费的视频完成百分比
func (e *CompletionEvaluator) VideoCompletionPercentage(p *model.VideoProgress, video *model.CourseVideo) int {
	if video.DurationSeconds > 0 {
		pct := p.WatchedSeconds * 100 / video.DurationSeconds
		if pct > 100 {
			pct = 100
		}
		return pct
	}
	// 时长未知：按兜底秒数折算，完成前封顶 99%
	min := e.Config.Progress.VideoMinWatchSeconds
	if min <= 0 {
		min = 60
	}
	if p.WatchedSeconds >= min {
		return 100
	}
	if p.WatchedSeconds > 0 {
		pct := p.WatchedSeconds * 100 / min
		if pct > 99 {
			pct = 99
		}
		return pct
	}
	return 0
}

func (e *CompletionEvaluator) markContentCompleted(p *model.InteractiveProgress, now time.Time) {
	if !p.ContentCompleted {
		p.ContentCompleted = true
	}
	if p.ContentCompletedAt == nil {
		t := now
		p.ContentCompletedAt = &t
	}
}

// recomputeFinal 最终完成门：内容完成 且 测验通过，一旦置真不可回退
func (e *CompletionEvaluator) recomputeFinal(p *model.InteractiveProgress, now time.Time) {
	if p.IsCompleted {
		return
	}
	if p.ContentCompleted && p.QuizPassed != nil && *p.QuizPassed {
		p.IsCompleted = true
		if p.CompletedAt == nil {
			t := now
			p.CompletedAt = &t
		}
	}
}
