package service

import (
	"fmt"
	"math"

	"staff_training_backend/internal/config"
	"staff_training_backend/internal/model"
)

// SlideGuard 幻灯片防跳过状态机
// 对单个进度更新请求做出允许/拒绝的裁决并计算结果状态。
// 永远在记录的副本上工作：接受则返回完整应用后的副本，
// 拒绝则返回只含许可变更（跳页计数、开始时间戳）的副本，绝不只应用一半。
type SlideGuard struct {
	Clock  Clock
	Config *config.Config
}

func NewSlideGuard(clock Clock, cfg *config.Config) *SlideGuard {
	return &SlideGuard{Clock: clock, Config: cfg}
}

// MinDwellSeconds 每张幻灯片的最短停留秒数
// 标称时长均摊到每张幻灯片，但不低于配置的下限；
// 元数据缺失时直接用下限，保证校验对短课件和脚本刷课同样有效。
func (g *SlideGuard) MinDwellSeconds(course *model.InteractiveCourse) int {
	floor := g.Config.Progress.MinDwellFloorSeconds
	if floor <= 0 {
		floor = 20
	}
	if course.TotalSlides <= 0 || course.DurationMinutes <= 0 {
		return floor
	}
	perSlide := course.DurationMinutes * 60 / course.TotalSlides
	if perSlide < floor {
		return floor
	}
	return perSlide
}

// canAccessSlide 幻灯片是否在允许范围内（不可越过棘轮+1）
func canAccessSlide(p *model.InteractiveProgress, course *model.InteractiveCourse, slide int) bool {
	if slide < 1 {
		return false
	}
	if course.TotalSlides > 0 && slide > course.TotalSlides {
		return false
	}
	return slide <= p.HighestSlideReached+1
}

// Apply 按固定顺序把请求里的各子命令应用到记录副本上
// 顺序：highest 声明校验 → 完成声明 → 当前页上报 → 时长累计 → 测验结果 →
// SCORM 透传 → 完成信号。任一拒绝立即终止，此前的子命令不落库。
// highest 声明最先校验，伪造的 highest 无法给后面的完成声明放行。
func (g *SlideGuard) Apply(rec *model.InteractiveProgress, course *model.InteractiveCourse, req *ProgressUpdateRequest) (*model.InteractiveProgress, *Rejection) {
	now := g.Clock.Now()
	work := rec.Clone()
	work.EnsureMaps()

	// 客户端主动上报的 highest 只做防御校验，权威棘轮始终是库里的值
	if req.HighestSlideClaim != nil {
		claimed := *req.HighestSlideClaim
		if claimed > work.HighestSlideReached+1 {
			pen := penalize(rec)
			return pen, &Rejection{
				Code:      CodeSlideSkip,
				Message:   "Cannot unlock future slides. Complete the previous slide to continue.",
				Requested: claimed,
			}
		}
	}

	// 幻灯片完成必须显式声明（Next 按钮），顺序 + 最短停留双重校验
	if req.SlideCompleted != nil {
		slide := *req.SlideCompleted
		if slide < 1 || (course.TotalSlides > 0 && slide > course.TotalSlides) {
			return rec.Clone(), &Rejection{
				Code:      CodeInvalidSlide,
				Message:   "Invalid slide number.",
				Requested: slide,
			}
		}

		if slide > work.HighestSlideReached+1 {
			pen := penalize(rec)
			return pen, &Rejection{
				Code:      CodeSlideSkip,
				Message:   fmt.Sprintf("Cannot complete slide %d yet. Complete previous slides first.", slide),
				Requested: slide,
			}
		}

		// 没有开始时间就以现在为准，等于零停留。从未上报过 current_slide
		// 的客户端拿不到任何时间积累，这是有意从严。
		work.StartSlide(slide, now)
		startedAt := work.SlideStartedAt[model.SlideKey(slide)]

		elapsed := now.Sub(startedAt).Seconds()
		minDwell := g.MinDwellSeconds(course)
		if elapsed < float64(minDwell) {
			remaining := int(math.Ceil(float64(minDwell) - elapsed))
			if remaining < 1 {
				remaining = 1
			}
			// 开始时间戳要保留，否则倒计时永远走不完
			pen := rec.Clone()
			pen.StartSlide(slide, now)
			return pen, &Rejection{
				Code:             CodeMinTimeNotMet,
				Message:          fmt.Sprintf("Slide unlocks in %ds. Please finish the slide before continuing.", remaining),
				RemainingSeconds: remaining,
				Requested:        slide,
			}
		}

		key := model.SlideKey(slide)
		work.SlidesCompleted[key] = true
		if _, ok := work.SlideCompletedAt[key]; !ok {
			work.SlideCompletedAt[key] = now
		}
		if slide > work.HighestSlideReached {
			work.HighestSlideReached = slide
		}
		work.CurrentSlide = slide
	}

	// 当前页上报（导航事件），只允许进入棘轮+1 以内的页
	if req.CurrentSlide != nil && *req.CurrentSlide > 0 {
		slide := *req.CurrentSlide
		if !canAccessSlide(work, course, slide) {
			pen := penalize(rec)
			return pen, &Rejection{
				Code:      CodeSlideLocked,
				Message:   fmt.Sprintf("Slide %d is locked. Complete previous slides to unlock.", slide),
				Requested: slide,
			}
		}
		work.CurrentSlide = slide
		work.StartSlide(slide, now)
	}

	// 学习时长增量（秒）
	if req.TimeSpentDeltaSeconds != nil {
		delta := *req.TimeSpentDeltaSeconds
		if delta < 0 {
			return rec.Clone(), &Rejection{
				Code:    CodeInvalidPayload,
				Message: "time_spent must be non-negative.",
			}
		}
		work.TotalTimeSpent += delta
	}

	// SCORM 数据透传，本服务不解释
	if len(req.ScormData) > 0 {
		for k, v := range req.ScormData {
			work.ScormData[k] = v
		}
	}
	if req.ScormSuspendData != nil {
		work.ScormSuspendData = *req.ScormSuspendData
	}

	return work, nil
}

// penalize 拒绝副本：除跳页计数外不带任何本次请求的变更
func penalize(rec *model.InteractiveProgress) *model.InteractiveProgress {
	pen := rec.Clone()
	pen.EnsureMaps()
	pen.SkipAttempts++
	return pen
}
