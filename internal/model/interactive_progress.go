package model

import (
	"strconv"
	"time"
)

// InteractiveProgress 员工在单个交互式课件上的学习进度
// 每个 (user, interactive_course) 至多一条记录，幻灯片级防跳过状态都在这里。
// 数据只承载状态，所有推进逻辑集中在 service.SlideGuard / service.ProgressService，
// 字段不变式（棘轮只增、时间戳只写一次）由那里保证。
type InteractiveProgress struct {
	BaseModel
	UserID              uint `gorm:"index:idx_user_interactive,unique;not null" json:"userId"`
	InteractiveCourseID uint `gorm:"index:idx_user_interactive,unique;not null" json:"interactiveCourseId"`

	// 当前所在幻灯片，0 表示未开始
	CurrentSlide int `gorm:"default:0" json:"currentSlide"`
	// 曾合法到达的最高幻灯片（棘轮，只增不减）
	HighestSlideReached int `gorm:"default:0" json:"highestSlideReached"`
	// 完成百分比，派生字段，只增不减
	CompletionPercentage int `gorm:"default:0" json:"completionPercentage"`
	// 累计学习时长（秒）
	TotalTimeSpent int `gorm:"default:0" json:"totalTimeSpent"`

	// 幻灯片完成标记，键为幻灯片编号
	SlidesCompleted map[string]bool `gorm:"serializer:json;type:json" json:"slidesCompleted"`
	// 幻灯片首次进入时间，只写一次
	SlideStartedAt map[string]time.Time `gorm:"serializer:json;type:json" json:"slideStartedAt"`
	// 幻灯片完成时间，只写一次
	SlideCompletedAt map[string]time.Time `gorm:"serializer:json;type:json" json:"slideCompletedAt"`

	// 被拒绝的跳页请求计数（棘轮，审计用，永不清零）
	SkipAttempts int `gorm:"default:0" json:"skipAttempts"`

	// 课件内测验结果，由测验协作方回写
	QuizScore    *float64 `json:"quizScore"`
	QuizPassed   *bool    `json:"quizPassed"`
	QuizAttempts int      `gorm:"default:0" json:"quizAttempts"`

	// 内容完成（所有幻灯片过检），一旦置真不可回退
	ContentCompleted   bool       `gorm:"default:false" json:"contentCompleted"`
	ContentCompletedAt *time.Time `json:"contentCompletedAt"`

	// 最终完成 = 内容完成 且 测验通过
	IsCompleted bool       `gorm:"default:false" json:"isCompleted"`
	CompletedAt *time.Time `json:"completedAt"`

	StartedAt *time.Time `json:"startedAt"`

	// SCORM 数据透传，本服务不解释其内容
	ScormData        map[string]interface{} `gorm:"serializer:json;type:json" json:"scormData"`
	ScormSuspendData string                 `gorm:"type:text" json:"scormSuspendData"`

	// 乐观锁版本号，持久化层据此检测并发写
	LockVersion int `gorm:"default:0" json:"-"`
}

func (InteractiveProgress) TableName() string {
	return "interactive_course_progress"
}

// SlideKey JSON 映射里的幻灯片键
func SlideKey(slide int) string {
	return strconv.Itoa(slide)
}

// EnsureMaps 懒建映射字段，gorm 反序列化空 JSON 会留下 nil
func (p *InteractiveProgress) EnsureMaps() {
	if p.SlidesCompleted == nil {
		p.SlidesCompleted = map[string]bool{}
	}
	if p.SlideStartedAt == nil {
		p.SlideStartedAt = map[string]time.Time{}
	}
	if p.SlideCompletedAt == nil {
		p.SlideCompletedAt = map[string]time.Time{}
	}
	if p.ScormData == nil {
		p.ScormData = map[string]interface{}{}
	}
}

// SlidesCompletedCount 已完成幻灯片数
func (p *InteractiveProgress) SlidesCompletedCount() int {
	count := 0
	for _, done := range p.SlidesCompleted {
		if done {
			count++
		}
	}
	return count
}

// AllowedNextSlide 当前允许进入的最远幻灯片
func (p *InteractiveProgress) AllowedNextSlide() int {
	return p.HighestSlideReached + 1
}

// SlideStarted 幻灯片是否已有开始时间
func (p *InteractiveProgress) SlideStarted(slide int) bool {
	_, ok := p.SlideStartedAt[SlideKey(slide)]
	return ok
}

// StartSlide 记录幻灯片开始时间，幂等：已有时间戳时不覆盖
func (p *InteractiveProgress) StartSlide(slide int, now time.Time) {
	p.EnsureMaps()
	key := SlideKey(slide)
	if _, ok := p.SlideStartedAt[key]; !ok {
		p.SlideStartedAt[key] = now
	}
	if p.StartedAt == nil {
		t := now
		p.StartedAt = &t
	}
}

// Clone 深拷贝，ProgressService 在工作副本上应用请求，被拒绝的请求不落库
func (p *InteractiveProgress) Clone() *InteractiveProgress {
	cp := *p
	cp.SlidesCompleted = make(map[string]bool, len(p.SlidesCompleted))
	for k, v := range p.SlidesCompleted {
		cp.SlidesCompleted[k] = v
	}
	cp.SlideStartedAt = make(map[string]time.Time, len(p.SlideStartedAt))
	for k, v := range p.SlideStartedAt {
		cp.SlideStartedAt[k] = v
	}
	cp.SlideCompletedAt = make(map[string]time.Time, len(p.SlideCompletedAt))
	for k, v := range p.SlideCompletedAt {
		cp.SlideCompletedAt[k] = v
	}
	cp.ScormData = make(map[string]interface{}, len(p.ScormData))
	for k, v := range p.ScormData {
		cp.ScormData[k] = v
	}
	if p.QuizScore != nil {
		s := *p.QuizScore
		cp.QuizScore = &s
	}
	if p.QuizPassed != nil {
		b := *p.QuizPassed
		cp.QuizPassed = &b
	}
	if p.ContentCompletedAt != nil {
		t := *p.ContentCompletedAt
		cp.ContentCompletedAt = &t
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		cp.CompletedAt = &t
	}
	if p.StartedAt != nil {
		t := *p.StartedAt
		cp.StartedAt = &t
	}
	return &cp
}
