package model

// 跳页尝试的类别
const (
	SkipKindSlideLocked  = "slide_locked"  // current_slide 越过棘轮
	SkipKindSlideSkip    = "slide_skip"    // highest 声明或完成声明越过棘轮
	SkipKindVideoForward = "video_forward" // 视频 seek 越过观看前沿
)

// SkipAttemptLog 跳页尝试审计记录，安全信号，只追加不修改
type SkipAttemptLog struct {
	BaseModel
	EventID       string `gorm:"size:36;index" json:"eventId"`
	UserID        uint   `gorm:"index" json:"userId"`
	ContentItemID uint   `gorm:"index" json:"contentItemId"`
	Kind          string `gorm:"size:20" json:"kind"`
	// 客户端企图到达的值
	Requested int `json:"requested"`
	// 拒绝时的权威值（幻灯片为 highest_slide_reached，视频为观看前沿秒数）
	Authoritative int `json:"authoritative"`
}

func (SkipAttemptLog) TableName() string {
	return "skip_attempt_logs"
}
