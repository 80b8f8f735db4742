package service

// RejectCode 进度更新被拒绝的原因，错误码不可互相合并
type RejectCode string

const (
	CodeInvalidPayload RejectCode = "invalid_payload"  // 字段类型/取值非法，无状态变更
	CodeInvalidSlide   RejectCode = "invalid_slide"    // 幻灯片编号越界，无状态变更
	CodeSlideLocked    RejectCode = "slide_locked"     // current_slide 越过棘轮，计入 skip_attempts
	CodeSlideSkip      RejectCode = "slide_skip"       // highest 声明或完成声明越过棘轮，计入 skip_attempts
	CodeMinTimeNotMet  RejectCode = "min_time_not_met" // 停留时间不足，只保留开始时间戳
	CodeSeekTooFar     RejectCode = "seek_too_far"     // 视频 seek 越过观看前沿，计入 skip_attempts
)

// Rejection 带权威状态的拒绝结果，客户端据此自行校正 UI，无需二次请求
type Rejection struct {
	Code    RejectCode `json:"code"`
	Message string     `json:"message"`
	// min_time_not_met 时的剩余等待秒数，客户端用来显示倒计时
	RemainingSeconds int `json:"remaining_seconds,omitempty"`
	// 客户端企图到达的值，审计用
	Requested int `json:"-"`
	// 拒绝后的权威状态快照（幻灯片型内容）
	State *ProgressState `json:"state,omitempty"`
	// 拒绝后的权威状态快照（视频型内容）
	VideoState *VideoProgressState `json:"video_state,omitempty"`
}

func (r *Rejection) Error() string {
	return string(r.Code) + ": " + r.Message
}

// Audited 该拒绝是否为安全相关信号（需要走审计通道）
func (r *Rejection) Audited() bool {
	switch r.Code {
	case CodeSlideLocked, CodeSlideSkip, CodeSeekTooFar:
		return true
	}
	return false
}
