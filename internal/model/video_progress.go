package model

import "time"

// VideoProgress 员工的视频观看进度（防快进）
// 每个 (user, video) 至多一条记录
type VideoProgress struct {
	BaseModel
	UserID  uint `gorm:"index:idx_user_video,unique;not null" json:"userId"`
	VideoID uint `gorm:"index:idx_user_video,unique;not null" json:"videoId"`

	// 已观看秒数（棘轮，只增不减）
	WatchedSeconds int `gorm:"default:0" json:"watchedSeconds"`
	// 最后播放位置（秒），用于续播
	LastPosition int `gorm:"default:0" json:"lastPosition"`

	// 被拒绝的快进请求计数
	SkipAttempts int `gorm:"default:0" json:"skipAttempts"`

	IsCompleted bool       `gorm:"default:false" json:"isCompleted"`
	CompletedAt *time.Time `json:"completedAt"`
	StartedAt   *time.Time `json:"startedAt"`

	// 乐观锁版本号
	LockVersion int `gorm:"default:0" json:"-"`
}

func (VideoProgress) TableName() string {
	return "video_progress"
}

// Clone 工作副本
func (p *VideoProgress) Clone() *VideoProgress {
	cp := *p
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
