package model

// CourseVideo 课程视频，单段连续内容，按观看秒数计进度
type CourseVideo struct {
	BaseModel
	CourseID    uint   `gorm:"index;not null" json:"courseId"`
	Title       string `gorm:"size:255;not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`

	// 时长（秒），0 表示转码侧未能识别
	DurationSeconds int `gorm:"default:0" json:"durationSeconds"`

	OrderIndex int  `gorm:"default:0" json:"orderIndex"`
	IsActive   bool `gorm:"default:true" json:"isActive"`
}

func (CourseVideo) TableName() string {
	return "course_videos"
}
