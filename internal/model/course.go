package model

// Course 培训课程，内容单元（交互式课件、视频）都挂在课程下
// 课程的创建与编辑由内容管理后台负责，本服务只读
type Course struct {
	BaseModel
	Title       string `gorm:"size:255;not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	CreatedBy   uint   `gorm:"index" json:"createdBy"`
	IsActive    bool   `gorm:"default:true" json:"isActive"`
}

func (Course) TableName() string {
	return "courses"
}
