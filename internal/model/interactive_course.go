package model

// 交互式课件类型
const (
	ContentTypeCaptivate  = "captivate"
	ContentTypeScorm      = "scorm"
	ContentTypeHTML5      = "html5"
	ContentTypeArticulate = "articulate"
)

// InteractiveCourse 交互式课件包（SCORM/Captivate），按幻灯片顺序学习
// 包的上传、解压和元数据解析由内容管理后台完成，这里只消费结果
type InteractiveCourse struct {
	BaseModel
	CourseID    uint   `gorm:"index;not null" json:"courseId"`
	Title       string `gorm:"size:255;not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	ContentType string `gorm:"size:20;default:captivate" json:"contentType"`

	ExtractedPath string `gorm:"size:500" json:"extractedPath"`
	EntryFile     string `gorm:"size:255;default:index.html" json:"entryFile"`

	// 包元数据，防跳过校验的依据
	DurationMinutes int `gorm:"default:0" json:"durationMinutes"`
	TotalSlides     int `gorm:"default:0" json:"totalSlides"`

	OrderIndex int  `gorm:"default:0" json:"orderIndex"`
	IsActive   bool `gorm:"default:true" json:"isActive"`
	CreatedBy  uint `gorm:"index" json:"createdBy"`
}

func (InteractiveCourse) TableName() string {
	return "interactive_courses"
}

// LaunchURL 课件入口地址，未解压时为空
func (ic *InteractiveCourse) LaunchURL() string {
	if ic.ExtractedPath == "" {
		return ""
	}
	return "/media/" + ic.ExtractedPath + "/" + ic.EntryFile
}
