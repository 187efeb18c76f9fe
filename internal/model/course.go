package model

type CourseStatus string

const (
	CourseDraft     CourseStatus = "draft"
	CoursePublished CourseStatus = "published"
	CourseArchived  CourseStatus = "archived"
)

var courseTransitions = map[CourseStatus][]CourseStatus{
	CourseDraft:     {CoursePublished, CourseArchived},
	CoursePublished: {CourseArchived},
	CourseArchived:  {CoursePublished},
}

func (s CourseStatus) Valid() bool {
	_, ok := courseTransitions[s]
	return ok
}

func (s CourseStatus) CanTransitionTo(next CourseStatus) bool {
	for _, allowed := range courseTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// swagger:model Course
type Course struct {
	UUIDBase
	Title        string       `gorm:"size:255;not null" json:"title"`
	Description  string       `gorm:"type:text" json:"description"`
	ImageURL     string       `gorm:"size:500" json:"imageUrl"`
	Category     string       `gorm:"size:100;index" json:"category"`
	Price        int64        `gorm:"not null;default:0" json:"price"` // 最小货币单位
	Status       CourseStatus `gorm:"size:20;index;default:'draft'" json:"status"`
	InstructorID string       `gorm:"type:varchar(36);index" json:"instructorId"`
	Chapters     []Chapter    `gorm:"foreignKey:CourseID" json:"chapters,omitempty"`
}

func (Course) TableName() string {
	return "courses"
}

func (c *Course) IsFree() bool {
	return c.Price <= 0
}

// swagger:model Chapter
type Chapter struct {
	UUIDBase
	CourseID string   `gorm:"type:varchar(36);not null;uniqueIndex:idx_course_chapter_position" json:"courseId"`
	Title    string   `gorm:"size:255;not null" json:"title"`
	Position int      `gorm:"not null;uniqueIndex:idx_course_chapter_position" json:"position"`
	Lessons  []Lesson `gorm:"foreignKey:ChapterID" json:"lessons,omitempty"`
}

func (Chapter) TableName() string {
	return "chapters"
}

// swagger:model Lesson
type Lesson struct {
	UUIDBase
	ChapterID       string `gorm:"type:varchar(36);not null;uniqueIndex:idx_chapter_lesson_position" json:"chapterId"`
	Title           string `gorm:"size:255;not null" json:"title"`
	Description     string `gorm:"type:text" json:"description"`
	VideoURL        string `gorm:"size:500" json:"videoUrl,omitempty"`
	VideoKey        string `gorm:"size:255;index" json:"videoKey,omitempty"` // 视频内容键，与传输地址无关
	ThumbnailURL    string `gorm:"size:500" json:"thumbnailUrl,omitempty"`
	DurationSeconds int    `gorm:"default:0" json:"durationSeconds"`
	Position        int    `gorm:"not null;uniqueIndex:idx_chapter_lesson_position" json:"position"`
	IsFree          bool   `gorm:"default:false" json:"isFree"`
}

func (Lesson) TableName() string {
	return "lessons"
}
