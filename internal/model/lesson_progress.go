package model

import "time"

// LessonProgress 学员对单个课时的完成状态，(user, lesson) 唯一
// swagger:model LessonProgress
type LessonProgress struct {
	UUIDBase
	UserID      string     `gorm:"type:varchar(36);not null;uniqueIndex:idx_user_lesson" json:"userId"`
	LessonID    string     `gorm:"type:varchar(36);not null;uniqueIndex:idx_user_lesson;index" json:"lessonId"`
	Completed   bool       `gorm:"default:false" json:"completed"`
	CompletedAt *time.Time `json:"completedAt"`
}

func (LessonProgress) TableName() string {
	return "lesson_progress"
}
