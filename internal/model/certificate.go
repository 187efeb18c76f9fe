package model

import "time"

// Certificate 课程结业证书，(user, course) 唯一，创建后不可修改
// swagger:model Certificate
type Certificate struct {
	UUIDBase
	Number   string    `gorm:"size:64;not null;uniqueIndex" json:"number"`
	UserID   string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_certificate_user_course" json:"userId"`
	CourseID string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_certificate_user_course" json:"courseId"`
	IssuedAt time.Time `gorm:"not null" json:"issuedAt"`
	Course   *Course   `gorm:"foreignKey:CourseID" json:"course,omitempty"`
}

func (Certificate) TableName() string {
	return "certificates"
}
