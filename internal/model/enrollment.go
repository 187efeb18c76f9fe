package model

import "time"

type EnrollmentStatus string

const (
	EnrollmentPending   EnrollmentStatus = "pending"
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentCompleted EnrollmentStatus = "completed"
	EnrollmentCancelled EnrollmentStatus = "cancelled"
	EnrollmentRefunded  EnrollmentStatus = "refunded"
)

// 状态只向前流转；Cancelled -> Pending 仅用于放弃支付后重新下单
var enrollmentTransitions = map[EnrollmentStatus][]EnrollmentStatus{
	EnrollmentPending:   {EnrollmentActive, EnrollmentCancelled},
	EnrollmentActive:    {EnrollmentCompleted, EnrollmentRefunded},
	EnrollmentCompleted: {},
	EnrollmentCancelled: {EnrollmentPending},
	EnrollmentRefunded:  {},
}

func (s EnrollmentStatus) Valid() bool {
	_, ok := enrollmentTransitions[s]
	return ok
}

func (s EnrollmentStatus) CanTransitionTo(next EnrollmentStatus) bool {
	for _, allowed := range enrollmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// GrantsAccess 可观看课程内容的状态
func (s EnrollmentStatus) GrantsAccess() bool {
	return s == EnrollmentActive || s == EnrollmentCompleted
}

// swagger:model Enrollment
type Enrollment struct {
	UUIDBase
	UserID      string           `gorm:"type:varchar(36);not null;uniqueIndex:idx_enrollment_user_course" json:"userId"`
	CourseID    string           `gorm:"type:varchar(36);not null;uniqueIndex:idx_enrollment_user_course;index" json:"courseId"`
	AmountPaid  int64            `gorm:"default:0" json:"amountPaid"`
	Status      EnrollmentStatus `gorm:"size:20;index;default:'pending'" json:"status"`
	ActivatedAt *time.Time       `json:"activatedAt"`
	CompletedAt *time.Time       `json:"completedAt"`
	Course      *Course          `gorm:"foreignKey:CourseID" json:"course,omitempty"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}
