package model

import (
	"time"
)

type UserRole string

const (
	Student    UserRole = "student"
	Instructor UserRole = "instructor"
	Admin      UserRole = "admin"
)

// IsStaff 讲师和管理员可以访问所有课程内容
func (r UserRole) IsStaff() bool {
	return r == Instructor || r == Admin
}

// swagger:model User
type User struct {
	UUIDBase
	Name      string     `gorm:"size:100;not null" json:"name"`
	Email     string     `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Password  string     `gorm:"size:100;not null" json:"-"`
	Role      UserRole   `gorm:"size:20;default:'student'" json:"role"`
	Avatar    string     `gorm:"size:255" json:"avatar"`
	Disabled  bool       `gorm:"default:false" json:"disabled"`
	LastLogin *time.Time `json:"lastLogin"`
}

func (User) TableName() string {
	return "users"
}
