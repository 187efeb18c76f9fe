package service

import (
	"context"
	"errors"
	"fmt"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"

	"gorm.io/gorm"
)

// Viewer 当前请求的用户身份；匿名访问时 UserID 为空
type Viewer struct {
	UserID string
	Role   model.UserRole
}

func (v Viewer) Anonymous() bool {
	return v.UserID == ""
}

// AccessChecker 课程内容访问控制
type AccessChecker struct {
	EnrollmentRepo *repository.EnrollmentRepository
}

func NewAccessChecker(enrollmentRepo *repository.EnrollmentRepository) *AccessChecker {
	return &AccessChecker{EnrollmentRepo: enrollmentRepo}
}

// HasEnrollmentAccess 报名为 Active 或 Completed 时可访问；讲师和管理员总是可以访问
func (a *AccessChecker) HasEnrollmentAccess(ctx context.Context, viewer Viewer, courseID string) (bool, error) {
	if viewer.Role.IsStaff() {
		return true, nil
	}
	return a.hasOwnEnrollment(ctx, viewer, courseID)
}

// hasOwnEnrollment 仅看本人报名状态，不考虑角色
func (a *AccessChecker) hasOwnEnrollment(ctx context.Context, viewer Viewer, courseID string) (bool, error) {
	if viewer.Anonymous() {
		return false, nil
	}
	e, err := a.EnrollmentRepo.FindByUserAndCourse(ctx, viewer.UserID, courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find enrollment: %w", err)
	}
	return e.Status.GrantsAccess(), nil
}

// CanWatch 免费试看课时对所有人开放
func (a *AccessChecker) CanWatch(ctx context.Context, viewer Viewer, courseID string, lesson *model.Lesson) (bool, error) {
	if lesson.IsFree {
		return true, nil
	}
	return a.HasEnrollmentAccess(ctx, viewer, courseID)
}

// RequireEnrollment 记录学习进度需要本人的有效报名，讲师和管理员预览课程不产生进度和证书
func (a *AccessChecker) RequireEnrollment(ctx context.Context, viewer Viewer, courseID string) error {
	if viewer.Anonymous() {
		return util.ErrUnauthorized
	}
	ok, err := a.hasOwnEnrollment(ctx, viewer, courseID)
	if err != nil {
		return err
	}
	if !ok {
		return util.ErrNotEnrolled
	}
	return nil
}

// CanManage 管理员可管理所有课程，讲师只能管理自己的课程
func CanManage(viewer Viewer, course *model.Course) bool {
	switch viewer.Role {
	case model.Admin:
		return true
	case model.Instructor:
		return course.InstructorID == viewer.UserID
	default:
		return false
	}
}
