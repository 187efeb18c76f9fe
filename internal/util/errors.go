package util

import "errors"

var (
	ErrUserNotFound            = errors.New("用户不存在")
	ErrEmailRegistered         = errors.New("该邮箱已被注册")
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrUserDisabled            = errors.New("user disabled")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrPermissionDenied        = errors.New("permission denied")
	ErrCourseNotFound          = errors.New("course not found")
	ErrCourseNotPublished      = errors.New("course not published")
	ErrCourseHasNoLessons      = errors.New("course has no lessons")
	ErrCourseNotDraft          = errors.New("only draft courses can be deleted")
	ErrChapterNotFound         = errors.New("chapter not found")
	ErrLessonNotFound          = errors.New("lesson not found")
	ErrEnrollmentNotFound      = errors.New("enrollment not found")
	ErrNotEnrolled             = errors.New("not enrolled in course")
	ErrAlreadyEnrolled         = errors.New("already enrolled in course")
	ErrCertificateNotFound     = errors.New("certificate not found")
	ErrPaymentNotFound         = errors.New("payment not found")
	ErrInvalidSignature        = errors.New("invalid signature")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrInvalidVideoExt         = errors.New("unsupported video file type")
	ErrInvalidPosition         = errors.New("invalid position order")
)
