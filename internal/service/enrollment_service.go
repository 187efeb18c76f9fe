package service

import (
	"context"
	"errors"
	"fmt"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"lms_backend/pkg/monitoring"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type EnrollmentService struct {
	EnrollmentRepo *repository.EnrollmentRepository
	CourseRepo     *repository.CourseRepository
	UserRepo       *repository.UserRepository
	Access         *AccessChecker
}

func NewEnrollmentService(
	enrollmentRepo *repository.EnrollmentRepository,
	courseRepo *repository.CourseRepository,
	userRepo *repository.UserRepository,
	access *AccessChecker,
) *EnrollmentService {
	return &EnrollmentService{
		EnrollmentRepo: enrollmentRepo,
		CourseRepo:     courseRepo,
		UserRepo:       userRepo,
		Access:         access,
	}
}

// ListMine 当前学员的报名（含课程信息）
func (s *EnrollmentService) ListMine(ctx context.Context, viewer Viewer, status model.EnrollmentStatus, page, limit int) ([]model.Enrollment, int64, error) {
	return s.EnrollmentRepo.List(ctx, repository.EnrollmentFilter{
		UserID: viewer.UserID,
		Status: status,
		Offset: util.Offset(page, limit),
		Limit:  limit,
	})
}

// AccessStatus 课程访问状态
type AccessStatus struct {
	CourseID   string                 `json:"courseId"`
	HasAccess  bool                   `json:"hasAccess"`
	Enrollment *model.Enrollment      `json:"enrollment,omitempty"`
	Status     model.EnrollmentStatus `json:"status,omitempty"`
}

func (s *EnrollmentService) CheckAccess(ctx context.Context, viewer Viewer, courseID string) (*AccessStatus, error) {
	result := &AccessStatus{CourseID: courseID}
	e, err := s.EnrollmentRepo.FindByUserAndCourse(ctx, viewer.UserID, courseID)
	if err == nil {
		result.Enrollment = e
		result.Status = e.Status
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find enrollment: %w", err)
	}

	ok, err := s.Access.HasEnrollmentAccess(ctx, viewer, courseID)
	if err != nil {
		return nil, err
	}
	result.HasAccess = ok
	return result, nil
}

// AdminList 后台报名列表
func (s *EnrollmentService) AdminList(ctx context.Context, f repository.EnrollmentFilter) ([]model.Enrollment, int64, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, util.ErrInvalidStatusTransition
	}
	return s.EnrollmentRepo.List(ctx, f)
}

// Grant 管理员直接开通课程（不经过支付）
func (s *EnrollmentService) Grant(ctx context.Context, userID, courseID string) (*model.Enrollment, error) {
	if _, err := s.UserRepo.FindByID(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if _, err := s.CourseRepo.FindByID(ctx, courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, fmt.Errorf("find course: %w", err)
	}

	now := time.Now()
	e, err := s.EnrollmentRepo.FindByUserAndCourse(ctx, userID, courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		e = &model.Enrollment{
			UserID:      userID,
			CourseID:    courseID,
			Status:      model.EnrollmentActive,
			ActivatedAt: &now,
		}
		if err := s.EnrollmentRepo.Create(ctx, e); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, util.ErrAlreadyEnrolled
			}
			return nil, fmt.Errorf("create enrollment: %w", err)
		}
		monitoring.EnrollmentStatusChanges.WithLabelValues(string(model.EnrollmentActive)).Inc()
		logger.Log.Info("Enrollment granted", zap.String("userId", userID), zap.String("courseId", courseID))
		return e, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find enrollment: %w", err)
	}

	if e.Status.GrantsAccess() {
		return nil, util.ErrAlreadyEnrolled
	}
	if e.Status == model.EnrollmentCancelled {
		if _, err := s.EnrollmentRepo.TransitionStatus(ctx, e.ID,
			[]model.EnrollmentStatus{model.EnrollmentCancelled}, model.EnrollmentPending, nil); err != nil {
			return nil, fmt.Errorf("reopen enrollment: %w", err)
		}
		e.Status = model.EnrollmentPending
	}
	from := []model.EnrollmentStatus{model.EnrollmentPending}
	if e.Status == model.EnrollmentRefunded {
		// 退款后学员不能自行重新下单，只能由管理员开通
		from = []model.EnrollmentStatus{model.EnrollmentRefunded}
	} else if !e.Status.CanTransitionTo(model.EnrollmentActive) {
		return nil, util.ErrInvalidStatusTransition
	}
	n, err := s.EnrollmentRepo.TransitionStatus(ctx, e.ID, from, model.EnrollmentActive,
		map[string]interface{}{"activated_at": now})
	if err != nil {
		return nil, fmt.Errorf("activate enrollment: %w", err)
	}
	if n == 0 {
		return nil, util.ErrInvalidStatusTransition
	}
	e.Status = model.EnrollmentActive
	e.ActivatedAt = &now
	monitoring.EnrollmentStatusChanges.WithLabelValues(string(model.EnrollmentActive)).Inc()
	logger.Log.Info("Enrollment granted", zap.String("userId", userID), zap.String("courseId", courseID))
	return e, nil
}
