package service

import (
	"context"
	"errors"
	"fmt"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DashboardStats 后台概览
type DashboardStats struct {
	CoursesByStatus     map[model.CourseStatus]int64     `json:"coursesByStatus"`
	EnrollmentsByStatus map[model.EnrollmentStatus]int64 `json:"enrollmentsByStatus"`
	Revenue             int64                            `json:"revenue"`
	CertificatesIssued  int64                            `json:"certificatesIssued"`
}

type DashboardService struct {
	CourseRepo     *repository.CourseRepository
	EnrollmentRepo *repository.EnrollmentRepository
	CertRepo       *repository.CertificateRepository
	UserRepo       *repository.UserRepository
}

func NewDashboardService(
	courseRepo *repository.CourseRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	certRepo *repository.CertificateRepository,
	userRepo *repository.UserRepository,
) *DashboardService {
	return &DashboardService{
		CourseRepo:     courseRepo,
		EnrollmentRepo: enrollmentRepo,
		CertRepo:       certRepo,
		UserRepo:       userRepo,
	}
}

func (s *DashboardService) Stats(ctx context.Context) (*DashboardStats, error) {
	courses, err := s.CourseRepo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count courses: %w", err)
	}
	enrollments, err := s.EnrollmentRepo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count enrollments: %w", err)
	}
	revenue, err := s.EnrollmentRepo.Revenue(ctx)
	if err != nil {
		return nil, fmt.Errorf("sum revenue: %w", err)
	}
	certs, err := s.CertRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count certificates: %w", err)
	}
	return &DashboardStats{
		CoursesByStatus:     courses,
		EnrollmentsByStatus: enrollments,
		Revenue:             revenue,
		CertificatesIssued:  certs,
	}, nil
}

func (s *DashboardService) ListUsers(ctx context.Context, keyword string, role model.UserRole, page, limit int) ([]model.User, int64, error) {
	return s.UserRepo.List(ctx, keyword, role, util.Offset(page, limit), limit)
}

// SetUserDisabled 禁用或启用账号，管理员不能禁用自己
func (s *DashboardService) SetUserDisabled(ctx context.Context, viewer Viewer, userID string, disabled bool) error {
	if viewer.UserID == userID && disabled {
		return util.ErrPermissionDenied
	}
	if err := s.UserRepo.SetDisabled(ctx, userID, disabled); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrUserNotFound
		}
		return fmt.Errorf("update user: %w", err)
	}
	logger.Log.Info("User disabled flag changed",
		zap.String("userId", userID),
		zap.Bool("disabled", disabled),
		zap.String("operatorId", viewer.UserID))
	return nil
}
