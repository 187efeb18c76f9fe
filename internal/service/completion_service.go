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
	"lms_backend/pkg/tracing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CompletionResult 课程完成判定结果
type CompletionResult struct {
	IsCompleted       bool   `json:"isCompleted"`
	CertificateID     string `json:"certificateId,omitempty"`
	CertificateNumber string `json:"certificateNumber,omitempty"`
}

type CompletionService struct {
	DB             *gorm.DB
	CourseRepo     *repository.CourseRepository
	ProgressRepo   *repository.ProgressRepository
	CertRepo       *repository.CertificateRepository
	EnrollmentRepo *repository.EnrollmentRepository
	Now            func() time.Time
}

func NewCompletionService(
	db *gorm.DB,
	courseRepo *repository.CourseRepository,
	progressRepo *repository.ProgressRepository,
	certRepo *repository.CertificateRepository,
	enrollmentRepo *repository.EnrollmentRepository,
) *CompletionService {
	return &CompletionService{
		DB:             db,
		CourseRepo:     courseRepo,
		ProgressRepo:   progressRepo,
		CertRepo:       certRepo,
		EnrollmentRepo: enrollmentRepo,
		Now:            time.Now,
	}
}

// EvaluateCompletion 所有课时完成时颁发证书（每个学员每门课仅一张）并将 Active 报名置为 Completed
func (s *CompletionService) EvaluateCompletion(ctx context.Context, learnerID, courseID string) (result *CompletionResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "completion.evaluate",
		attribute.String("learner.id", learnerID),
		attribute.String("course.id", courseID))
	defer func() { tracing.EndSpan(span, err) }()

	lessonIDs, err := s.CourseRepo.LessonIDs(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("load course lessons: %w", err)
	}
	// 空课程永远不算完成
	if len(lessonIDs) == 0 {
		return &CompletionResult{}, nil
	}

	completed, err := s.ProgressRepo.CountCompleted(ctx, learnerID, lessonIDs)
	if err != nil {
		return nil, fmt.Errorf("count completed lessons: %w", err)
	}
	span.SetAttributes(
		attribute.Int("lessons.total", len(lessonIDs)),
		attribute.Int64("lessons.completed", completed),
	)
	if completed < int64(len(lessonIDs)) {
		return &CompletionResult{}, nil
	}

	cert, err := s.CertRepo.FindByUserAndCourse(ctx, learnerID, courseID)
	if err == nil {
		return completedResult(cert), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find certificate: %w", err)
	}

	cert, err = s.issueCertificate(ctx, learnerID, courseID)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// 并发完成最后一课，唯一索引保证只有一张证书，读取胜出方
		cert, err = s.CertRepo.FindByUserAndCourse(ctx, learnerID, courseID)
		if err != nil {
			return nil, fmt.Errorf("reload certificate: %w", err)
		}
		return completedResult(cert), nil
	}
	if err != nil {
		return nil, err
	}
	return completedResult(cert), nil
}

func (s *CompletionService) issueCertificate(ctx context.Context, learnerID, courseID string) (*model.Certificate, error) {
	now := s.Now()
	cert := &model.Certificate{
		Number:   util.GenerateCertificateNumber(now),
		UserID:   learnerID,
		CourseID: courseID,
		IssuedAt: now,
	}

	var promoted int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.CertRepo.WithTx(tx).Create(ctx, cert); err != nil {
			return err
		}
		n, err := s.EnrollmentRepo.WithTx(tx).PromoteToCompleted(ctx, learnerID, courseID, now)
		if err != nil {
			return fmt.Errorf("promote enrollment: %w", err)
		}
		promoted = n
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, err
		}
		return nil, fmt.Errorf("issue certificate: %w", err)
	}

	monitoring.CertificatesIssued.Inc()
	if promoted > 0 {
		monitoring.EnrollmentStatusChanges.WithLabelValues(string(model.EnrollmentCompleted)).Add(float64(promoted))
	}
	logger.Log.Info("Certificate issued",
		zap.String("learnerId", learnerID),
		zap.String("courseId", courseID),
		zap.String("certificateNumber", cert.Number),
		zap.Int64("enrollmentsCompleted", promoted))
	return cert, nil
}

func completedResult(cert *model.Certificate) *CompletionResult {
	return &CompletionResult{
		IsCompleted:       true,
		CertificateID:     cert.ID,
		CertificateNumber: cert.Number,
	}
}
