package service

import (
	"context"
	"errors"
	"fmt"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"time"

	"gorm.io/gorm"
)

// CertificateVerification 公开验证证书返回的信息
type CertificateVerification struct {
	Number      string    `json:"number"`
	LearnerName string    `json:"learnerName"`
	CourseID    string    `json:"courseId"`
	CourseTitle string    `json:"courseTitle"`
	IssuedAt    time.Time `json:"issuedAt"`
}

type CertificateService struct {
	CertRepo *repository.CertificateRepository
	UserRepo *repository.UserRepository
}

func NewCertificateService(certRepo *repository.CertificateRepository, userRepo *repository.UserRepository) *CertificateService {
	return &CertificateService{CertRepo: certRepo, UserRepo: userRepo}
}

func (s *CertificateService) ListMine(ctx context.Context, viewer Viewer) ([]model.Certificate, error) {
	return s.CertRepo.ListByUser(ctx, viewer.UserID)
}

// Verify 根据证书编号验证
func (s *CertificateService) Verify(ctx context.Context, number string) (*CertificateVerification, error) {
	cert, err := s.CertRepo.FindByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCertificateNotFound
		}
		return nil, fmt.Errorf("find certificate: %w", err)
	}

	names, err := s.UserRepo.FindNamesByIDs(ctx, []string{cert.UserID})
	if err != nil {
		return nil, fmt.Errorf("find learner: %w", err)
	}

	v := &CertificateVerification{
		Number:      cert.Number,
		LearnerName: names[cert.UserID],
		CourseID:    cert.CourseID,
		IssuedAt:    cert.IssuedAt,
	}
	if cert.Course != nil {
		v.CourseTitle = cert.Course.Title
	}
	return v, nil
}
