package repository

import (
	"context"
	"lms_backend/internal/model"

	"gorm.io/gorm"
)

type CertificateRepository struct {
	DB *gorm.DB
}

func NewCertificateRepository(db *gorm.DB) *CertificateRepository {
	return &CertificateRepository{DB: db}
}

func (r *CertificateRepository) WithTx(tx *gorm.DB) *CertificateRepository {
	return &CertificateRepository{DB: tx}
}

func (r *CertificateRepository) Create(ctx context.Context, cert *model.Certificate) error {
	return r.DB.WithContext(ctx).Create(cert).Error
}

func (r *CertificateRepository) FindByUserAndCourse(ctx context.Context, userID, courseID string) (*model.Certificate, error) {
	var cert model.Certificate
	err := r.DB.WithContext(ctx).Where("user_id = ? AND course_id = ?", userID, courseID).First(&cert).Error
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

func (r *CertificateRepository) FindByNumber(ctx context.Context, number string) (*model.Certificate, error) {
	var cert model.Certificate
	err := r.DB.WithContext(ctx).Preload("Course").Where("number = ?", number).First(&cert).Error
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

func (r *CertificateRepository) ListByUser(ctx context.Context, userID string) ([]model.Certificate, error) {
	var certs []model.Certificate
	err := r.DB.WithContext(ctx).Preload("Course").
		Where("user_id = ?", userID).
		Order("issued_at DESC").
		Find(&certs).Error
	return certs, err
}

func (r *CertificateRepository) CountByUserAndCourse(ctx context.Context, userID, courseID string) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Certificate{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error
	return count, err
}

func (r *CertificateRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Certificate{}).Count(&count).Error
	return count, err
}
