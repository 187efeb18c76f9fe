package repository

import (
	"context"
	"lms_backend/internal/model"

	"gorm.io/gorm"
)

type PaymentRepository struct {
	DB *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{DB: db}
}

func (r *PaymentRepository) Create(ctx context.Context, p *model.Payment) error {
	return r.DB.WithContext(ctx).Create(p).Error
}

func (r *PaymentRepository) Save(ctx context.Context, p *model.Payment) error {
	return r.DB.WithContext(ctx).Save(p).Error
}

func (r *PaymentRepository) FindByOrderID(ctx context.Context, orderID string) (*model.Payment, error) {
	var p model.Payment
	if err := r.DB.WithContext(ctx).Where("order_id = ?", orderID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]model.Payment, error) {
	var list []model.Payment
	err := r.DB.WithContext(ctx).Where("enrollment_id = ?", enrollmentID).Order("created_at DESC").Find(&list).Error
	return list, err
}

func (r *PaymentRepository) CreateEvent(ctx context.Context, ev *model.PaymentEvent) error {
	return r.DB.WithContext(ctx).Create(ev).Error
}

func (r *PaymentRepository) UpdateEventStatus(ctx context.Context, id, status, errMsg string) error {
	return r.DB.WithContext(ctx).Model(&model.PaymentEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "error": errMsg}).Error
}
