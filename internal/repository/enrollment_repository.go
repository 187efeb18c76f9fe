package repository

import (
	"context"
	"lms_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type EnrollmentRepository struct {
	DB *gorm.DB
}

func NewEnrollmentRepository(db *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{DB: db}
}

func (r *EnrollmentRepository) WithTx(tx *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{DB: tx}
}

type EnrollmentFilter struct {
	UserID   string
	CourseID string
	Status   model.EnrollmentStatus
	Offset   int
	Limit    int
}

func (r *EnrollmentRepository) Create(ctx context.Context, e *model.Enrollment) error {
	return r.DB.WithContext(ctx).Create(e).Error
}

func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*model.Enrollment, error) {
	var e model.Enrollment
	if err := r.DB.WithContext(ctx).First(&e, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *EnrollmentRepository) FindByUserAndCourse(ctx context.Context, userID, courseID string) (*model.Enrollment, error) {
	var e model.Enrollment
	err := r.DB.WithContext(ctx).Where("user_id = ? AND course_id = ?", userID, courseID).First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// TransitionStatus 条件更新：仅当当前状态属于 from 时才更新，返回受影响行数
func (r *EnrollmentRepository) TransitionStatus(ctx context.Context, id string, from []model.EnrollmentStatus, to model.EnrollmentStatus, fields map[string]interface{}) (int64, error) {
	updates := map[string]interface{}{"status": to}
	for k, v := range fields {
		updates[k] = v
	}
	res := r.DB.WithContext(ctx).Model(&model.Enrollment{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	return res.RowsAffected, res.Error
}

// PromoteToCompleted 将 (user, course) 的 Active 报名标记为 Completed
func (r *EnrollmentRepository) PromoteToCompleted(ctx context.Context, userID, courseID string, now time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).Model(&model.Enrollment{}).
		Where("user_id = ? AND course_id = ? AND status IN ?", userID, courseID, []model.EnrollmentStatus{model.EnrollmentActive}).
		Updates(map[string]interface{}{
			"status":       model.EnrollmentCompleted,
			"completed_at": now,
		})
	return res.RowsAffected, res.Error
}

func (r *EnrollmentRepository) List(ctx context.Context, f EnrollmentFilter) ([]model.Enrollment, int64, error) {
	query := r.DB.WithContext(ctx).Model(&model.Enrollment{})
	if f.UserID != "" {
		query = query.Where("user_id = ?", f.UserID)
	}
	if f.CourseID != "" {
		query = query.Where("course_id = ?", f.CourseID)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	var list []model.Enrollment
	err := query.Preload("Course").Order("created_at DESC").Offset(f.Offset).Limit(limit).Find(&list).Error
	return list, total, err
}

func (r *EnrollmentRepository) CountByStatus(ctx context.Context) (map[model.EnrollmentStatus]int64, error) {
	var rows []struct {
		Status model.EnrollmentStatus
		Count  int64
	}
	err := r.DB.WithContext(ctx).Model(&model.Enrollment{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make(map[model.EnrollmentStatus]int64, len(rows))
	for _, row := range rows {
		result[row.Status] = row.Count
	}
	return result, nil
}

// Revenue 已生效报名的实付金额合计
func (r *EnrollmentRepository) Revenue(ctx context.Context) (int64, error) {
	var total *int64
	err := r.DB.WithContext(ctx).Model(&model.Enrollment{}).
		Where("status IN ?", []model.EnrollmentStatus{model.EnrollmentActive, model.EnrollmentCompleted}).
		Select("SUM(amount_paid)").
		Scan(&total).Error
	if err != nil || total == nil {
		return 0, err
	}
	return *total, nil
}

// CancelStalePending 取消早于 before 仍未支付的报名
func (r *EnrollmentRepository) CancelStalePending(ctx context.Context, before time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).Model(&model.Enrollment{}).
		Where("status = ? AND updated_at < ?", model.EnrollmentPending, before).
		Update("status", model.EnrollmentCancelled)
	return res.RowsAffected, res.Error
}
