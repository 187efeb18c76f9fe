package repository

import (
	"context"
	"errors"
	"lms_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

// MarkCompleted 创建或更新完成记录；completed 只会从 false 变为 true
func (r *ProgressRepository) MarkCompleted(ctx context.Context, userID, lessonID string, now time.Time) (*model.LessonProgress, error) {
	var progress model.LessonProgress
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND lesson_id = ?", userID, lessonID).First(&progress).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			progress = model.LessonProgress{
				UserID:      userID,
				LessonID:    lessonID,
				Completed:   true,
				CompletedAt: &now,
			}
			err = tx.Create(&progress).Error
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// 并发创建，另一方已写入，重新读取
				return tx.Where("user_id = ? AND lesson_id = ?", userID, lessonID).First(&progress).Error
			}
			return err
		}
		if err != nil {
			return err
		}
		if progress.Completed {
			return nil
		}
		progress.Completed = true
		progress.CompletedAt = &now
		return tx.Save(&progress).Error
	})
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

// CountCompleted 只统计 lessonIDs 范围内已完成的记录
func (r *ProgressRepository) CountCompleted(ctx context.Context, userID string, lessonIDs []string) (int64, error) {
	if len(lessonIDs) == 0 {
		return 0, nil
	}
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.LessonProgress{}).
		Where("user_id = ? AND completed = ? AND lesson_id IN ?", userID, true, lessonIDs).
		Count(&count).Error
	return count, err
}

// CompletedSet 返回 lessonIDs 中已完成的课时集合
func (r *ProgressRepository) CompletedSet(ctx context.Context, userID string, lessonIDs []string) (map[string]bool, error) {
	result := make(map[string]bool)
	if len(lessonIDs) == 0 {
		return result, nil
	}
	var ids []string
	err := r.DB.WithContext(ctx).Model(&model.LessonProgress{}).
		Where("user_id = ? AND completed = ? AND lesson_id IN ?", userID, true, lessonIDs).
		Pluck("lesson_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		result[id] = true
	}
	return result, nil
}

func (r *ProgressRepository) IsCompleted(ctx context.Context, userID, lessonID string) (bool, error) {
	var progress model.LessonProgress
	err := r.DB.WithContext(ctx).Where("user_id = ? AND lesson_id = ?", userID, lessonID).First(&progress).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return progress.Completed, nil
}
