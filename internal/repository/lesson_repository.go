package repository

import (
	"context"
	"errors"
	"lms_backend/internal/model"

	"gorm.io/gorm"
)

type ChapterRepository struct {
	DB *gorm.DB
}

func NewChapterRepository(db *gorm.DB) *ChapterRepository {
	return &ChapterRepository{DB: db}
}

func (r *ChapterRepository) Create(ctx context.Context, chapter *model.Chapter) error {
	return r.DB.WithContext(ctx).Create(chapter).Error
}

func (r *ChapterRepository) Update(ctx context.Context, chapter *model.Chapter) error {
	return r.DB.WithContext(ctx).Save(chapter).Error
}

func (r *ChapterRepository) FindByID(ctx context.Context, id string) (*model.Chapter, error) {
	var chapter model.Chapter
	if err := r.DB.WithContext(ctx).First(&chapter, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &chapter, nil
}

// NextPosition 追加到末尾的位置
func (r *ChapterRepository) NextPosition(ctx context.Context, courseID string) (int, error) {
	var maxPos *int
	err := r.DB.WithContext(ctx).Model(&model.Chapter{}).
		Where("course_id = ?", courseID).
		Select("MAX(position)").
		Scan(&maxPos).Error
	if err != nil || maxPos == nil {
		return 1, err
	}
	return *maxPos + 1, nil
}

// Delete 物理删除章节及其课时，避免软删除记录占用唯一的 position
func (r *ChapterRepository) Delete(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("chapter_id = ?", id).Delete(&model.Lesson{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&model.Chapter{}, "id = ?", id).Error
	})
}

// Reorder orderedIDs 为课程全部章节的新顺序
func (r *ChapterRepository) Reorder(ctx context.Context, courseID string, orderedIDs []string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Chapter{}).Where("course_id = ?", courseID).Count(&count).Error; err != nil {
			return err
		}
		if int(count) != len(orderedIDs) {
			return errInvalidOrder
		}
		return reassignPositions(tx, &model.Chapter{}, "course_id", courseID, orderedIDs)
	})
}

type LessonRepository struct {
	DB *gorm.DB
}

func NewLessonRepository(db *gorm.DB) *LessonRepository {
	return &LessonRepository{DB: db}
}

// LessonLocation 课时及其所属章节、课程
type LessonLocation struct {
	Lesson  model.Lesson
	Chapter model.Chapter
}

func (r *LessonRepository) Create(ctx context.Context, lesson *model.Lesson) error {
	return r.DB.WithContext(ctx).Create(lesson).Error
}

func (r *LessonRepository) Update(ctx context.Context, lesson *model.Lesson) error {
	return r.DB.WithContext(ctx).Save(lesson).Error
}

func (r *LessonRepository) Delete(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Unscoped().Delete(&model.Lesson{}, "id = ?", id).Error
}

func (r *LessonRepository) FindByID(ctx context.Context, id string) (*model.Lesson, error) {
	var lesson model.Lesson
	if err := r.DB.WithContext(ctx).First(&lesson, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &lesson, nil
}

func (r *LessonRepository) Locate(ctx context.Context, lessonID string) (*LessonLocation, error) {
	lesson, err := r.FindByID(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	var chapter model.Chapter
	if err := r.DB.WithContext(ctx).First(&chapter, "id = ?", lesson.ChapterID).Error; err != nil {
		return nil, err
	}
	return &LessonLocation{Lesson: *lesson, Chapter: chapter}, nil
}

func (r *LessonRepository) NextPosition(ctx context.Context, chapterID string) (int, error) {
	var maxPos *int
	err := r.DB.WithContext(ctx).Model(&model.Lesson{}).
		Where("chapter_id = ?", chapterID).
		Select("MAX(position)").
		Scan(&maxPos).Error
	if err != nil || maxPos == nil {
		return 1, err
	}
	return *maxPos + 1, nil
}

// NextInChapter 同章节中 position 更大的第一个课时
func (r *LessonRepository) NextInChapter(ctx context.Context, chapterID string, position int) (*model.Lesson, error) {
	var lesson model.Lesson
	err := r.DB.WithContext(ctx).
		Where("chapter_id = ? AND position > ?", chapterID, position).
		Order("position ASC").
		First(&lesson).Error
	if err != nil {
		return nil, err
	}
	return &lesson, nil
}

// FirstInNextChapter 后续章节中（跳过空章节）position 最小的课时
func (r *LessonRepository) FirstInNextChapter(ctx context.Context, courseID string, chapterPosition int) (*model.Lesson, error) {
	var lesson model.Lesson
	err := r.DB.WithContext(ctx).
		Joins("JOIN chapters ON chapters.id = lessons.chapter_id AND chapters.deleted_at IS NULL").
		Where("chapters.course_id = ? AND chapters.position > ?", courseID, chapterPosition).
		Order("chapters.position ASC").
		Order("lessons.position ASC").
		First(&lesson).Error
	if err != nil {
		return nil, err
	}
	return &lesson, nil
}

func (r *LessonRepository) Reorder(ctx context.Context, chapterID string, orderedIDs []string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Lesson{}).Where("chapter_id = ?", chapterID).Count(&count).Error; err != nil {
			return err
		}
		if int(count) != len(orderedIDs) {
			return errInvalidOrder
		}
		return reassignPositions(tx, &model.Lesson{}, "chapter_id", chapterID, orderedIDs)
	})
}

var errInvalidOrder = errors.New("ordered ids do not match children")

// IsInvalidOrder 供服务层转换为业务错误
func IsInvalidOrder(err error) bool {
	return errors.Is(err, errInvalidOrder)
}

// reassignPositions 先写负数再写正数，绕开 (parent, position) 唯一索引冲突
func reassignPositions(tx *gorm.DB, m interface{}, parentColumn, parentID string, orderedIDs []string) error {
	for i, id := range orderedIDs {
		res := tx.Model(m).Where("id = ? AND "+parentColumn+" = ?", id, parentID).Update("position", -(i + 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errInvalidOrder
		}
	}
	for i, id := range orderedIDs {
		if err := tx.Model(m).Where("id = ?", id).Update("position", i+1).Error; err != nil {
			return err
		}
	}
	return nil
}
