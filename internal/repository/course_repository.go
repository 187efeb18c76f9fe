package repository

import (
	"context"
	"lms_backend/internal/model"

	"gorm.io/gorm"
)

type CourseRepository struct {
	DB *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: db}
}

// CourseFilter 课程列表筛选条件
type CourseFilter struct {
	Keyword      string
	Category     string
	Status       model.CourseStatus
	InstructorID string
	Offset       int
	Limit        int
}

func (r *CourseRepository) Create(ctx context.Context, course *model.Course) error {
	return r.DB.WithContext(ctx).Create(course).Error
}

func (r *CourseRepository) Update(ctx context.Context, course *model.Course) error {
	return r.DB.WithContext(ctx).Save(course).Error
}

func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Delete(&model.Course{}, "id = ?", id).Error
}

func (r *CourseRepository) FindByID(ctx context.Context, id string) (*model.Course, error) {
	var course model.Course
	err := r.DB.WithContext(ctx).First(&course, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &course, nil
}

// FindWithOutline 预加载章节和课时，均按 position 升序
func (r *CourseRepository) FindWithOutline(ctx context.Context, id string) (*model.Course, error) {
	var course model.Course
	err := r.DB.WithContext(ctx).
		Preload("Chapters", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Chapters.Lessons", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&course, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *CourseRepository) List(ctx context.Context, f CourseFilter) ([]model.Course, int64, error) {
	query := r.DB.WithContext(ctx).Model(&model.Course{})
	if f.Keyword != "" {
		query = query.Where("title LIKE ?", "%"+f.Keyword+"%")
	}
	if f.Category != "" {
		query = query.Where("category = ?", f.Category)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.InstructorID != "" {
		query = query.Where("instructor_id = ?", f.InstructorID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var courses []model.Course
	err := query.Order("created_at DESC").Offset(f.Offset).Limit(f.Limit).Find(&courses).Error
	return courses, total, err
}

// LessonIDs 课程下全部课时 ID（通过章节关联）
func (r *CourseRepository) LessonIDs(ctx context.Context, courseID string) ([]string, error) {
	var ids []string
	err := r.DB.WithContext(ctx).Model(&model.Lesson{}).
		Joins("JOIN chapters ON chapters.id = lessons.chapter_id AND chapters.deleted_at IS NULL").
		Where("chapters.course_id = ?", courseID).
		Pluck("lessons.id", &ids).Error
	return ids, err
}

func (r *CourseRepository) CountByStatus(ctx context.Context) (map[model.CourseStatus]int64, error) {
	var rows []struct {
		Status model.CourseStatus
		Count  int64
	}
	err := r.DB.WithContext(ctx).Model(&model.Course{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make(map[model.CourseStatus]int64, len(rows))
	for _, row := range rows {
		result[row.Status] = row.Count
	}
	return result, nil
}

func (r *CourseRepository) FindTitlesByIDs(ctx context.Context, ids []string) (map[string]string, error) {
	titles := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return titles, nil
	}
	var courses []model.Course
	if err := r.DB.WithContext(ctx).Select("id", "title").Where("id IN ?", ids).Find(&courses).Error; err != nil {
		return nil, err
	}
	for _, c := range courses {
		titles[c.ID] = c.Title
	}
	return titles, nil
}
