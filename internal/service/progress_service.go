package service

import (
	"context"
	"errors"
	"fmt"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"lms_backend/pkg/tracing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LessonCompletion 完成课时后的返回结果
type LessonCompletion struct {
	Progress   *model.LessonProgress `json:"progress"`
	Completion *CompletionResult     `json:"completion"`
	NextLesson *model.Lesson         `json:"nextLesson"`
}

// CourseProgress 学员在某门课程的整体进度
type CourseProgress struct {
	CourseID         string               `json:"courseId"`
	CompletedLessons int                  `json:"completedLessons"`
	TotalLessons     int                  `json:"totalLessons"`
	Percentage       float64              `json:"percentage"`
	CertificateID    string               `json:"certificateId,omitempty"`
	Lessons          []LessonProgressItem `json:"lessons"`
}

type LessonProgressItem struct {
	LessonID  string `json:"lessonId"`
	ChapterID string `json:"chapterId"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

type ProgressService struct {
	CourseRepo   *repository.CourseRepository
	LessonRepo   *repository.LessonRepository
	ProgressRepo *repository.ProgressRepository
	CertRepo     *repository.CertificateRepository
	Access       *AccessChecker
	Completion   *CompletionService
	Now          func() time.Time
}

func NewProgressService(
	courseRepo *repository.CourseRepository,
	lessonRepo *repository.LessonRepository,
	progressRepo *repository.ProgressRepository,
	certRepo *repository.CertificateRepository,
	access *AccessChecker,
	completion *CompletionService,
) *ProgressService {
	return &ProgressService{
		CourseRepo:   courseRepo,
		LessonRepo:   lessonRepo,
		ProgressRepo: progressRepo,
		CertRepo:     certRepo,
		Access:       access,
		Completion:   completion,
		Now:          time.Now,
	}
}

// CompleteLesson 记录课时完成，随后判定课程完成并计算下一课时
func (s *ProgressService) CompleteLesson(ctx context.Context, viewer Viewer, lessonID string) (result *LessonCompletion, err error) {
	ctx, span := tracing.StartSpan(ctx, "progress.complete_lesson",
		attribute.String("learner.id", viewer.UserID),
		attribute.String("lesson.id", lessonID))
	defer func() { tracing.EndSpan(span, err) }()

	loc, err := s.locate(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	courseID := loc.Chapter.CourseID
	if _, err := s.CourseRepo.FindByID(ctx, courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	if err := s.Access.RequireEnrollment(ctx, viewer, courseID); err != nil {
		return nil, err
	}

	// 先持久化进度，再判定课程完成
	progress, err := s.ProgressRepo.MarkCompleted(ctx, viewer.UserID, lessonID, s.Now())
	if err != nil {
		return nil, fmt.Errorf("mark lesson completed: %w", err)
	}

	completion, err := s.Completion.EvaluateCompletion(ctx, viewer.UserID, courseID)
	if err != nil {
		return nil, err
	}

	next, err := s.nextAfter(ctx, loc)
	if err != nil {
		return nil, err
	}

	logger.Log.Debug("Lesson completed",
		zap.String("learnerId", viewer.UserID),
		zap.String("lessonId", lessonID),
		zap.Bool("courseCompleted", completion.IsCompleted))

	return &LessonCompletion{
		Progress:   progress,
		Completion: completion,
		NextLesson: next,
	}, nil
}

// NextLesson 同章节下一课时；没有则取后续章节的第一课时；都没有返回 nil
func (s *ProgressService) NextLesson(ctx context.Context, lessonID string) (*model.Lesson, error) {
	loc, err := s.locate(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	return s.nextAfter(ctx, loc)
}

func (s *ProgressService) locate(ctx context.Context, lessonID string) (*repository.LessonLocation, error) {
	loc, err := s.LessonRepo.Locate(ctx, lessonID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrLessonNotFound
		}
		return nil, fmt.Errorf("locate lesson: %w", err)
	}
	return loc, nil
}

func (s *ProgressService) nextAfter(ctx context.Context, loc *repository.LessonLocation) (*model.Lesson, error) {
	next, err := s.LessonRepo.NextInChapter(ctx, loc.Chapter.ID, loc.Lesson.Position)
	if err == nil {
		return next, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find next lesson in chapter: %w", err)
	}

	next, err = s.LessonRepo.FirstInNextChapter(ctx, loc.Chapter.CourseID, loc.Chapter.Position)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find first lesson of next chapter: %w", err)
	}
	return next, nil
}

func (s *ProgressService) GetCourseProgress(ctx context.Context, viewer Viewer, courseID string) (*CourseProgress, error) {
	course, err := s.CourseRepo.FindWithOutline(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, fmt.Errorf("load course outline: %w", err)
	}
	if err := s.Access.RequireEnrollment(ctx, viewer, courseID); err != nil {
		return nil, err
	}

	var lessonIDs []string
	for _, ch := range course.Chapters {
		for _, l := range ch.Lessons {
			lessonIDs = append(lessonIDs, l.ID)
		}
	}

	done, err := s.ProgressRepo.CompletedSet(ctx, viewer.UserID, lessonIDs)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}

	result := &CourseProgress{
		CourseID:     courseID,
		TotalLessons: len(lessonIDs),
		Lessons:      make([]LessonProgressItem, 0, len(lessonIDs)),
	}
	for _, ch := range course.Chapters {
		for _, l := range ch.Lessons {
			item := LessonProgressItem{
				LessonID:  l.ID,
				ChapterID: ch.ID,
				Title:     l.Title,
				Completed: done[l.ID],
			}
			if item.Completed {
				result.CompletedLessons++
			}
			result.Lessons = append(result.Lessons, item)
		}
	}
	if result.TotalLessons > 0 {
		result.Percentage = float64(result.CompletedLessons) * 100 / float64(result.TotalLessons)
	}

	cert, err := s.CertRepo.FindByUserAndCourse(ctx, viewer.UserID, courseID)
	if err == nil {
		result.CertificateID = cert.ID
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find certificate: %w", err)
	}
	return result, nil
}
