package service

import (
	"context"
	"errors"
	"fmt"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CourseInput struct {
	Title       string `json:"title" binding:"required,max=255"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl" binding:"omitempty,max=500"`
	Category    string `json:"category" binding:"omitempty,max=100"`
	Price       int64  `json:"price" binding:"min=0"`
}

type ChapterInput struct {
	Title string `json:"title" binding:"required,max=255"`
}

type LessonInput struct {
	Title           string `json:"title" binding:"required,max=255"`
	Description     string `json:"description"`
	VideoURL        string `json:"videoUrl" binding:"omitempty,url,max=500"`
	VideoKey        string `json:"videoKey" binding:"omitempty,max=255"`
	DurationSeconds int    `json:"durationSeconds" binding:"min=0"`
	IsFree          bool   `json:"isFree"`
}

type CatalogService struct {
	CourseRepo  *repository.CourseRepository
	ChapterRepo *repository.ChapterRepository
	LessonRepo  *repository.LessonRepository
	Access      *AccessChecker
	Storage     *StorageService
	TempDir     string
}

func NewCatalogService(
	courseRepo *repository.CourseRepository,
	chapterRepo *repository.ChapterRepository,
	lessonRepo *repository.LessonRepository,
	access *AccessChecker,
	storage *StorageService,
) *CatalogService {
	return &CatalogService{
		CourseRepo:  courseRepo,
		ChapterRepo: chapterRepo,
		LessonRepo:  lessonRepo,
		Access:      access,
		Storage:     storage,
		TempDir:     os.TempDir(),
	}
}

// ListPublished 课程目录，仅返回已发布课程
func (s *CatalogService) ListPublished(ctx context.Context, keyword, category string, page, limit int) ([]model.Course, int64, error) {
	return s.CourseRepo.List(ctx, repository.CourseFilter{
		Keyword:  keyword,
		Category: category,
		Status:   model.CoursePublished,
		Offset:   util.Offset(page, limit),
		Limit:    limit,
	})
}

// ListManaged 后台课程列表；讲师只能看到自己的课程
func (s *CatalogService) ListManaged(ctx context.Context, viewer Viewer, keyword string, status model.CourseStatus, page, limit int) ([]model.Course, int64, error) {
	f := repository.CourseFilter{
		Keyword: keyword,
		Status:  status,
		Offset:  util.Offset(page, limit),
		Limit:   limit,
	}
	if viewer.Role != model.Admin {
		f.InstructorID = viewer.UserID
	}
	return s.CourseRepo.List(ctx, f)
}

// GetCourseDetail 课程大纲；无权观看的课时隐藏视频地址，未发布课程仅管理者可见
func (s *CatalogService) GetCourseDetail(ctx context.Context, viewer Viewer, courseID string) (*model.Course, error) {
	course, err := s.CourseRepo.FindWithOutline(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, fmt.Errorf("load course outline: %w", err)
	}
	if course.Status != model.CoursePublished && !CanManage(viewer, course) {
		return nil, util.ErrCourseNotFound
	}

	hasAccess, err := s.Access.HasEnrollmentAccess(ctx, viewer, courseID)
	if err != nil {
		return nil, err
	}
	if !hasAccess {
		for i := range course.Chapters {
			for j := range course.Chapters[i].Lessons {
				l := &course.Chapters[i].Lessons[j]
				if !l.IsFree {
					l.VideoURL = ""
					l.VideoKey = ""
				}
			}
		}
	}
	return course, nil
}

func (s *CatalogService) CreateCourse(ctx context.Context, viewer Viewer, in CourseInput) (*model.Course, error) {
	course := &model.Course{
		Title:        strings.TrimSpace(in.Title),
		Description:  in.Description,
		ImageURL:     in.ImageURL,
		Category:     in.Category,
		Price:        in.Price,
		Status:       model.CourseDraft,
		InstructorID: viewer.UserID,
	}
	if err := s.CourseRepo.Create(ctx, course); err != nil {
		return nil, fmt.Errorf("create course: %w", err)
	}
	return course, nil
}

func (s *CatalogService) UpdateCourse(ctx context.Context, viewer Viewer, courseID string, in CourseInput) (*model.Course, error) {
	course, err := s.managedCourse(ctx, viewer, courseID)
	if err != nil {
		return nil, err
	}
	course.Title = strings.TrimSpace(in.Title)
	course.Description = in.Description
	course.ImageURL = in.ImageURL
	course.Category = in.Category
	course.Price = in.Price
	if err := s.CourseRepo.Update(ctx, course); err != nil {
		return nil, fmt.Errorf("update course: %w", err)
	}
	return course, nil
}

// PublishCourse 发布前至少需要一个课时
func (s *CatalogService) PublishCourse(ctx context.Context, viewer Viewer, courseID string) (*model.Course, error) {
	course, err := s.managedCourse(ctx, viewer, courseID)
	if err != nil {
		return nil, err
	}
	lessonIDs, err := s.CourseRepo.LessonIDs(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("load course lessons: %w", err)
	}
	if len(lessonIDs) == 0 {
		return nil, util.ErrCourseHasNoLessons
	}
	return s.transition(ctx, course, model.CoursePublished)
}

func (s *CatalogService) ArchiveCourse(ctx context.Context, viewer Viewer, courseID string) (*model.Course, error) {
	course, err := s.managedCourse(ctx, viewer, courseID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, course, model.CourseArchived)
}

func (s *CatalogService) transition(ctx context.Context, course *model.Course, next model.CourseStatus) (*model.Course, error) {
	if course.Status == next {
		return course, nil
	}
	if !course.Status.CanTransitionTo(next) {
		return nil, util.ErrInvalidStatusTransition
	}
	course.Status = next
	if err := s.CourseRepo.Update(ctx, course); err != nil {
		return nil, fmt.Errorf("update course status: %w", err)
	}
	logger.Log.Info("Course status changed",
		zap.String("courseId", course.ID),
		zap.String("status", string(next)))
	return course, nil
}

// DeleteCourse 只能删除草稿课程
func (s *CatalogService) DeleteCourse(ctx context.Context, viewer Viewer, courseID string) error {
	course, err := s.managedCourse(ctx, viewer, courseID)
	if err != nil {
		return err
	}
	if course.Status != model.CourseDraft {
		return util.ErrCourseNotDraft
	}
	return s.CourseRepo.Delete(ctx, courseID)
}

func (s *CatalogService) AddChapter(ctx context.Context, viewer Viewer, courseID string, in ChapterInput) (*model.Chapter, error) {
	if _, err := s.managedCourse(ctx, viewer, courseID); err != nil {
		return nil, err
	}
	pos, err := s.ChapterRepo.NextPosition(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("next chapter position: %w", err)
	}
	chapter := &model.Chapter{CourseID: courseID, Title: strings.TrimSpace(in.Title), Position: pos}
	if err := s.ChapterRepo.Create(ctx, chapter); err != nil {
		return nil, fmt.Errorf("create chapter: %w", err)
	}
	return chapter, nil
}

func (s *CatalogService) UpdateChapter(ctx context.Context, viewer Viewer, chapterID string, in ChapterInput) (*model.Chapter, error) {
	chapter, err := s.managedChapter(ctx, viewer, chapterID)
	if err != nil {
		return nil, err
	}
	chapter.Title = strings.TrimSpace(in.Title)
	if err := s.ChapterRepo.Update(ctx, chapter); err != nil {
		return nil, fmt.Errorf("update chapter: %w", err)
	}
	return chapter, nil
}

func (s *CatalogService) DeleteChapter(ctx context.Context, viewer Viewer, chapterID string) error {
	if _, err := s.managedChapter(ctx, viewer, chapterID); err != nil {
		return err
	}
	return s.ChapterRepo.Delete(ctx, chapterID)
}

func (s *CatalogService) ReorderChapters(ctx context.Context, viewer Viewer, courseID string, orderedIDs []string) error {
	if _, err := s.managedCourse(ctx, viewer, courseID); err != nil {
		return err
	}
	if err := s.ChapterRepo.Reorder(ctx, courseID, orderedIDs); err != nil {
		if repository.IsInvalidOrder(err) {
			return util.ErrInvalidPosition
		}
		return fmt.Errorf("reorder chapters: %w", err)
	}
	return nil
}

func (s *CatalogService) AddLesson(ctx context.Context, viewer Viewer, chapterID string, in LessonInput) (*model.Lesson, error) {
	if _, err := s.managedChapter(ctx, viewer, chapterID); err != nil {
		return nil, err
	}
	pos, err := s.LessonRepo.NextPosition(ctx, chapterID)
	if err != nil {
		return nil, fmt.Errorf("next lesson position: %w", err)
	}
	lesson := &model.Lesson{
		ChapterID:       chapterID,
		Title:           strings.TrimSpace(in.Title),
		Description:     in.Description,
		VideoURL:        in.VideoURL,
		VideoKey:        in.VideoKey,
		DurationSeconds: in.DurationSeconds,
		Position:        pos,
		IsFree:          in.IsFree,
	}
	if lesson.VideoKey == "" && lesson.VideoURL != "" {
		lesson.VideoKey = lesson.VideoURL
	}
	if err := s.LessonRepo.Create(ctx, lesson); err != nil {
		return nil, fmt.Errorf("create lesson: %w", err)
	}
	return lesson, nil
}

func (s *CatalogService) UpdateLesson(ctx context.Context, viewer Viewer, lessonID string, in LessonInput) (*model.Lesson, error) {
	lesson, _, err := s.managedLesson(ctx, viewer, lessonID)
	if err != nil {
		return nil, err
	}
	lesson.Title = strings.TrimSpace(in.Title)
	lesson.Description = in.Description
	lesson.DurationSeconds = in.DurationSeconds
	lesson.IsFree = in.IsFree
	if in.VideoURL != "" && in.VideoURL != lesson.VideoURL {
		lesson.VideoURL = in.VideoURL
		lesson.VideoKey = in.VideoKey
		if lesson.VideoKey == "" {
			lesson.VideoKey = in.VideoURL
		}
	}
	if err := s.LessonRepo.Update(ctx, lesson); err != nil {
		return nil, fmt.Errorf("update lesson: %w", err)
	}
	return lesson, nil
}

func (s *CatalogService) DeleteLesson(ctx context.Context, viewer Viewer, lessonID string) error {
	if _, _, err := s.managedLesson(ctx, viewer, lessonID); err != nil {
		return err
	}
	return s.LessonRepo.Delete(ctx, lessonID)
}

func (s *CatalogService) ReorderLessons(ctx context.Context, viewer Viewer, chapterID string, orderedIDs []string) error {
	if _, err := s.managedChapter(ctx, viewer, chapterID); err != nil {
		return err
	}
	if err := s.LessonRepo.Reorder(ctx, chapterID, orderedIDs); err != nil {
		if repository.IsInvalidOrder(err) {
			return util.ErrInvalidPosition
		}
		return fmt.Errorf("reorder lessons: %w", err)
	}
	return nil
}

// UploadLessonVideo 上传课时视频：探测时长、截取封面，内容键取存储对象名
func (s *CatalogService) UploadLessonVideo(ctx context.Context, viewer Viewer, lessonID string, file *multipart.FileHeader) (*model.Lesson, error) {
	lesson, courseID, err := s.managedLesson(ctx, viewer, lessonID)
	if err != nil {
		return nil, err
	}
	if !util.IsAllowedVideoExt(file.Filename) {
		return nil, util.ErrInvalidVideoExt
	}

	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	mimeType, err := util.ValidateMimeType(src, []string{util.MimeVideo})
	if err != nil {
		return nil, util.ErrInvalidVideoExt
	}
	if _, err := src.Seek(0, 0); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	name := uuid.NewString()
	tmpPath := filepath.Join(s.TempDir, name+ext)
	if err := saveTemp(src, tmpPath); err != nil {
		return nil, err
	}
	defer os.Remove(tmpPath)

	if info, err := util.ProbeVideo(tmpPath); err == nil {
		lesson.DurationSeconds = info.DurationSeconds
	} else {
		logger.Log.Warn("Probe lesson video failed", zap.String("lessonId", lessonID), zap.Error(err))
	}

	key := ObjectKey("videos", courseID, name+ext)
	url, err := s.Storage.UploadFile(ctx, key, tmpPath, mimeType)
	if err != nil {
		return nil, fmt.Errorf("upload lesson video: %w", err)
	}

	thumbPath := filepath.Join(s.TempDir, name+".jpg")
	if err := util.GenerateThumbnail(tmpPath, thumbPath, "00:00:01"); err == nil {
		thumbKey := ObjectKey("thumbnails", courseID, name+".jpg")
		if thumbURL, err := s.Storage.UploadFile(ctx, thumbKey, thumbPath, util.MimeJPEG); err == nil {
			lesson.ThumbnailURL = thumbURL
		}
		os.Remove(thumbPath)
	} else {
		logger.Log.Warn("Generate lesson thumbnail failed", zap.String("lessonId", lessonID), zap.Error(err))
	}

	oldKey := lesson.VideoKey
	lesson.VideoKey = key
	lesson.VideoURL = url
	if err := s.LessonRepo.Update(ctx, lesson); err != nil {
		return nil, fmt.Errorf("update lesson: %w", err)
	}
	if oldKey != "" && strings.HasPrefix(oldKey, "videos/") && oldKey != key {
		if err := s.Storage.Delete(ctx, oldKey); err != nil {
			logger.Log.Warn("Delete old lesson video failed", zap.String("key", oldKey), zap.Error(err))
		}
	}
	return lesson, nil
}

func saveTemp(src multipart.File, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = out.ReadFrom(src)
	return err
}

func (s *CatalogService) managedCourse(ctx context.Context, viewer Viewer, courseID string) (*model.Course, error) {
	course, err := s.CourseRepo.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	if !CanManage(viewer, course) {
		return nil, util.ErrPermissionDenied
	}
	return course, nil
}

func (s *CatalogService) managedChapter(ctx context.Context, viewer Viewer, chapterID string) (*model.Chapter, error) {
	chapter, err := s.ChapterRepo.FindByID(ctx, chapterID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrChapterNotFound
		}
		return nil, fmt.Errorf("find chapter: %w", err)
	}
	if _, err := s.managedCourse(ctx, viewer, chapter.CourseID); err != nil {
		return nil, err
	}
	return chapter, nil
}

func (s *CatalogService) managedLesson(ctx context.Context, viewer Viewer, lessonID string) (*model.Lesson, string, error) {
	loc, err := s.LessonRepo.Locate(ctx, lessonID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", util.ErrLessonNotFound
		}
		return nil, "", fmt.Errorf("locate lesson: %w", err)
	}
	if _, err := s.managedCourse(ctx, viewer, loc.Chapter.CourseID); err != nil {
		return nil, "", err
	}
	return &loc.Lesson, loc.Chapter.CourseID, nil
}
