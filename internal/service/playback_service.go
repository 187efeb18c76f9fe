package service

import (
	"context"
	"errors"
	"fmt"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/internal/videocache"

	"gorm.io/gorm"
)

// LessonPlayer 播放页数据
type LessonPlayer struct {
	Lesson     *model.Lesson     `json:"lesson"`
	Source     videocache.Source `json:"source"`
	Completed  bool              `json:"completed"`
	NextLesson *model.Lesson     `json:"nextLesson"`
}

type PlaybackService struct {
	LessonRepo   *repository.LessonRepository
	ProgressRepo *repository.ProgressRepository
	Access       *AccessChecker
	Progress     *ProgressService
	Resolver     *videocache.Resolver
}

func NewPlaybackService(
	lessonRepo *repository.LessonRepository,
	progressRepo *repository.ProgressRepository,
	access *AccessChecker,
	progress *ProgressService,
	resolver *videocache.Resolver,
) *PlaybackService {
	return &PlaybackService{
		LessonRepo:   lessonRepo,
		ProgressRepo: progressRepo,
		Access:       access,
		Progress:     progress,
		Resolver:     resolver,
	}
}

// OpenPlayer 校验观看权限并解析视频地址；每次打开播放页触发一次后台缓存清理
func (s *PlaybackService) OpenPlayer(ctx context.Context, viewer Viewer, courseID, lessonID string) (*LessonPlayer, error) {
	loc, err := s.LessonRepo.Locate(ctx, lessonID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrLessonNotFound
		}
		return nil, fmt.Errorf("locate lesson: %w", err)
	}
	if loc.Chapter.CourseID != courseID {
		return nil, util.ErrLessonNotFound
	}

	ok, err := s.Access.CanWatch(ctx, viewer, courseID, &loc.Lesson)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, util.ErrNotEnrolled
	}

	s.Resolver.PurgeAsync()

	player := &LessonPlayer{
		Lesson: &loc.Lesson,
		Source: s.Resolver.ResolvePlayableSource(ctx, loc.Lesson.VideoKey, loc.Lesson.VideoURL),
	}

	if !viewer.Anonymous() {
		done, err := s.ProgressRepo.IsCompleted(ctx, viewer.UserID, lessonID)
		if err != nil {
			return nil, fmt.Errorf("load progress: %w", err)
		}
		player.Completed = done
	}

	next, err := s.Progress.nextAfter(ctx, loc)
	if err != nil {
		return nil, err
	}
	if next != nil && !next.IsFree {
		enrolled, err := s.Access.HasEnrollmentAccess(ctx, viewer, courseID)
		if err != nil {
			return nil, err
		}
		if !enrolled {
			next.VideoURL = ""
			next.VideoKey = ""
		}
	}
	player.NextLesson = next
	return player, nil
}

// ReleaseBlob 播放页销毁时释放句柄
func (s *PlaybackService) ReleaseBlob(handle string) bool {
	return s.Resolver.Handles().Release(handle)
}

func (s *PlaybackService) Blob(handle string) (*videocache.Blob, bool) {
	return s.Resolver.Handles().Get(handle)
}
