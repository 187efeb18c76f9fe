package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/testutil"
	"lms_backend/internal/videocache"

	"gorm.io/gorm"
)

type fakeGateway struct {
	mu       sync.Mutex
	requests []ChargeRequest
	err      error
}

func (g *fakeGateway) CreateTransaction(_ context.Context, req ChargeRequest) (*ChargeResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return &ChargeResponse{Token: "snap-token-" + req.OrderID, RedirectURL: "https://app.sandbox.midtrans.com/snap/v2/vtweb/" + req.OrderID}, nil
}

type fakeFetcher struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string) ([]byte, string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return []byte("video-bytes"), "video/mp4", nil
}

const testServerKey = "SB-Mid-server-testkey"

type env struct {
	db         *gorm.DB
	courses    *repository.CourseRepository
	chapters   *repository.ChapterRepository
	lessons    *repository.LessonRepository
	progress   *repository.ProgressRepository
	certs      *repository.CertificateRepository
	enrolls    *repository.EnrollmentRepository
	payments   *repository.PaymentRepository
	users      *repository.UserRepository
	access     *AccessChecker
	completion *CompletionService
	progressS  *ProgressService
	catalog    *CatalogService
	checkout   *CheckoutService
	enrollment *EnrollmentService
	certS      *CertificateService
	dashboard  *DashboardService
	playback   *PlaybackService
	gateway    *fakeGateway
	fetcher    *fakeFetcher
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.DB(t)
	e := &env{
		db:       db,
		courses:  repository.NewCourseRepository(db),
		chapters: repository.NewChapterRepository(db),
		lessons:  repository.NewLessonRepository(db),
		progress: repository.NewProgressRepository(db),
		certs:    repository.NewCertificateRepository(db),
		enrolls:  repository.NewEnrollmentRepository(db),
		payments: repository.NewPaymentRepository(db),
		users:    repository.NewUserRepository(db),
		gateway:  &fakeGateway{},
		fetcher:  &fakeFetcher{},
	}
	e.access = NewAccessChecker(e.enrolls)
	e.completion = NewCompletionService(db, e.courses, e.progress, e.certs, e.enrolls)
	e.progressS = NewProgressService(e.courses, e.lessons, e.progress, e.certs, e.access, e.completion)
	e.catalog = NewCatalogService(e.courses, e.chapters, e.lessons, e.access, &StorageService{
		Provider: &LocalStorageProvider{Config: &config.StorageConfig{LocalPath: t.TempDir()}},
	})
	e.checkout = NewCheckoutService(e.courses, e.users, e.enrolls, e.payments, e.gateway, &config.PaymentConfig{
		ServerKey:       testServerKey,
		ClientKey:       "SB-Mid-client-testkey",
		PendingTTLHours: 24,
	})
	e.enrollment = NewEnrollmentService(e.enrolls, e.courses, e.users, e.access)
	e.certS = NewCertificateService(e.certs, e.users)
	e.dashboard = NewDashboardService(e.courses, e.enrolls, e.certs, e.users)

	resolver := videocache.NewResolver(videocache.NewMemoryStore(), e.fetcher, videocache.NewHandleRegistry(time.Hour, 0))
	e.playback = NewPlaybackService(e.lessons, e.progress, e.access, e.progressS, resolver)
	return e
}

// twoChapterCourse 章节 A: [L1, L2]，章节 B: [L3]
func twoChapterCourse(t *testing.T, db *gorm.DB) (*model.Course, []*model.Lesson) {
	t.Helper()
	course := testutil.CreateCourse(t, db, "Go Fundamentals", 150000, model.CoursePublished)
	chA := testutil.CreateChapter(t, db, course.ID, 1)
	chB := testutil.CreateChapter(t, db, course.ID, 2)
	l1 := testutil.CreateLesson(t, db, chA.ID, 1)
	l2 := testutil.CreateLesson(t, db, chA.ID, 2)
	l3 := testutil.CreateLesson(t, db, chB.ID, 1)
	return course, []*model.Lesson{l1, l2, l3}
}

func student(u *model.User) Viewer {
	return Viewer{UserID: u.ID, Role: u.Role}
}
