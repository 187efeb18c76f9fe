package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"lms_backend/internal/model"
	"lms_backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateCompletionTwoLessonScenario(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	u := testutil.CreateUser(t, e.db, "learner@example.com", model.Student)
	course := testutil.CreateCourse(t, e.db, "Two lessons", 0, model.CoursePublished)
	ch := testutil.CreateChapter(t, e.db, course.ID, 1)
	l1 := testutil.CreateLesson(t, e.db, ch.ID, 1)
	l2 := testutil.CreateLesson(t, e.db, ch.ID, 2)
	enrollment := testutil.CreateEnrollment(t, e.db, u.ID, course.ID, model.EnrollmentActive)

	_, err := e.progress.MarkCompleted(ctx, u.ID, l1.ID, time.Now())
	require.NoError(t, err)
	res, err := e.completion.EvaluateCompletion(ctx, u.ID, course.ID)
	require.NoError(t, err)
	assert.False(t, res.IsCompleted)
	assert.Empty(t, res.CertificateID)

	_, err = e.progress.MarkCompleted(ctx, u.ID, l2.ID, time.Now())
	require.NoError(t, err)
	first, err := e.completion.EvaluateCompletion(ctx, u.ID, course.ID)
	require.NoError(t, err)
	assert.True(t, first.IsCompleted)
	require.NotEmpty(t, first.CertificateID)
	assert.Regexp(t, `^CERT-[0-9A-Z]+-[0-9A-Za-z]{6}$`, first.CertificateNumber)

	again, err := e.completion.EvaluateCompletion(ctx, u.ID, course.ID)
	require.NoError(t, err)
	assert.True(t, again.IsCompleted)
	assert.Equal(t, first.CertificateID, again.CertificateID)

	got, err := e.enrolls.FindByID(ctx, enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)
}

func TestEvaluateCompletionIssuesOneCertificate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	u := testutil.CreateUser(t, e.db, "learner@example.com", model.Student)
	course := testutil.CreateCourse(t, e.db, "One lesson", 0, model.CoursePublished)
	ch := testutil.CreateChapter(t, e.db, course.ID, 1)
	l := testutil.CreateLesson(t, e.db, ch.ID, 1)
	_, err := e.progress.MarkCompleted(ctx, u.ID, l.ID, time.Now())
	require.NoError(t, err)

	const n = 8
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := e.completion.EvaluateCompletion(ctx, u.ID, course.ID)
			if assert.NoError(t, err) {
				ids[i] = res.CertificateID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	count, err := e.certs.CountByUserAndCourse(ctx, u.ID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestEvaluateCompletionEmptyCourse(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	u := testutil.CreateUser(t, e.db, "learner@example.com", model.Student)
	course := testutil.CreateCourse(t, e.db, "Empty", 0, model.CoursePublished)
	testutil.CreateChapter(t, e.db, course.ID, 1)

	// 其他课程的进度不应影响空课程
	other, lessons := twoChapterCourse(t, e.db)
	for _, l := range lessons {
		_, err := e.progress.MarkCompleted(ctx, u.ID, l.ID, time.Now())
		require.NoError(t, err)
	}

	res, err := e.completion.EvaluateCompletion(ctx, u.ID, course.ID)
	require.NoError(t, err)
	assert.False(t, res.IsCompleted)

	res, err = e.completion.EvaluateCompletion(ctx, u.ID, other.ID)
	require.NoError(t, err)
	assert.True(t, res.IsCompleted)
}

func TestEvaluateCompletionIgnoresRemovedLessons(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	u := testutil.CreateUser(t, e.db, "learner@example.com", model.Student)
	course, lessons := twoChapterCourse(t, e.db)

	// 完成 L1 和 L2 后删除 L2，再新增 L4：已删除课时的进度不能顶替 L4
	for _, l := range lessons[:2] {
		_, err := e.progress.MarkCompleted(ctx, u.ID, l.ID, time.Now())
		require.NoError(t, err)
	}
	require.NoError(t, e.lessons.Delete(ctx, lessons[1].ID))
	l4 := testutil.CreateLesson(t, e.db, lessons[2].ChapterID, 2)
	_, err := e.progress.MarkCompleted(ctx, u.ID, lessons[2].ID, time.Now())
	require.NoError(t, err)

	res, err := e.completion.EvaluateCompletion(ctx, u.ID, course.ID)
	require.NoError(t, err)
	assert.False(t, res.IsCompleted)

	_, err = e.progress.MarkCompleted(ctx, u.ID, l4.ID, time.Now())
	require.NoError(t, err)
	res, err = e.completion.EvaluateCompletion(ctx, u.ID, course.ID)
	require.NoError(t, err)
	assert.True(t, res.IsCompleted)
}

func TestEvaluateCompletionOnlyPromotesActive(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	u := testutil.CreateUser(t, e.db, "learner@example.com", model.Student)
	course := testutil.CreateCourse(t, e.db, "Refunded", 0, model.CoursePublished)
	ch := testutil.CreateChapter(t, e.db, course.ID, 1)
	l := testutil.CreateLesson(t, e.db, ch.ID, 1)
	enrollment := testutil.CreateEnrollment(t, e.db, u.ID, course.ID, model.EnrollmentRefunded)

	_, err := e.progress.MarkCompleted(ctx, u.ID, l.ID, time.Now())
	require.NoError(t, err)
	res, err := e.completion.EvaluateCompletion(ctx, u.ID, course.ID)
	require.NoError(t, err)
	assert.True(t, res.IsCompleted)

	got, err := e.enrolls.FindByID(ctx, enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentRefunded, got.Status)
}
