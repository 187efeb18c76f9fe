package service

import (
	"context"
	"strings"
	"testing"

	"lms_backend/internal/model"
	"lms_backend/internal/testutil"
	"lms_backend/internal/util"
	"lms_backend/internal/videocache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenPlayerResolvesCachedSource(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, e.db, "learner@example.com", model.Student)
	course, lessons := twoChapterCourse(t, e.db)
	testutil.CreateEnrollment(t, e.db, u.ID, course.ID, model.EnrollmentActive)

	first, err := e.playback.OpenPlayer(ctx, student(u), course.ID, lessons[0].ID)
	require.NoError(t, err)
	assert.False(t, first.Source.ServedFromCache)
	assert.True(t, strings.HasPrefix(first.Source.PlayableURL, videocache.DefaultBlobPrefix))
	assert.False(t, first.Completed)
	require.NotNil(t, first.NextLesson)
	assert.Equal(t, lessons[1].ID, first.NextLesson.ID)

	second, err := e.playback.OpenPlayer(ctx, student(u), course.ID, lessons[0].ID)
	require.NoError(t, err)
	assert.True(t, second.Source.ServedFromCache)
	assert.Equal(t, 1, e.fetcher.calls)

	blob, ok := e.playback.Blob(second.Source.Handle)
	require.True(t, ok)
	assert.Equal(t, []byte("video-bytes"), blob.Payload)
	assert.True(t, e.playback.ReleaseBlob(second.Source.Handle))
	_, ok = e.playback.Blob(second.Source.Handle)
	assert.False(t, ok)
}

func TestOpenPlayerAccess(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, e.db, "learner@example.com", model.Student)
	course, lessons := twoChapterCourse(t, e.db)
	require.NoError(t, e.db.Model(lessons[0]).Update("is_free", true).Error)

	_, err := e.playback.OpenPlayer(ctx, student(u), course.ID, lessons[1].ID)
	assert.ErrorIs(t, err, util.ErrNotEnrolled)

	preview, err := e.playback.OpenPlayer(ctx, Viewer{}, course.ID, lessons[0].ID)
	require.NoError(t, err)
	assert.NotEmpty(t, preview.Source.PlayableURL)
	require.NotNil(t, preview.NextLesson)
	assert.Empty(t, preview.NextLesson.VideoURL)

	other := testutil.CreateCourse(t, e.db, "Other", 0, model.CoursePublished)
	_, err = e.playback.OpenPlayer(ctx, student(u), other.ID, lessons[0].ID)
	assert.ErrorIs(t, err, util.ErrLessonNotFound)
}
