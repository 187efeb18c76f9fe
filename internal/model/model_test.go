package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnrollmentStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to EnrollmentStatus
		ok       bool
	}{
		{EnrollmentPending, EnrollmentActive, true},
		{EnrollmentPending, EnrollmentCancelled, true},
		{EnrollmentActive, EnrollmentCompleted, true},
		{EnrollmentActive, EnrollmentRefunded, true},
		{EnrollmentCancelled, EnrollmentPending, true},
		{EnrollmentActive, EnrollmentPending, false},
		{EnrollmentCompleted, EnrollmentActive, false},
		{EnrollmentCompleted, EnrollmentCancelled, false},
		{EnrollmentPending, EnrollmentCompleted, false},
		{EnrollmentRefunded, EnrollmentActive, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}

	assert.True(t, EnrollmentActive.GrantsAccess())
	assert.True(t, EnrollmentCompleted.GrantsAccess())
	assert.False(t, EnrollmentPending.GrantsAccess())
	assert.False(t, EnrollmentStatus("paused").Valid())
}

func TestCourseStatusTransitions(t *testing.T) {
	assert.True(t, CourseDraft.CanTransitionTo(CoursePublished))
	assert.True(t, CoursePublished.CanTransitionTo(CourseArchived))
	assert.False(t, CoursePublished.CanTransitionTo(CourseDraft))
	assert.True(t, CourseArchived.CanTransitionTo(CoursePublished))
	assert.False(t, CourseStatus("hidden").Valid())
}

func TestUserRoleIsStaff(t *testing.T) {
	assert.True(t, Admin.IsStaff())
	assert.True(t, Instructor.IsStaff())
	assert.False(t, Student.IsStaff())
}
