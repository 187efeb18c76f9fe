// Package testutil 为仓储和服务测试提供内存 SQLite 数据库与常用夹具
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"lms_backend/internal/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var dbSeq int64

// DB 每个测试一个独立的内存库
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	name := fmt.Sprintf("file:lms_test_%d?mode=memory&cache=shared", atomic.AddInt64(&dbSeq, 1))
	db, err := gorm.Open(sqlite.Open(name), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		tb.Fatalf("failed to open test db: %v", err)
	}
	if err := db.AutoMigrate(model.AllModels()...); err != nil {
		tb.Fatalf("failed to migrate test db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { sqlDB.Close() })
	return db
}

func CreateUser(tb testing.TB, db *gorm.DB, email string, role model.UserRole) *model.User {
	tb.Helper()
	u := &model.User{Name: email, Email: email, Password: "x", Role: role}
	if err := db.Create(u).Error; err != nil {
		tb.Fatalf("create user: %v", err)
	}
	return u
}

func CreateCourse(tb testing.TB, db *gorm.DB, title string, price int64, status model.CourseStatus) *model.Course {
	tb.Helper()
	c := &model.Course{Title: title, Price: price, Status: status}
	if err := db.Create(c).Error; err != nil {
		tb.Fatalf("create course: %v", err)
	}
	return c
}

func CreateChapter(tb testing.TB, db *gorm.DB, courseID string, position int) *model.Chapter {
	tb.Helper()
	ch := &model.Chapter{CourseID: courseID, Title: fmt.Sprintf("Chapter %d", position), Position: position}
	if err := db.Create(ch).Error; err != nil {
		tb.Fatalf("create chapter: %v", err)
	}
	return ch
}

func CreateLesson(tb testing.TB, db *gorm.DB, chapterID string, position int) *model.Lesson {
	tb.Helper()
	l := &model.Lesson{
		ChapterID: chapterID,
		Title:     fmt.Sprintf("Lesson %d", position),
		Position:  position,
		VideoKey:  fmt.Sprintf("videos/%s-%d.mp4", chapterID, position),
		VideoURL:  fmt.Sprintf("https://media.example.com/videos/%s-%d.mp4", chapterID, position),
	}
	if err := db.Create(l).Error; err != nil {
		tb.Fatalf("create lesson: %v", err)
	}
	return l
}

func CreateEnrollment(tb testing.TB, db *gorm.DB, userID, courseID string, status model.EnrollmentStatus) *model.Enrollment {
	tb.Helper()
	e := &model.Enrollment{UserID: userID, CourseID: courseID, Status: status}
	if err := db.Create(e).Error; err != nil {
		tb.Fatalf("create enrollment: %v", err)
	}
	return e
}
