package util

import (
	"errors"
	"lms_backend/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PageResponse 分页响应结构
type PageResponse struct {
	List  interface{} `json:"list"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func Page(c *gin.Context, list interface{}, total int64, page, limit int) {
	Success(c, PageResponse{List: list, Total: total, Page: page, Limit: limit})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

func Forbidden(c *gin.Context) {
	Error(c, http.StatusForbidden, "Forbidden")
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func NotFound(c *gin.Context) {
	Error(c, http.StatusNotFound, "Resource not found")
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

func LogInternalError(c *gin.Context, err error) {
	logger.Log.Error("Internal server error",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	InternalServerError(c)
}

var errorStatus = []struct {
	err    error
	status int
}{
	{ErrUnauthorized, http.StatusUnauthorized},
	{ErrInvalidCredentials, http.StatusUnauthorized},
	{ErrInvalidSignature, http.StatusUnauthorized},
	{ErrUserDisabled, http.StatusForbidden},
	{ErrPermissionDenied, http.StatusForbidden},
	{ErrNotEnrolled, http.StatusForbidden},
	{ErrUserNotFound, http.StatusNotFound},
	{ErrCourseNotFound, http.StatusNotFound},
	{ErrChapterNotFound, http.StatusNotFound},
	{ErrLessonNotFound, http.StatusNotFound},
	{ErrEnrollmentNotFound, http.StatusNotFound},
	{ErrCertificateNotFound, http.StatusNotFound},
	{ErrPaymentNotFound, http.StatusNotFound},
	{ErrEmailRegistered, http.StatusConflict},
	{ErrAlreadyEnrolled, http.StatusConflict},
	{ErrInvalidStatusTransition, http.StatusConflict},
	{ErrCourseNotDraft, http.StatusConflict},
	{ErrCourseNotPublished, http.StatusUnprocessableEntity},
	{ErrCourseHasNoLessons, http.StatusUnprocessableEntity},
	{ErrInvalidVideoExt, http.StatusBadRequest},
	{ErrInvalidPosition, http.StatusBadRequest},
}

// HandleError 已知业务错误映射为对应状态码，其余记录日志后返回 500
func HandleError(c *gin.Context, err error) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			Error(c, e.status, e.err.Error())
			return
		}
	}
	LogInternalError(c, err)
}
