package controller

import (
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type LearningController struct {
	ProgressService *service.ProgressService
	PlaybackService *service.PlaybackService
}

func NewLearningController(progressService *service.ProgressService, playbackService *service.PlaybackService) *LearningController {
	return &LearningController{
		ProgressService: progressService,
		PlaybackService: playbackService,
	}
}

// OpenPlayer godoc
// @Summary 打开课时播放页
// @Description 校验观看权限，返回课时、可播放地址（优先本地缓存）、学习状态和下一课时
// @Tags 学习
// @Produce json
// @Param courseId path string true "课程ID"
// @Param lessonId path string true "课时ID"
// @Success 200 {object} util.Response{data=service.LessonPlayer}
// @Failure 403 {object} util.Response "未报名"
// @Failure 404 {object} util.Response
// @Router /api/courses/{courseId}/lessons/{lessonId}/player [get]
func (c *LearningController) OpenPlayer(ctx *gin.Context) {
	player, err := c.PlaybackService.OpenPlayer(ctx.Request.Context(), viewerFrom(ctx), ctx.Param("courseId"), ctx.Param("lessonId"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, player)
}

// CompleteLesson godoc
// @Summary 标记课时完成
// @Description 记录完成进度，评估课程是否完成（完成时颁发证书），并返回下一课时
// @Tags 学习
// @Produce json
// @Security ApiKeyAuth
// @Param lessonId path string true "课时ID"
// @Success 200 {object} util.Response{data=service.LessonCompletion}
// @Failure 403 {object} util.Response "未报名"
// @Failure 404 {object} util.Response
// @Router /api/lessons/{lessonId}/complete [post]
func (c *LearningController) CompleteLesson(ctx *gin.Context) {
	result, err := c.ProgressService.CompleteLesson(ctx.Request.Context(), viewerFrom(ctx), ctx.Param("lessonId"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// GetCourseProgress godoc
// @Summary 课程学习进度
// @Tags 学习
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path string true "课程ID"
// @Success 200 {object} util.Response{data=service.CourseProgress}
// @Router /api/courses/{courseId}/progress [get]
func (c *LearningController) GetCourseProgress(ctx *gin.Context) {
	progress, err := c.ProgressService.GetCourseProgress(ctx.Request.Context(), viewerFrom(ctx), ctx.Param("courseId"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}
