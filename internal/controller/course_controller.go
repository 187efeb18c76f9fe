package controller

import (
	"lms_backend/internal/model"
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CourseController struct {
	CatalogService *service.CatalogService
}

func NewCourseController(catalogService *service.CatalogService) *CourseController {
	return &CourseController{CatalogService: catalogService}
}

// ListCourses godoc
// @Summary 课程目录
// @Description 分页获取已发布课程，支持标题搜索和分类筛选
// @Tags 课程
// @Produce json
// @Param keyword query string false "标题关键词"
// @Param category query string false "分类"
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(10)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/courses [get]
func (c *CourseController) ListCourses(ctx *gin.Context) {
	page, limit := util.ParsePagination(ctx)
	courses, total, err := c.CatalogService.ListPublished(ctx.Request.Context(), ctx.Query("keyword"), ctx.Query("category"), page, limit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Page(ctx, courses, total, page, limit)
}

// GetCourse godoc
// @Summary 课程详情
// @Description 课程大纲；未报名时仅免费试看课时返回视频地址
// @Tags 课程
// @Produce json
// @Param courseId path string true "课程ID"
// @Success 200 {object} util.Response{data=model.Course}
// @Failure 404 {object} util.Response
// @Router /api/courses/{courseId} [get]
func (c *CourseController) GetCourse(ctx *gin.Context) {
	course, err := c.CatalogService.GetCourseDetail(ctx.Request.Context(), viewerFrom(ctx), ctx.Param("courseId"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, course)
}

// ListManagedCourses godoc
// @Summary 后台课程列表
// @Description 管理员查看全部课程，讲师只能看到自己的课程
// @Tags 课程管理
// @Produce json
// @Security ApiKeyAuth
// @Param keyword query string false "标题关键词"
// @Param status query string false "状态" Enums(draft, published, archived)
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(10)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/admin/courses [get]
func (c *CourseController) ListManagedCourses(ctx *gin.Context) {
	page, limit := util.ParsePagination(ctx)
	status := model.CourseStatus(ctx.Query("status"))
	if status != "" && !status.Valid() {
		util.BadRequest(ctx, "无效的课程状态")
		return
	}
	courses, total, err := c.CatalogService.ListManaged(ctx.Request.Context(), viewerFrom(ctx), ctx.Query("keyword"), status, page, limit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Page(ctx, courses, total, page, limit)
}

// CreateCourse godoc
// @Summary 创建课程
// @Tags 课程管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.CourseInput true "课程信息"
// @Success 201 {object} util.Response{data=model.Course}
// @Failure 400 {object} util.Response
// @Router /api/admin/courses [post]
func (c *CourseController) CreateCourse(ctx *gin.Context) {
	var req service.CourseInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	course, err := c.CatalogService.CreateCourse(ctx.Request.Context(), viewerFrom(ctx), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, course)
}

// UpdateCourse godoc
// @Summary 更新课程
// @Tags 课程管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path string true "课程ID"
// @Param body body service.CourseInput true "课程信息"
// @Success 200 {object} util.Response{data=model.Course}
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/admin/courses/{courseId} [put]
func (c *CourseController) UpdateCourse(ctx *gin.Context) {
	var req service.CourseInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	course, err := c.CatalogService.UpdateCourse(ctx.Request.Context(), viewerFrom(ctx), ctx.Param("courseId"), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, course)
}

// PublishCourse godoc
// @Summary 发布课程
// @Description 课程至少需要一个课时
// @Tags 课程管理
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path string true "课程ID"
// @Success 200 {object} util.Response{data=model.Course}
// @Failure 422 {object} util.Response "课程没有课时"
// @Router /api/admin/courses/{courseId}/publish [post]
func (c *CourseController) PublishCourse(ctx *gin.Context) {
	course, err := c.CatalogService.PublishCourse(ctx.Request.Context(), viewerFrom(ctx), ctx.Param("courseId"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, course)
}

// ArchiveCourse godoc
// @Summary 下架课程
// @Tags 课程管理
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path string true "课程ID"
// @Success 200 {object} util.Response{data=model.Course}
// @Router /api/admin/courses/{courseId}/archive [post]
func (c *CourseController) ArchiveCourse(ctx *gin.Context) {
	course, err := c.CatalogService.ArchiveCourse(ctx.Request.Context(), viewerFrom(ctx), ctx.Param("courseId"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, course)
}

// DeleteCourse godoc
// @Summary 删除草稿课程
// @Tags 课程管理
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path string true "课程ID"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response "只能删除草稿课程"
// @Router /api/admin/courses/{courseId} [delete]
func (c *CourseController) DeleteCourse(ctx *gin.Context) {
	if err := c.CatalogService.DeleteCourse(ctx.Request.Context(), viewerFrom(ctx), ctx.Param("courseId")); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// AddChapter godoc
// @Summary 添加章节
// @Tags 课程管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path string true "课程ID"
// @Param body body service.ChapterInput true "章节信息"
// @Success 201 {object} util.Response{data=model.Chapter}
// @Router /api/admin/courses/{courseId}/chapters [post]
func (c *CourseController) AddChapter(ctx *gin.Context) {
	var req service.ChapterInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	chapter, err := c.CatalogService.AddChapter(ctx.Request.Context(), viewerFrom(ctx), ctx.Param("courseId"), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, chapter)
}

// ReorderChapters godoc
// @Summary 章节排序
// @Tags 课程管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path string true "课程ID"
// @Param body body IDsRequest true "章节ID新顺序"
// @Success 200 {object} util.Response
// @Router /api/admin/courses/{courseId}/chapters/order [put]
func (c *CourseController) ReorderChapters(ctx *gin.Context) {
	var req IDsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if err := c.CatalogService.ReorderChapters(ctx.Request.Context(), viewerFrom(ctx), ctx.Param("courseId"), req.IDs); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// UpdateChapter godoc
// @Summary 更新章节
// @Tags 课程管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param chapterId path string true "章节ID"
// @Param body body service.ChapterInput true "章节信息"
// @Success 200 {object} util.Response{data=model.Chapter}
// @Router /api/admin/chapters/{chapterId} [put]
func (c *CourseController) UpdateChapter(ctx *gin.Context) {
	var req service.ChapterInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	chapter, err := c.CatalogService.UpdateChapter(ctx.Request.Context(), viewerFrom(ctx), ctx.Param("chapterId"), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, chapter)
}

// DeleteChapter godoc
// @Summary 删除章节及其课时
// @Tags 课程管理
// @Produce json
// @Security ApiKeyAuth
// @Param chapterId path string true "章节ID"
// @Success 200 {object} util.Response
// @Router /api/admin/chapters/{chapterId} [delete]
func (c *CourseController) DeleteChapter(ctx *gin.Context) {
	if err := c.CatalogService.DeleteChapter(ctx.Request.Context(), viewerFrom(ctx), ctx.Param("chapterId")); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// AddLesson godoc
// @Summary 添加课时
// @Tags 课程管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param chapterId path string true "章节ID"
// @Param body body service.LessonInput true "课时信息"
// @Success 201 {object} util.Response{data=model.Lesson}
// @Router /api/admin/chapters/{chapterId}/lessons [post]
func (c *CourseController) AddLesson(ctx *gin.Context) {
	var req service.LessonInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	lesson, err := c.CatalogService.AddLesson(ctx.Request.Context(), viewerFrom(ctx), ctx.Param("chapterId"), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, lesson)
}

// ReorderLessons godoc
// @Summary 课时排序
// @Tags 课程管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param chapterId path string true "章节ID"
// @Param body body IDsRequest true "课时ID新顺序"
// @Success 200 {object} util.Response
// @Router /api/admin/chapters/{chapterId}/lessons/order [put]
func (c *CourseController) ReorderLessons(ctx *gin.Context) {
	var req IDsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if err := c.CatalogService.ReorderLessons(ctx.Request.Context(), viewerFrom(ctx), ctx.Param("chapterId"), req.IDs); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// UpdateLesson godoc
// @Summary 更新课时
// @Tags 课程管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param lessonId path string true "课时ID"
// @Param body body service.LessonInput true "课时信息"
// @Success 200 {object} util.Response{data=model.Lesson}
// @Router /api/admin/lessons/{lessonId} [put]
func (c *CourseController) UpdateLesson(ctx *gin.Context) {
	var req service.LessonInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	lesson, err := c.CatalogService.UpdateLesson(ctx.Request.Context(), viewerFrom(ctx), ctx.Param("lessonId"), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, lesson)
}

// DeleteLesson godoc
// @Summary 删除课时
// @Tags 课程管理
// @Produce json
// @Security ApiKeyAuth
// @Param lessonId path string true "课时ID"
// @Success 200 {object} util.Response
// @Router /api/admin/lessons/{lessonId} [delete]
func (c *CourseController) DeleteLesson(ctx *gin.Context) {
	if err := c.CatalogService.DeleteLesson(ctx.Request.Context(), viewerFrom(ctx), ctx.Param("lessonId")); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// UploadLessonVideo godoc
// @Summary 上传课时视频
// @Description 上传视频文件，自动探测时长并生成封面
// @Tags 课程管理
// @Accept multipart/form-data
// @Produce json
// @Security ApiKeyAuth
// @Param lessonId path string true "课时ID"
// @Param file formData file true "视频文件"
// @Success 200 {object} util.Response{data=model.Lesson}
// @Failure 400 {object} util.Response "不支持的视频格式"
// @Router /api/admin/lessons/{lessonId}/video [post]
func (c *CourseController) UploadLessonVideo(ctx *gin.Context) {
	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "请选择要上传的视频文件")
		return
	}
	lesson, err := c.CatalogService.UploadLessonVideo(ctx.Request.Context(), viewerFrom(ctx), ctx.Param("lessonId"), file)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, lesson)
}
