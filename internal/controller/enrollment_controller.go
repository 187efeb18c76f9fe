package controller

import (
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type EnrollmentController struct {
	EnrollmentService  *service.EnrollmentService
	CertificateService *service.CertificateService
}

func NewEnrollmentController(enrollmentService *service.EnrollmentService, certificateService *service.CertificateService) *EnrollmentController {
	return &EnrollmentController{
		EnrollmentService:  enrollmentService,
		CertificateService: certificateService,
	}
}

// GrantRequest 管理员开通课程
// swagger:model GrantRequest
type GrantRequest struct {
	UserID   string `json:"userId" binding:"required"`
	CourseID string `json:"courseId" binding:"required"`
}

// ListMyEnrollments godoc
// @Summary 我的课程
// @Tags 报名
// @Produce json
// @Security ApiKeyAuth
// @Param status query string false "状态" Enums(pending, active, completed, cancelled, refunded)
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(10)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/enrollments [get]
func (c *EnrollmentController) ListMyEnrollments(ctx *gin.Context) {
	page, limit := util.ParsePagination(ctx)
	status := model.EnrollmentStatus(ctx.Query("status"))
	if status != "" && !status.Valid() {
		util.BadRequest(ctx, "无效的报名状态")
		return
	}
	list, total, err := c.EnrollmentService.ListMine(ctx.Request.Context(), viewerFrom(ctx), status, page, limit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Page(ctx, list, total, page, limit)
}

// CheckAccess godoc
// @Summary 课程访问状态
// @Tags 报名
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path string true "课程ID"
// @Success 200 {object} util.Response{data=service.AccessStatus}
// @Router /api/courses/{courseId}/access [get]
func (c *EnrollmentController) CheckAccess(ctx *gin.Context) {
	status, err := c.EnrollmentService.CheckAccess(ctx.Request.Context(), viewerFrom(ctx), ctx.Param("courseId"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, status)
}

// ListMyCertificates godoc
// @Summary 我的证书
// @Tags 证书
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.Certificate}
// @Router /api/certificates [get]
func (c *EnrollmentController) ListMyCertificates(ctx *gin.Context) {
	certs, err := c.CertificateService.ListMine(ctx.Request.Context(), viewerFrom(ctx))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, certs)
}

// VerifyCertificate godoc
// @Summary 验证证书
// @Description 公开接口，根据证书编号返回学员和课程信息
// @Tags 证书
// @Produce json
// @Param number path string true "证书编号"
// @Success 200 {object} util.Response{data=service.CertificateVerification}
// @Failure 404 {object} util.Response
// @Router /api/certificates/verify/{number} [get]
func (c *EnrollmentController) VerifyCertificate(ctx *gin.Context) {
	v, err := c.CertificateService.Verify(ctx.Request.Context(), ctx.Param("number"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, v)
}

// AdminListEnrollments godoc
// @Summary 报名列表（后台）
// @Tags 报名管理
// @Produce json
// @Security ApiKeyAuth
// @Param userId query string false "学员ID"
// @Param courseId query string false "课程ID"
// @Param status query string false "状态"
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(10)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/admin/enrollments [get]
func (c *EnrollmentController) AdminListEnrollments(ctx *gin.Context) {
	page, limit := util.ParsePagination(ctx)
	list, total, err := c.EnrollmentService.AdminList(ctx.Request.Context(), repository.EnrollmentFilter{
		UserID:   ctx.Query("userId"),
		CourseID: ctx.Query("courseId"),
		Status:   model.EnrollmentStatus(ctx.Query("status")),
		Offset:   util.Offset(page, limit),
		Limit:    limit,
	})
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Page(ctx, list, total, page, limit)
}

// GrantEnrollment godoc
// @Summary 手动开通课程
// @Tags 报名管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body GrantRequest true "学员和课程"
// @Success 201 {object} util.Response{data=model.Enrollment}
// @Failure 409 {object} util.Response "已报名"
// @Router /api/admin/enrollments [post]
func (c *EnrollmentController) GrantEnrollment(ctx *gin.Context) {
	var req GrantRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	e, err := c.EnrollmentService.Grant(ctx.Request.Context(), req.UserID, req.CourseID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, e)
}
