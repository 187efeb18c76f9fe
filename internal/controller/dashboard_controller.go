package controller

import (
	"lms_backend/internal/model"
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type DashboardController struct {
	DashboardService *service.DashboardService
}

func NewDashboardController(dashboardService *service.DashboardService) *DashboardController {
	return &DashboardController{DashboardService: dashboardService}
}

// DisableRequest 禁用或启用账号
// swagger:model DisableRequest
type DisableRequest struct {
	Disabled bool `json:"disabled"`
}

// GetStats godoc
// @Summary 后台概览
// @Description 课程/报名状态分布、收入和已发证书数
// @Tags 后台
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.DashboardStats}
// @Router /api/admin/dashboard [get]
func (c *DashboardController) GetStats(ctx *gin.Context) {
	stats, err := c.DashboardService.Stats(ctx.Request.Context())
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, stats)
}

// ListUsers godoc
// @Summary 用户列表
// @Tags 后台
// @Produce json
// @Security ApiKeyAuth
// @Param keyword query string false "姓名或邮箱"
// @Param role query string false "角色" Enums(student, instructor, admin)
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(10)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/admin/users [get]
func (c *DashboardController) ListUsers(ctx *gin.Context) {
	page, limit := util.ParsePagination(ctx)
	users, total, err := c.DashboardService.ListUsers(ctx.Request.Context(), ctx.Query("keyword"), model.UserRole(ctx.Query("role")), page, limit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Page(ctx, users, total, page, limit)
}

// SetUserDisabled godoc
// @Summary 禁用/启用用户
// @Tags 后台
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param userId path string true "用户ID"
// @Param body body DisableRequest true "是否禁用"
// @Success 200 {object} util.Response
// @Failure 403 {object} util.Response "不能禁用自己"
// @Router /api/admin/users/{userId}/disabled [put]
func (c *DashboardController) SetUserDisabled(ctx *gin.Context) {
	var req DisableRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if err := c.DashboardService.SetUserDisabled(ctx.Request.Context(), viewerFrom(ctx), ctx.Param("userId"), req.Disabled); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
