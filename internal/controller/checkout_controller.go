package controller

import (
	"encoding/json"
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CheckoutController struct {
	CheckoutService *service.CheckoutService
}

func NewCheckoutController(checkoutService *service.CheckoutService) *CheckoutController {
	return &CheckoutController{CheckoutService: checkoutService}
}

// Checkout godoc
// @Summary 购买课程
// @Description 免费课程直接开通；付费课程创建待支付订单并返回 Midtrans Snap token
// @Tags 支付
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path string true "课程ID"
// @Success 200 {object} util.Response{data=service.CheckoutResult}
// @Failure 409 {object} util.Response "已报名"
// @Failure 422 {object} util.Response "课程未发布"
// @Router /api/courses/{courseId}/checkout [post]
func (c *CheckoutController) Checkout(ctx *gin.Context) {
	result, err := c.CheckoutService.StartCheckout(ctx.Request.Context(), viewerFrom(ctx), ctx.Param("courseId"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// HandleNotification godoc
// @Summary Midtrans 支付通知
// @Description 校验签名后按交易状态更新报名，重复通知不会回退状态
// @Tags 支付
// @Accept json
// @Produce json
// @Param body body service.PaymentNotification true "Midtrans 通知"
// @Success 200 {object} util.Response{data=service.NotificationResult}
// @Failure 400 {object} util.Response
// @Failure 401 {object} util.Response "签名错误"
// @Router /api/payments/notifications [post]
func (c *CheckoutController) HandleNotification(ctx *gin.Context) {
	raw, err := ctx.GetRawData()
	if err != nil {
		util.BadRequest(ctx, "无法读取请求体")
		return
	}

	var n service.PaymentNotification
	if err := json.Unmarshal(raw, &n); err != nil || n.OrderID == "" {
		util.BadRequest(ctx, "无效的通知内容")
		return
	}

	result, err := c.CheckoutService.HandleNotification(ctx.Request.Context(), n, raw)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
