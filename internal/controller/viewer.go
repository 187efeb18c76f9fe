package controller

import (
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// viewerFrom 未登录时返回匿名 Viewer
func viewerFrom(ctx *gin.Context) service.Viewer {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		return service.Viewer{}
	}
	return service.Viewer{UserID: claims.UserID, Role: claims.Role}
}

// IDsRequest 排序请求，ids 为新的完整顺序
// swagger:model IDsRequest
type IDsRequest struct {
	IDs []string `json:"ids" binding:"required,min=1,dive,required"`
}
