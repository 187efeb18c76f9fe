package controller

import (
	"bytes"
	"lms_backend/internal/service"
	"lms_backend/internal/util"
	"net/http"

	"github.com/gin-gonic/gin"
)

type MediaController struct {
	PlaybackService *service.PlaybackService
}

func NewMediaController(playbackService *service.PlaybackService) *MediaController {
	return &MediaController{PlaybackService: playbackService}
}

// ServeBlob godoc
// @Summary 播放缓存视频
// @Description 按句柄返回本地缓存的视频内容，支持 Range 请求
// @Tags 媒体
// @Produce octet-stream
// @Param handle path string true "blob 句柄"
// @Success 200 {file} binary
// @Success 206 {file} binary
// @Failure 404 {object} util.Response
// @Router /api/media/blobs/{handle} [get]
func (c *MediaController) ServeBlob(ctx *gin.Context) {
	blob, ok := c.PlaybackService.Blob(ctx.Param("handle"))
	if !ok {
		util.NotFound(ctx)
		return
	}
	if blob.ContentType != "" {
		ctx.Header("Content-Type", blob.ContentType)
	}
	ctx.Header("Cache-Control", "private, no-store")
	http.ServeContent(ctx.Writer, ctx.Request, "", blob.CreatedAt, bytes.NewReader(blob.Payload))
}

// ReleaseBlob godoc
// @Summary 释放视频句柄
// @Description 播放页销毁时调用
// @Tags 媒体
// @Produce json
// @Param handle path string true "blob 句柄"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/media/blobs/{handle} [delete]
func (c *MediaController) ReleaseBlob(ctx *gin.Context) {
	if !c.PlaybackService.ReleaseBlob(ctx.Param("handle")) {
		util.NotFound(ctx)
		return
	}
	util.Success(ctx, nil)
}
