package controller

import (
	"staff_training_backend/internal/service"
	"staff_training_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type VideoController struct {
	VideoProgressService *service.VideoProgressService
}

func NewVideoController(videoProgressService *service.VideoProgressService) *VideoController {
	return &VideoController{VideoProgressService: videoProgressService}
}

// @Summary 上报视频观看进度
// @Description 位置 + 观看增量上报，越过观看前沿的 seek 会被拒绝
// @Tags 学习进度
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "视频ID"
// @Param request body service.VideoProgressUpdateRequest true "进度上报"
// @Success 200 {object} util.Response
// @Router /api/videos/{id}/progress [post]
func (c *VideoController) UpdateProgress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	videoID := util.MustParseUint(ctx.Param("id"))
	if videoID == 0 {
		util.BadRequest(ctx, "invalid video id")
		return
	}

	var req service.VideoProgressUpdateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, "Invalid JSON payload.")
		return
	}

	state, err := c.VideoProgressService.ApplyUpdate(ctx.Request.Context(), user.UserID, videoID, &req)
	if err != nil {
		writeProgressError(ctx, err)
		return
	}

	util.Success(ctx, state)
}

// @Summary 视频完成状态门
// @Description 证书协作方消费的布尔/百分比门
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Param id path int true "视频ID"
// @Success 200 {object} util.Response
// @Router /api/videos/{id}/completion [get]
func (c *VideoController) Completion(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	videoID := util.MustParseUint(ctx.Param("id"))
	if videoID == 0 {
		util.BadRequest(ctx, "invalid video id")
		return
	}

	state, err := c.VideoProgressService.Completion(ctx.Request.Context(), user.UserID, videoID)
	if err != nil {
		writeProgressError(ctx, err)
		return
	}

	util.Success(ctx, state)
}
