package controller

import (
	"errors"
	"net/http"

	"staff_training_backend/internal/model"
	"staff_training_backend/internal/service"
	"staff_training_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ProgressController struct {
	ProgressService *service.ProgressService
}

func NewProgressController(progressService *service.ProgressService) *ProgressController {
	return &ProgressController{ProgressService: progressService}
}

// @Summary 上报课件学习进度
// @Description 幻灯片导航/完成/时长/SCORM 数据的统一上报入口
// @Tags 学习进度
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "课件ID"
// @Param request body service.ProgressUpdateRequest true "进度上报"
// @Success 200 {object} util.Response
// @Router /api/interactive/{id}/progress [post]
func (c *ProgressController) UpdateProgress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	courseID := util.MustParseUint(ctx.Param("id"))
	if courseID == 0 {
		util.BadRequest(ctx, "invalid course id")
		return
	}

	var req service.ProgressUpdateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		// 字段类型不符（如幻灯片编号传了字符串）也属于 invalid_payload
		util.BadRequest(ctx, "Invalid JSON payload.")
		return
	}

	state, err := c.ProgressService.ApplyUpdate(ctx.Request.Context(), user.UserID, courseID, &req)
	if err != nil {
		writeProgressError(ctx, err)
		return
	}

	util.Success(ctx, state)
}

// @Summary 播放页状态
// @Description 取出（或创建）进度记录，带续播钳制与 SCORM 挂起数据
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Param id path int true "课件ID"
// @Success 200 {object} util.Response
// @Router /api/interactive/{id}/play [get]
func (c *ProgressController) Play(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	courseID := util.MustParseUint(ctx.Param("id"))
	if courseID == 0 {
		util.BadRequest(ctx, "invalid course id")
		return
	}

	play, err := c.ProgressService.PlayState(ctx.Request.Context(), user.UserID, courseID)
	if err != nil {
		writeProgressError(ctx, err)
		return
	}

	util.Success(ctx, play)
}

type quizResultRequest struct {
	UserID uint     `json:"user_id" binding:"required"`
	Score  *float64 `json:"score" binding:"required"`
}

// @Summary 回写测验结果
// @Description 测验协作方在一次测验结束后回写成绩，内容未完成时拒绝
// @Tags 学习进度
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "课件ID"
// @Success 200 {object} util.Response
// @Router /api/interactive/{id}/quiz-result [post]
func (c *ProgressController) RecordQuizResult(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	// 只有测验引擎和管理员能回写成绩
	if user.Role != model.QuizEngine && user.Role != model.Admin {
		util.Forbidden(ctx)
		return
	}

	courseID := util.MustParseUint(ctx.Param("id"))
	if courseID == 0 {
		util.BadRequest(ctx, "invalid course id")
		return
	}

	var req quizResultRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	state, err := c.ProgressService.RecordQuizResult(ctx.Request.Context(), req.UserID, courseID, *req.Score)
	if err != nil {
		writeProgressError(ctx, err)
		return
	}

	util.Success(ctx, state)
}

// @Summary 完成状态门
// @Description 证书/测验协作方消费的完成门，只含派生布尔与百分比
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Param id path int true "课件ID"
// @Success 200 {object} util.Response
// @Router /api/interactive/{id}/completion [get]
func (c *ProgressController) Completion(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	courseID := util.MustParseUint(ctx.Param("id"))
	if courseID == 0 {
		util.BadRequest(ctx, "invalid course id")
		return
	}

	state, err := c.ProgressService.Completion(ctx.Request.Context(), user.UserID, courseID)
	if err != nil {
		writeProgressError(ctx, err)
		return
	}

	util.Success(ctx, state)
}

// writeProgressError 错误码到 HTTP 状态的映射在 web 层收口
func writeProgressError(ctx *gin.Context, err error) {
	var rej *service.Rejection
	if errors.As(err, &rej) {
		ctx.JSON(rejectionStatus(rej.Code), util.Response{
			Code:    rejectionStatus(rej.Code),
			Message: rej.Message,
			Data:    rej,
		})
		return
	}

	switch {
	case errors.Is(err, util.ErrCourseNotFound), errors.Is(err, util.ErrVideoNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrQuizBeforeContent):
		util.Error(ctx, http.StatusForbidden, err.Error())
	case errors.Is(err, util.ErrSaveRetriesExceeded):
		util.ServiceUnavailable(ctx, "Progress update conflicted, please retry.")
	default:
		util.LogInternalError(ctx, err)
	}
}

func rejectionStatus(code service.RejectCode) int {
	switch code {
	case service.CodeSlideLocked, service.CodeSlideSkip, service.CodeSeekTooFar:
		return http.StatusForbidden
	default:
		return http.StatusBadRequest
	}
}
