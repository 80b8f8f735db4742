package controller

import (
	"strconv"

	"staff_training_backend/internal/repository"
	"staff_training_backend/internal/service"
	"staff_training_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ContentController struct {
	ContentService *service.ContentService
	SkipLogRepo    *repository.SkipAttemptLogRepository
}

func NewContentController(contentService *service.ContentService, skipLogRepo *repository.SkipAttemptLogRepository) *ContentController {
	return &ContentController{
		ContentService: contentService,
		SkipLogRepo:    skipLogRepo,
	}
}

// @Summary 课件列表
// @Description 上架中的交互式课件及调用者自己的学习进度
// @Tags 内容
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/interactive [get]
func (c *ContentController) ListInteractiveCourses(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	items, err := c.ContentService.ListWithProgress(ctx.Request.Context(), user.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, items)
}

// @Summary 删除课件
// @Description 删除课件并级联清理全部进度记录（仅管理员）
// @Tags 内容
// @Produce json
// @Security BearerAuth
// @Param id path int true "课件ID"
// @Success 200 {object} util.Response
// @Router /api/interactive/{id} [delete]
func (c *ContentController) DeleteInteractiveCourse(ctx *gin.Context) {
	id := util.MustParseUint(ctx.Param("id"))
	if id == 0 {
		util.BadRequest(ctx, "invalid course id")
		return
	}

	if err := c.ContentService.DeleteInteractiveCourse(ctx.Request.Context(), id); err != nil {
		writeProgressError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"message": "Interactive course deleted"})
}

// @Summary 跳页审计记录
// @Description 最近的跳页尝试列表（仅管理员），可按用户过滤
// @Tags 审计
// @Produce json
// @Security BearerAuth
// @Param user_id query int false "用户ID"
// @Param limit query int false "返回条数"
// @Success 200 {object} util.Response
// @Router /api/admin/skip-attempts [get]
func (c *ContentController) ListSkipAttempts(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "100"))

	if userParam := ctx.Query("user_id"); userParam != "" {
		entries, err := c.SkipLogRepo.ListByUser(util.MustParseUint(userParam), limit)
		if err != nil {
			util.LogInternalError(ctx, err)
			return
		}
		util.Success(ctx, entries)
		return
	}

	entries, err := c.SkipLogRepo.ListRecent(limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, entries)
}
