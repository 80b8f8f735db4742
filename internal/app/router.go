package app

import (
	"staff_training_backend/internal/config"
	"staff_training_backend/internal/middleware"
	"staff_training_backend/internal/model"
	"staff_training_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	router.GET("/metrics", monitoring.PrometheusHandler())

	// 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}

	// 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		// 学习进度
		authGroup.GET("/interactive", c.content.ListInteractiveCourses)
		authGroup.GET("/interactive/:id/play", c.progress.Play)
		authGroup.POST("/interactive/:id/progress", c.progress.UpdateProgress)
		authGroup.GET("/interactive/:id/completion", c.progress.Completion)

		// 测验协作方回写（角色校验在 controller 内）
		authGroup.POST("/interactive/:id/quiz-result", c.progress.RecordQuizResult)

		// 视频进度
		authGroup.POST("/videos/:id/progress", c.video.UpdateProgress)
		authGroup.GET("/videos/:id/completion", c.video.Completion)

		// 管理员接口
		admin := authGroup.Group("/")
		admin.Use(middleware.RoleMiddleware(model.Admin))
		{
			admin.DELETE("/interactive/:id", c.content.DeleteInteractiveCourse)
			admin.GET("/admin/skip-attempts", c.content.ListSkipAttempts)
		}
	}
}
