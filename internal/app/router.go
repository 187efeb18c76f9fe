package app

import (
	"lms_backend/docs"
	"lms_backend/internal/config"
	"lms_backend/internal/middleware"
	"lms_backend/internal/model"
	"lms_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())
	router.GET("/health", c.health.HealthCheck)

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c, cfg)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg, a.services.auth))
	{
		a.registerStudentRoutes(authGroup, c)
	}

	// 3. 讲师和管理员相关接口
	a.registerAdminRoutes(router, c, cfg)
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/auth/register", c.auth.Register)
		public.POST("/auth/login", c.auth.Login)

		// 课程目录和播放页：游客可访问免费试看课时，登录用户按报名状态
		public.GET("/courses", c.course.ListCourses)
		public.GET("/courses/:courseId", middleware.TryAuthMiddleware(cfg, a.services.auth), c.course.GetCourse)
		public.GET("/courses/:courseId/lessons/:lessonId/player", middleware.TryAuthMiddleware(cfg, a.services.auth), c.learning.OpenPlayer)

		public.GET("/certificates/verify/:number", c.enrollment.VerifyCertificate)

		// Midtrans 回调，依靠签名校验
		public.POST("/payments/notifications", c.checkout.HandleNotification)

		// blob 句柄为随机 uuid 且仅由播放页签发，<video> 标签直接请求，不做登录校验
		public.GET("/media/blobs/:handle", c.media.ServeBlob)
		public.DELETE("/media/blobs/:handle", c.media.ReleaseBlob)
	}
}

func (a *App) registerStudentRoutes(group *gin.RouterGroup, c *controllers) {
	group.GET("/auth/me", c.auth.Me)
	group.PUT("/auth/password", c.auth.ChangePassword)

	group.POST("/courses/:courseId/checkout", c.checkout.Checkout)
	group.GET("/courses/:courseId/access", c.enrollment.CheckAccess)
	group.GET("/courses/:courseId/progress", c.learning.GetCourseProgress)
	group.POST("/lessons/:lessonId/complete", c.learning.CompleteLesson)

	group.GET("/enrollments", c.enrollment.ListMyEnrollments)
	group.GET("/certificates", c.enrollment.ListMyCertificates)
}

func (a *App) registerAdminRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(cfg, a.services.auth))
	{
		// 课程内容管理：讲师管理自己的课程，管理员可管理全部
		courses := admin.Group("")
		courses.Use(middleware.RoleMiddleware(model.Instructor))
		{
			courses.GET("/courses", c.course.ListManagedCourses)
			courses.POST("/courses", c.course.CreateCourse)
			courses.PUT("/courses/:courseId", c.course.UpdateCourse)
			courses.DELETE("/courses/:courseId", c.course.DeleteCourse)
			courses.POST("/courses/:courseId/publish", c.course.PublishCourse)
			courses.POST("/courses/:courseId/archive", c.course.ArchiveCourse)
			courses.POST("/courses/:courseId/chapters", c.course.AddChapter)
			courses.PUT("/courses/:courseId/chapters/order", c.course.ReorderChapters)

			courses.PUT("/chapters/:chapterId", c.course.UpdateChapter)
			courses.DELETE("/chapters/:chapterId", c.course.DeleteChapter)
			courses.POST("/chapters/:chapterId/lessons", c.course.AddLesson)
			courses.PUT("/chapters/:chapterId/lessons/order", c.course.ReorderLessons)

			courses.PUT("/lessons/:lessonId", c.course.UpdateLesson)
			courses.DELETE("/lessons/:lessonId", c.course.DeleteLesson)
			courses.POST("/lessons/:lessonId/video", c.course.UploadLessonVideo)
		}

		// 后台运营：仅管理员
		ops := admin.Group("")
		ops.Use(middleware.RoleMiddleware(model.Admin))
		{
			ops.GET("/dashboard", c.dashboard.GetStats)
			ops.GET("/users", c.dashboard.ListUsers)
			ops.PUT("/users/:userId/disabled", c.dashboard.SetUserDisabled)
			ops.GET("/enrollments", c.enrollment.AdminListEnrollments)
			ops.POST("/enrollments", c.enrollment.GrantEnrollment)
		}
	}
}
