package app

import (
	"testverse_backend/docs"
	"testverse_backend/internal/config"
	"testverse_backend/internal/middleware"
	"testverse_backend/internal/model"

	"testverse_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())
	router.GET("/health", c.health.Health)

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		authGroup.GET("/profile", c.auth.Profile)

		a.registerStudentRoutes(authGroup, c)
		a.registerTeacherRoutes(authGroup, c)
	}
}

func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	student := rg.Group("/student")
	student.Use(middleware.RoleMiddleware(model.Student))
	{
		student.GET("/exams", c.exam.ListExams)
		student.GET("/exams/:id", c.exam.GetExam)
		student.POST("/exams/:id/start", c.exam.StartExam)
		student.POST("/exams/:id/save", c.exam.SaveAnswers)
		student.POST("/exams/:id/submit", c.exam.SubmitExam)
		student.GET("/exams/:id/time", c.exam.RemainingTime)

		student.GET("/exams/:id/result", c.exam.MyResult)
		student.GET("/results", c.exam.MyResults)
		student.GET("/attempts", c.exam.MyAttempts)
	}
}

func (a *App) registerTeacherRoutes(rg *gin.RouterGroup, c *controllers) {
	teacher := rg.Group("/teacher")
	teacher.Use(middleware.RoleMiddleware(model.Teacher))
	{
		// 考试管理
		teacher.POST("/exams", c.staff.CreateExam)
		teacher.GET("/exams", c.staff.ListMyExams)
		teacher.GET("/exams/:id", c.staff.GetExam)
		teacher.PUT("/exams/:id", c.staff.UpdateExam)
		teacher.DELETE("/exams/:id", c.staff.DeleteExam)
		teacher.POST("/exams/:id/publish", c.staff.PublishExam)
		teacher.POST("/exams/:id/unpublish", c.staff.UnpublishExam)

		// 题目管理
		teacher.POST("/exams/:id/questions", c.staff.AddQuestion)
		teacher.PUT("/questions/:id", c.staff.UpdateQuestion)
		teacher.DELETE("/questions/:id", c.staff.DeleteQuestion)

		// 延时管理
		teacher.POST("/exams/:id/extensions", c.staff.GrantExtension)
		teacher.GET("/exams/:id/extensions", c.staff.ListExtensions)

		// 监考与统计
		teacher.GET("/exams/:id/monitor", c.staff.LiveMonitor)
		teacher.GET("/exams/:id/statistics", c.staff.Statistics)

		// 批改
		teacher.GET("/exams/:id/submissions", c.staff.ListSubmissions)
		teacher.GET("/submissions/:id", c.grade.SubmissionDetail)
		teacher.POST("/submissions/:id/evaluate", c.grade.EvaluateAnswer)
		teacher.POST("/exams/:id/bulk-feedback", c.grade.BulkFeedback)

		// 成绩管理
		teacher.POST("/exams/:id/finalize-results", c.staff.FinalizeResults)
		teacher.GET("/exams/:id/results", c.staff.ListResults)
		teacher.POST("/results/:id/publish", c.staff.PublishResult)
		teacher.POST("/exams/:id/results/publish-all", c.staff.PublishAllResults)
		teacher.GET("/exams/:id/results/export", c.staff.ExportResults)

		// 附件上传
		teacher.POST("/upload", c.staff.UploadAttachment)
	}
}
