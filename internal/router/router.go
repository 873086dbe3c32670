package router

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/anwitac246/github-to-docs/config"
	"github.com/anwitac246/github-to-docs/internal/handler"
)

func Setup(
	cfg *config.Config,
	repoHandler *handler.RepositoryHandler,
	docHandler *handler.DocumentHandler,
	apiKeyHandler *handler.APIKeyHandler,
	statusHandler *handler.StatusHandler,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
	}))
	// 生成的 Markdown 文档体积较大，启用压缩
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	api := r.Group("/api")
	{
		repos := api.Group("/repositories")
		{
			repos.POST("", repoHandler.Create)
			repos.GET("", repoHandler.List)
			repos.GET("/:id", repoHandler.Get)
			repos.DELETE("/:id", repoHandler.Delete)
			repos.POST("/:id/analyze", repoHandler.Analyze)
			repos.GET("/:id/documents", docHandler.GetByRepository)
		}

		jobs := api.Group("/jobs")
		{
			jobs.GET("/:jobId", repoHandler.GetJob)
			jobs.POST("/:jobId/cancel", repoHandler.CancelJob)
		}

		docs := api.Group("/documents")
		{
			docs.GET("/:id", docHandler.Get)
			docs.GET("/:id/download", docHandler.Download)
		}

		status := api.Group("/status")
		{
			status.GET("/health", statusHandler.Health)
			status.GET("/queue", statusHandler.Queue)
			status.GET("/keys", statusHandler.Keys)
		}

		// API Key 管理
		apiKeyHandler.RegisterRoutes(api)
	}

	return r
}
