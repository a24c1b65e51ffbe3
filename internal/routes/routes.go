package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"taskboard/internal/handlers"
)

func SetupRoutes(r *gin.Engine, taskHandler *handlers.TaskHandler, metrics http.Handler) *gin.Engine {
	// ---- service
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// TASKS
	tasks := r.Group("/api/tasks")
	{
		tasks.POST("", taskHandler.Create)
		tasks.GET("", taskHandler.GetAll)
		tasks.GET("/summary", taskHandler.Summary)
		tasks.GET("/:id", taskHandler.GetByID)
		tasks.PATCH("/:id/complete", taskHandler.Complete)
		tasks.DELETE("/:id", taskHandler.Delete)
	}

	return r
}
