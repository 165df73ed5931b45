package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/hireloop/hireloop/internal/api/handlers"
	"github.com/hireloop/hireloop/internal/api/middleware"
)

type Deps struct {
	Session  *handlers.SessionHandler
	Template *handlers.TemplateHandler
	Worker   *handlers.WorkerHandler
	WS       *handlers.WSHandler

	WorkerToken string
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// Control surface (JWT, org-scoped)
	auth := r.Group("/")
	auth.Use(middleware.JWTAuth())

	auth.POST("/session", d.Session.Create)
	auth.GET("/sessions", d.Session.List)
	auth.GET("/session/:session_id", d.Session.Get)
	auth.POST("/session/:session_id/start", d.Session.Start)
	auth.POST("/session/:session_id/cancel", d.Session.Cancel)

	auth.POST("/template", d.Template.Upsert)
	auth.GET("/templates", d.Template.List)

	// Transcript stream
	auth.GET("/ws/session/:session_id/transcript", d.WS.TranscriptWS)

	// Worker callback channel (shared token)
	worker := r.Group("/worker")
	worker.Use(middleware.WorkerToken(d.WorkerToken))

	worker.POST("/session/:session_id/fragment", d.Worker.ReportFragment)
	worker.POST("/session/:session_id/signal", d.Worker.ReportSignal)
}
