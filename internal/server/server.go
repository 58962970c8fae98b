// Package server exposes the pipeline over HTTP. The handlers are thin:
// they validate paths and hand everything to the pipeline queue.
package server

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lukudoko/videothing/config"
	"github.com/lukudoko/videothing/internal/pipeline"
	"github.com/lukudoko/videothing/internal/storage"
)

// Server handles HTTP requests for the media pipeline.
type Server struct {
	cfg      *config.Config
	queue    *pipeline.Queue
	archiver storage.Archiver
	router   *gin.Engine
}

// New creates the HTTP server around an already-running queue. archiver may
// be nil when archiving is not configured.
func New(cfg *config.Config, queue *pipeline.Queue, archiver storage.Archiver) *Server {
	router := gin.Default()

	server := &Server{
		cfg:      cfg,
		queue:    queue,
		archiver: archiver,
		router:   router,
	}

	server.setupRoutes(router)
	return server
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes(router *gin.Engine) {
	// CORS: the frontend is served from a different origin on the LAN.
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.GET("/health", s.healthCheck)

	api := router.Group("/api")
	{
		api.POST("/scrape", s.scrape)
		api.POST("/download", s.download)
		api.GET("/progress", s.getProgress)
		api.POST("/clear_progress", s.clearProgress)
		api.POST("/queue/config", s.updateQueueConfig)
		api.GET("/queue/stats", s.queueStats)
		api.POST("/transcribe", s.transcribeFile)
		api.POST("/archive", s.archive)

		fs := api.Group("/filesystems")
		{
			fs.GET("/list", s.listDirectory)
			fs.POST("/create-folder", s.createFolder)
			fs.POST("/move", s.moveItem)
			fs.DELETE("/delete", s.deleteItem)
		}
	}
}

// Start starts the HTTP server
func (s *Server) Start(port string) error {
	slog.Info("Starting server", "port", port, "baseDir", s.cfg.Library.BaseDir)
	return s.router.Run(":" + port)
}

// healthCheck handles health check requests
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":    "ok",
		"timestamp": time.Now(),
		"service":   "videothing",
	})
}
