package api

import (
	"fmt"
	"time"

	"clipvault/catalog"
	"clipvault/config"
	"clipvault/database"
	"clipvault/metrics"
	"clipvault/monitoring"
	"clipvault/recording"

	"github.com/gin-gonic/gin"
)

type Server struct {
	config      *config.Config
	db          database.Database
	catalog     *catalog.Catalog
	indexer     *catalog.Indexer
	evictor     *catalog.Evictor
	controllers map[string]*recording.CameraController
	monitor     *monitoring.Monitor
	collector   *metrics.Collector
	configSvc   *config.SystemConfigService
	startedAt   time.Time
}

func NewServer(cfg *config.Config, db database.Database, cat *catalog.Catalog, indexer *catalog.Indexer, evictor *catalog.Evictor, controllers map[string]*recording.CameraController, monitor *monitoring.Monitor, collector *metrics.Collector) *Server {
	return &Server{
		config:      cfg,
		db:          db,
		catalog:     cat,
		indexer:     indexer,
		evictor:     evictor,
		controllers: controllers,
		monitor:     monitor,
		collector:   collector,
		configSvc:   config.NewSystemConfigService(db),
		startedAt:   time.Now(),
	}
}

func (s *Server) Start() {
	r := gin.Default()
	s.setupCORS(r)
	s.setupRoutes(r)
	portAddr := ":" + s.config.ServerPort
	fmt.Printf("Starting API server on %s\n", portAddr)
	r.Run(portAddr)
}

func (s *Server) setupCORS(r *gin.Engine) {
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})
}

func (s *Server) setupRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		api.GET("/clips", s.listClips)
		api.GET("/clips/:camera/:id", s.getClipVideo)
		api.GET("/clips/:camera/:id/thumbnail", s.getClipThumbnail)
		api.DELETE("/clips/:camera/:id", s.deleteClip)
		api.POST("/events/:camera", s.pushDetections)
		api.POST("/motion/:camera", s.pushMotion)
		api.GET("/cameras", s.listCameras)
		api.GET("/storage", s.getStorageUsage)
		api.GET("/health", s.getHealth)
		api.GET("/metrics", s.getAssemblyMetrics)
	}

	admin := r.Group("/api/admin")
	{
		admin.GET("/config", s.getSystemConfig)
		admin.PUT("/config/trigger", s.updateTriggerConfig)
		admin.PUT("/config/clip-window", s.updateClipWindowConfig)
		admin.PUT("/config/retention", s.updateRetentionConfig)
		admin.POST("/index/scan", s.triggerIndexScan)
		admin.POST("/retention/check", s.triggerRetentionCheck)
		admin.GET("/cameras", s.listCameraConfigs)
		admin.POST("/cameras", s.addCamera)
		admin.PUT("/cameras/:name", s.updateCameraConfig)
		admin.POST("/cameras/scan", s.scanForCameras)
	}
}
