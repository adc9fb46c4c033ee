package api

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const bytesPerGB = int64(1024 * 1024 * 1024)

// getSystemConfig returns the effective runtime configuration plus the raw
// database overrides it was built from. Archive credentials are masked.
func (s *Server) getSystemConfig(c *gin.Context) {
	overrides, err := s.configSvc.GetAllConfigs()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read config overrides", "details": err.Error()})
		return
	}
	for key := range overrides {
		if strings.Contains(key, "secret") || strings.Contains(key, "access_key") {
			overrides[key] = "***"
		}
	}

	cfg := s.config
	c.JSON(http.StatusOK, gin.H{
		"trigger": gin.H{
			"scoreThreshold":     cfg.ScoreThreshold,
			"enabledClasses":     cfg.EnabledClasses,
			"requireBoundingBox": cfg.RequireBoundingBox,
			"motionMode":         cfg.MotionMode,
		},
		"clipWindow": gin.H{
			"preEventSeconds":  cfg.PreEventSeconds,
			"postEventSeconds": cfg.PostEventSeconds,
			"maxClipSeconds":   cfg.MaxClipSeconds,
		},
		"retention": gin.H{
			"maxSpaceGB":         cfg.MaxSpaceGB,
			"cleanupThresholdGB": cfg.CleanupThresholdGB,
			"evictionBatch":      cfg.EvictionBatch,
		},
		"capture": gin.H{
			"restartMinutes": cfg.CaptureRestartMinutes,
		},
		"overrides": overrides,
	})
}

type triggerConfigRequest struct {
	ScoreThreshold     *float64 `json:"scoreThreshold"`
	EnabledClasses     []string `json:"enabledClasses"`
	RequireBoundingBox *bool    `json:"requireBoundingBox"`
	MotionMode         string   `json:"motionMode"`
}

// updateTriggerConfig persists new trigger settings and pushes them to every
// camera controller. Omitted fields keep their current values.
func (s *Server) updateTriggerConfig(c *gin.Context) {
	var req triggerConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}

	threshold := s.config.ScoreThreshold
	if req.ScoreThreshold != nil {
		threshold = *req.ScoreThreshold
	}
	classes := s.config.EnabledClasses
	if req.EnabledClasses != nil {
		classes = req.EnabledClasses
	}
	requireBBox := s.config.RequireBoundingBox
	if req.RequireBoundingBox != nil {
		requireBBox = *req.RequireBoundingBox
	}
	motionMode := s.config.MotionMode
	if req.MotionMode != "" {
		motionMode = req.MotionMode
	}

	if err := s.configSvc.SetTriggerSettings(threshold, classes, requireBBox, motionMode); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid trigger settings", "details": err.Error()})
		return
	}
	s.reloadAndApply()

	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"scoreThreshold":     s.config.ScoreThreshold,
		"enabledClasses":     s.config.EnabledClasses,
		"requireBoundingBox": s.config.RequireBoundingBox,
		"motionMode":         s.config.MotionMode,
	})
}

type clipWindowConfigRequest struct {
	PreEventSeconds  *int `json:"preEventSeconds"`
	PostEventSeconds *int `json:"postEventSeconds"`
	MaxClipSeconds   *int `json:"maxClipSeconds"`
}

func (s *Server) updateClipWindowConfig(c *gin.Context) {
	var req clipWindowConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}

	pre := s.config.PreEventSeconds
	if req.PreEventSeconds != nil {
		pre = *req.PreEventSeconds
	}
	post := s.config.PostEventSeconds
	if req.PostEventSeconds != nil {
		post = *req.PostEventSeconds
	}
	maxClip := s.config.MaxClipSeconds
	if req.MaxClipSeconds != nil {
		maxClip = *req.MaxClipSeconds
	}

	if err := s.configSvc.SetClipWindowSettings(pre, post, maxClip); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid clip window settings", "details": err.Error()})
		return
	}
	s.reloadAndApply()

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"preEventSeconds":  s.config.PreEventSeconds,
		"postEventSeconds": s.config.PostEventSeconds,
		"maxClipSeconds":   s.config.MaxClipSeconds,
	})
}

type retentionConfigRequest struct {
	MaxSpaceGB         *float64 `json:"maxSpaceGB"`
	CleanupThresholdGB *float64 `json:"cleanupThresholdGB"`
	EvictionBatch      *int     `json:"evictionBatch"`
}

func (s *Server) updateRetentionConfig(c *gin.Context) {
	var req retentionConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}

	maxGB := s.config.MaxSpaceGB
	if req.MaxSpaceGB != nil {
		maxGB = *req.MaxSpaceGB
	}
	thresholdGB := s.config.CleanupThresholdGB
	if req.CleanupThresholdGB != nil {
		thresholdGB = *req.CleanupThresholdGB
	}
	batch := s.config.EvictionBatch
	if req.EvictionBatch != nil {
		batch = *req.EvictionBatch
	}

	if err := s.configSvc.SetRetentionSettings(maxGB, thresholdGB, batch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid retention settings", "details": err.Error()})
		return
	}
	s.reloadAndApply()
	s.evictor.SetBudget(int64(maxGB*float64(bytesPerGB)), int64(thresholdGB*float64(bytesPerGB)), batch)

	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"maxSpaceGB":         s.config.MaxSpaceGB,
		"cleanupThresholdGB": s.config.CleanupThresholdGB,
		"evictionBatch":      s.config.EvictionBatch,
	})
}

// reloadAndApply folds the stored overrides back into the shared config and
// pushes per-camera effective settings to every controller.
func (s *Server) reloadAndApply() {
	if err := s.configSvc.LoadSystemConfigToConfig(s.config); err != nil {
		log.Printf("⚠️ Config reload failed: %v", err)
		return
	}
	for _, ctrl := range s.controllers {
		ctrl.ApplySettings(s.config)
	}
}

// triggerIndexScan rebuilds every camera's catalog snapshot from disk
func (s *Server) triggerIndexScan(c *gin.Context) {
	cameras := s.cameraNames()
	s.indexer.ScanAll(cameras)
	c.JSON(http.StatusOK, gin.H{"success": true, "cameras": len(cameras)})
}

// triggerRetentionCheck runs the budget check immediately instead of waiting
// for the next scheduled pass
func (s *Server) triggerRetentionCheck(c *gin.Context) {
	cameras := s.cameraNames()
	s.evictor.CheckAll(cameras)
	c.JSON(http.StatusOK, gin.H{"success": true, "cameras": len(cameras), "usage": s.catalog.Usage()})
}

func (s *Server) cameraNames() []string {
	names := make([]string, 0, len(s.controllers))
	for name := range s.controllers {
		names = append(names, name)
	}
	return names
}
