package api

import (
	"log"
	"net/http"
	"regexp"
	"strings"

	"clipvault/config"
	"clipvault/database"

	"github.com/gin-gonic/gin"
)

// Camera names become directory names under the storage root, so keep them
// filesystem and URL safe.
var cameraNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// cameraConfigResponse is the admin view of a stored camera. The password is
// masked; everything else is returned as stored.
type cameraConfigResponse struct {
	Name             string  `json:"name"`
	IP               string  `json:"ip"`
	Port             string  `json:"port"`
	Path             string  `json:"path"`
	Username         string  `json:"username"`
	Password         string  `json:"password"`
	Enabled          bool    `json:"enabled"`
	ScoreThreshold   float64 `json:"scoreThreshold,omitempty"`
	EnabledClasses   string  `json:"enabledClasses,omitempty"`
	PostEventSeconds int     `json:"postEventSeconds,omitempty"`
	MaxClipSeconds   int     `json:"maxClipSeconds,omitempty"`
	CaptureRunning   bool    `json:"captureRunning"`
}

func (s *Server) cameraResponse(cam database.CameraConfig) cameraConfigResponse {
	resp := cameraConfigResponse{
		Name:             cam.Name,
		IP:               cam.IP,
		Port:             cam.Port,
		Path:             cam.Path,
		Username:         cam.Username,
		Enabled:          cam.Enabled,
		ScoreThreshold:   cam.ScoreThreshold,
		EnabledClasses:   cam.EnabledClasses,
		PostEventSeconds: cam.PostEventSeconds,
		MaxClipSeconds:   cam.MaxClipSeconds,
	}
	if cam.Password != "" {
		resp.Password = "***"
	}
	if ctrl, ok := s.controllers[cam.Name]; ok {
		resp.CaptureRunning = ctrl.Status().CaptureRunning
	}
	return resp
}

// listCameraConfigs returns every stored camera with its live capture state
func (s *Server) listCameraConfigs(c *gin.Context) {
	cams, err := s.db.GetCameras()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load cameras", "details": err.Error()})
		return
	}

	out := make([]cameraConfigResponse, len(cams))
	for i, cam := range cams {
		out[i] = s.cameraResponse(cam)
	}
	c.JSON(http.StatusOK, gin.H{"cameras": out, "count": len(out)})
}

type cameraCreateRequest struct {
	Name     string `json:"name" binding:"required"`
	IP       string `json:"ip" binding:"required"`
	Port     string `json:"port"`
	Path     string `json:"path"`
	Username string `json:"username"`
	Password string `json:"password"`
	Enabled  *bool  `json:"enabled"`
}

// addCamera stores a new camera. Capture for it starts on the next service
// restart; the controller set is fixed at startup.
func (s *Server) addCamera(c *gin.Context) {
	var req cameraCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}
	if !cameraNamePattern.MatchString(req.Name) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid camera name", "details": "use letters, digits, underscore or hyphen"})
		return
	}

	existing, err := s.db.GetCameras()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load cameras", "details": err.Error()})
		return
	}
	for _, cam := range existing {
		if cam.Name == req.Name {
			c.JSON(http.StatusConflict, gin.H{"error": "Camera already exists", "details": req.Name})
			return
		}
	}

	if req.Port == "" {
		req.Port = "554"
	}
	if req.Path == "" {
		req.Path = "/"
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	cam := database.CameraConfig{
		Name:     req.Name,
		IP:       req.IP,
		Port:     req.Port,
		Path:     req.Path,
		Username: req.Username,
		Password: req.Password,
		Enabled:  enabled,
	}
	if err := s.db.InsertCameras([]database.CameraConfig{cam}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save camera", "details": err.Error()})
		return
	}

	s.config.Cameras = append(s.config.Cameras, config.CameraConfig{
		Name: cam.Name, IP: cam.IP, Port: cam.Port, Path: cam.Path,
		Username: cam.Username, Password: cam.Password, Enabled: cam.Enabled,
	})
	s.config.BuildCameraLookup()
	log.Printf("[%s] ⚙️ Camera added (%s:%s%s)", cam.Name, cam.IP, cam.Port, cam.Path)

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"camera":  s.cameraResponse(cam),
		"note":    "capture starts after service restart",
	})
}

type cameraUpdateRequest struct {
	IP       *string `json:"ip"`
	Port     *string `json:"port"`
	Path     *string `json:"path"`
	Username *string `json:"username"`
	Password *string `json:"password"`
	Enabled  *bool   `json:"enabled"`
	// Per-camera trigger overrides. Zero clears the override so the camera
	// falls back to the global setting.
	ScoreThreshold   *float64 `json:"scoreThreshold"`
	EnabledClasses   []string `json:"enabledClasses"`
	PostEventSeconds *int     `json:"postEventSeconds"`
	MaxClipSeconds   *int     `json:"maxClipSeconds"`
}

// updateCameraConfig applies a partial update to a stored camera. Trigger
// overrides reach the running controller immediately; connection and enabled
// changes take effect on restart.
func (s *Server) updateCameraConfig(c *gin.Context) {
	name := c.Param("name")

	var req cameraUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}

	cams, err := s.db.GetCameras()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load cameras", "details": err.Error()})
		return
	}
	var cam *database.CameraConfig
	for i := range cams {
		if cams[i].Name == name {
			cam = &cams[i]
			break
		}
	}
	if cam == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Camera not found", "details": name})
		return
	}

	connectionChanged := false
	setString := func(dst *string, src *string) {
		if src != nil && *src != *dst {
			*dst = *src
			connectionChanged = true
		}
	}
	setString(&cam.IP, req.IP)
	setString(&cam.Port, req.Port)
	setString(&cam.Path, req.Path)
	setString(&cam.Username, req.Username)
	setString(&cam.Password, req.Password)
	if req.Enabled != nil && *req.Enabled != cam.Enabled {
		cam.Enabled = *req.Enabled
		connectionChanged = true
	}

	if req.ScoreThreshold != nil {
		if *req.ScoreThreshold < 0 || *req.ScoreThreshold > 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid score threshold", "details": "must be between 0 and 1"})
			return
		}
		cam.ScoreThreshold = *req.ScoreThreshold
	}
	if req.EnabledClasses != nil {
		cam.EnabledClasses = strings.Join(req.EnabledClasses, ",")
	}
	if req.PostEventSeconds != nil {
		if *req.PostEventSeconds < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post-event seconds", "details": "must not be negative"})
			return
		}
		cam.PostEventSeconds = *req.PostEventSeconds
	}
	if req.MaxClipSeconds != nil {
		if *req.MaxClipSeconds < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid max clip seconds", "details": "must not be negative"})
			return
		}
		cam.MaxClipSeconds = *req.MaxClipSeconds
	}
	if cam.PostEventSeconds > 0 && cam.MaxClipSeconds > 0 && cam.MaxClipSeconds <= cam.PostEventSeconds {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid clip overrides", "details": "max clip seconds must exceed post-event seconds"})
		return
	}

	if err := s.db.UpdateCamera(*cam); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save camera", "details": err.Error()})
		return
	}

	for i := range s.config.Cameras {
		if s.config.Cameras[i].Name != name {
			continue
		}
		s.config.Cameras[i] = config.CameraConfig{
			Name: cam.Name, IP: cam.IP, Port: cam.Port, Path: cam.Path,
			Username: cam.Username, Password: cam.Password, Enabled: cam.Enabled,
			ScoreThreshold: cam.ScoreThreshold, EnabledClasses: cam.EnabledClasses,
			PostEventSeconds: cam.PostEventSeconds, MaxClipSeconds: cam.MaxClipSeconds,
		}
		break
	}
	s.config.BuildCameraLookup()

	if ctrl, ok := s.controllers[name]; ok {
		ctrl.ApplySettings(s.config)
	}
	log.Printf("[%s] ⚙️ Camera settings updated", name)

	resp := gin.H{"success": true, "camera": s.cameraResponse(*cam)}
	if connectionChanged {
		resp["note"] = "connection and enabled changes take effect after service restart"
	}
	c.JSON(http.StatusOK, resp)
}

type cameraScanRequest struct {
	StartIP  string `json:"startIp" binding:"required"`
	EndIP    string `json:"endIp" binding:"required"`
	Username string `json:"username"`
	Password string `json:"password"`
	Port     string `json:"port"`
	Path     string `json:"path"`
}

// scanForCameras probes an address range for listening RTSP ports and returns
// camera drafts. Nothing is stored; follow up with POST /api/admin/cameras for
// the drafts that are real.
func (s *Server) scanForCameras(c *gin.Context) {
	var req cameraScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}

	drafts, logLines := config.ScanCamerasInRange(req.StartIP, req.EndIP, req.Username, req.Password, req.Port, req.Path)
	c.JSON(http.StatusOK, gin.H{
		"cameras": drafts,
		"count":   len(drafts),
		"log":     logLines,
	})
}
