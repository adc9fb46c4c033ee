package api

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"clipvault/clips"
	"clipvault/storage"
	"clipvault/trigger"

	"github.com/gin-gonic/gin"
)

// ClipResponse is the wire shape for one catalogued clip
type ClipResponse struct {
	ID              string    `json:"id"`
	Camera          string    `json:"camera"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	DurationSeconds float64   `json:"durationSeconds"`
	PrimaryClass    string    `json:"primaryClass"`
	Classes         []string  `json:"classes"`
	VideoURL        string    `json:"videoUrl"`
	ThumbnailURL    string    `json:"thumbnailUrl"`
	SizeBytes       int64     `json:"sizeBytes"`
}

func (s *Server) clipResponse(rec clips.ClipRecord) ClipResponse {
	base := strings.TrimRight(s.config.BaseURL, "/")
	videoURL := fmt.Sprintf("%s/api/clips/%s/%s", base, rec.Camera, rec.ID)
	return ClipResponse{
		ID:              rec.ID,
		Camera:          rec.Camera,
		StartTime:       rec.StartTime,
		EndTime:         rec.EndTime,
		DurationSeconds: rec.Duration().Seconds(),
		PrimaryClass:    rec.PrimaryClass(),
		Classes:         rec.Classes,
		VideoURL:        videoURL,
		ThumbnailURL:    videoURL + "/thumbnail",
		SizeBytes:       rec.SizeBytes,
	}
}

// parseTimeParam accepts unix milliseconds or RFC3339. Empty means unbounded.
func parseTimeParam(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected unix milliseconds or RFC3339, got %q", value)
	}
	return t, nil
}

// listClips returns catalogued clips, newest first, optionally filtered by
// camera and time range. Range filtering is by overlap: a clip matches when
// any part of it falls inside [start, end].
func (s *Server) listClips(c *gin.Context) {
	start, err := parseTimeParam(c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid start parameter", "details": err.Error()})
		return
	}
	end, err := parseTimeParam(c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid end parameter", "details": err.Error()})
		return
	}

	var records []clips.ClipRecord
	if camera := c.Query("camera"); camera != "" {
		records = s.catalog.ListRange(camera, start, end)
	} else {
		for _, camera := range s.catalog.Cameras() {
			records = append(records, s.catalog.ListRange(camera, start, end)...)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].StartTime.After(records[j].StartTime) })

	items := make([]ClipResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, s.clipResponse(rec))
	}
	c.JSON(http.StatusOK, gin.H{"clips": items, "count": len(items)})
}

func (s *Server) getClipVideo(c *gin.Context) {
	rec, ok := s.catalog.Get(c.Param("camera"), c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Clip not found"})
		return
	}
	c.File(rec.VideoPath)
}

// getClipThumbnail serves the clip's thumbnail, generating it on the spot if
// assembly skipped it (thumbnail failures are non-fatal there).
func (s *Server) getClipThumbnail(c *gin.Context) {
	rec, ok := s.catalog.Get(c.Param("camera"), c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Clip not found"})
		return
	}
	if err := clips.GenerateThumbnailIfMissing(rec.VideoPath, rec.ThumbnailPath, s.config.ThumbnailOffsetSeconds); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate thumbnail", "details": err.Error()})
		return
	}
	c.File(rec.ThumbnailPath)
}

func (s *Server) deleteClip(c *gin.Context) {
	camera := c.Param("camera")
	id := c.Param("id")

	rec, ok := s.catalog.Get(camera, id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Clip not found"})
		return
	}

	if err := os.Remove(rec.VideoPath); err != nil && !os.IsNotExist(err) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete clip", "details": err.Error()})
		return
	}
	if err := os.Remove(rec.ThumbnailPath); err != nil && !os.IsNotExist(err) {
		log.Printf("[%s] ⚠️ Failed to delete thumbnail for clip %s: %v", camera, id, err)
	}
	s.catalog.RemoveClip(camera, id)
	s.catalog.MarkDirty(camera)

	log.Printf("[%s] 🧹 Deleted clip %s via API", camera, id)
	c.JSON(http.StatusOK, gin.H{"success": true, "id": id})
}

type detectionPayload struct {
	ClassName      string  `json:"className"`
	Score          float64 `json:"score"`
	HasBoundingBox bool    `json:"hasBoundingBox"`
	IsMoving       bool    `json:"isMoving"`
}

type detectionBatchRequest struct {
	Detections []detectionPayload `json:"detections" binding:"required"`
}

// pushDetections accepts one detection batch from the vision pipeline and
// hands it to the camera's controller. The whole batch is validated before
// anything is submitted.
func (s *Server) pushDetections(c *gin.Context) {
	camera := c.Param("camera")
	ctrl, ok := s.controllers[camera]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown camera", "camera": camera})
		return
	}

	var req detectionBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}
	if len(req.Detections) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Detection batch is empty"})
		return
	}

	batch := make([]trigger.Detection, 0, len(req.Detections))
	for i, p := range req.Detections {
		d := trigger.Detection{
			ClassName:      p.ClassName,
			Score:          p.Score,
			HasBoundingBox: p.HasBoundingBox,
			IsMoving:       p.IsMoving,
		}
		if err := d.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid detection at index %d", i), "details": err.Error()})
			return
		}
		batch = append(batch, d.Normalize())
	}

	ctrl.SubmitDetections(batch)
	c.JSON(http.StatusAccepted, gin.H{"camera": camera, "accepted": len(batch)})
}

type motionRequest struct {
	Active *bool `json:"active"`
}

// pushMotion accepts a motion sensor state change. An empty body counts as a
// plain motion pulse (active).
func (s *Server) pushMotion(c *gin.Context) {
	camera := c.Param("camera")
	ctrl, ok := s.controllers[camera]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown camera", "camera": camera})
		return
	}

	var req motionRequest
	if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	ctrl.SubmitMotion(active)
	c.JSON(http.StatusAccepted, gin.H{"camera": camera, "active": active})
}

func (s *Server) listCameras(c *gin.Context) {
	names := make([]string, 0, len(s.controllers))
	for name := range s.controllers {
		names = append(names, name)
	}
	sort.Strings(names)

	usage := s.catalog.Usage()
	cameras := make([]gin.H, 0, len(names))
	for _, name := range names {
		entry := gin.H{
			"camera":    name,
			"status":    s.controllers[name].Status(),
			"clipCount": s.catalog.ClipCount(name),
		}
		if u, ok := usage[name]; ok {
			entry["usage"] = u
		}
		cameras = append(cameras, entry)
	}
	c.JSON(http.StatusOK, gin.H{"cameras": cameras, "count": len(cameras)})
}

func (s *Server) getStorageUsage(c *gin.Context) {
	usage := s.catalog.Usage()
	perCamera := make([]interface{}, 0, len(usage))
	names := make([]string, 0, len(usage))
	for name := range usage {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		perCamera = append(perCamera, usage[name])
	}

	resp := gin.H{
		"cameras": perCamera,
		"total":   s.catalog.AggregateUsage(),
	}
	if disk, err := storage.GetDiskSpace(s.config.StorageRoot); err == nil {
		resp["disk"] = disk
	} else {
		log.Printf("⚠️ Disk space check failed: %v", err)
	}
	c.JSON(http.StatusOK, resp)
}

// getHealth reports overall service health. Degraded means something needs
// attention but clips still get made; unhealthy means no camera is capturing.
func (s *Server) getHealth(c *gin.Context) {
	requestStart := time.Now()
	status := "healthy"
	issues := []string{}

	if _, err := s.db.GetCameras(); err != nil {
		status = "degraded"
		issues = append(issues, fmt.Sprintf("database: %v", err))
	}

	camerasRunning := 0
	cameraStates := make(map[string]gin.H, len(s.controllers))
	for name, ctrl := range s.controllers {
		st := ctrl.Status()
		if st.CaptureRunning {
			camerasRunning++
		} else {
			status = "degraded"
			issues = append(issues, fmt.Sprintf("camera %s: capture not running", name))
		}
		state := gin.H{
			"captureRunning": st.CaptureRunning,
			"triggerState":   st.TriggerState,
			"currentSegment": st.CurrentSegment,
		}
		if st.LastError != "" {
			state["lastError"] = st.LastError
		}
		cameraStates[name] = state
	}
	if len(s.controllers) > 0 && camerasRunning == 0 {
		status = "unhealthy"
	}

	resp := gin.H{
		"status":         status,
		"issues":         issues,
		"uptimeSeconds":  int64(time.Since(s.startedAt).Seconds()),
		"camerasRunning": camerasRunning,
		"cameraCount":    len(s.controllers),
		"cameras":        cameraStates,
		"resources":      s.monitor.Current(),
	}

	if disk, err := storage.GetDiskSpace(s.config.StorageRoot); err == nil {
		resp["disk"] = disk
		if disk.TotalBytes > 0 && disk.FreeBytes < disk.TotalBytes/20 {
			if status == "healthy" {
				status = "degraded"
				resp["status"] = status
			}
			issues = append(issues, "disk: less than 5% free")
			resp["issues"] = issues
		}
	}

	catalogInfo := gin.H{"cameras": len(s.catalog.Cameras())}
	if updatedAt := s.catalog.UpdatedAt(); !updatedAt.IsZero() {
		catalogInfo["updatedAt"] = updatedAt
		catalogInfo["ageSeconds"] = int64(time.Since(updatedAt).Seconds())
	}
	resp["catalog"] = catalogInfo
	resp["responseTimeMs"] = time.Since(requestStart).Milliseconds()

	httpStatus := http.StatusOK
	if status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}
	c.JSON(httpStatus, resp)
}

func (s *Server) getAssemblyMetrics(c *gin.Context) {
	stats := s.collector.CameraStats()
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	cameras := make([]gin.H, 0, len(names))
	for _, name := range names {
		st := stats[name]
		cameras = append(cameras, gin.H{
			"camera":            st.Camera,
			"clipsAssembled":    st.ClipsAssembled,
			"clipsFailed":       st.ClipsFailed,
			"totalBytes":        st.TotalBytes,
			"averageAssemblyMs": st.AverageAssembly.Milliseconds(),
			"lastAssemblyAt":    st.LastAssemblyAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"cameras": cameras})
}
