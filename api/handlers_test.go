package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"clipvault/catalog"
	"clipvault/clips"
	"clipvault/config"
	"clipvault/database"
	"clipvault/metrics"
	"clipvault/monitoring"
	"clipvault/recording"
)

func testConfig(tmp string) *config.Config {
	return &config.Config{
		StorageRoot:                 tmp,
		MaxSpaceGB:                  10,
		CleanupThresholdGB:          1,
		EvictionBatch:               5,
		PreEventSeconds:             5,
		PostEventSeconds:            30,
		MaxClipSeconds:              120,
		CaptureRestartMinutes:       120,
		CaptureTickSeconds:          10,
		SegmentRetentionTickSeconds: 30,
		ThumbnailOffsetSeconds:      2,
		ScoreThreshold:              0.5,
		EnabledClasses:              []string{"person", "vehicle"},
		MotionMode:                  "extend",
		ServerPort:                  "8080",
		BaseURL:                     "http://localhost:8080",
	}
}

// newTestEnv builds a server backed by a real SQLite database and one camera
// controller named "garage" that is never started.
func newTestEnv(t *testing.T) (*Server, *catalog.Catalog, string) {
	t.Helper()

	tmp, err := os.MkdirTemp("", "api-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	db, err := database.NewSQLiteDB(filepath.Join(tmp, "test.db"))
	if err != nil {
		os.RemoveAll(tmp)
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
		os.RemoveAll(tmp)
	})

	cfg := testConfig(tmp)
	cat := catalog.New()
	indexer := catalog.NewIndexer(cfg.StorageRoot, cat)
	evictor := catalog.NewEvictor(cfg.StorageRoot, cat, indexer, 10<<30, 1<<30, 5)

	camCfg := config.CameraConfig{Name: "garage", IP: "10.0.0.5", Port: "554", Path: "/stream", Enabled: true}
	ctrl := recording.NewCameraController(cfg, camCfg, db, nil, nil)
	controllers := map[string]*recording.CameraController{"garage": ctrl}

	s := NewServer(cfg, db, cat, indexer, evictor, controllers, monitoring.NewMonitor(), metrics.NewCollector())
	return s, cat, tmp
}

func seedClip(cat *catalog.Catalog, camera, id string, start, end time.Time, classes []string) clips.ClipRecord {
	rec := clips.ClipRecord{
		ID:        id,
		Camera:    camera,
		Filename:  id + ".mp4",
		VideoPath: "/nonexistent/" + id + ".mp4",
		SizeBytes: 1000,
		StartTime: start,
		EndTime:   end,
		Classes:   classes,
	}
	cat.AddClip(rec)
	return rec
}

// TestListClipsOrdersNewestFirst verifies ordering and URL construction
func TestListClipsOrdersNewestFirst(t *testing.T) {
	s, cat, _ := newTestEnv(t)
	r := NewTestServer(s)

	base := time.UnixMilli(1755000000000)
	seedClip(cat, "garage", "a", base, base.Add(30*time.Second), []string{"motion"})
	seedClip(cat, "garage", "b", base.Add(2*time.Minute), base.Add(2*time.Minute+30*time.Second), []string{"motion", "person"})
	seedClip(cat, "garage", "c", base.Add(1*time.Minute), base.Add(1*time.Minute+30*time.Second), []string{"motion", "vehicle"})

	recorder := PerformJSONRequest(r, http.MethodGet, "/api/clips?camera=garage", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	var resp struct {
		Clips []ClipResponse `json:"clips"`
		Count int            `json:"count"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Count != 3 {
		t.Fatalf("Expected 3 clips, got %d", resp.Count)
	}
	if resp.Clips[0].ID != "b" || resp.Clips[1].ID != "c" || resp.Clips[2].ID != "a" {
		t.Errorf("Expected newest-first order b,c,a; got %s,%s,%s", resp.Clips[0].ID, resp.Clips[1].ID, resp.Clips[2].ID)
	}
	if resp.Clips[0].VideoURL != "http://localhost:8080/api/clips/garage/b" {
		t.Errorf("Unexpected video URL: %s", resp.Clips[0].VideoURL)
	}
	if resp.Clips[0].ThumbnailURL != "http://localhost:8080/api/clips/garage/b/thumbnail" {
		t.Errorf("Unexpected thumbnail URL: %s", resp.Clips[0].ThumbnailURL)
	}
	if resp.Clips[0].PrimaryClass != "person" {
		t.Errorf("Expected primary class person, got %s", resp.Clips[0].PrimaryClass)
	}

	t.Logf("✅ Clip listing ordered and linked correctly")
}

// TestListClipsTimeRange verifies overlap filtering via start/end parameters
func TestListClipsTimeRange(t *testing.T) {
	s, cat, _ := newTestEnv(t)
	r := NewTestServer(s)

	base := time.UnixMilli(1755000000000)
	seedClip(cat, "garage", "old", base, base.Add(30*time.Second), []string{"motion"})
	seedClip(cat, "garage", "mid", base.Add(5*time.Minute), base.Add(5*time.Minute+30*time.Second), []string{"motion"})
	seedClip(cat, "garage", "new", base.Add(10*time.Minute), base.Add(10*time.Minute+30*time.Second), []string{"motion"})

	start := base.Add(4 * time.Minute).UnixMilli()
	end := base.Add(6 * time.Minute).UnixMilli()
	path := fmt.Sprintf("/api/clips?camera=garage&start=%d&end=%d", start, end)

	recorder := PerformJSONRequest(r, http.MethodGet, path, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	var resp struct {
		Clips []ClipResponse `json:"clips"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Clips) != 1 || resp.Clips[0].ID != "mid" {
		t.Fatalf("Expected only clip mid in range, got %+v", resp.Clips)
	}

	recorder = PerformJSONRequest(r, http.MethodGet, "/api/clips?camera=garage&start=notatime", nil)
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad start parameter, got %d", recorder.Code)
	}

	t.Logf("✅ Time range filtering works")
}

// TestGetClipVideoNotFound verifies unknown clips return 404
func TestGetClipVideoNotFound(t *testing.T) {
	s, _, _ := newTestEnv(t)
	r := NewTestServer(s)

	recorder := PerformJSONRequest(r, http.MethodGet, "/api/clips/garage/nope", nil)
	if recorder.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", recorder.Code)
	}
}

// TestDeleteClipRemovesFilesAndCatalogEntry exercises the full delete path
// with real files on disk.
func TestDeleteClipRemovesFilesAndCatalogEntry(t *testing.T) {
	s, cat, tmp := newTestEnv(t)
	r := NewTestServer(s)

	clipsDir := filepath.Join(tmp, "garage", "videoclips")
	thumbsDir := filepath.Join(tmp, "garage", "thumbnails")
	if err := os.MkdirAll(clipsDir, 0755); err != nil {
		t.Fatalf("Failed to create clips dir: %v", err)
	}
	if err := os.MkdirAll(thumbsDir, 0755); err != nil {
		t.Fatalf("Failed to create thumbs dir: %v", err)
	}

	name := "1755000000000_1755000030000_1100000000"
	videoPath := filepath.Join(clipsDir, name+".mp4")
	thumbPath := filepath.Join(thumbsDir, name+".jpg")
	if err := os.WriteFile(videoPath, []byte("video"), 0644); err != nil {
		t.Fatalf("Failed to write video: %v", err)
	}
	if err := os.WriteFile(thumbPath, []byte("thumb"), 0644); err != nil {
		t.Fatalf("Failed to write thumbnail: %v", err)
	}

	cat.AddClip(clips.ClipRecord{
		ID:            name,
		Camera:        "garage",
		Filename:      name + ".mp4",
		VideoPath:     videoPath,
		ThumbnailPath: thumbPath,
		StartTime:     time.UnixMilli(1755000000000),
		EndTime:       time.UnixMilli(1755000030000),
		Classes:       []string{"motion", "person"},
	})

	recorder := PerformJSONRequest(r, http.MethodDelete, "/api/clips/garage/"+name, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	if _, err := os.Stat(videoPath); !os.IsNotExist(err) {
		t.Errorf("Video file should be deleted")
	}
	if _, err := os.Stat(thumbPath); !os.IsNotExist(err) {
		t.Errorf("Thumbnail file should be deleted")
	}
	if _, ok := cat.Get("garage", name); ok {
		t.Errorf("Catalog entry should be removed")
	}
	dirty := cat.ConsumeDirty()
	if len(dirty) != 1 || dirty[0] != "garage" {
		t.Errorf("Expected garage marked dirty, got %v", dirty)
	}

	recorder = PerformJSONRequest(r, http.MethodDelete, "/api/clips/garage/"+name, nil)
	if recorder.Code != http.StatusNotFound {
		t.Errorf("Expected 404 on second delete, got %d", recorder.Code)
	}

	t.Logf("✅ Delete removed files and catalog entry")
}

// TestPushDetections verifies boundary validation and submission
func TestPushDetections(t *testing.T) {
	s, _, _ := newTestEnv(t)
	r := NewTestServer(s)

	recorder := PerformJSONRequest(r, http.MethodPost, "/api/events/unknown", map[string]interface{}{
		"detections": []map[string]interface{}{{"className": "person", "score": 0.9}},
	})
	if recorder.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown camera, got %d", recorder.Code)
	}

	recorder = PerformJSONRequest(r, http.MethodPost, "/api/events/garage", map[string]interface{}{
		"detections": []map[string]interface{}{},
	})
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty batch, got %d", recorder.Code)
	}

	recorder = PerformJSONRequest(r, http.MethodPost, "/api/events/garage", map[string]interface{}{
		"detections": []map[string]interface{}{{"className": "  ", "score": 0.9}},
	})
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for blank class name, got %d", recorder.Code)
	}

	recorder = PerformJSONRequest(r, http.MethodPost, "/api/events/garage", map[string]interface{}{
		"detections": []map[string]interface{}{
			{"className": "Person", "score": 0.92, "hasBoundingBox": true, "isMoving": true},
			{"className": "vehicle", "score": 0.81, "hasBoundingBox": true},
		},
	})
	if recorder.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp["accepted"].(float64) != 2 {
		t.Errorf("Expected 2 accepted, got %v", resp["accepted"])
	}

	t.Logf("✅ Detection push validated and accepted")
}

// TestPushMotionDefaultsActive verifies an empty body counts as a pulse
func TestPushMotionDefaultsActive(t *testing.T) {
	s, _, _ := newTestEnv(t)
	r := NewTestServer(s)

	recorder := PerformJSONRequest(r, http.MethodPost, "/api/motion/garage", nil)
	if recorder.Code != http.StatusAccepted {
		t.Fatalf("Expected 202 for empty body, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var resp map[string]interface{}
	json.Unmarshal(recorder.Body.Bytes(), &resp)
	if resp["active"] != true {
		t.Errorf("Expected active=true by default, got %v", resp["active"])
	}

	recorder = PerformJSONRequest(r, http.MethodPost, "/api/motion/garage", map[string]interface{}{"active": false})
	if recorder.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", recorder.Code)
	}
	json.Unmarshal(recorder.Body.Bytes(), &resp)
	if resp["active"] != false {
		t.Errorf("Expected active=false, got %v", resp["active"])
	}

	recorder = PerformJSONRequest(r, http.MethodPost, "/api/motion/unknown", nil)
	if recorder.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown camera, got %d", recorder.Code)
	}

	t.Logf("✅ Motion push behaves")
}

// TestHealthReflectsCaptureState verifies the status tiers
func TestHealthReflectsCaptureState(t *testing.T) {
	s, _, _ := newTestEnv(t)
	r := NewTestServer(s)

	// One controller, never started: no capture running anywhere.
	recorder := PerformJSONRequest(r, http.MethodGet, "/api/health", nil)
	if recorder.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503 with all captures down, got %d", recorder.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp["status"] != "unhealthy" {
		t.Errorf("Expected unhealthy, got %v", resp["status"])
	}

	// No cameras configured at all: nothing to be down.
	s.controllers = map[string]*recording.CameraController{}
	recorder = PerformJSONRequest(r, http.MethodGet, "/api/health", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected 200 with no cameras, got %d", recorder.Code)
	}
	json.Unmarshal(recorder.Body.Bytes(), &resp)
	if resp["status"] != "healthy" {
		t.Errorf("Expected healthy, got %v", resp["status"])
	}

	t.Logf("✅ Health tiers reflect capture state")
}

// TestSystemConfigMasksSecrets verifies credential values never leave the API
func TestSystemConfigMasksSecrets(t *testing.T) {
	s, _, _ := newTestEnv(t)
	r := NewTestServer(s)

	if err := s.db.SetConfig(config.ConfigArchiveSecretKey, "hunter2"); err != nil {
		t.Fatalf("Failed to set config: %v", err)
	}
	if err := s.db.SetConfig(config.ConfigScoreThreshold, "0.9"); err != nil {
		t.Fatalf("Failed to set config: %v", err)
	}

	recorder := PerformJSONRequest(r, http.MethodGet, "/api/admin/config", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	var resp struct {
		Overrides map[string]string `json:"overrides"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Overrides[config.ConfigArchiveSecretKey] != "***" {
		t.Errorf("Secret key should be masked, got %q", resp.Overrides[config.ConfigArchiveSecretKey])
	}
	if resp.Overrides[config.ConfigScoreThreshold] != "0.9" {
		t.Errorf("Non-secret override should pass through, got %q", resp.Overrides[config.ConfigScoreThreshold])
	}

	t.Logf("✅ Config endpoint masks secrets")
}

// TestUpdateTriggerConfig verifies persistence and reload through the API
func TestUpdateTriggerConfig(t *testing.T) {
	s, _, _ := newTestEnv(t)
	r := NewTestServer(s)

	recorder := PerformJSONRequest(r, http.MethodPut, "/api/admin/config/trigger", map[string]interface{}{
		"scoreThreshold": 0.9,
		"enabledClasses": []string{"person"},
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if s.config.ScoreThreshold != 0.9 {
		t.Errorf("Expected threshold 0.9 after reload, got %v", s.config.ScoreThreshold)
	}
	if len(s.config.EnabledClasses) != 1 || s.config.EnabledClasses[0] != "person" {
		t.Errorf("Expected classes [person], got %v", s.config.EnabledClasses)
	}

	// Out-of-range threshold is rejected and nothing changes.
	recorder = PerformJSONRequest(r, http.MethodPut, "/api/admin/config/trigger", map[string]interface{}{
		"scoreThreshold": 1.5,
	})
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid threshold, got %d", recorder.Code)
	}
	if s.config.ScoreThreshold != 0.9 {
		t.Errorf("Threshold should be unchanged after rejected update, got %v", s.config.ScoreThreshold)
	}

	t.Logf("✅ Trigger config updates persist and reload")
}

// TestUpdateRetentionConfigValidation verifies threshold/budget sanity checks
func TestUpdateRetentionConfigValidation(t *testing.T) {
	s, _, _ := newTestEnv(t)
	r := NewTestServer(s)

	recorder := PerformJSONRequest(r, http.MethodPut, "/api/admin/config/retention", map[string]interface{}{
		"maxSpaceGB":         5.0,
		"cleanupThresholdGB": 8.0,
	})
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 when threshold exceeds budget, got %d", recorder.Code)
	}

	recorder = PerformJSONRequest(r, http.MethodPut, "/api/admin/config/retention", map[string]interface{}{
		"maxSpaceGB":         20.0,
		"cleanupThresholdGB": 2.0,
		"evictionBatch":      10,
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if s.config.MaxSpaceGB != 20.0 {
		t.Errorf("Expected max space 20GB after reload, got %v", s.config.MaxSpaceGB)
	}

	t.Logf("✅ Retention config validated and applied")
}

// TestParseTimeParam covers both accepted formats
func TestParseTimeParam(t *testing.T) {
	if ts, err := parseTimeParam(""); err != nil || !ts.IsZero() {
		t.Errorf("Empty should be zero time, got %v %v", ts, err)
	}
	if ts, err := parseTimeParam("1755000000000"); err != nil || ts.UnixMilli() != 1755000000000 {
		t.Errorf("Millisecond parse failed: %v %v", ts, err)
	}
	if ts, err := parseTimeParam("2026-08-25T10:00:00Z"); err != nil || ts.Year() != 2026 {
		t.Errorf("RFC3339 parse failed: %v %v", ts, err)
	}
	if _, err := parseTimeParam("yesterday"); err == nil {
		t.Errorf("Expected error for junk input")
	}
}
