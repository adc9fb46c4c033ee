package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
)

// TestAddCameraAndList covers creation defaults, name validation, duplicate
// rejection and password masking in the admin listing
func TestAddCameraAndList(t *testing.T) {
	s, _, _ := newTestEnv(t)
	r := NewTestServer(s)

	body := map[string]interface{}{
		"name":     "porch",
		"ip":       "10.0.0.9",
		"username": "admin",
		"password": "hunter2",
	}
	recorder := PerformJSONRequest(r, http.MethodPost, "/api/admin/cameras", body)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder = PerformJSONRequest(r, http.MethodPost, "/api/admin/cameras", body)
	if recorder.Code != http.StatusConflict {
		t.Errorf("Expected 409 for duplicate name, got %d", recorder.Code)
	}

	recorder = PerformJSONRequest(r, http.MethodPost, "/api/admin/cameras", map[string]interface{}{
		"name": "front door", "ip": "10.0.0.10",
	})
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for name with a space, got %d", recorder.Code)
	}

	recorder = PerformJSONRequest(r, http.MethodGet, "/api/admin/cameras", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var resp struct {
		Cameras []cameraConfigResponse `json:"cameras"`
		Count   int                    `json:"count"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Count != 1 {
		t.Fatalf("Expected 1 camera, got %d", resp.Count)
	}
	cam := resp.Cameras[0]
	if cam.Name != "porch" || cam.IP != "10.0.0.9" {
		t.Errorf("Unexpected camera in listing: %+v", cam)
	}
	if cam.Port != "554" || cam.Path != "/" {
		t.Errorf("Expected default port 554 and path /, got %q %q", cam.Port, cam.Path)
	}
	if cam.Password != "***" {
		t.Errorf("Expected masked password, got %q", cam.Password)
	}
	if !cam.Enabled {
		t.Errorf("Expected camera enabled by default")
	}
	if cam.CaptureRunning {
		t.Errorf("New camera has no controller yet, captureRunning should be false")
	}

	t.Logf("✅ Camera creation, validation and listing behaved correctly")
}

// TestUpdateCameraOverrides verifies partial updates, override validation and
// the restart note for connection changes
func TestUpdateCameraOverrides(t *testing.T) {
	s, _, _ := newTestEnv(t)
	r := NewTestServer(s)

	seed := map[string]interface{}{"name": "porch", "ip": "10.0.0.9"}
	if rec := PerformJSONRequest(r, http.MethodPost, "/api/admin/cameras", seed); rec.Code != http.StatusCreated {
		t.Fatalf("Seed camera failed: %d %s", rec.Code, rec.Body.String())
	}

	recorder := PerformJSONRequest(r, http.MethodPut, "/api/admin/cameras/porch", map[string]interface{}{
		"scoreThreshold":   0.95,
		"postEventSeconds": 15,
		"maxClipSeconds":   60,
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	cams, err := s.db.GetCameras()
	if err != nil {
		t.Fatalf("Failed to read cameras back: %v", err)
	}
	if len(cams) != 1 || cams[0].ScoreThreshold != 0.95 || cams[0].PostEventSeconds != 15 || cams[0].MaxClipSeconds != 60 {
		t.Errorf("Overrides not persisted: %+v", cams)
	}

	recorder = PerformJSONRequest(r, http.MethodPut, "/api/admin/cameras/porch", map[string]interface{}{
		"maxClipSeconds": 10,
	})
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 when max clip falls below the post-event tail, got %d", recorder.Code)
	}

	recorder = PerformJSONRequest(r, http.MethodPut, "/api/admin/cameras/porch", map[string]interface{}{
		"scoreThreshold": 1.5,
	})
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for out-of-range threshold, got %d", recorder.Code)
	}

	recorder = PerformJSONRequest(r, http.MethodPut, "/api/admin/cameras/porch", map[string]interface{}{
		"ip": "10.0.0.20",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected 200 for IP change, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var noteResp struct {
		Note string `json:"note"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &noteResp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !strings.Contains(noteResp.Note, "restart") {
		t.Errorf("Expected a restart note for connection changes, got %q", noteResp.Note)
	}

	recorder = PerformJSONRequest(r, http.MethodPut, "/api/admin/cameras/nosuch", map[string]interface{}{
		"enabled": false,
	})
	if recorder.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown camera, got %d", recorder.Code)
	}

	t.Logf("✅ Camera override updates validated and persisted")
}

// TestScanRejectsBadRange keeps the probe from ever running on garbage input
func TestScanRejectsBadRange(t *testing.T) {
	s, _, _ := newTestEnv(t)
	r := NewTestServer(s)

	recorder := PerformJSONRequest(r, http.MethodPost, "/api/admin/cameras/scan", map[string]interface{}{
		"startIp": "192.168.1.1",
	})
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing endIp, got %d", recorder.Code)
	}

	recorder = PerformJSONRequest(r, http.MethodPost, "/api/admin/cameras/scan", map[string]interface{}{
		"startIp": "not-an-ip",
		"endIp":   "also-bad",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var resp struct {
		Count int      `json:"count"`
		Log   []string `json:"log"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Count != 0 {
		t.Errorf("Expected no cameras for an invalid range, got %d", resp.Count)
	}
	if len(resp.Log) == 0 || !strings.Contains(resp.Log[0], "invalid scan range") {
		t.Errorf("Expected an invalid-range log line, got %v", resp.Log)
	}

	t.Logf("✅ Scan input validation behaved correctly")
}
