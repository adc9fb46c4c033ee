package database

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestSQLiteDB tests SQLite database operations
func TestSQLiteDB(t *testing.T) {
	// Create temporary directory for test database
	tempDir, err := os.MkdirTemp("", "clipvault-db-test")
	if err != nil {
		t.Fatalf("Failed to create temp directory: %v", err)
	}
	defer os.RemoveAll(tempDir)

	dbPath := filepath.Join(tempDir, "test.db")
	db, err := NewSQLiteDB(dbPath)
	if err != nil {
		t.Fatalf("Failed to create SQLite database: %v", err)
	}
	defer db.Close()

	// Test camera configuration CRUD
	testCameraConfig(t, db)

	// Test encoder PID persistence
	testCameraRuntime(t, db)

	// Test key-value config store
	testConfigStore(t, db)
}

// testCameraConfig tests inserting, listing and updating cameras
func testCameraConfig(t *testing.T, db *SQLiteDB) {
	cameras := []CameraConfig{
		{
			Name:     "front_door",
			IP:       "192.168.1.10",
			Port:     "554",
			Path:     "/stream1",
			Username: "admin",
			Password: "secret",
			Enabled:  true,
		},
		{
			Name:           "driveway",
			IP:             "192.168.1.11",
			Port:           "554",
			Path:           "/stream1",
			Enabled:        false,
			ScoreThreshold: 0.8,
			EnabledClasses: "person,vehicle",
		},
	}

	if err := db.InsertCameras(cameras); err != nil {
		t.Fatalf("Failed to insert cameras: %v", err)
	}

	loaded, err := db.GetCameras()
	if err != nil {
		t.Fatalf("Failed to get cameras: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("Expected 2 cameras, got %d", len(loaded))
	}

	// Ordered by name: driveway first
	if loaded[0].Name != "driveway" {
		t.Errorf("Expected first camera driveway, got %s", loaded[0].Name)
	}
	if loaded[0].Enabled {
		t.Error("Expected driveway to be disabled")
	}
	if loaded[0].ScoreThreshold != 0.8 {
		t.Errorf("Expected score threshold 0.8, got %f", loaded[0].ScoreThreshold)
	}
	if loaded[0].EnabledClasses != "person,vehicle" {
		t.Errorf("Expected enabled classes person,vehicle, got %s", loaded[0].EnabledClasses)
	}
	if loaded[1].Name != "front_door" {
		t.Errorf("Expected second camera front_door, got %s", loaded[1].Name)
	}
	if !loaded[1].Enabled {
		t.Error("Expected front_door to be enabled")
	}

	// Update a camera
	cam := loaded[0]
	cam.Enabled = true
	cam.PostEventSeconds = 45
	if err := db.UpdateCamera(cam); err != nil {
		t.Fatalf("Failed to update camera: %v", err)
	}

	reloaded, err := db.GetCameras()
	if err != nil {
		t.Fatalf("Failed to reload cameras: %v", err)
	}
	if !reloaded[0].Enabled {
		t.Error("Expected driveway to be enabled after update")
	}
	if reloaded[0].PostEventSeconds != 45 {
		t.Errorf("Expected post event seconds 45, got %d", reloaded[0].PostEventSeconds)
	}

	// Updating an unknown camera must fail
	if err := db.UpdateCamera(CameraConfig{Name: "no_such_camera"}); err == nil {
		t.Error("Expected error updating unknown camera, got nil")
	}

	t.Logf("✅ Camera configuration CRUD passed")
}

// testCameraRuntime tests saving and clearing the persisted encoder PID
func testCameraRuntime(t *testing.T, db *SQLiteDB) {
	// No runtime row yet
	rt, err := db.GetCameraRuntime("front_door")
	if err != nil {
		t.Fatalf("Failed to get runtime: %v", err)
	}
	if rt != nil {
		t.Fatalf("Expected nil runtime before save, got %+v", rt)
	}

	started := time.Now().Add(-time.Minute)
	if err := db.SaveEncoderPID("front_door", 4321, started); err != nil {
		t.Fatalf("Failed to save encoder PID: %v", err)
	}

	rt, err = db.GetCameraRuntime("front_door")
	if err != nil {
		t.Fatalf("Failed to get runtime after save: %v", err)
	}
	if rt == nil {
		t.Fatal("Expected runtime row after save, got nil")
	}
	if rt.EncoderPID != 4321 {
		t.Errorf("Expected PID 4321, got %d", rt.EncoderPID)
	}
	if rt.CaptureStartedAt == nil {
		t.Error("Expected capture start time to be set, got nil")
	}

	// A second camera's runtime must be independent
	if err := db.SaveEncoderPID("driveway", 9999, time.Now()); err != nil {
		t.Fatalf("Failed to save second encoder PID: %v", err)
	}

	runtimes, err := db.ListCameraRuntimes()
	if err != nil {
		t.Fatalf("Failed to list runtimes: %v", err)
	}
	if len(runtimes) != 2 {
		t.Errorf("Expected 2 runtime rows, got %d", len(runtimes))
	}

	// Clearing resets the PID to 0 and nils the start time
	if err := db.ClearEncoderPID("front_door"); err != nil {
		t.Fatalf("Failed to clear encoder PID: %v", err)
	}
	rt, err = db.GetCameraRuntime("front_door")
	if err != nil {
		t.Fatalf("Failed to get runtime after clear: %v", err)
	}
	if rt.EncoderPID != 0 {
		t.Errorf("Expected PID 0 after clear, got %d", rt.EncoderPID)
	}
	if rt.CaptureStartedAt != nil {
		t.Errorf("Expected nil start time after clear, got %v", rt.CaptureStartedAt)
	}

	t.Logf("✅ Encoder PID persistence passed")
}

// testConfigStore tests the key-value settings store
func testConfigStore(t *testing.T, db *SQLiteDB) {
	if err := db.SetConfig("score_threshold", "0.75"); err != nil {
		t.Fatalf("Failed to set config: %v", err)
	}

	value, err := db.GetConfig("score_threshold")
	if err != nil {
		t.Fatalf("Failed to get config: %v", err)
	}
	if value != "0.75" {
		t.Errorf("Expected 0.75, got %s", value)
	}

	// Overwrite
	if err := db.SetConfig("score_threshold", "0.6"); err != nil {
		t.Fatalf("Failed to overwrite config: %v", err)
	}
	value, _ = db.GetConfig("score_threshold")
	if value != "0.6" {
		t.Errorf("Expected 0.6 after overwrite, got %s", value)
	}

	if err := db.SetConfig("max_space_gb", "50"); err != nil {
		t.Fatalf("Failed to set second config: %v", err)
	}

	all, err := db.GetAllConfig()
	if err != nil {
		t.Fatalf("Failed to get all config: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 config entries, got %d", len(all))
	}

	if err := db.DeleteConfig("max_space_gb"); err != nil {
		t.Fatalf("Failed to delete config: %v", err)
	}
	if _, err := db.GetConfig("max_space_gb"); err == nil {
		t.Error("Expected error getting deleted config key, got nil")
	}

	t.Logf("✅ Key-value config store passed")
}
