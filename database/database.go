package database

import (
	"time"
)

// CameraConfig holds the stored configuration for a single camera
type CameraConfig struct {
	Name     string `json:"name"`     // Unique camera name (used for directory + file naming)
	IP       string `json:"ip"`       // Camera IP address
	Port     string `json:"port"`     // RTSP port (typically 554)
	Path     string `json:"path"`     // RTSP URL path (e.g., "/cam/realmonitor?channel=1&subtype=0")
	Username string `json:"username"` // RTSP authentication username
	Password string `json:"password"` // RTSP authentication password
	Enabled  bool   `json:"enabled"`  // Whether this camera is enabled for capture
	// Per-camera trigger overrides (zero value = inherit global setting)
	ScoreThreshold   float64 `json:"score_threshold"`    // Minimum detection score
	EnabledClasses   string  `json:"enabled_classes"`    // Comma-separated class list
	PostEventSeconds int     `json:"post_event_seconds"` // Recording tail after last event
	MaxClipSeconds   int     `json:"max_clip_seconds"`   // Hard cap on clip length
}

// CameraRuntime is the durable per-camera runtime state. Its main job is
// keeping the encoder PID on disk so a restart of this process can reap
// an orphaned capture left behind by the previous run.
type CameraRuntime struct {
	CameraName       string     `json:"cameraName"`
	EncoderPID       int        `json:"encoderPid"`       // 0 when no capture is running
	CaptureStartedAt *time.Time `json:"captureStartedAt"` // nil when no capture is running
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Database defines the interface for database operations
type Database interface {
	// Camera configuration
	GetCameras() ([]CameraConfig, error)
	InsertCameras(cameras []CameraConfig) error
	UpdateCamera(camera CameraConfig) error

	// Runtime state (encoder PID persistence for orphan reaping)
	GetCameraRuntime(cameraName string) (*CameraRuntime, error)
	ListCameraRuntimes() ([]CameraRuntime, error)
	SaveEncoderPID(cameraName string, pid int, startedAt time.Time) error
	ClearEncoderPID(cameraName string) error

	// System settings (key-value overrides applied on top of env config)
	GetConfig(key string) (string, error)
	SetConfig(key, value string) error
	GetAllConfig() (map[string]string, error)
	DeleteConfig(key string) error

	// Helper operations
	Close() error
}
