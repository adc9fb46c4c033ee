package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"clipvault/database"
	"clipvault/storage"
)

// CameraConfig holds configuration for a single RTSP camera
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

// RTSPURL builds the full RTSP URL for this camera
func (c CameraConfig) RTSPURL() string {
	auth := ""
	if c.Username != "" {
		auth = c.Username + ":" + c.Password + "@"
	}
	path := c.Path
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "rtsp://" + auth + c.IP + ":" + c.Port + path
}

// Config contains all configuration for the application
type Config struct {

	// Storage Configuration
	StorageRoot        string
	MaxSpaceGB         float64
	CleanupThresholdGB float64
	EvictionBatch      int

	// Recording Configuration
	PreEventSeconds             int
	PostEventSeconds            int
	MaxClipSeconds              int
	CaptureRestartMinutes       int
	CaptureTickSeconds          int
	SegmentRetentionTickSeconds int
	ThumbnailOffsetSeconds      int
	AssemblyConcurrency         int

	// Trigger Configuration
	ScoreThreshold     float64
	EnabledClasses     []string
	RequireBoundingBox bool
	MotionMode         string // "trigger" starts sessions, "extend" only prolongs active ones

	// Indexing / Eviction Configuration
	IndexIntervalMinutes    int
	EvictionIntervalMinutes int

	// Server Configuration
	ServerPort string
	BaseURL    string // Base URL used when building clip/thumbnail resource URLs

	// Database Configuration
	DatabasePath string

	// Logging Configuration
	LogFile string

	// Archive (S3-compatible offsite) Configuration
	ArchiveEnabled   bool
	ArchiveEndpoint  string
	ArchiveBucket    string
	ArchiveAccessKey string
	ArchiveSecretKey string
	ArchiveRegion    string
	ArchiveBaseURL   string

	// Motion Sensor Configuration
	SerialPort string
	SerialBaud int

	// Legacy single camera (used when no cameras are configured)
	RTSPUsername string
	RTSPPassword string
	RTSPIP       string
	RTSPPort     string
	RTSPPath     string

	// Multi-camera Configuration
	Cameras      []CameraConfig
	CameraByName map[string]*CameraConfig // Fast lookup by name
}

// LoadConfig loads configuration from environment variables and the database
func LoadConfig() Config {
	cfg := Config{
		// Database Configuration - needed to load other configs from database
		DatabasePath: getEnv("DB_PATH", "./data/clipvault.db"),

		StorageRoot:        getEnv("STORAGE_ROOT", "./data"),
		MaxSpaceGB:         getEnvFloat("MAX_SPACE_GB", 20),
		CleanupThresholdGB: getEnvFloat("CLEANUP_THRESHOLD_GB", 10),
		EvictionBatch:      getEnvInt("EVICTION_BATCH", 10),

		PreEventSeconds:             getEnvInt("PRE_EVENT_SECONDS", 5),
		PostEventSeconds:            getEnvInt("POST_EVENT_SECONDS", 30),
		MaxClipSeconds:              getEnvInt("MAX_CLIP_SECONDS", 120),
		CaptureRestartMinutes:       getEnvInt("CAPTURE_RESTART_MINUTES", 120),
		CaptureTickSeconds:          getEnvInt("CAPTURE_TICK_SECONDS", 10),
		SegmentRetentionTickSeconds: getEnvInt("SEGMENT_RETENTION_TICK_SECONDS", 10),
		ThumbnailOffsetSeconds:      getEnvInt("THUMBNAIL_OFFSET_SECONDS", 2),
		AssemblyConcurrency:         getEnvInt("ASSEMBLY_CONCURRENCY", 2),

		ScoreThreshold:     getEnvFloat("SCORE_THRESHOLD", 0.7),
		EnabledClasses:     splitClasses(getEnv("ENABLED_CLASSES", "person,vehicle,animal")),
		RequireBoundingBox: getEnvBool("REQUIRE_BOUNDING_BOX", true),
		MotionMode:         getEnv("MOTION_MODE", "extend"),

		IndexIntervalMinutes:    getEnvInt("INDEX_INTERVAL_MINUTES", 5),
		EvictionIntervalMinutes: getEnvInt("EVICTION_INTERVAL_MINUTES", 10),

		ServerPort: getEnv("PORT", "8080"),
		BaseURL:    getEnv("BASE_URL", "http://localhost:8080"),

		LogFile: getEnv("LOG_FILE", ""),

		ArchiveEnabled:   getEnvBool("ARCHIVE_ENABLED", false),
		ArchiveEndpoint:  getEnv("ARCHIVE_ENDPOINT", ""),
		ArchiveBucket:    getEnv("ARCHIVE_BUCKET", ""),
		ArchiveAccessKey: getEnv("ARCHIVE_ACCESS_KEY", ""),
		ArchiveSecretKey: getEnv("ARCHIVE_SECRET_KEY", ""),
		ArchiveRegion:    getEnv("ARCHIVE_REGION", "auto"),
		ArchiveBaseURL:   getEnv("ARCHIVE_BASE_URL", ""),

		SerialPort: getEnv("SERIAL_PORT", ""),
		SerialBaud: getEnvInt("SERIAL_BAUD", 9600),

		RTSPUsername: getEnv("RTSP_USERNAME", ""),
		RTSPPassword: getEnv("RTSP_PASSWORD", ""),
		RTSPIP:       getEnv("RTSP_IP", ""),
		RTSPPort:     getEnv("RTSP_PORT", "554"),
		RTSPPath:     getEnv("RTSP_PATH", "/"),
	}

	// --- CAMERA CONFIG LOAD via SQLite ---
	db, err := database.NewSQLiteDB(cfg.DatabasePath)
	if err != nil {
		log.Printf("ERROR: Failed to open SQLite DB for camera config: %v", err)
	} else {
		cameras, err := db.GetCameras()
		if err != nil {
			log.Printf("ERROR loading cameras from SQLite: %v", err)
		} else if len(cameras) == 0 {
			// First run: load from env, store to DB
			camerasJSON := getEnv("CAMERAS_CONFIG", "")
			if camerasJSON != "" {
				log.Printf("First run: loading cameras from CAMERAS_CONFIG env")
				var envCams []CameraConfig
				if err := json.Unmarshal([]byte(camerasJSON), &envCams); err != nil {
					log.Printf("Warning: Failed to parse CAMERAS_CONFIG: %v", err)
				} else {
					dbCams := make([]database.CameraConfig, len(envCams))
					for i, c := range envCams {
						dbCams[i] = database.CameraConfig{
							Name: c.Name, IP: c.IP, Port: c.Port, Path: c.Path,
							Username: c.Username, Password: c.Password, Enabled: c.Enabled,
							ScoreThreshold: c.ScoreThreshold, EnabledClasses: c.EnabledClasses,
							PostEventSeconds: c.PostEventSeconds, MaxClipSeconds: c.MaxClipSeconds,
						}
					}
					if err := db.InsertCameras(dbCams); err != nil {
						log.Printf("ERROR inserting cameras to SQLite: %v", err)
					} else {
						log.Printf("Inserted %d cameras to SQLite from env", len(dbCams))
					}
				}
			}
			// Re-query after insert
			cameras, _ = db.GetCameras()
		}

		cfg.Cameras = make([]CameraConfig, len(cameras))
		for i, c := range cameras {
			cfg.Cameras[i] = CameraConfig{
				Name: c.Name, IP: c.IP, Port: c.Port, Path: c.Path,
				Username: c.Username, Password: c.Password, Enabled: c.Enabled,
				ScoreThreshold: c.ScoreThreshold, EnabledClasses: c.EnabledClasses,
				PostEventSeconds: c.PostEventSeconds, MaxClipSeconds: c.MaxClipSeconds,
			}
		}
		log.Printf("Loaded %d cameras from SQLite", len(cfg.Cameras))

		// Load system configuration overrides from database
		sysConfigService := NewSystemConfigService(db)
		if err := sysConfigService.LoadSystemConfigToConfig(&cfg); err != nil {
			log.Printf("Warning: Failed to load system config from database: %v", err)
		}
	}
	if db != nil {
		db.Close()
	}
	// --- END CAMERA CONFIG LOAD ---

	cfg.BuildCameraLookup()

	// If no cameras configured, use legacy camera settings
	if len(cfg.Cameras) == 0 && cfg.RTSPIP != "" {
		log.Println("No cameras configured, using legacy camera settings")
		cfg.Cameras = append(cfg.Cameras, CameraConfig{
			Name:     "camera_1",
			IP:       cfg.RTSPIP,
			Port:     cfg.RTSPPort,
			Path:     cfg.RTSPPath,
			Username: cfg.RTSPUsername,
			Password: cfg.RTSPPassword,
			Enabled:  true,
		})
		cfg.BuildCameraLookup()
	}

	// Log configuration
	log.Printf("Loaded configuration with %d cameras", len(cfg.Cameras))
	for i, camera := range cfg.Cameras {
		log.Printf("Camera %d: %s @ %s:%s%s (Enabled: %v)",
			i+1, camera.Name, camera.IP, camera.Port, camera.Path, camera.Enabled)
	}
	log.Printf("Storage root: %s (budget %.1fGB, cleanup threshold %.1fGB)",
		cfg.StorageRoot, cfg.MaxSpaceGB, cfg.CleanupThresholdGB)
	log.Printf("Trigger: threshold=%.2f classes=%v bbox-required=%v motion-mode=%s",
		cfg.ScoreThreshold, cfg.EnabledClasses, cfg.RequireBoundingBox, cfg.MotionMode)
	log.Printf("Clip window: pre=%ds post=%ds max=%ds", cfg.PreEventSeconds, cfg.PostEventSeconds, cfg.MaxClipSeconds)
	log.Printf("Server running on port %s with base URL %s", cfg.ServerPort, cfg.BaseURL)
	log.Printf("Archive enabled: %v", cfg.ArchiveEnabled)
	if cfg.SerialPort != "" {
		log.Printf("Motion sensor serial port: %s @ %d baud", cfg.SerialPort, cfg.SerialBaud)
	}

	return cfg
}

// EffectiveScoreThreshold resolves a camera's score threshold against the global default
func (cfg *Config) EffectiveScoreThreshold(cam CameraConfig) float64 {
	if cam.ScoreThreshold > 0 {
		return cam.ScoreThreshold
	}
	return cfg.ScoreThreshold
}

// EffectiveClasses resolves a camera's enabled class list against the global default
func (cfg *Config) EffectiveClasses(cam CameraConfig) []string {
	if cam.EnabledClasses != "" {
		return splitClasses(cam.EnabledClasses)
	}
	return cfg.EnabledClasses
}

// EffectivePostEventSeconds resolves a camera's post-event tail against the global default
func (cfg *Config) EffectivePostEventSeconds(cam CameraConfig) int {
	if cam.PostEventSeconds > 0 {
		return cam.PostEventSeconds
	}
	return cfg.PostEventSeconds
}

// EffectiveMaxClipSeconds resolves a camera's clip length cap against the global default
func (cfg *Config) EffectiveMaxClipSeconds(cam CameraConfig) int {
	if cam.MaxClipSeconds > 0 {
		return cam.MaxClipSeconds
	}
	return cfg.MaxClipSeconds
}

// BuildCameraLookup constructs the CameraByName map for quick lookup.
// Call this whenever cfg.Cameras may have changed.
func (cfg *Config) BuildCameraLookup() {
	if cfg == nil {
		return
	}
	if cfg.CameraByName == nil {
		cfg.CameraByName = make(map[string]*CameraConfig)
	}
	// clear existing
	for k := range cfg.CameraByName {
		delete(cfg.CameraByName, k)
	}
	for i := range cfg.Cameras {
		cam := &cfg.Cameras[i]
		cfg.CameraByName[cam.Name] = cam
	}
}

// EnsurePaths creates necessary paths. A database directory or storage root
// that cannot be created is a misconfiguration nothing downstream can recover
// from, so it is fatal; a single camera's directory tree failing only loses
// that camera.
func EnsurePaths(cfg Config) {
	// Create database directory
	dbDir := filepath.Dir(cfg.DatabasePath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		log.Fatalf("Failed to create database directory %s: %v", dbDir, err)
	}

	// Create storage root
	if err := os.MkdirAll(cfg.StorageRoot, 0755); err != nil {
		log.Fatalf("Failed to create storage root %s: %v", cfg.StorageRoot, err)
	}

	// Create each camera's directory tree up front so the indexer and capture
	// see a complete layout from the first tick
	for _, cam := range cfg.Cameras {
		paths := storage.PathsFor(cfg.StorageRoot, cam.Name)
		if err := paths.EnsureDirs(); err != nil {
			log.Printf("Failed to create directories for camera %s: %v", cam.Name, err)
		}
	}
}

// getEnv returns environment variable or fallback value
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt returns an integer environment variable or fallback value
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("Warning: invalid integer for %s: %q, using %d", key, value, fallback)
	}
	return fallback
}

// getEnvFloat returns a float environment variable or fallback value
func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		log.Printf("Warning: invalid number for %s: %q, using %g", key, value, fallback)
	}
	return fallback
}

// getEnvBool returns a boolean environment variable or fallback value
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
		log.Printf("Warning: invalid boolean for %s: %q, using %v", key, value, fallback)
	}
	return fallback
}

func splitClasses(s string) []string {
	var classes []string
	for _, c := range strings.Split(s, ",") {
		c = strings.TrimSpace(strings.ToLower(c))
		if c != "" {
			classes = append(classes, c)
		}
	}
	return classes
}
