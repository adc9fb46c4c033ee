package config

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"clipvault/database"
)

// Keys recognized in the database config table. Values stored under these
// keys override the env-derived defaults at startup and on config reload.
const (
	ConfigScoreThreshold     = "score_threshold"
	ConfigEnabledClasses     = "enabled_classes"
	ConfigRequireBoundingBox = "require_bounding_box"
	ConfigMotionMode         = "motion_mode"

	ConfigPreEventSeconds  = "pre_event_seconds"
	ConfigPostEventSeconds = "post_event_seconds"
	ConfigMaxClipSeconds   = "max_clip_seconds"

	ConfigMaxSpaceGB         = "max_space_gb"
	ConfigCleanupThresholdGB = "cleanup_threshold_gb"
	ConfigEvictionBatch      = "eviction_batch"

	ConfigCaptureRestartMinutes = "capture_restart_minutes"

	ConfigBaseURL = "base_url"

	ConfigArchiveEnabled   = "archive_enabled"
	ConfigArchiveEndpoint  = "archive_endpoint"
	ConfigArchiveBucket    = "archive_bucket"
	ConfigArchiveAccessKey = "archive_access_key"
	ConfigArchiveSecretKey = "archive_secret_key"
	ConfigArchiveRegion    = "archive_region"
	ConfigArchiveBaseURL   = "archive_base_url"
)

// SystemConfigService manages system configuration overrides stored in the database
type SystemConfigService struct {
	db database.Database
}

// NewSystemConfigService creates a new system configuration service
func NewSystemConfigService(db database.Database) *SystemConfigService {
	return &SystemConfigService{
		db: db,
	}
}

// LoadSystemConfigToConfig updates Config struct with values from database
func (s *SystemConfigService) LoadSystemConfigToConfig(cfg *Config) error {
	configs, err := s.db.GetAllConfig()
	if err != nil {
		log.Printf("Warning: Failed to load system configs from database: %v", err)
		return nil
	}

	for key, value := range configs {
		switch key {
		// Trigger Configuration
		case ConfigScoreThreshold:
			if val, parseErr := strconv.ParseFloat(value, 64); parseErr == nil {
				cfg.ScoreThreshold = val
			}
		case ConfigEnabledClasses:
			if value != "" {
				cfg.EnabledClasses = splitClasses(value)
			}
		case ConfigRequireBoundingBox:
			if val, parseErr := strconv.ParseBool(value); parseErr == nil {
				cfg.RequireBoundingBox = val
			}
		case ConfigMotionMode:
			if value == "trigger" || value == "extend" {
				cfg.MotionMode = value
			}

		// Clip Window Configuration
		case ConfigPreEventSeconds:
			if val, parseErr := strconv.Atoi(value); parseErr == nil {
				cfg.PreEventSeconds = val
			}
		case ConfigPostEventSeconds:
			if val, parseErr := strconv.Atoi(value); parseErr == nil {
				cfg.PostEventSeconds = val
			}
		case ConfigMaxClipSeconds:
			if val, parseErr := strconv.Atoi(value); parseErr == nil {
				cfg.MaxClipSeconds = val
			}

		// Retention Configuration
		case ConfigMaxSpaceGB:
			if val, parseErr := strconv.ParseFloat(value, 64); parseErr == nil {
				cfg.MaxSpaceGB = val
			}
		case ConfigCleanupThresholdGB:
			if val, parseErr := strconv.ParseFloat(value, 64); parseErr == nil {
				cfg.CleanupThresholdGB = val
			}
		case ConfigEvictionBatch:
			if val, parseErr := strconv.Atoi(value); parseErr == nil {
				cfg.EvictionBatch = val
			}

		// Capture Configuration
		case ConfigCaptureRestartMinutes:
			if val, parseErr := strconv.Atoi(value); parseErr == nil {
				cfg.CaptureRestartMinutes = val
			}

		// Server Configuration
		case ConfigBaseURL:
			cfg.BaseURL = value

		// Archive Configuration
		case ConfigArchiveEnabled:
			if val, parseErr := strconv.ParseBool(value); parseErr == nil {
				cfg.ArchiveEnabled = val
			}
		case ConfigArchiveEndpoint:
			cfg.ArchiveEndpoint = value
		case ConfigArchiveBucket:
			cfg.ArchiveBucket = value
		case ConfigArchiveAccessKey:
			cfg.ArchiveAccessKey = value
		case ConfigArchiveSecretKey:
			cfg.ArchiveSecretKey = value
		case ConfigArchiveRegion:
			cfg.ArchiveRegion = value
		case ConfigArchiveBaseURL:
			cfg.ArchiveBaseURL = value
		}
	}

	log.Printf("⚙️ CONFIG: Applied %d system configuration overrides from database", len(configs))
	return nil
}

// SetTriggerSettings updates trigger configuration in the database
func (s *SystemConfigService) SetTriggerSettings(scoreThreshold float64, classes []string, requireBBox bool, motionMode string) error {
	if err := ValidateTriggerSettings(scoreThreshold, classes, motionMode); err != nil {
		return err
	}

	entries := map[string]string{
		ConfigScoreThreshold:     strconv.FormatFloat(scoreThreshold, 'f', -1, 64),
		ConfigEnabledClasses:     strings.Join(classes, ","),
		ConfigRequireBoundingBox: strconv.FormatBool(requireBBox),
		ConfigMotionMode:         motionMode,
	}
	for key, value := range entries {
		if err := s.db.SetConfig(key, value); err != nil {
			return fmt.Errorf("failed to set %s: %v", key, err)
		}
	}

	log.Printf("⚙️ CONFIG: Updated trigger settings - threshold=%.2f classes=[%s] bbox=%v motion=%s",
		scoreThreshold, strings.Join(classes, ","), requireBBox, motionMode)
	return nil
}

// SetRetentionSettings updates retention configuration in the database
func (s *SystemConfigService) SetRetentionSettings(maxSpaceGB, cleanupThresholdGB float64, evictionBatch int) error {
	if err := ValidateRetentionSettings(maxSpaceGB, cleanupThresholdGB, evictionBatch); err != nil {
		return err
	}

	entries := map[string]string{
		ConfigMaxSpaceGB:         strconv.FormatFloat(maxSpaceGB, 'f', -1, 64),
		ConfigCleanupThresholdGB: strconv.FormatFloat(cleanupThresholdGB, 'f', -1, 64),
		ConfigEvictionBatch:      strconv.Itoa(evictionBatch),
	}
	for key, value := range entries {
		if err := s.db.SetConfig(key, value); err != nil {
			return fmt.Errorf("failed to set %s: %v", key, err)
		}
	}

	log.Printf("💾 CONFIG: Updated retention settings - max=%.1fGB threshold=%.1fGB batch=%d",
		maxSpaceGB, cleanupThresholdGB, evictionBatch)
	return nil
}

// SetClipWindowSettings updates clip window configuration in the database
func (s *SystemConfigService) SetClipWindowSettings(preEventSeconds, postEventSeconds, maxClipSeconds int) error {
	if err := ValidateClipWindowSettings(preEventSeconds, postEventSeconds, maxClipSeconds); err != nil {
		return err
	}

	entries := map[string]string{
		ConfigPreEventSeconds:  strconv.Itoa(preEventSeconds),
		ConfigPostEventSeconds: strconv.Itoa(postEventSeconds),
		ConfigMaxClipSeconds:   strconv.Itoa(maxClipSeconds),
	}
	for key, value := range entries {
		if err := s.db.SetConfig(key, value); err != nil {
			return fmt.Errorf("failed to set %s: %v", key, err)
		}
	}

	log.Printf("⚙️ CONFIG: Updated clip window - pre=%ds post=%ds max=%ds",
		preEventSeconds, postEventSeconds, maxClipSeconds)
	return nil
}

// GetAllConfigs retrieves all system configuration entries
func (s *SystemConfigService) GetAllConfigs() (map[string]string, error) {
	return s.db.GetAllConfig()
}

// ValidateTriggerSettings validates trigger configuration values
func ValidateTriggerSettings(scoreThreshold float64, classes []string, motionMode string) error {
	if scoreThreshold < 0 || scoreThreshold > 1 {
		return fmt.Errorf("score threshold must be between 0 and 1")
	}
	if len(classes) == 0 {
		return fmt.Errorf("at least one detection class must be enabled")
	}
	if motionMode != "trigger" && motionMode != "extend" {
		return fmt.Errorf("motion mode must be 'trigger' or 'extend', got '%s'", motionMode)
	}
	return nil
}

// ValidateRetentionSettings validates retention configuration values
func ValidateRetentionSettings(maxSpaceGB, cleanupThresholdGB float64, evictionBatch int) error {
	if maxSpaceGB <= 0 {
		return fmt.Errorf("max space must be positive")
	}
	if cleanupThresholdGB <= 0 || cleanupThresholdGB >= maxSpaceGB {
		return fmt.Errorf("cleanup threshold must be positive and below max space")
	}
	if evictionBatch < 1 || evictionBatch > 1000 {
		return fmt.Errorf("eviction batch must be between 1 and 1000")
	}
	return nil
}

// ValidateClipWindowSettings validates clip window configuration values
func ValidateClipWindowSettings(preEventSeconds, postEventSeconds, maxClipSeconds int) error {
	if preEventSeconds < 0 || preEventSeconds > 60 {
		return fmt.Errorf("pre-event seconds must be between 0 and 60")
	}
	if postEventSeconds < 1 || postEventSeconds > 600 {
		return fmt.Errorf("post-event seconds must be between 1 and 600")
	}
	if maxClipSeconds <= postEventSeconds {
		return fmt.Errorf("max clip seconds must exceed post-event seconds")
	}
	return nil
}
