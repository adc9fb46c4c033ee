package database

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteDB implements the Database interface using SQLite
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB creates a new SQLite database instance
func NewSQLiteDB(dbPath string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %v", err)
	}

	// Create tables if they don't exist
	err = initTables(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize tables: %v", err)
	}

	return &SQLiteDB{db: db}, nil
}

// initTables creates the necessary tables if they don't exist
func initTables(db *sql.DB) error {
	// Create cameras table
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS cameras (
			name TEXT PRIMARY KEY,
			ip TEXT,
			port TEXT,
			path TEXT,
			username TEXT,
			password TEXT,
			enabled INTEGER DEFAULT 1,
			score_threshold REAL DEFAULT 0,
			enabled_classes TEXT,
			post_event_seconds INTEGER DEFAULT 0,
			max_clip_seconds INTEGER DEFAULT 0
		)
	`)
	if err != nil {
		return err
	}

	// Check if post_event_seconds column exists, if not add it
	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('cameras') WHERE name='post_event_seconds'`).Scan(&count)
	if err != nil {
		return err
	}

	if count == 0 {
		// Column doesn't exist, add it
		_, err = db.Exec(`ALTER TABLE cameras ADD COLUMN post_event_seconds INTEGER DEFAULT 0`)
		if err != nil {
			return err
		}
		log.Println("Added post_event_seconds column to cameras table")
	}

	// Check if max_clip_seconds column exists, if not add it
	count = 0
	err = db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('cameras') WHERE name='max_clip_seconds'`).Scan(&count)
	if err != nil {
		return err
	}

	if count == 0 {
		// Column doesn't exist, add it
		_, err = db.Exec(`ALTER TABLE cameras ADD COLUMN max_clip_seconds INTEGER DEFAULT 0`)
		if err != nil {
			return err
		}
		log.Println("Added max_clip_seconds column to cameras table")
	}

	// Create camera_runtime table (encoder PID persistence)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS camera_runtime (
			camera_name TEXT PRIMARY KEY,
			encoder_pid INTEGER DEFAULT 0,
			capture_started_at TIMESTAMP,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create config table (key-value system settings)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS config (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	return nil
}

// GetCameras returns all stored camera configurations
func (s *SQLiteDB) GetCameras() ([]CameraConfig, error) {
	rows, err := s.db.Query(`
		SELECT name, ip, port, path, username, password, enabled,
		       score_threshold, enabled_classes, post_event_seconds, max_clip_seconds
		FROM cameras ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cameras: %v", err)
	}
	defer rows.Close()

	var cameras []CameraConfig
	for rows.Next() {
		var cam CameraConfig
		var enabled int
		var classes sql.NullString
		err := rows.Scan(
			&cam.Name, &cam.IP, &cam.Port, &cam.Path, &cam.Username, &cam.Password,
			&enabled, &cam.ScoreThreshold, &classes, &cam.PostEventSeconds, &cam.MaxClipSeconds,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan camera row: %v", err)
		}
		cam.Enabled = enabled != 0
		if classes.Valid {
			cam.EnabledClasses = classes.String
		}
		cameras = append(cameras, cam)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating camera rows: %v", err)
	}

	return cameras, nil
}

// InsertCameras stores camera configurations, replacing entries with the same name
func (s *SQLiteDB) InsertCameras(cameras []CameraConfig) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO cameras (
			name, ip, port, path, username, password, enabled,
			score_threshold, enabled_classes, post_event_seconds, max_clip_seconds
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare camera insert: %v", err)
	}
	defer stmt.Close()

	for _, cam := range cameras {
		enabled := 0
		if cam.Enabled {
			enabled = 1
		}
		_, err := stmt.Exec(
			cam.Name, cam.IP, cam.Port, cam.Path, cam.Username, cam.Password, enabled,
			cam.ScoreThreshold, cam.EnabledClasses, cam.PostEventSeconds, cam.MaxClipSeconds,
		)
		if err != nil {
			return fmt.Errorf("failed to insert camera %s: %v", cam.Name, err)
		}
	}

	return tx.Commit()
}

// UpdateCamera updates a single camera configuration by name
func (s *SQLiteDB) UpdateCamera(cam CameraConfig) error {
	enabled := 0
	if cam.Enabled {
		enabled = 1
	}
	result, err := s.db.Exec(`
		UPDATE cameras SET
			ip = ?, port = ?, path = ?, username = ?, password = ?, enabled = ?,
			score_threshold = ?, enabled_classes = ?, post_event_seconds = ?, max_clip_seconds = ?
		WHERE name = ?
	`,
		cam.IP, cam.Port, cam.Path, cam.Username, cam.Password, enabled,
		cam.ScoreThreshold, cam.EnabledClasses, cam.PostEventSeconds, cam.MaxClipSeconds,
		cam.Name,
	)
	if err != nil {
		return fmt.Errorf("failed to update camera %s: %v", cam.Name, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("camera not found: %s", cam.Name)
	}

	return nil
}

// GetCameraRuntime returns the runtime row for a camera, or nil if none exists
func (s *SQLiteDB) GetCameraRuntime(cameraName string) (*CameraRuntime, error) {
	var rt CameraRuntime
	var startedAt sql.NullTime
	err := s.db.QueryRow(`
		SELECT camera_name, encoder_pid, capture_started_at, updated_at
		FROM camera_runtime WHERE camera_name = ?
	`, cameraName).Scan(&rt.CameraName, &rt.EncoderPID, &startedAt, &rt.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get runtime for camera %s: %v", cameraName, err)
	}
	if startedAt.Valid {
		rt.CaptureStartedAt = &startedAt.Time
	}
	return &rt, nil
}

// ListCameraRuntimes returns all runtime rows
func (s *SQLiteDB) ListCameraRuntimes() ([]CameraRuntime, error) {
	rows, err := s.db.Query(`
		SELECT camera_name, encoder_pid, capture_started_at, updated_at
		FROM camera_runtime
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query camera runtimes: %v", err)
	}
	defer rows.Close()

	var runtimes []CameraRuntime
	for rows.Next() {
		var rt CameraRuntime
		var startedAt sql.NullTime
		if err := rows.Scan(&rt.CameraName, &rt.EncoderPID, &startedAt, &rt.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan runtime row: %v", err)
		}
		if startedAt.Valid {
			rt.CaptureStartedAt = &startedAt.Time
		}
		runtimes = append(runtimes, rt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runtime rows: %v", err)
	}

	return runtimes, nil
}

// SaveEncoderPID persists the PID of a freshly started capture subprocess
func (s *SQLiteDB) SaveEncoderPID(cameraName string, pid int, startedAt time.Time) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO camera_runtime (camera_name, encoder_pid, capture_started_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, cameraName, pid, startedAt, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save encoder PID for camera %s: %v", cameraName, err)
	}
	return nil
}

// ClearEncoderPID marks the camera as having no live capture subprocess
func (s *SQLiteDB) ClearEncoderPID(cameraName string) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO camera_runtime (camera_name, encoder_pid, capture_started_at, updated_at)
		VALUES (?, 0, NULL, ?)
	`, cameraName, time.Now())
	if err != nil {
		return fmt.Errorf("failed to clear encoder PID for camera %s: %v", cameraName, err)
	}
	return nil
}

// Close closes the underlying database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}
