package metrics

import (
	"log"
	"sync"
	"time"
)

// ClipAssemblyMetrics tracks timing for one clip's assembly pipeline
type ClipAssemblyMetrics struct {
	ClipID            string
	Camera            string
	StartTime         time.Time
	ConcatStartTime   *time.Time
	ConcatEndTime     *time.Time
	ConcatDuration    time.Duration
	ThumbnailStart    *time.Time
	ThumbnailEnd      *time.Time
	ThumbnailDuration time.Duration
	TotalDuration     time.Duration
	SegmentCount      int
	SizeBytes         int64
	Failed            bool
	mu                sync.Mutex
}

// NewClipAssemblyMetrics creates a metrics instance for one clip
func NewClipAssemblyMetrics(camera, clipID string) *ClipAssemblyMetrics {
	return &ClipAssemblyMetrics{
		ClipID:    clipID,
		Camera:    camera,
		StartTime: time.Now(),
	}
}

// StartConcat marks the start of segment concatenation
func (m *ClipAssemblyMetrics) StartConcat(segmentCount int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.ConcatStartTime = &now
	m.SegmentCount = segmentCount
	log.Printf("[Metrics] Clip %s: Concatenating %d segments", m.ClipID, segmentCount)
}

// EndConcat marks the end of segment concatenation
func (m *ClipAssemblyMetrics) EndConcat() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ConcatStartTime != nil {
		now := time.Now()
		m.ConcatEndTime = &now
		m.ConcatDuration = now.Sub(*m.ConcatStartTime)
		log.Printf("[Metrics] Clip %s: Concatenation completed in %v", m.ClipID, m.ConcatDuration)
	}
}

// StartThumbnail marks the start of thumbnail extraction
func (m *ClipAssemblyMetrics) StartThumbnail() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.ThumbnailStart = &now
}

// EndThumbnail marks the end of thumbnail extraction
func (m *ClipAssemblyMetrics) EndThumbnail() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ThumbnailStart != nil {
		now := time.Now()
		m.ThumbnailEnd = &now
		m.ThumbnailDuration = now.Sub(*m.ThumbnailStart)
	}
}

// Finalize records the outcome and logs the summary line
func (m *ClipAssemblyMetrics) Finalize(sizeBytes int64, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalDuration = time.Since(m.StartTime)
	m.SizeBytes = sizeBytes
	m.Failed = failed
	if failed {
		log.Printf("[Metrics] Clip %s: Assembly FAILED after %v (concat: %v)", m.ClipID, m.TotalDuration, m.ConcatDuration)
		return
	}
	log.Printf("[Metrics] Clip %s: Assembly completed - Total: %v, Concat: %v, Thumbnail: %v, Size: %d bytes",
		m.ClipID,
		m.TotalDuration,
		m.ConcatDuration,
		m.ThumbnailDuration,
		m.SizeBytes)
}

// CameraAssemblyStats aggregates assembly outcomes for one camera
type CameraAssemblyStats struct {
	Camera          string        `json:"camera"`
	ClipsAssembled  int           `json:"clipsAssembled"`
	ClipsFailed     int           `json:"clipsFailed"`
	TotalBytes      int64         `json:"totalBytes"`
	TotalAssembly   time.Duration `json:"-"`
	AverageAssembly time.Duration `json:"-"`
	LastAssemblyAt  time.Time     `json:"lastAssemblyAt"`
}

// Collector manages per-clip metrics and per-camera aggregates
type Collector struct {
	metrics map[string]*ClipAssemblyMetrics
	stats   map[string]*CameraAssemblyStats
	mu      sync.RWMutex
}

// NewCollector creates an empty collector
func NewCollector() *Collector {
	return &Collector{
		metrics: make(map[string]*ClipAssemblyMetrics),
		stats:   make(map[string]*CameraAssemblyStats),
	}
}

// StartClip creates and registers metrics for a new clip assembly
func (c *Collector) StartClip(camera, clipID string) *ClipAssemblyMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := NewClipAssemblyMetrics(camera, clipID)
	c.metrics[clipID] = m
	return m
}

// CompleteClip folds a finished clip's metrics into the camera aggregate
func (c *Collector) CompleteClip(m *ClipAssemblyMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.stats[m.Camera]
	if !ok {
		stats = &CameraAssemblyStats{Camera: m.Camera}
		c.stats[m.Camera] = stats
	}
	if m.Failed {
		stats.ClipsFailed++
	} else {
		stats.ClipsAssembled++
		stats.TotalBytes += m.SizeBytes
		stats.TotalAssembly += m.TotalDuration
		stats.AverageAssembly = stats.TotalAssembly / time.Duration(stats.ClipsAssembled)
	}
	stats.LastAssemblyAt = time.Now()
}

// GetMetrics retrieves metrics for one clip
func (c *Collector) GetMetrics(clipID string) *ClipAssemblyMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.metrics[clipID]
}

// CameraStats returns a copy of every camera's aggregate stats
func (c *Collector) CameraStats() map[string]CameraAssemblyStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]CameraAssemblyStats, len(c.stats))
	for camera, stats := range c.stats {
		result[camera] = *stats
	}
	return result
}

// CleanupOldMetrics drops per-clip entries older than maxAge. Aggregates are
// kept; only the detailed timelines age out.
func (c *Collector) CleanupOldMetrics(maxAge time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for clipID, m := range c.metrics {
		if now.Sub(m.StartTime) > maxAge {
			delete(c.metrics, clipID)
		}
	}
}
