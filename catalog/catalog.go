package catalog

import (
	"sort"
	"sync"
	"time"

	"clipvault/clips"
)

// SpaceUsage is one camera's storage accounting at a point in time
type SpaceUsage struct {
	Camera        string    `json:"camera"`
	OccupiedBytes int64     `json:"occupiedBytes"`
	MaxBytes      int64     `json:"maxBytes"`
	FreeBytes     int64     `json:"freeBytes"`
	ClipCount     int       `json:"clipCount"`
	MeasuredAt    time.Time `json:"measuredAt"`
}

// Catalog is the in-memory clip index, rebuilt from filenames alone. Readers
// always see a complete snapshot: the indexer swaps a camera's slice in one
// short critical section, never mutates a published one. Usage entries are
// merged per camera, last writer wins.
type Catalog struct {
	mu        sync.RWMutex
	byCamera  map[string][]clips.ClipRecord // sorted by StartTime ascending
	usage     map[string]SpaceUsage
	dirty     map[string]bool
	updatedAt time.Time
}

// New creates an empty catalog
func New() *Catalog {
	return &Catalog{
		byCamera: make(map[string][]clips.ClipRecord),
		usage:    make(map[string]SpaceUsage),
		dirty:    make(map[string]bool),
	}
}

// ReplaceCamera atomically swaps in a freshly scanned snapshot for one camera
func (c *Catalog) ReplaceCamera(camera string, records []clips.ClipRecord) {
	sorted := make([]clips.ClipRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartTime.Before(sorted[j].StartTime) })

	c.mu.Lock()
	c.byCamera[camera] = sorted
	c.updatedAt = time.Now()
	c.mu.Unlock()
}

// AddClip inserts one freshly assembled clip without waiting for the next
// full scan.
func (c *Catalog) AddClip(record clips.ClipRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing := c.byCamera[record.Camera]
	updated := make([]clips.ClipRecord, 0, len(existing)+1)
	for _, rec := range existing {
		if rec.ID == record.ID {
			continue
		}
		updated = append(updated, rec)
	}
	updated = append(updated, record)
	sort.Slice(updated, func(i, j int) bool { return updated[i].StartTime.Before(updated[j].StartTime) })

	c.byCamera[record.Camera] = updated
	c.updatedAt = time.Now()
}

// RemoveClip drops one clip from the snapshot. Returns false when the clip
// was not present.
func (c *Catalog) RemoveClip(camera, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing := c.byCamera[camera]
	updated := make([]clips.ClipRecord, 0, len(existing))
	removed := false
	for _, rec := range existing {
		if rec.ID == id {
			removed = true
			continue
		}
		updated = append(updated, rec)
	}
	if removed {
		c.byCamera[camera] = updated
		c.updatedAt = time.Now()
	}
	return removed
}

// Get looks up one clip by camera and id
func (c *Catalog) Get(camera, id string) (clips.ClipRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, rec := range c.byCamera[camera] {
		if rec.ID == id {
			return rec, true
		}
	}
	return clips.ClipRecord{}, false
}

// ListCamera returns a copy of one camera's clips, oldest first
func (c *Catalog) ListCamera(camera string) []clips.ClipRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	records := c.byCamera[camera]
	out := make([]clips.ClipRecord, len(records))
	copy(out, records)
	return out
}

// ListRange returns clips overlapping [start, end). Zero-valued bounds are
// open on that side.
func (c *Catalog) ListRange(camera string, start, end time.Time) []clips.ClipRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []clips.ClipRecord
	for _, rec := range c.byCamera[camera] {
		if !start.IsZero() && !rec.EndTime.After(start) {
			continue
		}
		if !end.IsZero() && !rec.StartTime.Before(end) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Cameras returns every camera currently present in the catalog, sorted
func (c *Catalog) Cameras() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cameras := make([]string, 0, len(c.byCamera))
	for camera := range c.byCamera {
		cameras = append(cameras, camera)
	}
	sort.Strings(cameras)
	return cameras
}

// ClipCount returns how many clips one camera has in the snapshot
func (c *Catalog) ClipCount(camera string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byCamera[camera])
}

// MarkDirty flags a camera for a prompt rescan
func (c *Catalog) MarkDirty(camera string) {
	c.mu.Lock()
	c.dirty[camera] = true
	c.mu.Unlock()
}

// ConsumeDirty returns the cameras flagged since the last call and clears
// the flags.
func (c *Catalog) ConsumeDirty() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.dirty) == 0 {
		return nil
	}
	cameras := make([]string, 0, len(c.dirty))
	for camera := range c.dirty {
		cameras = append(cameras, camera)
	}
	c.dirty = make(map[string]bool)
	sort.Strings(cameras)
	return cameras
}

// SetUsage stores one camera's latest space accounting
func (c *Catalog) SetUsage(usage SpaceUsage) {
	c.mu.Lock()
	c.usage[usage.Camera] = usage
	c.mu.Unlock()
}

// Usage returns a copy of every camera's latest space accounting
func (c *Catalog) Usage() map[string]SpaceUsage {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]SpaceUsage, len(c.usage))
	for camera, usage := range c.usage {
		out[camera] = usage
	}
	return out
}

// AggregateUsage sums the per-camera usage entries
func (c *Catalog) AggregateUsage() SpaceUsage {
	c.mu.RLock()
	defer c.mu.RUnlock()

	agg := SpaceUsage{Camera: "all"}
	for _, usage := range c.usage {
		agg.OccupiedBytes += usage.OccupiedBytes
		agg.MaxBytes += usage.MaxBytes
		agg.FreeBytes += usage.FreeBytes
		agg.ClipCount += usage.ClipCount
		if usage.MeasuredAt.After(agg.MeasuredAt) {
			agg.MeasuredAt = usage.MeasuredAt
		}
	}
	return agg
}

// UpdatedAt returns when the snapshot last changed
func (c *Catalog) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updatedAt
}
