package catalog

import (
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"clipvault/clips"
	"clipvault/storage"
)

// Evictor enforces each camera's storage budget: when projected free space
// sinks to the cleanup threshold it deletes the oldest clips, thumbnails
// included, one batch at a time.
type Evictor struct {
	storageRoot string
	catalog     *Catalog
	indexer     *Indexer

	mu             sync.Mutex // guards the budget, which can change at runtime
	maxBytes       int64
	thresholdBytes int64
	batchSize      int
}

// NewEvictor creates an evictor enforcing a per-camera byte budget
func NewEvictor(storageRoot string, catalog *Catalog, indexer *Indexer, maxBytes, thresholdBytes int64, batchSize int) *Evictor {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Evictor{
		storageRoot:    storageRoot,
		catalog:        catalog,
		indexer:        indexer,
		maxBytes:       maxBytes,
		thresholdBytes: thresholdBytes,
		batchSize:      batchSize,
	}
}

// SetBudget replaces the byte budget. Takes effect on the next check.
func (e *Evictor) SetBudget(maxBytes, thresholdBytes int64, batchSize int) {
	if batchSize < 1 {
		batchSize = 1
	}
	e.mu.Lock()
	e.maxBytes = maxBytes
	e.thresholdBytes = thresholdBytes
	e.batchSize = batchSize
	e.mu.Unlock()
}

func (e *Evictor) budget() (maxBytes, thresholdBytes int64, batchSize int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.maxBytes, e.thresholdBytes, e.batchSize
}

// SelectEvictions is the eviction policy with no disk access: when free
// space (budget minus occupied) is at or below the threshold, pick the batch
// of oldest clips by their encoded start time. Otherwise nothing.
func SelectEvictions(records []clips.ClipRecord, occupiedBytes, maxBytes, thresholdBytes int64, batchSize int) []clips.ClipRecord {
	free := maxBytes - occupiedBytes
	if free > thresholdBytes {
		return nil
	}

	sorted := make([]clips.ClipRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartTime.Before(sorted[j].StartTime) })

	if batchSize > len(sorted) {
		batchSize = len(sorted)
	}
	return sorted[:batchSize]
}

// CheckCamera rescans one camera, measures its occupancy and evicts a batch
// of oldest clips if the budget is breached. Returns how many clips were
// deleted.
func (e *Evictor) CheckCamera(camera string) (int, error) {
	if _, err := e.indexer.ScanCamera(camera); err != nil {
		return 0, err
	}

	paths := storage.PathsFor(e.storageRoot, camera)
	occupied, err := storage.DirSize(paths.Root)
	if err != nil {
		return 0, err
	}

	maxBytes, thresholdBytes, batchSize := e.budget()
	records := e.catalog.ListCamera(camera)
	victims := SelectEvictions(records, occupied, maxBytes, thresholdBytes, batchSize)

	if len(victims) == 0 {
		e.publishUsage(camera, occupied, len(records), maxBytes)
		return 0, nil
	}

	log.Printf("[%s] ⚠️ Free space %d bytes at or below threshold %d, evicting %d oldest clips",
		camera, maxBytes-occupied, thresholdBytes, len(victims))

	deleted := 0
	var freedBytes int64
	for _, victim := range victims {
		if err := os.Remove(victim.VideoPath); err != nil && !os.IsNotExist(err) {
			log.Printf("[%s] ⚠️ Failed to delete clip %s: %v", camera, victim.Filename, err)
			continue
		}
		if err := os.Remove(victim.ThumbnailPath); err != nil && !os.IsNotExist(err) {
			log.Printf("[%s] ⚠️ Failed to delete thumbnail for %s: %v", camera, victim.Filename, err)
		}
		e.catalog.RemoveClip(camera, victim.ID)
		freedBytes += victim.SizeBytes
		deleted++
	}

	log.Printf("[%s] 🧹 Evicted %d clips, freed %d bytes", camera, deleted, freedBytes)
	e.publishUsage(camera, occupied-freedBytes, len(records)-deleted, maxBytes)
	return deleted, nil
}

// CheckAll runs the budget check for every listed camera
func (e *Evictor) CheckAll(cameras []string) {
	for _, camera := range cameras {
		if _, err := e.CheckCamera(camera); err != nil {
			log.Printf("[%s] ⚠️ Eviction check failed: %v", camera, err)
		}
	}
}

func (e *Evictor) publishUsage(camera string, occupied int64, clipCount int, maxBytes int64) {
	e.catalog.SetUsage(SpaceUsage{
		Camera:        camera,
		OccupiedBytes: occupied,
		MaxBytes:      maxBytes,
		FreeBytes:     maxBytes - occupied,
		ClipCount:     clipCount,
		MeasuredAt:    time.Now(),
	})
}
