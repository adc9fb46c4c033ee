package catalog

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"clipvault/clips"
	"clipvault/storage"
)

// Indexer rebuilds the catalog from what is actually on disk. Filenames are
// the source of truth; anything that does not parse is skipped with a
// warning and never deleted.
type Indexer struct {
	storageRoot string
	catalog     *Catalog
}

// NewIndexer creates an indexer writing into the given catalog
func NewIndexer(storageRoot string, catalog *Catalog) *Indexer {
	return &Indexer{storageRoot: storageRoot, catalog: catalog}
}

// ScanCamera lists a camera's clip directory, parses every filename and
// atomically replaces that camera's catalog snapshot. Returns how many clips
// were indexed. A missing directory yields an empty snapshot, not an error.
func (ix *Indexer) ScanCamera(camera string) (int, error) {
	paths := storage.PathsFor(ix.storageRoot, camera)

	entries, err := os.ReadDir(paths.ClipsDir)
	if err != nil {
		if os.IsNotExist(err) {
			ix.catalog.ReplaceCamera(camera, nil)
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read clips directory %s: %v", paths.ClipsDir, err)
	}

	records := make([]clips.ClipRecord, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		// In-progress assemblies are hidden dotfiles; concat lists are txt
		if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".mp4") {
			continue
		}

		meta, err := clips.DecodeClipName(name)
		if err != nil {
			log.Printf("[%s] ⚠️ Skipping unparseable clip name %q: %v", camera, name, err)
			continue
		}

		info, err := entry.Info()
		if err != nil {
			log.Printf("[%s] ⚠️ Skipping clip %q: %v", camera, name, err)
			continue
		}

		records = append(records, clips.ClipRecord{
			ID:            strings.TrimSuffix(name, ".mp4"),
			Camera:        camera,
			Filename:      name,
			VideoPath:     filepath.Join(paths.ClipsDir, name),
			ThumbnailPath: filepath.Join(paths.ThumbsDir, clips.ThumbnailName(name)),
			SizeBytes:     info.Size(),
			StartTime:     meta.StartTime,
			EndTime:       meta.EndTime,
			Classes:       meta.Classes,
		})
	}

	ix.catalog.ReplaceCamera(camera, records)
	return len(records), nil
}

// ScanAll indexes every listed camera. Per-camera failures are logged and do
// not stop the remaining scans.
func (ix *Indexer) ScanAll(cameras []string) {
	total := 0
	for _, camera := range cameras {
		count, err := ix.ScanCamera(camera)
		if err != nil {
			log.Printf("[%s] ⚠️ Catalog scan failed: %v", camera, err)
			continue
		}
		total += count
	}
	log.Printf("🔍 Catalog scan complete: %d clips across %d cameras", total, len(cameras))
}
