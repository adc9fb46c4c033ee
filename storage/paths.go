package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Directory names under each camera's device root. Scratch segments, finished
// clips and their thumbnails each live in a fixed subdirectory so the layout
// stays self-describing on disk.
const (
	TmpDirName    = "tmp"
	ClipsDirName  = "videoclips"
	ThumbsDirName = "thumbnails"
)

// CameraPaths resolves the on-disk layout for one camera's device root
type CameraPaths struct {
	Root      string // {storageRoot}/{cameraName}
	TmpDir    string // {root}/tmp - scratch segments written by the capture subprocess
	ClipsDir  string // {root}/videoclips - finished clips
	ThumbsDir string // {root}/thumbnails - clip thumbnails
}

// PathsFor computes the device-root layout for a camera
func PathsFor(storageRoot, cameraName string) CameraPaths {
	root := filepath.Join(storageRoot, cameraName)
	return CameraPaths{
		Root:      root,
		TmpDir:    filepath.Join(root, TmpDirName),
		ClipsDir:  filepath.Join(root, ClipsDirName),
		ThumbsDir: filepath.Join(root, ThumbsDirName),
	}
}

// EnsureDirs creates the camera's directory tree if missing
func (p CameraPaths) EnsureDirs() error {
	for _, dir := range []string{p.TmpDir, p.ClipsDir, p.ThumbsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %v", dir, err)
		}
	}
	return nil
}

// SegmentPath returns the scratch path for a given segment index
func (p CameraPaths) SegmentPath(index int) string {
	return filepath.Join(p.TmpDir, fmt.Sprintf("segment%03d.ts", index))
}

// SegmentTemplate returns the ffmpeg output template for scratch segments
func (p CameraPaths) SegmentTemplate() string {
	return filepath.Join(p.TmpDir, "segment%03d.ts")
}

// SegmentFile is one scratch segment found on disk
type SegmentFile struct {
	Index   int
	Path    string
	ModTime time.Time
}

// ParseSegmentName extracts the index from a scratch segment filename such as
// "segment042.ts". The second return is false for anything else.
func ParseSegmentName(name string) (int, bool) {
	if !strings.HasPrefix(name, "segment") || !strings.HasSuffix(name, ".ts") {
		return 0, false
	}
	digits := strings.TrimSuffix(strings.TrimPrefix(name, "segment"), ".ts")
	if digits == "" {
		return 0, false
	}
	index, err := strconv.Atoi(digits)
	if err != nil || index < 0 {
		return 0, false
	}
	return index, true
}

// ListSegments returns the scratch segments for this camera sorted by index.
// A missing scratch directory yields an empty list.
func (p CameraPaths) ListSegments() ([]SegmentFile, error) {
	entries, err := os.ReadDir(p.TmpDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read scratch directory %s: %v", p.TmpDir, err)
	}

	segments := make([]SegmentFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		index, ok := ParseSegmentName(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		segments = append(segments, SegmentFile{
			Index:   index,
			Path:    filepath.Join(p.TmpDir, entry.Name()),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i].Index < segments[j].Index })
	return segments, nil
}

// ClearScratch deletes every scratch segment for this camera and returns how
// many were removed. Non-segment files are left alone.
func (p CameraPaths) ClearScratch() (int, error) {
	segments, err := p.ListSegments()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, seg := range segments {
		if err := os.Remove(seg.Path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return removed, fmt.Errorf("failed to remove segment %s: %v", seg.Path, err)
		}
		removed++
	}
	return removed, nil
}

// DiskSpace reports filesystem capacity for the given path
type DiskSpace struct {
	TotalBytes uint64 `json:"totalBytes"`
	FreeBytes  uint64 `json:"freeBytes"`
	UsedBytes  uint64 `json:"usedBytes"`
}

// GetDiskSpace returns total/free/used bytes for the filesystem containing path
func GetDiskSpace(path string) (DiskSpace, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return DiskSpace{}, fmt.Errorf("failed to stat filesystem for %s: %v", path, err)
	}

	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	return DiskSpace{
		TotalBytes: total,
		FreeBytes:  free,
		UsedBytes:  total - free,
	}, nil
}

// DirSize recursively sums regular-file sizes under root. Missing entries are
// skipped so a concurrent delete cannot abort the walk.
func DirSize(root string) (int64, error) {
	var total int64
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to walk %s: %v", root, err)
	}
	return total, nil
}
