package clips

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"clipvault/metrics"
	"clipvault/storage"
)

// AssemblyRequest carries everything needed to turn one finalized session's
// scratch segments into a catalogued clip.
type AssemblyRequest struct {
	Camera            string
	Paths             storage.CameraPaths
	EventSegmentIndex int             // segment open when the session started
	SaveSegmentIndex  int             // segment open when the session finalized
	PreEventSeconds   int             // seconds of lead-in before the event segment
	Start             time.Time       // clip start (session start minus pre-event lead)
	End               time.Time       // clip end (finalize time)
	Classes           map[string]bool // deduplicated classes accumulated by the session
}

// Assembler concatenates scratch segments into finished clips. A weighted
// semaphore bounds how many ffmpeg concat invocations run at once across all
// cameras.
type Assembler struct {
	sem                    *semaphore.Weighted
	thumbnailOffsetSeconds int
	collector              *metrics.Collector
}

// NewAssembler creates an assembler allowing maxConcurrent simultaneous
// assemblies. collector may be nil.
func NewAssembler(maxConcurrent int64, thumbnailOffsetSeconds int, collector *metrics.Collector) *Assembler {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Assembler{
		sem:                    semaphore.NewWeighted(maxConcurrent),
		thumbnailOffsetSeconds: thumbnailOffsetSeconds,
		collector:              collector,
	}
}

// SelectWindow picks the segments covering [eventIndex - preEventSeconds,
// saveIndex] from an index-sorted listing. Indices below zero clamp to the
// oldest available segment; gaps in the listing are tolerated.
func SelectWindow(segments []storage.SegmentFile, eventIndex, preEventSeconds, saveIndex int) []storage.SegmentFile {
	first := eventIndex - preEventSeconds
	if first < 0 {
		first = 0
	}

	var window []storage.SegmentFile
	for _, seg := range segments {
		if seg.Index >= first && seg.Index <= saveIndex {
			window = append(window, seg)
		}
	}
	return window
}

// Assemble builds the clip for one finalized session: select the segment
// window, concatenate losslessly, extract a thumbnail, clear the scratch
// directory and return the record for cataloguing.
func (a *Assembler) Assemble(ctx context.Context, req AssemblyRequest) (*ClipRecord, error) {
	if err := a.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("assembly cancelled while waiting for slot: %w", err)
	}
	defer a.sem.Release(1)

	segments, err := req.Paths.ListSegments()
	if err != nil {
		return nil, fmt.Errorf("failed to list scratch segments: %w", err)
	}

	window := SelectWindow(segments, req.EventSegmentIndex, req.PreEventSeconds, req.SaveSegmentIndex)
	if len(window) == 0 {
		return nil, fmt.Errorf("no segments on disk for window [%d..%d]", req.EventSegmentIndex-req.PreEventSeconds, req.SaveSegmentIndex)
	}

	filename, err := EncodeClipName(req.Start, req.End, req.Classes)
	if err != nil {
		return nil, err
	}
	clipID := strings.TrimSuffix(filename, ".mp4")

	var m *metrics.ClipAssemblyMetrics
	if a.collector != nil {
		m = a.collector.StartClip(req.Camera, clipID)
	}

	record, err := a.assemble(req, window, filename, clipID, m)

	if m != nil {
		var size int64
		if record != nil {
			size = record.SizeBytes
		}
		m.Finalize(size, err != nil)
		a.collector.CompleteClip(m)
	}
	return record, err
}

func (a *Assembler) assemble(req AssemblyRequest, window []storage.SegmentFile, filename, clipID string, m *metrics.ClipAssemblyMetrics) (*ClipRecord, error) {
	if err := os.MkdirAll(req.Paths.ClipsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create clips directory: %w", err)
	}

	outPath := filepath.Join(req.Paths.ClipsDir, filename)

	if m != nil {
		m.StartConcat(len(window))
	}
	if err := concatSegments(window, req.Paths.ClipsDir, clipID, outPath); err != nil {
		return nil, err
	}
	if m != nil {
		m.EndConcat()
	}

	thumbPath := filepath.Join(req.Paths.ThumbsDir, ThumbnailName(filename))
	if m != nil {
		m.StartThumbnail()
	}
	if err := GenerateThumbnail(outPath, thumbPath, a.thumbnailOffsetSeconds); err != nil {
		// The clip is still good; the API regenerates thumbnails on demand.
		log.Printf("[%s] ⚠️ Thumbnail extraction failed for %s: %v", req.Camera, filename, err)
	}
	if m != nil {
		m.EndThumbnail()
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return nil, fmt.Errorf("assembled clip missing after concat: %w", err)
	}

	if removed, err := req.Paths.ClearScratch(); err != nil {
		log.Printf("[%s] ⚠️ Failed to clear scratch after assembly: %v", req.Camera, err)
	} else {
		log.Printf("[%s] 🧹 Cleared %d scratch segments after assembly", req.Camera, removed)
	}

	// Decode our own filename so the record's class list matches exactly
	// what the indexer will recover from disk later.
	meta, err := DecodeClipName(filename)
	if err != nil {
		return nil, fmt.Errorf("generated clip name failed to decode: %w", err)
	}

	return &ClipRecord{
		ID:            clipID,
		Camera:        req.Camera,
		Filename:      filename,
		VideoPath:     outPath,
		ThumbnailPath: thumbPath,
		SizeBytes:     info.Size(),
		StartTime:     meta.StartTime,
		EndTime:       meta.EndTime,
		Classes:       meta.Classes,
	}, nil
}

// concatSegments losslessly joins the window's segments into outPath. The
// output is written under a hidden temp name and renamed into place so the
// indexer never sees a half-written clip.
func concatSegments(window []storage.SegmentFile, workDir, clipID, outPath string) error {
	listPath := filepath.Join(workDir, fmt.Sprintf("concat_list_%s.txt", clipID))
	listFile, err := os.Create(listPath)
	if err != nil {
		return fmt.Errorf("failed to create concat list file: %w", err)
	}
	defer os.Remove(listPath)

	for _, seg := range window {
		absSeg, err := filepath.Abs(seg.Path)
		if err != nil {
			listFile.Close()
			return fmt.Errorf("failed to get absolute path for segment: %w", err)
		}
		if _, err := fmt.Fprintf(listFile, "file '%s'\n", absSeg); err != nil {
			listFile.Close()
			return fmt.Errorf("failed to write to concat list: %w", err)
		}
	}
	listFile.Close()

	tmpPath := filepath.Join(filepath.Dir(outPath), "."+filepath.Base(outPath)+".tmp")
	cmd := exec.Command("ffmpeg",
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		tmpPath,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ffmpeg concat failed: %v\nOutput: %s", err, string(output))
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move assembled clip into place: %w", err)
	}
	return nil
}
