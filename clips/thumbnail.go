package clips

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ThumbnailName maps a clip filename to its paired thumbnail filename
func ThumbnailName(clipFilename string) string {
	return strings.TrimSuffix(clipFilename, ".mp4") + ".jpg"
}

// GenerateThumbnail extracts a single frame from the clip at offsetSeconds
// (pulled forward to the midpoint for clips shorter than twice the offset)
// and writes it as a JPEG.
func GenerateThumbnail(videoPath, outPath string, offsetSeconds int) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("failed to create thumbnail directory: %w", err)
	}

	offset := float64(offsetSeconds)
	if dur, err := videoDuration(videoPath); err == nil && dur/2 < offset {
		offset = dur / 2
	}

	cmd := exec.Command("ffmpeg",
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-ss", fmt.Sprintf("%.2f", offset),
		"-i", videoPath,
		"-vframes", "1",
		"-q:v", "2",
		outPath,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg thumbnail extraction failed: %v\nOutput: %s", err, string(output))
	}
	return nil
}

// GenerateThumbnailIfMissing creates the thumbnail only when it does not
// already exist. Used by the API to backfill thumbnails on demand.
func GenerateThumbnailIfMissing(videoPath, outPath string, offsetSeconds int) error {
	if _, err := os.Stat(outPath); err == nil {
		return nil
	}
	return GenerateThumbnail(videoPath, outPath, offsetSeconds)
}

func videoDuration(video string) (float64, error) {
	cmd := exec.Command("ffprobe", "-v", "error", "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1", video)
	output, err := cmd.Output()
	if err != nil {
		return 0, err
	}
	var dur float64
	_, err = fmt.Sscanf(string(output), "%f", &dur)
	return dur, err
}
