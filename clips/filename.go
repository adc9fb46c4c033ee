package clips

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// BitmapWidth is the fixed width of the detection bitmap embedded in every
// clip filename. Positions beyond the known classes are reserved so the
// format stays stable when classes are added.
const BitmapWidth = 10

// classPriority assigns each detection class its stable bitmap position.
// The order doubles as the display priority when decoding. Position 0
// (motion) is always set on encode.
var classPriority = []string{
	"motion",
	"person",
	"vehicle",
	"animal",
	"face",
	"plate",
	"package",
}

// ClipMeta is the metadata recovered from a clip filename alone
type ClipMeta struct {
	StartTime time.Time
	EndTime   time.Time
	Bitmap    string
	Classes   []string // decoded from the bitmap, in priority order
}

// ClipRecord describes one finished clip on disk
type ClipRecord struct {
	ID            string    `json:"id"`       // filename without extension
	Camera        string    `json:"camera"`   // owning camera name
	Filename      string    `json:"filename"` // base name including extension
	VideoPath     string    `json:"videoPath"`
	ThumbnailPath string    `json:"thumbnailPath"`
	SizeBytes     int64     `json:"sizeBytes"`
	StartTime     time.Time `json:"startTime"`
	EndTime       time.Time `json:"endTime"`
	Classes       []string  `json:"classes"`
}

// Duration returns the clip's temporal length
func (r ClipRecord) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// PrimaryClass returns the highest-priority non-motion class, falling back
// to "motion" for motion-only clips.
func (r ClipRecord) PrimaryClass() string {
	for _, c := range r.Classes {
		if c != "motion" {
			return c
		}
	}
	return "motion"
}

// KnownClasses returns the detection classes with bitmap positions, in
// priority order.
func KnownClasses() []string {
	out := make([]string, len(classPriority))
	copy(out, classPriority)
	return out
}

// IsKnownClass reports whether a class name has a bitmap position
func IsKnownClass(name string) bool {
	for _, c := range classPriority {
		if c == name {
			return true
		}
	}
	return false
}

// EncodeClipName builds the self-describing clip filename
// {startMs}_{endMs}_{bitmap}.mp4. The motion bit is always set; classes
// without a bitmap position are ignored. End must be after start.
func EncodeClipName(start, end time.Time, classes map[string]bool) (string, error) {
	if !end.After(start) {
		return "", fmt.Errorf("clip end %v must be after start %v", end, start)
	}

	bits := make([]byte, BitmapWidth)
	for i := range bits {
		bits[i] = '0'
	}
	// The motion flag is set unconditionally: every clip implies motion.
	bits[0] = '1'
	for i, class := range classPriority {
		if classes[class] {
			bits[i] = '1'
		}
	}

	return fmt.Sprintf("%d_%d_%s.mp4", start.UnixMilli(), end.UnixMilli(), string(bits)), nil
}

// DecodeClipName parses a clip filename back into its metadata. A name that
// does not match {startMs}_{endMs}_{bitmap}.mp4 exactly is rejected.
func DecodeClipName(name string) (ClipMeta, error) {
	base := filepath.Base(name)
	if !strings.HasSuffix(base, ".mp4") {
		return ClipMeta{}, fmt.Errorf("clip name %q missing .mp4 extension", base)
	}
	stem := strings.TrimSuffix(base, ".mp4")

	parts := strings.Split(stem, "_")
	if len(parts) != 3 {
		return ClipMeta{}, fmt.Errorf("clip name %q is not startMs_endMs_bitmap", base)
	}

	startMs, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return ClipMeta{}, fmt.Errorf("clip name %q has invalid start time: %v", base, err)
	}
	endMs, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return ClipMeta{}, fmt.Errorf("clip name %q has invalid end time: %v", base, err)
	}
	if endMs <= startMs {
		return ClipMeta{}, fmt.Errorf("clip name %q has end <= start", base)
	}

	bitmap := parts[2]
	if len(bitmap) != BitmapWidth {
		return ClipMeta{}, fmt.Errorf("clip name %q bitmap width %d, want %d", base, len(bitmap), BitmapWidth)
	}
	var classes []string
	for i, ch := range bitmap {
		if ch != '0' && ch != '1' {
			return ClipMeta{}, fmt.Errorf("clip name %q bitmap has invalid character %q", base, ch)
		}
		if ch == '1' && i < len(classPriority) {
			classes = append(classes, classPriority[i])
		}
	}

	return ClipMeta{
		StartTime: time.UnixMilli(startMs),
		EndTime:   time.UnixMilli(endMs),
		Bitmap:    bitmap,
		Classes:   classes,
	}, nil
}
