package recording

import (
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"clipvault/storage"
)

// processRunner is the slice of Supervisor the capture manager drives.
// Narrowed to an interface so tests can substitute a stub.
type processRunner interface {
	Start(name string, args []string) (*Handle, error)
	Terminate(h *Handle, grace time.Duration) Outcome
}

// CaptureManager keeps one segment-writing encoder running for a camera. It
// is driven entirely by the controller goroutine: Tick, StopCapture and
// NoteExit must only be called from there. CurrentSegmentIndex is safe from
// any goroutine because the index is fed by the stderr drain.
type CaptureManager struct {
	camera        string
	rtspURL       string
	paths         storage.CameraPaths
	runner        processRunner
	restartWindow time.Duration
	sweepMaxAge   time.Duration

	handle           *Handle
	captureStartedAt time.Time
	crashed          bool
	forceClosed      bool

	segmentIndex atomic.Int64 // latest index seen in stderr markers, -1 before the first
}

// NewCaptureManager wires a capture manager for one camera. sweepMaxAge is
// how old a scratch segment may get before the retention sweep deletes it;
// restartWindow bounds how long one encoder process runs before rotation.
func NewCaptureManager(camera, rtspURL string, paths storage.CameraPaths, runner processRunner, restartWindow, sweepMaxAge time.Duration) *CaptureManager {
	m := &CaptureManager{
		camera:        camera,
		rtspURL:       rtspURL,
		paths:         paths,
		runner:        runner,
		restartWindow: restartWindow,
		sweepMaxAge:   sweepMaxAge,
	}
	m.segmentIndex.Store(-1)
	return m
}

// SetSweepMaxAge changes the scratch retention age. Called from the owning
// controller goroutine only, like every other mutator here.
func (m *CaptureManager) SetSweepMaxAge(age time.Duration) {
	m.sweepMaxAge = age
}

// Tick evaluates the capture state once. Exactly one action per tick: restart
// after a crash, start when nothing is running, or rotate a long-lived
// process. The crash flag is consumed here so one crash yields one restart
// no matter how many ticks pass before it succeeds.
func (m *CaptureManager) Tick() {
	if m.crashed {
		m.crashed = false
		log.Printf("[%s] ⚠️ Capture process crashed, restarting", m.camera)
		m.startCapture()
		return
	}

	if m.handle == nil {
		m.startCapture()
		return
	}

	if time.Since(m.captureStartedAt) >= m.restartWindow {
		log.Printf("[%s] 🔄 Capture process has run %s, rotating", m.camera, time.Since(m.captureStartedAt).Round(time.Second))
		m.StopCapture(DefaultTerminateGrace)
		m.startCapture()
	}
}

// Running reports whether an encoder subprocess is currently alive
func (m *CaptureManager) Running() bool {
	if m.handle == nil {
		return false
	}
	select {
	case <-m.handle.Done():
		return false
	default:
		return true
	}
}

// CaptureUptime returns how long the current encoder has been running
func (m *CaptureManager) CaptureUptime() time.Duration {
	if m.handle == nil {
		return 0
	}
	return time.Since(m.captureStartedAt)
}

// CurrentSegmentIndex returns the index of the segment the encoder most
// recently opened. Before any stderr marker has been seen it falls back to
// scanning the scratch directory.
func (m *CaptureManager) CurrentSegmentIndex() int {
	if v := m.segmentIndex.Load(); v >= 0 {
		return int(v)
	}
	segments, err := m.paths.ListSegments()
	if err != nil || len(segments) == 0 {
		return 0
	}
	return segments[len(segments)-1].Index
}

// NoteExit records a subprocess exit observed by the supervisor. Requested
// exits were already handled by StopCapture; unrequested ones clear the
// handle and, for abnormal codes, arm the one-shot crash restart.
func (m *CaptureManager) NoteExit(evt ExitEvent) {
	if evt.Requested {
		return
	}
	m.handle = nil
	if evt.IsCrash() {
		m.crashed = true
		log.Printf("[%s] ⚠️ Capture process exited abnormally (code %d): %v", m.camera, evt.Code, evt.Err)
	} else {
		log.Printf("[%s] ℹ️ Capture process exited cleanly on its own", m.camera)
	}
}

// StopCapture terminates the running encoder and reports how it went down.
// Safe to call when nothing is running.
func (m *CaptureManager) StopCapture(grace time.Duration) Outcome {
	if m.handle == nil {
		return OutcomeExited
	}
	outcome := m.runner.Terminate(m.handle, grace)
	m.handle = nil
	m.forceClosed = outcome == OutcomeKilled
	return outcome
}

// HandleStderrLine scans one encoder stderr line for a segment-open marker.
// Called from the supervisor's drain goroutine.
func (m *CaptureManager) HandleStderrLine(line string) {
	if index, ok := parseSegmentMarker(line); ok {
		m.segmentIndex.Store(int64(index))
	}
}

// SweepSegments deletes scratch segments older than sweepMaxAge, oldest
// first. Runs on its own cadence, independent of capture restarts.
func (m *CaptureManager) SweepSegments() {
	segments, err := m.paths.ListSegments()
	if err != nil {
		log.Printf("[%s] ⚠️ Scratch sweep failed: %v", m.camera, err)
		return
	}
	if len(segments) == 0 {
		return
	}

	sort.Slice(segments, func(i, j int) bool { return segments[i].ModTime.Before(segments[j].ModTime) })
	cutoff := time.Now().Add(-m.sweepMaxAge)

	deleted := 0
	for _, seg := range segments {
		if !seg.ModTime.Before(cutoff) {
			break
		}
		if err := os.Remove(seg.Path); err != nil {
			if !os.IsNotExist(err) {
				log.Printf("[%s] ⚠️ Failed to delete stale segment %s: %v", m.camera, seg.Path, err)
			}
			continue
		}
		deleted++
	}
	if deleted > 0 {
		log.Printf("[%s] 🧹 Swept %d stale segments from scratch", m.camera, deleted)
	}
}

func (m *CaptureManager) startCapture() {
	if err := m.paths.EnsureDirs(); err != nil {
		log.Printf("[%s] ⚠️ Cannot prepare capture directories: %v", m.camera, err)
		return
	}

	// A fresh process numbers segments from zero again. Stale scratch from
	// the previous lifetime would collide with the new indices, so drop it.
	if removed, err := m.paths.ClearScratch(); err != nil {
		log.Printf("[%s] ⚠️ Failed to clear scratch before capture start: %v", m.camera, err)
	} else if removed > 0 {
		log.Printf("[%s] 🧹 Cleared %d leftover segments before capture start", m.camera, removed)
	}

	if m.forceClosed {
		log.Printf("[%s] ⚠️ Previous encoder needed SIGKILL, last segment may be truncated", m.camera)
	}

	args := buildCaptureArgs(m.rtspURL, m.paths.SegmentTemplate())
	handle, err := m.runner.Start("ffmpeg", args)
	if err != nil {
		log.Printf("[%s] ⚠️ Failed to start capture process: %v", m.camera, err)
		return
	}

	m.handle = handle
	m.captureStartedAt = time.Now()
	m.forceClosed = false
	m.segmentIndex.Store(-1)
	log.Printf("[%s] 🚀 Started segment capture (pid %d)", m.camera, handle.PID())
}

// buildCaptureArgs assembles the encoder command line: copy the RTSP stream
// into one-second MPEG-TS segments without re-encoding. Loglevel stays at
// info because the segment muxer announces each segment it opens there.
func buildCaptureArgs(rtspURL, segmentTemplate string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "info",
		"-rtsp_transport", "tcp",
		"-i", rtspURL,
		"-c", "copy",
		"-an",
		"-f", "segment",
		"-segment_time", "1",
		"-segment_format", "mpegts",
		"-reset_timestamps", "1",
		"-y",
		segmentTemplate,
	}
}

// parseSegmentMarker extracts the segment index from an ffmpeg segment-muxer
// stderr line such as:
//
//	[segment @ 0x55d2. ..] Opening '/data/cam1/tmp/segment042.ts' for writing
func parseSegmentMarker(line string) (int, bool) {
	const openTag = "Opening '"
	const closeTag = "' for writing"

	start := strings.Index(line, openTag)
	if start < 0 {
		return 0, false
	}
	rest := line[start+len(openTag):]
	end := strings.Index(rest, closeTag)
	if end < 0 {
		return 0, false
	}
	return storage.ParseSegmentName(filepath.Base(rest[:end]))
}
