package trigger

import (
	"testing"
	"time"
)

// fakeClock lets tests drive the engine's notion of now
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newTestEngine(motionMode string) (*Engine, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)}
	filter := NewFilter([]string{"person", "vehicle"}, 0.7, false)
	engine := NewEngine("front_door", filter, 30*time.Second, 120*time.Second, motionMode)
	engine.now = clock.now
	return engine, clock
}

func personAt(score float64) []Detection {
	return []Detection{{ClassName: "person", Score: score, HasBoundingBox: true}}
}

// TestSessionLifecycle walks a session through start, extension and finalize
func TestSessionLifecycle(t *testing.T) {
	engine, clock := newTestEngine(MotionModeExtend)

	if engine.State() != StateIdle {
		t.Fatalf("Expected initial state idle, got %s", engine.State())
	}

	// First qualifying detection starts a session
	d := engine.HandleDetections(personAt(0.9), 20)
	if d.Outcome != OutcomeStarted {
		t.Fatalf("Expected session start, got outcome %d", d.Outcome)
	}
	sess := engine.Session()
	if sess == nil {
		t.Fatal("Expected session after start, got nil")
	}
	if sess.EventSegmentIndex != 20 {
		t.Errorf("Expected event segment index 20, got %d", sess.EventSegmentIndex)
	}
	wantDeadline := clock.t.Add(30 * time.Second)
	if !d.Deadline.Equal(wantDeadline) {
		t.Errorf("Expected deadline %v, got %v", wantDeadline, d.Deadline)
	}
	if engine.State() != StateActive {
		t.Errorf("Expected state active, got %s", engine.State())
	}

	// A later detection extends the deadline
	clock.advance(5 * time.Second)
	d = engine.HandleDetections(personAt(0.8), 25)
	if d.Outcome != OutcomeExtended {
		t.Fatalf("Expected extension, got outcome %d", d.Outcome)
	}
	if !d.Deadline.Equal(clock.t.Add(30 * time.Second)) {
		t.Errorf("Expected deadline pushed to %v, got %v", clock.t.Add(30*time.Second), d.Deadline)
	}
	if engine.State() != StateExtending {
		t.Errorf("Expected state extending inside debounce window, got %s", engine.State())
	}

	// After the debounce window the derived state relaxes to active
	clock.advance(2 * time.Second)
	if engine.State() != StateActive {
		t.Errorf("Expected state active after debounce window, got %s", engine.State())
	}

	// Finalize cuts the session
	finalized := engine.BeginFinalize(65)
	if finalized == nil {
		t.Fatal("Expected session from BeginFinalize, got nil")
	}
	if finalized.SaveSegmentIndex != 65 {
		t.Errorf("Expected save segment index 65, got %d", finalized.SaveSegmentIndex)
	}
	if engine.State() != StateFinalizing {
		t.Errorf("Expected state finalizing, got %s", engine.State())
	}

	// Detections during finalize do not reopen the session
	d = engine.HandleDetections(personAt(0.9), 66)
	if d.Outcome != OutcomeNone {
		t.Errorf("Expected detections during finalize to be ignored, got outcome %d", d.Outcome)
	}

	engine.CompleteFinalize()
	if engine.State() != StateIdle {
		t.Errorf("Expected state idle after finalize, got %s", engine.State())
	}
	if engine.Session() != nil {
		t.Error("Expected nil session after finalize")
	}

	t.Logf("✅ Session lifecycle passed")
}

// TestSingleSessionPerCamera verifies a second qualifying batch never creates
// a second session.
func TestSingleSessionPerCamera(t *testing.T) {
	engine, clock := newTestEngine(MotionModeExtend)

	engine.HandleDetections(personAt(0.9), 10)
	first := engine.Session()

	clock.advance(3 * time.Second)
	engine.HandleDetections(personAt(0.9), 13)
	second := engine.Session()

	if first != second {
		t.Error("Expected the same session instance across detections")
	}
	if first.ID != second.ID {
		t.Errorf("Expected session ID unchanged, got %s then %s", first.ID, second.ID)
	}
}

// TestExtensionDebounce verifies two qualifying detections 200ms apart act on
// at most one extension.
func TestExtensionDebounce(t *testing.T) {
	engine, clock := newTestEngine(MotionModeExtend)

	engine.HandleDetections(personAt(0.9), 10)

	// First extension
	clock.advance(2 * time.Second)
	d1 := engine.HandleDetections(personAt(0.9), 12)
	if d1.Outcome != OutcomeExtended {
		t.Fatalf("Expected first extension, got outcome %d", d1.Outcome)
	}

	// Second detection 200ms later must be suppressed
	clock.advance(200 * time.Millisecond)
	d2 := engine.HandleDetections(personAt(0.9), 12)
	if d2.Outcome != OutcomeSuppressed {
		t.Fatalf("Expected suppressed extension 200ms after the last, got outcome %d", d2.Outcome)
	}
	if !d2.Deadline.Equal(d1.Deadline) {
		t.Errorf("Expected deadline unchanged under debounce: %v != %v", d2.Deadline, d1.Deadline)
	}
	if engine.Session().Extensions != 1 {
		t.Errorf("Expected exactly 1 extension, got %d", engine.Session().Extensions)
	}

	// Once the window passes, extensions resume
	clock.advance(time.Second)
	d3 := engine.HandleDetections(personAt(0.9), 13)
	if d3.Outcome != OutcomeExtended {
		t.Errorf("Expected extension after debounce window, got outcome %d", d3.Outcome)
	}

	t.Logf("✅ Extension debounce passed")
}

// TestMaxLengthCap verifies extensions that would push the deadline past
// startedAt+maxLength are ignored and never move the deadline.
func TestMaxLengthCap(t *testing.T) {
	engine, clock := newTestEngine(MotionModeExtend)

	engine.HandleDetections(personAt(0.9), 10)
	sessionStart := clock.t

	// Keep extending until near the cap: maxLength=120s, postEvent=30s, so
	// extensions stop landing once now+30s would pass start+120s.
	var lastDeadline time.Time
	for i := 0; i < 8; i++ {
		clock.advance(11 * time.Second)
		d := engine.HandleDetections(personAt(0.9), 10+i)
		if d.Outcome == OutcomeExtended {
			lastDeadline = d.Deadline
		}
	}

	// now = start + 88s; an extension to now+30s=start+118s still fits
	if lastDeadline.IsZero() {
		t.Fatal("Expected at least one extension before the cap")
	}

	// Advance past the cap boundary: now+30s would exceed start+120s
	clock.advance(11 * time.Second) // now = start + 99s -> 99+30=129 > 120
	d := engine.HandleDetections(personAt(0.9), 30)
	if d.Outcome != OutcomeCapped {
		t.Fatalf("Expected capped extension past max length, got outcome %d", d.Outcome)
	}
	if !d.Deadline.Equal(lastDeadline) {
		t.Errorf("Expected deadline unchanged at cap: %v != %v", d.Deadline, lastDeadline)
	}
	if d.Deadline.After(sessionStart.Add(120 * time.Second)) {
		t.Errorf("Deadline %v exceeds session start + max length", d.Deadline)
	}

	t.Logf("✅ Max length cap passed")
}

// TestClassAccumulation verifies accepted classes accumulate deduplicated on
// the session even when the extension itself is debounced or capped.
func TestClassAccumulation(t *testing.T) {
	engine, clock := newTestEngine(MotionModeExtend)

	engine.HandleDetections(personAt(0.9), 10)
	clock.advance(2 * time.Second)
	engine.HandleDetections([]Detection{{ClassName: "vehicle", Score: 0.8, HasBoundingBox: true}}, 12)

	// Suppressed by debounce, class must still accumulate
	clock.advance(100 * time.Millisecond)
	d := engine.HandleDetections([]Detection{{ClassName: "person", Score: 0.95, HasBoundingBox: true}}, 12)
	if d.Outcome != OutcomeSuppressed {
		t.Fatalf("Expected suppressed outcome, got %d", d.Outcome)
	}

	classes := engine.Session().Classes
	for _, want := range []string{"motion", "person", "vehicle"} {
		if !classes[want] {
			t.Errorf("Expected class %s accumulated, have %v", want, classes)
		}
	}
	if len(classes) != 3 {
		t.Errorf("Expected 3 deduplicated classes, got %d", len(classes))
	}
}

// TestMotionModes verifies motion pulses respect the configured mode and
// their independent debounce.
func TestMotionModes(t *testing.T) {
	// extend mode: motion alone never starts a session
	engine, clock := newTestEngine(MotionModeExtend)
	d := engine.HandleMotion(true, 5)
	if d.Outcome != OutcomeNone {
		t.Errorf("Expected motion ignored in extend mode while idle, got outcome %d", d.Outcome)
	}
	if engine.Session() != nil {
		t.Error("Expected no session from motion in extend mode")
	}

	// but it extends an active session
	engine.HandleDetections(personAt(0.9), 10)
	clock.advance(2 * time.Second)
	d = engine.HandleMotion(true, 12)
	if d.Outcome != OutcomeExtended {
		t.Errorf("Expected motion to extend active session, got outcome %d", d.Outcome)
	}

	// trigger mode: motion starts a session
	engine2, clock2 := newTestEngine(MotionModeTrigger)
	d = engine2.HandleMotion(true, 7)
	if d.Outcome != OutcomeStarted {
		t.Fatalf("Expected motion to start session in trigger mode, got outcome %d", d.Outcome)
	}
	if engine2.Session().EventSegmentIndex != 7 {
		t.Errorf("Expected event segment index 7, got %d", engine2.Session().EventSegmentIndex)
	}

	// motion debounce: a second pulse 300ms later is suppressed
	clock2.advance(300 * time.Millisecond)
	d = engine2.HandleMotion(true, 8)
	if d.Outcome != OutcomeSuppressed {
		t.Errorf("Expected motion pulse suppressed inside debounce window, got outcome %d", d.Outcome)
	}

	// inactive pulses are ignored outright
	clock2.advance(2 * time.Second)
	d = engine2.HandleMotion(false, 9)
	if d.Outcome != OutcomeNone {
		t.Errorf("Expected inactive motion ignored, got outcome %d", d.Outcome)
	}

	t.Logf("✅ Motion modes passed")
}

// TestNonQualifyingBatchDoesNothing verifies below-threshold batches neither
// start nor extend sessions.
func TestNonQualifyingBatchDoesNothing(t *testing.T) {
	engine, clock := newTestEngine(MotionModeExtend)

	d := engine.HandleDetections([]Detection{{ClassName: "vehicle", Score: 0.65, HasBoundingBox: true}}, 10)
	if d.Outcome != OutcomeNone {
		t.Errorf("Expected no outcome for below-threshold batch, got %d", d.Outcome)
	}
	if engine.Session() != nil {
		t.Error("Expected no session from below-threshold batch")
	}

	// Start a session, then check the same low score does not extend it
	engine.HandleDetections(personAt(0.9), 10)
	deadline := engine.Session().Deadline
	clock.advance(2 * time.Second)
	d = engine.HandleDetections([]Detection{{ClassName: "vehicle", Score: 0.65, HasBoundingBox: true}}, 12)
	if d.Outcome != OutcomeNone {
		t.Errorf("Expected no outcome for below-threshold extension, got %d", d.Outcome)
	}
	if !engine.Session().Deadline.Equal(deadline) {
		t.Error("Expected deadline unchanged by non-qualifying batch")
	}
}
