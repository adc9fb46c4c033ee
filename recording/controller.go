package recording

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"clipvault/clips"
	"clipvault/config"
	"clipvault/database"
	"clipvault/storage"
	"clipvault/trigger"
)

// ClipAssembler turns a finalized session's scratch segments into a clip
type ClipAssembler interface {
	Assemble(ctx context.Context, req clips.AssemblyRequest) (*clips.ClipRecord, error)
}

// ClipSink receives finalized clips for cataloguing
type ClipSink interface {
	AddClip(record clips.ClipRecord)
	MarkDirty(camera string)
}

type controllerMessage interface{ isControllerMessage() }

type msgTick struct{}
type msgSweep struct{}
type msgDetections struct{ batch []trigger.Detection }
type msgMotion struct{ active bool }
type msgExit struct{ evt ExitEvent }
type msgFinalize struct{ sessionID string }
type msgReconfigure struct {
	filter          trigger.Filter
	preEventSeconds int
	postEvent       time.Duration
	maxClipLength   time.Duration
	motionMode      string
}

func (msgTick) isControllerMessage()        {}
func (msgSweep) isControllerMessage()       {}
func (msgDetections) isControllerMessage()  {}
func (msgMotion) isControllerMessage()      {}
func (msgExit) isControllerMessage()        {}
func (msgFinalize) isControllerMessage()    {}
func (msgReconfigure) isControllerMessage() {}

// SessionStatus is the externally visible view of an active trigger session
type SessionStatus struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"startedAt"`
	Deadline   time.Time `json:"deadline"`
	Classes    []string  `json:"classes"`
	Extensions int       `json:"extensions"`
}

// ControllerStatus is a point-in-time snapshot of one camera's controller
type ControllerStatus struct {
	Camera               string         `json:"camera"`
	CaptureRunning       bool           `json:"captureRunning"`
	CaptureUptimeSeconds int64          `json:"captureUptimeSeconds"`
	CurrentSegment       int            `json:"currentSegment"`
	TriggerState         string         `json:"triggerState"`
	Session              *SessionStatus `json:"session,omitempty"`
	ClipsAssembled       int            `json:"clipsAssembled"`
	LastClipAt           *time.Time     `json:"lastClipAt,omitempty"`
	LastError            string         `json:"lastError,omitempty"`
}

// CameraController is the per-camera actor. One goroutine (Run) owns every
// piece of mutable capture and session state; everything else talks to it
// through the inbox. API reads go through a separately locked status
// snapshot so they never wait on a busy actor.
type CameraController struct {
	camera string
	cfg    *config.Config
	camCfg config.CameraConfig
	db     database.Database
	paths  storage.CameraPaths

	supervisor *Supervisor
	capture    *CaptureManager
	engine     *trigger.Engine
	assembler  ClipAssembler
	sink       ClipSink
	tasks      *TaskRunner

	inbox         chan controllerMessage
	done          chan struct{}
	deadlineTimer *time.Timer

	preEventSeconds int
	postEvent       time.Duration
	maxClipLength   time.Duration

	statusMu       sync.RWMutex
	status         ControllerStatus
	clipsAssembled int
	lastClipAt     time.Time
	lastError      string
}

// NewCameraController wires the full per-camera stack: supervisor, capture
// manager, trigger engine and periodic tasks. Nothing starts until Run.
func NewCameraController(cfg *config.Config, camCfg config.CameraConfig, db database.Database, assembler ClipAssembler, sink ClipSink) *CameraController {
	camera := camCfg.Name
	paths := storage.PathsFor(cfg.StorageRoot, camera)

	c := &CameraController{
		camera:          camera,
		cfg:             cfg,
		camCfg:          camCfg,
		db:              db,
		paths:           paths,
		assembler:       assembler,
		sink:            sink,
		inbox:           make(chan controllerMessage, 128),
		done:            make(chan struct{}),
		preEventSeconds: cfg.PreEventSeconds,
		postEvent:       time.Duration(cfg.EffectivePostEventSeconds(camCfg)) * time.Second,
		maxClipLength:   time.Duration(cfg.EffectiveMaxClipSeconds(camCfg)) * time.Second,
	}

	c.supervisor = NewSupervisor(camera, db,
		func(line string) { c.capture.HandleStderrLine(line) },
		func(evt ExitEvent) { c.post(msgExit{evt: evt}) },
	)

	sweepMaxAge := 2 * c.maxClipLength
	restartWindow := time.Duration(cfg.CaptureRestartMinutes) * time.Minute
	c.capture = NewCaptureManager(camera, camCfg.RTSPURL(), paths, c.supervisor, restartWindow, sweepMaxAge)

	filter := trigger.NewFilter(cfg.EffectiveClasses(camCfg), cfg.EffectiveScoreThreshold(camCfg), cfg.RequireBoundingBox)
	c.engine = trigger.NewEngine(camera, filter, c.postEvent, c.maxClipLength, cfg.MotionMode)

	c.tasks = NewTaskRunner(camera)
	c.tasks.Add("capture-tick", time.Duration(cfg.CaptureTickSeconds)*time.Second, func() { c.post(msgTick{}) })
	c.tasks.Add("segment-retention", time.Duration(cfg.SegmentRetentionTickSeconds)*time.Second, func() { c.post(msgSweep{}) })

	c.status = ControllerStatus{Camera: camera, TriggerState: string(trigger.StateIdle)}
	return c
}

// Camera returns the camera name this controller owns
func (c *CameraController) Camera() string {
	return c.camera
}

// Run is the actor loop. It reaps any orphaned encoder from a previous
// process, starts capture immediately and then serves the inbox until ctx is
// cancelled. Blocks; callers run it on its own goroutine.
func (c *CameraController) Run(ctx context.Context) {
	defer c.tasks.Stop()
	defer close(c.done)

	c.reapOrphan()
	c.capture.Tick()
	c.tasks.Start(ctx)
	c.updateStatus()

	log.Printf("[%s] 🎥 Camera controller running", c.camera)

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return
		case msg := <-c.inbox:
			c.handle(ctx, msg)
			c.updateStatus()
		}
	}
}

// Done is closed once Run has finished shutting down
func (c *CameraController) Done() <-chan struct{} {
	return c.done
}

// SubmitDetections hands a batch of already validated detections to the
// actor. Safe from any goroutine.
func (c *CameraController) SubmitDetections(batch []trigger.Detection) {
	c.post(msgDetections{batch: batch})
}

// SubmitMotion hands a motion state change to the actor. Safe from any
// goroutine.
func (c *CameraController) SubmitMotion(active bool) {
	c.post(msgMotion{active: active})
}

// ApplySettings recomputes this camera's effective trigger and clip window
// settings from cfg and hands them to the actor. Used for runtime config
// updates; an active session finishes under the old values. Per-camera
// overrides are re-read from cfg so edits made after construction count.
func (c *CameraController) ApplySettings(cfg *config.Config) {
	camCfg := c.camCfg
	if fresh, ok := cfg.CameraByName[c.camera]; ok {
		camCfg = *fresh
	}
	c.post(msgReconfigure{
		filter:          trigger.NewFilter(cfg.EffectiveClasses(camCfg), cfg.EffectiveScoreThreshold(camCfg), cfg.RequireBoundingBox),
		preEventSeconds: cfg.PreEventSeconds,
		postEvent:       time.Duration(cfg.EffectivePostEventSeconds(camCfg)) * time.Second,
		maxClipLength:   time.Duration(cfg.EffectiveMaxClipSeconds(camCfg)) * time.Second,
		motionMode:      cfg.MotionMode,
	})
}

// Status returns the latest snapshot without touching actor state
func (c *CameraController) Status() ControllerStatus {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.status
}

func (c *CameraController) post(msg controllerMessage) {
	select {
	case c.inbox <- msg:
	case <-c.done:
	}
}

func (c *CameraController) handle(ctx context.Context, msg controllerMessage) {
	switch m := msg.(type) {
	case msgTick:
		c.capture.Tick()
	case msgSweep:
		c.capture.SweepSegments()
	case msgDetections:
		decision := c.engine.HandleDetections(m.batch, c.capture.CurrentSegmentIndex())
		c.applyDecision(decision)
	case msgMotion:
		decision := c.engine.HandleMotion(m.active, c.capture.CurrentSegmentIndex())
		c.applyDecision(decision)
	case msgExit:
		c.capture.NoteExit(m.evt)
	case msgFinalize:
		c.finalize(ctx, m.sessionID)
	case msgReconfigure:
		c.engine.SetFilter(m.filter)
		c.engine.SetTiming(m.postEvent, m.maxClipLength, m.motionMode)
		c.preEventSeconds = m.preEventSeconds
		c.postEvent = m.postEvent
		c.maxClipLength = m.maxClipLength
		c.capture.SetSweepMaxAge(2 * m.maxClipLength)
		log.Printf("[%s] 🔄 Settings updated: post=%s max=%s motion=%s", c.camera, m.postEvent, m.maxClipLength, m.motionMode)
	}
}

func (c *CameraController) applyDecision(decision trigger.Decision) {
	switch decision.Outcome {
	case trigger.OutcomeStarted:
		sess := c.engine.Session()
		log.Printf("[%s] 🔴 Session %s started at segment %d (classes: %v)", c.camera, sess.ID, sess.EventSegmentIndex, classList(sess.Classes))
		c.armDeadline(sess)
	case trigger.OutcomeExtended:
		c.armDeadline(c.engine.Session())
	case trigger.OutcomeCapped:
		log.Printf("[%s] ⏳ Session %s reached max clip length, finalizing at existing deadline", c.camera, c.engine.Session().ID)
	}
}

// armDeadline (re)schedules the finalize message for the session's deadline.
// The session id rides along so a stale timer firing after a new session
// started is ignored.
func (c *CameraController) armDeadline(sess *trigger.Session) {
	if sess == nil {
		return
	}
	if c.deadlineTimer != nil {
		c.deadlineTimer.Stop()
	}
	wait := time.Until(sess.Deadline)
	if wait < 0 {
		wait = 0
	}
	id := sess.ID
	c.deadlineTimer = time.AfterFunc(wait, func() { c.post(msgFinalize{sessionID: id}) })
}

// finalize runs the full close-out for one session: record the save segment,
// stop the encoder so every segment in the window is closed, assemble the
// clip, catalog it and return the engine to idle. Capture restarts on the
// next tick.
func (c *CameraController) finalize(ctx context.Context, sessionID string) {
	sess := c.engine.Session()
	if sess == nil || sess.ID != sessionID {
		return
	}
	// An extension can race the timer message; re-arm instead of cutting
	// the session short.
	if time.Now().Before(sess.Deadline) {
		c.armDeadline(sess)
		return
	}

	saveIndex := c.capture.CurrentSegmentIndex()
	c.engine.BeginFinalize(saveIndex)
	firstIndex := sess.EventSegmentIndex - c.preEventSeconds
	if firstIndex < 0 {
		firstIndex = 0
	}
	log.Printf("[%s] 🎬 Finalizing session %s: segment window [%d..%d]", c.camera, sess.ID, firstIndex, saveIndex)

	c.capture.StopCapture(DefaultTerminateGrace)

	end := time.Now()
	req := clips.AssemblyRequest{
		Camera:            c.camera,
		Paths:             c.paths,
		EventSegmentIndex: sess.EventSegmentIndex,
		SaveSegmentIndex:  saveIndex,
		PreEventSeconds:   c.preEventSeconds,
		Start:             sess.StartedAt.Add(-time.Duration(c.preEventSeconds) * time.Second),
		End:               end,
		Classes:           sess.Classes,
	}

	record, err := c.assembler.Assemble(ctx, req)
	if err != nil {
		log.Printf("[%s] ⚠️ Clip assembly failed for session %s: %v", c.camera, sess.ID, err)
		c.lastError = err.Error()
	} else {
		c.sink.AddClip(*record)
		c.sink.MarkDirty(c.camera)
		c.clipsAssembled++
		c.lastClipAt = time.Now()
		c.lastError = ""
		log.Printf("[%s] ✅ Clip %s assembled (%d bytes, %s)", c.camera, record.Filename, record.SizeBytes, record.Duration().Round(time.Second))
	}

	c.engine.CompleteFinalize()
}

func (c *CameraController) reapOrphan() {
	runtime, err := c.db.GetCameraRuntime(c.camera)
	if err != nil {
		log.Printf("[%s] ⚠️ Cannot read persisted runtime state: %v", c.camera, err)
		return
	}
	if runtime == nil || runtime.EncoderPID <= 0 {
		return
	}
	c.supervisor.ReapOrphan(runtime.EncoderPID)
}

func (c *CameraController) shutdown() {
	if c.deadlineTimer != nil {
		c.deadlineTimer.Stop()
	}
	if sess := c.engine.Session(); sess != nil {
		log.Printf("[%s] ⚠️ Abandoning active session %s on shutdown, scratch segments remain for next run", c.camera, sess.ID)
	}
	outcome := c.capture.StopCapture(DefaultTerminateGrace)
	log.Printf("[%s] 🛑 Camera controller stopped (encoder %s)", c.camera, outcome)
}

func (c *CameraController) updateStatus() {
	sess := c.engine.Session()
	var sessionStatus *SessionStatus
	if sess != nil {
		sessionStatus = &SessionStatus{
			ID:         sess.ID,
			StartedAt:  sess.StartedAt,
			Deadline:   sess.Deadline,
			Classes:    classList(sess.Classes),
			Extensions: sess.Extensions,
		}
	}

	status := ControllerStatus{
		Camera:               c.camera,
		CaptureRunning:       c.capture.Running(),
		CaptureUptimeSeconds: int64(c.capture.CaptureUptime().Seconds()),
		CurrentSegment:       c.capture.CurrentSegmentIndex(),
		TriggerState:         string(c.engine.State()),
		Session:              sessionStatus,
		ClipsAssembled:       c.clipsAssembled,
		LastError:            c.lastError,
	}
	if !c.lastClipAt.IsZero() {
		at := c.lastClipAt
		status.LastClipAt = &at
	}

	c.statusMu.Lock()
	c.status = status
	c.statusMu.Unlock()
}

func classList(classes map[string]bool) []string {
	list := make([]string, 0, len(classes))
	for class := range classes {
		list = append(list, class)
	}
	sort.Strings(list)
	return list
}
