package trigger

import (
	"time"

	"github.com/google/uuid"
)

// State of a camera's recording session lifecycle
type State string

const (
	StateIdle       State = "idle"       // no session
	StateActive     State = "active"     // session running, deadline armed
	StateExtending  State = "extending"  // session running, extension accepted within the last debounce window
	StateFinalizing State = "finalizing" // session being cut into a clip
)

// Motion handling modes. In trigger mode a motion pulse may start a session
// on its own; in extend mode it only prolongs one that detections started.
const (
	MotionModeTrigger = "trigger"
	MotionModeExtend  = "extend"
)

// Outcome of feeding one event batch into the engine
type Outcome int

const (
	OutcomeNone       Outcome = iota // nothing qualified or no session effect
	OutcomeStarted                   // a new session was created, arm the deadline timer
	OutcomeExtended                  // the deadline moved out, reset the timer
	OutcomeSuppressed                // qualified but debounced, deadline unchanged
	OutcomeCapped                    // qualified but the session is at max length, deadline unchanged
)

// extensionDebounce suppresses repeated deadline resets under bursty
// detections; motion pulses are debounced independently with the same window.
const extensionDebounce = time.Second

// Session is the mutable state of one in-flight recording session
type Session struct {
	ID                string          `json:"id"`
	StartedAt         time.Time       `json:"startedAt"`
	EventSegmentIndex int             `json:"eventSegmentIndex"`
	SaveSegmentIndex  int             `json:"saveSegmentIndex"` // -1 until finalize begins
	Deadline          time.Time       `json:"deadline"`
	Classes           map[string]bool `json:"classes"`
	LastExtensionAt   time.Time       `json:"lastExtensionAt"`
	Extensions        int             `json:"extensions"`
}

// Decision tells the caller what to do with its deadline timer
type Decision struct {
	Outcome  Outcome
	Deadline time.Time
	Accepted []Detection
}

// Engine drives one camera's session through
// Idle -> Active -> Extending -> Finalizing. It is not safe for concurrent
// use; the owning camera controller serializes all calls.
type Engine struct {
	camera     string
	filter     Filter
	postEvent  time.Duration
	maxLength  time.Duration
	motionMode string

	state        State
	session      *Session
	lastMotionAt time.Time

	now func() time.Time
}

// NewEngine creates a trigger engine for one camera
func NewEngine(camera string, filter Filter, postEvent, maxLength time.Duration, motionMode string) *Engine {
	if motionMode != MotionModeTrigger {
		motionMode = MotionModeExtend
	}
	return &Engine{
		camera:     camera,
		filter:     filter,
		postEvent:  postEvent,
		maxLength:  maxLength,
		motionMode: motionMode,
		state:      StateIdle,
		now:        time.Now,
	}
}

// SetFilter swaps the detection filter (settings updates at runtime)
func (e *Engine) SetFilter(f Filter) {
	e.filter = f
}

// SetTiming swaps the session timing parameters. An active session keeps its
// current deadline; the new values apply from the next extension on.
func (e *Engine) SetTiming(postEvent, maxLength time.Duration, motionMode string) {
	if motionMode != MotionModeTrigger {
		motionMode = MotionModeExtend
	}
	e.postEvent = postEvent
	e.maxLength = maxLength
	e.motionMode = motionMode
}

// State reports the current lifecycle state. Extending is derived: a session
// whose last accepted extension is still inside the debounce window.
func (e *Engine) State() State {
	if e.state == StateActive && e.session != nil && !e.session.LastExtensionAt.IsZero() &&
		e.now().Sub(e.session.LastExtensionAt) < extensionDebounce {
		return StateExtending
	}
	return e.state
}

// Session returns the in-flight session, or nil when idle
func (e *Engine) Session() *Session {
	return e.session
}

// HandleDetections feeds a detection batch through the filter and into the
// state machine. Accepted classes are always accumulated onto the session;
// the deadline only moves subject to debounce and the max-length cap.
func (e *Engine) HandleDetections(batch []Detection, currentSegmentIndex int) Decision {
	accepted := e.filter.Qualify(batch)
	if len(accepted) == 0 {
		return Decision{Outcome: OutcomeNone}
	}

	now := e.now()
	switch e.state {
	case StateFinalizing:
		// The session is being cut; late detections do not reopen it
		return Decision{Outcome: OutcomeNone, Accepted: accepted}

	case StateIdle:
		e.session = e.newSession(now, currentSegmentIndex)
		for _, d := range accepted {
			e.session.Classes[d.ClassName] = true
		}
		e.state = StateActive
		return Decision{Outcome: OutcomeStarted, Deadline: e.session.Deadline, Accepted: accepted}

	default: // StateActive
		for _, d := range accepted {
			e.session.Classes[d.ClassName] = true
		}
		decision := e.extend(now)
		decision.Accepted = accepted
		return decision
	}
}

// HandleMotion feeds a motion-sensor pulse into the state machine. Pulses
// are debounced independently of detection extensions; whether an accepted
// pulse may start a session depends on the motion mode.
func (e *Engine) HandleMotion(active bool, currentSegmentIndex int) Decision {
	if !active {
		return Decision{Outcome: OutcomeNone}
	}

	now := e.now()
	if now.Sub(e.lastMotionAt) < extensionDebounce {
		return Decision{Outcome: OutcomeSuppressed, Deadline: e.deadline()}
	}
	e.lastMotionAt = now

	switch e.state {
	case StateFinalizing:
		return Decision{Outcome: OutcomeNone}

	case StateIdle:
		if e.motionMode != MotionModeTrigger {
			return Decision{Outcome: OutcomeNone}
		}
		e.session = e.newSession(now, currentSegmentIndex)
		e.state = StateActive
		return Decision{Outcome: OutcomeStarted, Deadline: e.session.Deadline}

	default: // StateActive
		return e.extend(now)
	}
}

// BeginFinalize moves the session into Finalizing and records the last
// segment index to save. Returns nil when there is no session to cut.
func (e *Engine) BeginFinalize(currentSegmentIndex int) *Session {
	if e.session == nil {
		return nil
	}
	e.session.SaveSegmentIndex = currentSegmentIndex
	e.state = StateFinalizing
	return e.session
}

// CompleteFinalize clears the session accumulators and returns to Idle
func (e *Engine) CompleteFinalize() {
	e.session = nil
	e.state = StateIdle
}

func (e *Engine) newSession(now time.Time, segmentIndex int) *Session {
	return &Session{
		ID:                uuid.New().String(),
		StartedAt:         now,
		EventSegmentIndex: segmentIndex,
		SaveSegmentIndex:  -1,
		Deadline:          now.Add(e.postEvent),
		Classes:           map[string]bool{"motion": true},
	}
}

// extend moves the deadline out by postEvent, unless the session is at its
// max length or an extension already happened inside the debounce window.
func (e *Engine) extend(now time.Time) Decision {
	proposed := now.Add(e.postEvent)
	if proposed.After(e.session.StartedAt.Add(e.maxLength)) {
		return Decision{Outcome: OutcomeCapped, Deadline: e.session.Deadline}
	}
	if !e.session.LastExtensionAt.IsZero() && now.Sub(e.session.LastExtensionAt) < extensionDebounce {
		return Decision{Outcome: OutcomeSuppressed, Deadline: e.session.Deadline}
	}

	e.session.Deadline = proposed
	e.session.LastExtensionAt = now
	e.session.Extensions++
	return Decision{Outcome: OutcomeExtended, Deadline: proposed}
}

func (e *Engine) deadline() time.Time {
	if e.session == nil {
		return time.Time{}
	}
	return e.session.Deadline
}
