package recording

import (
	"bufio"
	"fmt"
	"log"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"clipvault/database"
)

// Outcome of a Terminate call
type Outcome int

const (
	OutcomeExited Outcome = iota // subprocess exited within the grace period
	OutcomeKilled                // subprocess had to be force-killed
)

func (o Outcome) String() string {
	if o == OutcomeKilled {
		return "killed"
	}
	return "exited"
}

// DefaultTerminateGrace is how long a subprocess gets between SIGTERM and
// SIGKILL.
const DefaultTerminateGrace = 5 * time.Second

// ExitEvent describes a subprocess exit
type ExitEvent struct {
	Code      int       // process exit code, -1 when signaled
	Requested bool      // true when the exit followed a Terminate call
	Err       error     // non-nil for abnormal exits
	At        time.Time // when the exit was observed
}

// IsCrash reports whether the exit was abnormal and unrequested. A clean
// zero exit that nobody asked for (stream EOF) is not a crash; the capture
// tick restarts it through the not-running branch instead.
func (e ExitEvent) IsCrash() bool {
	return !e.Requested && e.Code != 0
}

// Handle represents one live subprocess
type Handle struct {
	cmd           *exec.Cmd
	pid           int
	startedAt     time.Time
	done          chan struct{}
	stopRequested atomic.Bool
}

// PID returns the subprocess id
func (h *Handle) PID() int {
	return h.pid
}

// StartedAt returns when the subprocess was spawned
func (h *Handle) StartedAt() time.Time {
	return h.startedAt
}

// Done is closed once the subprocess has exited and its pipes are drained
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Supervisor owns the lifecycle of one camera's encoder subprocesses: spawn,
// drain, persist the PID for orphan reaping, terminate with escalation, and
// report exits upward. It never restarts anything on its own; retry policy
// belongs to the capture manager.
type Supervisor struct {
	camera       string
	db           database.Database
	onStderrLine func(line string)
	onExit       func(evt ExitEvent)
}

// NewSupervisor creates a supervisor for one camera. onStderrLine receives
// every stderr line from the subprocess (called from the drain goroutine);
// onExit is invoked once per subprocess after it exits. Either may be nil.
func NewSupervisor(camera string, db database.Database, onStderrLine func(string), onExit func(ExitEvent)) *Supervisor {
	return &Supervisor{
		camera:       camera,
		db:           db,
		onStderrLine: onStderrLine,
		onExit:       onExit,
	}
}

// Start spawns the subprocess, persists its PID and wires the drain
// goroutines. Stdout and stderr are consumed continuously so the subprocess
// can never stall on a full pipe.
func (s *Supervisor) Start(name string, args []string) (*Handle, error) {
	cmd := exec.Command(name, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout pipe: %v", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stderr pipe: %v", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %v", name, err)
	}

	h := &Handle{
		cmd:       cmd,
		pid:       cmd.Process.Pid,
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}

	if s.db != nil {
		if err := s.db.SaveEncoderPID(s.camera, h.pid, h.startedAt); err != nil {
			log.Printf("[%s] ⚠️ Failed to persist encoder PID %d: %v", s.camera, h.pid, err)
		}
	}

	var ioWg sync.WaitGroup
	ioWg.Add(2)

	go func() {
		defer ioWg.Done()
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			// discard; the encoder writes nothing useful on stdout
		}
	}()

	go func() {
		defer ioWg.Done()
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
		for scanner.Scan() {
			if s.onStderrLine != nil {
				s.onStderrLine(scanner.Text())
			}
		}
	}()

	go func() {
		// Pipes must be fully drained before Wait closes them
		ioWg.Wait()
		err := cmd.Wait()

		evt := ExitEvent{At: time.Now(), Requested: h.stopRequested.Load()}
		if err != nil {
			evt.Err = err
			if exitErr, ok := err.(*exec.ExitError); ok {
				evt.Code = exitErr.ExitCode()
			} else {
				evt.Code = -1
			}
		}

		if s.db != nil {
			if dbErr := s.db.ClearEncoderPID(s.camera); dbErr != nil {
				log.Printf("[%s] ⚠️ Failed to clear persisted encoder PID: %v", s.camera, dbErr)
			}
		}

		close(h.done)

		if s.onExit != nil {
			s.onExit(evt)
		}
	}()

	return h, nil
}

// Terminate sends SIGTERM and waits up to grace for the subprocess to exit,
// escalating to SIGKILL. Either path returns only after the exit was
// observed.
func (s *Supervisor) Terminate(h *Handle, grace time.Duration) Outcome {
	if h == nil {
		return OutcomeExited
	}
	select {
	case <-h.done:
		return OutcomeExited
	default:
	}

	h.stopRequested.Store(true)
	if h.cmd.Process != nil {
		if err := h.cmd.Process.Signal(syscall.SIGTERM); err != nil {
			log.Printf("[%s] ⚠️ Failed to signal encoder pid %d: %v", s.camera, h.pid, err)
		}
	}

	select {
	case <-h.done:
		return OutcomeExited
	case <-time.After(grace):
		log.Printf("[%s] ⚠️ Encoder pid %d did not exit within %s, force killing", s.camera, h.pid, grace)
		if h.cmd.Process != nil {
			h.cmd.Process.Kill()
		}
		<-h.done
		return OutcomeKilled
	}
}

// ReapOrphan terminates a PID persisted by a previous run of this process.
// Called once at startup before the first capture starts. Signalling a PID
// that is already gone is not an error.
func (s *Supervisor) ReapOrphan(pid int) {
	if pid <= 0 {
		return
	}

	// Signal 0 probes whether the process still exists
	if err := syscall.Kill(pid, 0); err != nil {
		log.Printf("[%s] ℹ️ Persisted encoder pid %d is already gone", s.camera, pid)
		s.clearPersistedPID()
		return
	}

	log.Printf("[%s] 🧹 Reaping orphaned encoder pid %d from previous run", s.camera, pid)
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		s.clearPersistedPID()
		return
	}

	deadline := time.Now().Add(DefaultTerminateGrace)
	for time.Now().Before(deadline) {
		time.Sleep(250 * time.Millisecond)
		if err := syscall.Kill(pid, 0); err != nil {
			s.clearPersistedPID()
			return
		}
	}

	log.Printf("[%s] ⚠️ Orphaned encoder pid %d ignored SIGTERM, force killing", s.camera, pid)
	syscall.Kill(pid, syscall.SIGKILL)
	s.clearPersistedPID()
}

func (s *Supervisor) clearPersistedPID() {
	if s.db == nil {
		return
	}
	if err := s.db.ClearEncoderPID(s.camera); err != nil {
		log.Printf("[%s] ⚠️ Failed to clear persisted encoder PID: %v", s.camera, err)
	}
}
