package recording

import (
	"errors"
	"testing"
	"time"
)

func TestExitEventIsCrash(t *testing.T) {
	cases := []struct {
		name string
		evt  ExitEvent
		want bool
	}{
		{"abnormal unrequested", ExitEvent{Code: 1, Err: errors.New("exit status 1")}, true},
		{"signaled unrequested", ExitEvent{Code: -1, Err: errors.New("signal: killed")}, true},
		{"clean unrequested", ExitEvent{Code: 0}, false},
		{"abnormal but requested", ExitEvent{Code: -1, Requested: true}, false},
		{"clean requested", ExitEvent{Code: 0, Requested: true}, false},
	}

	for _, tc := range cases {
		if got := tc.evt.IsCrash(); got != tc.want {
			t.Errorf("%s: IsCrash() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestTerminateNilHandle(t *testing.T) {
	s := NewSupervisor("garage", nil, nil, nil)
	if outcome := s.Terminate(nil, time.Second); outcome != OutcomeExited {
		t.Errorf("Nil handle should terminate as exited, got %v", outcome)
	}
}

func TestTerminateAlreadyExited(t *testing.T) {
	s := NewSupervisor("garage", nil, nil, nil)

	done := make(chan struct{})
	close(done)
	h := &Handle{pid: 1234, done: done}

	if outcome := s.Terminate(h, time.Second); outcome != OutcomeExited {
		t.Errorf("Already-exited handle should report exited without signaling, got %v", outcome)
	}
}

func TestOutcomeString(t *testing.T) {
	if OutcomeExited.String() != "exited" {
		t.Errorf("Unexpected string for OutcomeExited: %s", OutcomeExited)
	}
	if OutcomeKilled.String() != "killed" {
		t.Errorf("Unexpected string for OutcomeKilled: %s", OutcomeKilled)
	}
}

func TestReapOrphanIgnoresInvalidPID(t *testing.T) {
	s := NewSupervisor("garage", nil, nil, nil)
	// Neither zero nor negative PIDs may be signaled
	s.ReapOrphan(0)
	s.ReapOrphan(-5)
}
