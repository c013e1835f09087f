package connection

import (
	"time"

	"vn.io.arda/notifeed/internal/messages"
)

// State of the push connection.
type State int

const (
	Idle State = iota
	Connecting
	Connected
	Disconnected
	Backoff
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	case Backoff:
		return "backoff"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is a read-only snapshot of the state machine for diagnostics.
type Status struct {
	State     State         `json:"state"`
	Transport string        `json:"transport,omitempty"`
	Attempt   int           `json:"attempt,omitempty"`
	NextRetry time.Duration `json:"nextRetry,omitempty"`
	Polling   bool          `json:"polling"`
}

// Label renders the status for display.
func (s Status) Label() string {
	switch s.State {
	case Connecting:
		return messages.StatusConnecting
	case Connected:
		return messages.Connected(s.Transport)
	case Disconnected:
		if s.Polling {
			return messages.StatusPolling
		}
		return messages.StatusDisconnected
	case Backoff:
		return messages.Backoff(s.NextRetry, s.Attempt)
	}
	return messages.StatusIdle
}

const (
	baseDelay = time.Second
	maxDelay  = 30 * time.Second
	maxShift  = 6
)

// Delay is the wait before reconnect attempt n: min(30s, 1s * 2^min(n, 6)).
func Delay(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	if n > maxShift {
		n = maxShift
	}
	d := baseDelay << uint(n)
	if d > maxDelay {
		return maxDelay
	}
	return d
}

// Scheduler creates retry timers. Tests substitute a manual clock.
type Scheduler interface {
	After(d time.Duration) Timer
}

// Timer is a stoppable one-shot timer.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// RealScheduler uses time.NewTimer.
type RealScheduler struct{}

func (RealScheduler) After(d time.Duration) Timer {
	return realTimer{time.NewTimer(d)}
}

type realTimer struct{ t *time.Timer }

func (r realTimer) C() <-chan time.Time { return r.t.C }
func (r realTimer) Stop() bool          { return r.t.Stop() }
