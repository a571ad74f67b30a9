// Package session tracks admin idleness: a rolling deadline that is pushed
// back by user interaction, raises a warning shortly before it runs out and
// invokes an expiry callback exactly once.
package session

import (
	"fmt"
	"sync"
	"time"
)

const (
	DefaultTimeout      = 30 * time.Minute
	DefaultWarning      = 5 * time.Minute
	DefaultPollInterval = time.Second
)

// Event is a user interaction reported by the client.
type Event string

const (
	EventPointerDown Event = "pointerdown"
	EventKeyDown     Event = "keydown"
	EventScroll      Event = "scroll"
	EventTouchStart  Event = "touchstart"
)

// Qualifies reports whether e resets the idle deadline.
func (e Event) Qualifies() bool {
	switch e {
	case EventPointerDown, EventKeyDown, EventScroll, EventTouchStart:
		return true
	}
	return false
}

type State int

const (
	StateActive State = iota
	StateWarning
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateWarning:
		return "warning"
	case StateExpired:
		return "expired"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type Config struct {
	Timeout      time.Duration
	Warning      time.Duration
	PollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Warning <= 0 {
		c.Warning = DefaultWarning
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	return c
}

// Status is a point-in-time view of a Timer.
type Status struct {
	Remaining   time.Duration
	ShowWarning bool
	State       State
}

// Timer is one idle countdown. It owns exactly one ticker goroutine and one
// time.AfterFunc, both registered by Start and released by Stop.
type Timer struct {
	cfg      Config
	onExpire func()

	mu           sync.Mutex
	started      bool
	stopped      bool
	lastActivity time.Time
	remaining    time.Duration
	state        State
	deadline     *time.Timer

	quit     chan struct{}
	quitOnce sync.Once
	fireOnce sync.Once
	wg       sync.WaitGroup
}

// New returns an unstarted Timer. onExpire may be nil.
func New(cfg Config, onExpire func()) *Timer {
	cfg = cfg.withDefaults()
	return &Timer{
		cfg:       cfg,
		onExpire:  onExpire,
		remaining: cfg.Timeout,
		quit:      make(chan struct{}),
	}
}

// Start sets the last activity to now and begins polling. Starting twice, or
// after Stop, does nothing.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started || t.stopped {
		return
	}
	t.started = true
	t.lastActivity = time.Now()
	t.remaining = t.cfg.Timeout
	t.deadline = time.AfterFunc(t.cfg.Timeout, t.check)

	t.wg.Add(1)
	go func() {
		expired := t.run()
		t.wg.Done()
		if expired {
			t.fire()
		}
	}()
}

func (t *Timer) run() bool {
	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.quit:
			return false
		case <-ticker.C:
			if t.poll() {
				return true
			}
		}
	}
}

// check runs on the one-shot deadline.
func (t *Timer) check() {
	if t.poll() {
		t.fire()
	}
}

// poll recomputes remaining time and state. It returns true only for the
// caller that moved the timer into StateExpired.
func (t *Timer) poll() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.state == StateExpired {
		return false
	}

	t.remaining = t.cfg.Timeout - time.Since(t.lastActivity)
	switch {
	case t.remaining <= 0:
		t.remaining = 0
		t.state = StateExpired
		t.deadline.Stop()
		t.closeQuit()
		return true
	case t.remaining <= t.cfg.Warning:
		t.state = StateWarning
	default:
		t.state = StateActive
	}
	return false
}

// fire runs onExpire outside the lock so the callback may call back into the Timer.
func (t *Timer) fire() {
	t.fireOnce.Do(func() {
		if t.onExpire != nil {
			t.onExpire()
		}
	})
}

func (t *Timer) closeQuit() {
	t.quitOnce.Do(func() { close(t.quit) })
}

// Activity resets the deadline for qualifying events. It reports whether the
// event was accepted; events are ignored before Start, after Stop and after expiry.
func (t *Timer) Activity(e Event) bool {
	if !e.Qualifies() {
		return false
	}
	return t.reset()
}

// ResetSession extends the session as if the user had interacted.
func (t *Timer) ResetSession() bool {
	return t.reset()
}

func (t *Timer) reset() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started || t.stopped || t.state == StateExpired {
		return false
	}
	t.lastActivity = time.Now()
	t.remaining = t.cfg.Timeout
	t.state = StateActive
	t.deadline.Reset(t.cfg.Timeout)
	return true
}

// Stop releases the ticker goroutine and the deadline timer and waits for the
// goroutine to exit. It is safe to call more than once, and from onExpire.
func (t *Timer) Stop() {
	t.mu.Lock()
	t.stopped = true
	if t.deadline != nil {
		t.deadline.Stop()
	}
	t.closeQuit()
	t.mu.Unlock()

	t.wg.Wait()
}

func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

func (t *Timer) ShowWarning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == StateWarning
}

func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Timer) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Status{Remaining: t.remaining, ShowWarning: t.state == StateWarning, State: t.state}
}

// FormatTime renders d as m:ss. Negative durations render as 0:00.
func FormatTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
