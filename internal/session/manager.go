package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrUnknownSession = errors.New("unknown session")
	ErrExpired        = errors.New("session expired")
)

// Manager keeps one Timer per admin session id. Expired ids are remembered
// for one Timeout so a returning client is told its session expired; after
// that they are forgotten and look unknown.
type Manager struct {
	cfg      Config
	onExpire func(id string)
	now      func() time.Time

	mu      sync.Mutex
	timers  map[string]*Timer
	expired map[string]time.Time
}

// NewManager returns a Manager whose timers call onExpire with their session
// id. onExpire may be nil.
func NewManager(cfg Config, onExpire func(id string)) *Manager {
	return &Manager{
		cfg:      cfg.withDefaults(),
		onExpire: onExpire,
		now:      time.Now,
		timers:   make(map[string]*Timer),
		expired:  make(map[string]time.Time),
	}
}

func (m *Manager) Config() Config { return m.cfg }

// Open starts a fresh timer for id, replacing any previous one.
func (m *Manager) Open(id string) {
	var t *Timer
	t = New(m.cfg, func() { m.expire(id, t) })

	m.mu.Lock()
	old := m.timers[id]
	m.timers[id] = t
	delete(m.expired, id)
	m.pruneLocked()
	t.Start()
	m.mu.Unlock()

	if old != nil {
		old.Stop()
	}
}

func (m *Manager) expire(id string, t *Timer) {
	m.mu.Lock()
	if m.timers[id] != t {
		m.mu.Unlock()
		return
	}
	delete(m.timers, id)
	m.pruneLocked()
	m.expired[id] = m.now()
	m.mu.Unlock()

	slog.Info("Admin session expired", "session", id)
	if m.onExpire != nil {
		m.onExpire(id)
	}
}

func (m *Manager) pruneLocked() {
	cutoff := m.now().Add(-m.cfg.Timeout)
	for id, at := range m.expired {
		if at.Before(cutoff) {
			delete(m.expired, id)
		}
	}
}

func (m *Manager) lookup(id string) (*Timer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked()
	if _, ok := m.expired[id]; ok {
		return nil, ErrExpired
	}
	t, ok := m.timers[id]
	if !ok {
		return nil, ErrUnknownSession
	}
	return t, nil
}

// Touch reports an interaction event for id.
func (m *Manager) Touch(id string, e Event) error {
	t, err := m.lookup(id)
	if err != nil {
		return err
	}
	if !t.Activity(e) && t.State() == StateExpired {
		return ErrExpired
	}
	return nil
}

// Extend is the explicit "extend session" action.
func (m *Manager) Extend(id string) error {
	t, err := m.lookup(id)
	if err != nil {
		return err
	}
	if !t.ResetSession() {
		return ErrExpired
	}
	return nil
}

func (m *Manager) Status(id string) (Status, error) {
	t, err := m.lookup(id)
	if err != nil {
		if errors.Is(err, ErrExpired) {
			return Status{State: StateExpired}, err
		}
		return Status{}, err
	}
	return t.Status(), nil
}

// Expired reports whether id's timer ran out and has not been reopened or closed since.
func (m *Manager) Expired(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.expired[id]
	return ok
}

// Close stops id's timer and forgets it.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	t := m.timers[id]
	delete(m.timers, id)
	delete(m.expired, id)
	m.mu.Unlock()

	if t != nil {
		t.Stop()
	}
}

// Shutdown stops every timer.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	timers := m.timers
	m.timers = make(map[string]*Timer)
	m.mu.Unlock()

	for _, t := range timers {
		t.Stop()
	}
}
