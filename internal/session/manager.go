// Package session owns the per-tab workflow instances of each device user.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/growthdesk/internal/classifier"
	"github.com/ashureev/growthdesk/internal/generation"
	"github.com/ashureev/growthdesk/internal/profile"
	"github.com/ashureev/growthdesk/internal/workflow"
)

// Instance is one user's tab-session worth of chat and workflow state.
type Instance struct {
	ID        string
	UserID    string
	SessionID string
	Chat      *workflow.Chat
	Workflow  *workflow.Workflow
	CreatedAt time.Time

	mu       sync.Mutex
	lastUsed time.Time
}

// LastUsed returns the time of the most recent lookup.
func (i *Instance) LastUsed() time.Time {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lastUsed
}

func (i *Instance) touch(now time.Time) {
	i.mu.Lock()
	i.lastUsed = now
	i.mu.Unlock()
}

// Busy reports whether a generation call is in flight on either path.
func (i *Instance) Busy() bool {
	return i.Chat.Busy() || i.Workflow.Snapshot().Busy
}

// Hooks are called as instances are created and dropped. OnCreate runs
// before the instance is visible to other callers and must not call back
// into the Manager. OnClose runs with no manager lock held.
type Hooks struct {
	OnCreate func(*Instance)
	OnClose  func(*Instance)
}

// Config configures a Manager.
type Config struct {
	Connector  generation.Connector
	Classifier *classifier.Classifier
	// Profile returns the profile source for a user. Nil uses defaults.
	Profile func(userID string) profile.Source
	Hooks   Hooks
	Logger  *slog.Logger
}

// Manager maps (userID, sessionID) to instances. Instances are created
// lazily and never share mutable state.
type Manager struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	active map[string]map[string]*Instance
}

// NewManager creates a new session manager.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Classifier == nil {
		cfg.Classifier = classifier.New(nil)
	}
	return &Manager{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		active: make(map[string]map[string]*Instance),
	}
}

// Get returns the instance for a user and session, creating it if needed.
func (m *Manager) Get(userID, sessionID string) *Instance {
	now := m.now()

	m.mu.RLock()
	inst := m.active[userID][sessionID]
	m.mu.RUnlock()
	if inst != nil {
		inst.touch(now)
		return inst
	}

	m.mu.Lock()
	if inst = m.active[userID][sessionID]; inst != nil {
		m.mu.Unlock()
		inst.touch(now)
		return inst
	}
	inst = m.newInstance(userID, sessionID, now)
	if m.cfg.Hooks.OnCreate != nil {
		m.cfg.Hooks.OnCreate(inst)
	}
	if _, exists := m.active[userID]; !exists {
		m.active[userID] = make(map[string]*Instance)
	}
	m.active[userID][sessionID] = inst
	m.mu.Unlock()

	m.logger.Info("Session instance created", "user_id", userID, "session_id", sessionID, "instance", inst.ID)
	return inst
}

// Lookup returns an existing instance without creating one.
func (m *Manager) Lookup(userID, sessionID string) (*Instance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.active[userID][sessionID]
	return inst, ok
}

// Close drops the instance for a user and session.
func (m *Manager) Close(userID, sessionID string) {
	m.mu.Lock()
	sessions, ok := m.active[userID]
	if !ok {
		m.mu.Unlock()
		return
	}
	inst, exists := sessions[sessionID]
	if exists {
		delete(sessions, sessionID)
		if len(sessions) == 0 {
			delete(m.active, userID)
		}
	}
	m.mu.Unlock()

	if exists {
		m.closed(inst, "closed")
	}
}

// Reset replaces the instance for a user and session with a fresh one.
func (m *Manager) Reset(userID, sessionID string) *Instance {
	m.Close(userID, sessionID)
	return m.Get(userID, sessionID)
}

// CloseUser drops every instance belonging to a user.
func (m *Manager) CloseUser(userID string) {
	m.mu.Lock()
	sessions := m.active[userID]
	delete(m.active, userID)
	m.mu.Unlock()

	for _, inst := range sessions {
		m.closed(inst, "user closed")
	}
}

// Sweep drops instances idle for longer than ttl. Busy instances are kept.
func (m *Manager) Sweep(ttl time.Duration) []*Instance {
	threshold := m.now().Add(-ttl)

	var evicted []*Instance
	m.mu.Lock()
	for userID, sessions := range m.active {
		for sessionID, inst := range sessions {
			if inst.LastUsed().After(threshold) || inst.Busy() {
				continue
			}
			delete(sessions, sessionID)
			evicted = append(evicted, inst)
		}
		if len(sessions) == 0 {
			delete(m.active, userID)
		}
	}
	m.mu.Unlock()

	for _, inst := range evicted {
		m.closed(inst, "idle")
	}
	return evicted
}

// Len returns the number of live instances.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, sessions := range m.active {
		n += len(sessions)
	}
	return n
}

func (m *Manager) newInstance(userID, sessionID string, now time.Time) *Instance {
	id := uuid.NewString()
	var src profile.Source
	if m.cfg.Profile != nil {
		src = m.cfg.Profile(userID)
	}
	logger := m.logger.With("user_id", userID, "session_id", sessionID)
	return &Instance{
		ID:        id,
		UserID:    userID,
		SessionID: sessionID,
		Chat:      workflow.NewChat(id, m.cfg.Connector, m.cfg.Classifier, src, logger),
		Workflow:  workflow.New(id, m.cfg.Connector, logger),
		CreatedAt: now,
		lastUsed:  now,
	}
}

func (m *Manager) closed(inst *Instance, reason string) {
	m.logger.Info("Session instance dropped",
		"user_id", inst.UserID,
		"session_id", inst.SessionID,
		"instance", inst.ID,
		"reason", reason)
	if m.cfg.Hooks.OnClose != nil {
		m.cfg.Hooks.OnClose(inst)
	}
}
