// Package terminal owns the mapping from logical channels to live terminal
// sessions. Each channel is backed by at most one session; a session that the
// host no longer lists is replaced on the next use of its channel.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/g960059/ttguide/internal/db"
	"github.com/g960059/ttguide/internal/model"
)

// Session is a live terminal handle.
type Session interface {
	ID() string
	Show(ctx context.Context, preserveFocus bool) error
	SendText(ctx context.Context, text string, execute bool) error
}

// Host creates sessions and reports which ones are still alive.
type Host interface {
	CreateSession(ctx context.Context, name, cwd string) (Session, error)
	LiveSessions(ctx context.Context) ([]string, error)
	// Attach rebuilds a handle for a session created by an earlier process.
	Attach(id string) Session
}

// SessionInfo is a live session as reported by a host that tracks clients.
type SessionInfo struct {
	ID       string
	Attached bool
}

// SessionLister is implemented by hosts that also know whether a client is
// attached to each session. Inspect prefers it over LiveSessions.
type SessionLister interface {
	Sessions(ctx context.Context) ([]SessionInfo, error)
}

// Bindings persists channel bindings across processes. A missing binding is
// reported as db.ErrNotFound.
type Bindings interface {
	GetChannelBinding(ctx context.Context, channel model.ChannelID) (model.ChannelBinding, error)
	UpsertChannelBinding(ctx context.Context, b model.ChannelBinding) error
	DeleteChannelBinding(ctx context.Context, channel model.ChannelID) error
}

// TerminalUnavailableError reports that the host could not provide a session
// for a channel.
type TerminalUnavailableError struct {
	Channel model.ChannelID
	Err     error
}

func (e *TerminalUnavailableError) Error() string {
	return fmt.Sprintf("%s: channel %s: %v", model.ErrTerminalUnavailable, e.Channel, e.Err)
}

func (e *TerminalUnavailableError) Unwrap() error {
	return e.Err
}

type slot struct {
	session  Session
	binding  model.ChannelBinding
	hydrated bool
}

type Manager struct {
	host     Host
	bindings Bindings
	now      func() time.Time

	mu    sync.Mutex
	slots map[model.ChannelID]*slot
}

type Option func(*Manager)

// WithBindings makes channel bindings survive the process.
func WithBindings(b Bindings) Option {
	return func(m *Manager) {
		m.bindings = b
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func NewManager(host Host, opts ...Option) *Manager {
	m := &Manager{
		host:  host,
		now:   time.Now,
		slots: map[model.ChannelID]*slot{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetOrCreate returns the channel's session if the host still lists it and
// otherwise creates, binds and returns a fresh one.
func (m *Manager) GetOrCreate(ctx context.Context, channel model.ChannelID, displayName, cwd string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.slotLocked(ctx, channel)
	if err != nil {
		return nil, &TerminalUnavailableError{Channel: channel, Err: err}
	}
	if s.session != nil {
		live, err := m.host.LiveSessions(ctx)
		if err != nil {
			return nil, &TerminalUnavailableError{Channel: channel, Err: fmt.Errorf("list live sessions: %w", err)}
		}
		if slices.Contains(live, s.session.ID()) {
			return s.session, nil
		}
		s.session = nil
	}

	session, err := m.host.CreateSession(ctx, displayName, cwd)
	if err != nil {
		return nil, &TerminalUnavailableError{Channel: channel, Err: fmt.Errorf("create session: %w", err)}
	}
	binding := model.ChannelBinding{
		Channel:     channel,
		SessionID:   session.ID(),
		DisplayName: displayName,
		Cwd:         cwd,
		CreatedAt:   m.now().UTC(),
	}
	if m.bindings != nil {
		if err := m.bindings.UpsertChannelBinding(ctx, binding); err != nil {
			return nil, &TerminalUnavailableError{Channel: channel, Err: fmt.Errorf("save binding: %w", err)}
		}
	}
	s.session = session
	s.binding = binding
	return session, nil
}

// slotLocked returns the channel's slot, loading a persisted binding the
// first time the channel is touched.
func (m *Manager) slotLocked(ctx context.Context, channel model.ChannelID) (*slot, error) {
	s, ok := m.slots[channel]
	if !ok {
		s = &slot{}
		m.slots[channel] = s
	}
	if s.hydrated || m.bindings == nil {
		s.hydrated = true
		return s, nil
	}
	b, err := m.bindings.GetChannelBinding(ctx, channel)
	switch {
	case err == nil:
		s.session = m.host.Attach(b.SessionID)
		s.binding = b
	case errors.Is(err, db.ErrNotFound):
	default:
		return nil, fmt.Errorf("load binding: %w", err)
	}
	s.hydrated = true
	return s, nil
}

// Send brings the session forward and types text followed by Enter.
func (m *Manager) Send(ctx context.Context, session Session, text string, preserveFocus bool) error {
	if err := session.Show(ctx, preserveFocus); err != nil {
		return fmt.Errorf("show session %s: %w", session.ID(), err)
	}
	if err := session.SendText(ctx, text, true); err != nil {
		return fmt.Errorf("send to session %s: %w", session.ID(), err)
	}
	return nil
}

// Forget drops the channel's binding. The session itself is left running.
func (m *Manager) Forget(ctx context.Context, channel model.ChannelID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[channel] = &slot{hydrated: true}
	if m.bindings != nil {
		return m.bindings.DeleteChannelBinding(ctx, channel)
	}
	return nil
}

// Release clears in-memory state for every channel without touching
// persisted bindings. It is called at shutdown.
func (m *Manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots = map[model.ChannelID]*slot{}
}

// Status describes a channel as currently known to the manager.
type Status struct {
	Binding  model.ChannelBinding
	Bound    bool
	Live     bool
	Attached bool
}

// Inspect reports the binding of each channel and whether the host still
// lists its session. It never creates sessions.
func (m *Manager) Inspect(ctx context.Context, channels []model.ChannelID) ([]Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	live, err := m.sessionsLocked(ctx)
	if err != nil {
		return nil, fmt.Errorf("list live sessions: %w", err)
	}
	out := make([]Status, 0, len(channels))
	for _, ch := range channels {
		s, err := m.slotLocked(ctx, ch)
		if err != nil {
			return nil, err
		}
		st := Status{Binding: s.binding}
		st.Binding.Channel = ch
		if s.session != nil {
			st.Bound = true
			i := slices.IndexFunc(live, func(info SessionInfo) bool { return info.ID == s.session.ID() })
			if i >= 0 {
				st.Live = true
				st.Attached = live[i].Attached
			}
		}
		out = append(out, st)
	}
	return out, nil
}

func (m *Manager) sessionsLocked(ctx context.Context) ([]SessionInfo, error) {
	if lister, ok := m.host.(SessionLister); ok {
		return lister.Sessions(ctx)
	}
	ids, err := m.host.LiveSessions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]SessionInfo, 0, len(ids))
	for _, id := range ids {
		out = append(out, SessionInfo{ID: id})
	}
	return out, nil
}
