package terminal

import (
	"context"
	"fmt"
)

type fakeSession struct {
	id      string
	shows   []bool
	sent    []string
	sendErr error
}

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) Show(_ context.Context, preserveFocus bool) error {
	s.shows = append(s.shows, preserveFocus)
	return nil
}

func (s *fakeSession) SendText(_ context.Context, text string, execute bool) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	if execute {
		text += "\n"
	}
	s.sent = append(s.sent, text)
	return nil
}

type fakeHost struct {
	createCalls []string
	listCalls   int
	live        map[string]bool
	sessions    map[string]*fakeSession
	createErr   error
	listErr     error
}

func newFakeHost() *fakeHost {
	return &fakeHost{live: map[string]bool{}, sessions: map[string]*fakeSession{}}
}

func (h *fakeHost) CreateSession(_ context.Context, name, _ string) (Session, error) {
	h.createCalls = append(h.createCalls, name)
	if h.createErr != nil {
		return nil, h.createErr
	}
	id := fmt.Sprintf("%s-%d", name, len(h.createCalls))
	s := &fakeSession{id: id}
	h.sessions[id] = s
	h.live[id] = true
	return s, nil
}

func (h *fakeHost) LiveSessions(context.Context) ([]string, error) {
	h.listCalls++
	if h.listErr != nil {
		return nil, h.listErr
	}
	out := make([]string, 0, len(h.live))
	for id, ok := range h.live {
		if ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (h *fakeHost) Attach(id string) Session {
	if s, ok := h.sessions[id]; ok {
		return s
	}
	s := &fakeSession{id: id}
	h.sessions[id] = s
	return s
}

// kill simulates the user closing a terminal.
func (h *fakeHost) kill(id string) {
	delete(h.live, id)
}
