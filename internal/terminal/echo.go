package terminal

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// EchoHost prints what would be typed instead of driving a terminal. Every
// session it creates stays alive for the life of the host.
type EchoHost struct {
	out io.Writer

	mu    sync.Mutex
	names map[string]string
	order []string
}

func NewEchoHost(out io.Writer) *EchoHost {
	return &EchoHost{out: out, names: map[string]string{}}
}

func (h *EchoHost) CreateSession(_ context.Context, name, cwd string) (Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := fmt.Sprintf("dry-run-%d", len(h.order)+1)
	h.names[id] = name
	h.order = append(h.order, id)
	_, _ = fmt.Fprintf(h.out, "# new terminal %q in %s\n", name, cwd)
	return &echoSession{host: h, id: id}, nil
}

func (h *EchoHost) LiveSessions(context.Context) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.order...), nil
}

func (h *EchoHost) Attach(id string) Session {
	return &echoSession{host: h, id: id}
}

type echoSession struct {
	host *EchoHost
	id   string
}

func (s *echoSession) ID() string {
	return s.id
}

func (s *echoSession) Show(context.Context, bool) error {
	return nil
}

func (s *echoSession) SendText(_ context.Context, text string, execute bool) error {
	s.host.mu.Lock()
	name := s.host.names[s.id]
	s.host.mu.Unlock()
	suffix := ""
	if !execute {
		suffix = " (not executed)"
	}
	_, err := fmt.Fprintf(s.host.out, "[%s] $ %s%s\n", name, text, suffix)
	return err
}
