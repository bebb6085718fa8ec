package terminal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/g960059/ttguide/internal/model"
	"github.com/g960059/ttguide/internal/target"
	"github.com/g960059/ttguide/internal/tmuxfmt"
)

var unsafeNameChars = regexp.MustCompile(`[^a-z0-9-]+`)

// TmuxHost backs each session with a detached tmux session on the
// executor's target.
type TmuxHost struct {
	exec   *target.Executor
	prefix string
	getenv func(string) string
	newID  func() string
}

func NewTmuxHost(exec *target.Executor, prefix string) *TmuxHost {
	if strings.TrimSpace(prefix) == "" {
		prefix = "ttguide"
	}
	return &TmuxHost{
		exec:   exec,
		prefix: prefix,
		getenv: os.Getenv,
		newID: func() string {
			return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		},
	}
}

func (h *TmuxHost) sessionName(displayName string) string {
	slug := strings.Trim(unsafeNameChars.ReplaceAllString(strings.ToLower(displayName), "-"), "-")
	if slug == "" {
		return h.prefix + "-" + h.newID()
	}
	return h.prefix + "-" + slug + "-" + h.newID()
}

func (h *TmuxHost) CreateSession(ctx context.Context, name, cwd string) (Session, error) {
	id := h.sessionName(name)
	args := []string{"new-session", "-d", "-s", id}
	if strings.TrimSpace(name) != "" {
		args = append(args, "-n", name)
	}
	if strings.TrimSpace(cwd) != "" {
		args = append(args, "-c", cwd)
	}
	if _, err := h.exec.Tmux(ctx, args...); err != nil {
		return nil, err
	}
	return h.Attach(id), nil
}

// Sessions lists the sessions owned by this host's prefix with their
// client attachment. A tmux server that is not running has no sessions.
func (h *TmuxHost) Sessions(ctx context.Context) ([]SessionInfo, error) {
	res, err := h.exec.Tmux(ctx, "list-sessions", "-F", tmuxfmt.Join("#{session_name}", "#{session_attached}"))
	if err != nil {
		if isNoServer(err) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]SessionInfo, 0)
	for _, line := range strings.Split(res.Output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := tmuxfmt.SplitLine(line, 2)
		name := strings.TrimSpace(parts[0])
		if !strings.HasPrefix(name, h.prefix+"-") {
			continue
		}
		info := SessionInfo{ID: name}
		if len(parts) > 1 {
			// session_attached is the number of attached clients.
			n := strings.TrimSpace(parts[1])
			info.Attached = n != "" && n != "0"
		}
		out = append(out, info)
	}
	return out, nil
}

// LiveSessions lists session names owned by this host's prefix.
func (h *TmuxHost) LiveSessions(ctx context.Context) ([]string, error) {
	infos, err := h.Sessions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(infos))
	for _, info := range infos {
		out = append(out, info.ID)
	}
	return out, nil
}

func (h *TmuxHost) Attach(id string) Session {
	return &tmuxSession{host: h, id: id}
}

// insideClient reports whether a local tmux client can be switched.
func (h *TmuxHost) insideClient() bool {
	kind := h.exec.Target().Kind
	return (kind == model.TargetKindLocal || kind == "") && h.getenv("TMUX") != ""
}

func isNoServer(err error) bool {
	var cmdErr *target.CommandError
	if !errors.As(err, &cmdErr) {
		return false
	}
	out := strings.ToLower(cmdErr.Output)
	return strings.Contains(out, "no server running") ||
		strings.Contains(out, "error connecting to") ||
		strings.Contains(out, "no sessions")
}

type tmuxSession struct {
	host *TmuxHost
	id   string
}

func (s *tmuxSession) ID() string {
	return s.id
}

func (s *tmuxSession) paneTarget() string {
	return "=" + s.id + ":"
}

func (s *tmuxSession) Show(ctx context.Context, preserveFocus bool) error {
	if preserveFocus || !s.host.insideClient() {
		return nil
	}
	if _, err := s.host.exec.Tmux(ctx, "switch-client", "-t", "="+s.id); err != nil {
		return fmt.Errorf("switch client: %w", err)
	}
	return nil
}

func (s *tmuxSession) SendText(ctx context.Context, text string, execute bool) error {
	if text != "" {
		if _, err := s.host.exec.Tmux(ctx, "send-keys", "-t", s.paneTarget(), "-l", text); err != nil {
			return err
		}
	}
	if execute {
		if _, err := s.host.exec.Tmux(ctx, "send-keys", "-t", s.paneTarget(), "Enter"); err != nil {
			return err
		}
	}
	return nil
}
