package target

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/g960059/ttguide/internal/config"
	"github.com/g960059/ttguide/internal/model"
)

type RunResult struct {
	Output   string
	Duration time.Duration
}

type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type OSRunner struct{}

func (OSRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// CommandError carries the combined output of a command that exited non-zero
// so callers can classify well-known failures.
type CommandError struct {
	Command []string
	Output  string
	Err     error
}

func (e *CommandError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("%s: %s: %v", model.ErrTargetUnreachable, e.Command[0], e.Err)
	}
	return fmt.Sprintf("%s: %s: %v: %s", model.ErrTargetUnreachable, e.Command[0], e.Err, out)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

type Executor struct {
	cfg    config.Config
	target model.Target
	runner Runner
}

func NewExecutor(cfg config.Config) *Executor {
	return &Executor{
		cfg:    cfg,
		target: cfg.Target,
		runner: OSRunner{},
	}
}

func NewExecutorWithRunner(cfg config.Config, runner Runner) *Executor {
	e := NewExecutor(cfg)
	e.runner = runner
	return e
}

func (e *Executor) Target() model.Target {
	return e.target
}

// Run executes command once on the configured target. Failed commands are
// never retried.
func (e *Executor) Run(ctx context.Context, command []string) (RunResult, error) {
	if len(command) == 0 {
		return RunResult{}, fmt.Errorf("empty command")
	}
	start := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, e.cfg.CommandTimeout)
	defer cancel()

	var (
		out []byte
		err error
	)
	switch e.target.Kind {
	case model.TargetKindLocal, "":
		out, err = e.runner.Run(runCtx, command[0], command[1:]...)
	case model.TargetKindSSH:
		args, argErr := e.buildSSHArgs(e.target.ConnectionRef, command)
		if argErr != nil {
			return RunResult{}, argErr
		}
		out, err = e.runner.Run(runCtx, "ssh", args...)
	default:
		return RunResult{}, fmt.Errorf("unsupported target kind: %s", e.target.Kind)
	}
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s", context.DeadlineExceeded, e.cfg.CommandTimeout)
		}
		return RunResult{}, &CommandError{Command: command, Output: string(out), Err: err}
	}
	return RunResult{Output: string(out), Duration: time.Since(start)}, nil
}

// Tmux runs a tmux subcommand with the configured tmux binary.
func (e *Executor) Tmux(ctx context.Context, args ...string) (RunResult, error) {
	return e.Run(ctx, BuildTmuxCommand(e.cfg.TmuxBinary, args...))
}

func (e *Executor) buildSSHArgs(connectionRef string, command []string) ([]string, error) {
	if strings.TrimSpace(connectionRef) == "" {
		return nil, fmt.Errorf("ssh target connection_ref is required")
	}
	if strings.HasPrefix(strings.TrimSpace(connectionRef), "-") {
		return nil, fmt.Errorf("invalid ssh target connection_ref")
	}
	args := []string{
		"-o", "BatchMode=yes",
		"-o", fmt.Sprintf("ConnectTimeout=%d", int(e.cfg.ConnectTimeout.Seconds())),
		"-o", "ControlMaster=auto",
		"-o", "ControlPersist=60",
		connectionRef,
	}
	args = append(args, command...)
	return args, nil
}

func BuildTmuxCommand(binary string, args ...string) []string {
	if binary == "" {
		binary = "tmux"
	}
	cmd := make([]string, 0, len(args)+1)
	cmd = append(cmd, binary)
	cmd = append(cmd, args...)
	return cmd
}
