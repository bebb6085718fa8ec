// Package cli implements the ttguide command line on top of cobra.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/g960059/ttguide/internal/app"
	"github.com/g960059/ttguide/internal/config"
	"github.com/g960059/ttguide/internal/logging"
	"github.com/g960059/ttguide/internal/notify"
	"github.com/g960059/ttguide/internal/target"
	"github.com/g960059/ttguide/internal/template"
)

var Version = "dev"

type Runner struct {
	out    io.Writer
	errOut io.Writer
	in     *os.File
	fs     afero.Fs
	getenv func(string) string
	home   string
	// procRunner replaces the process runner behind tmux and tt-smi.
	procRunner target.Runner
	console    *notify.Console
}

func NewRunner(out, errOut io.Writer) *Runner {
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	return &Runner{
		out:    out,
		errOut: errOut,
		in:     os.Stdin,
		fs:     afero.NewOsFs(),
		getenv: os.Getenv,
	}
}

// usageError marks errors caused by how ttguide was invoked.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// globalFlags are bound to persistent flags on the root command.
type globalFlags struct {
	dryRun   bool
	logLevel string
	noColor  bool
}

// Run executes args and returns the process exit code: 0 on success, 1 on
// failure and 2 on invalid usage.
func (r *Runner) Run(ctx context.Context, args []string) int {
	configPath, rest, err := parseGlobalArgs(args)
	r.console = notify.NewConsole(r.errOut, slices.Contains(rest, "--no-color"))
	if err != nil {
		return r.handleUsageErr(err)
	}
	cfg, err := config.Load(r.fs, configPath)
	if err != nil {
		return r.handleErr(err)
	}
	registry, err := app.LoadRegistry(r.fs, cfg)
	if err != nil {
		return r.handleErr(err)
	}

	root := r.newRootCommand(cfg, registry)
	root.SetArgs(rest)
	root.SetOut(r.out)
	root.SetErr(r.errOut)
	if err := root.ExecuteContext(ctx); err != nil {
		var ue *usageError
		if errors.As(err, &ue) || isCobraUsageError(err) {
			return r.handleUsageErr(err)
		}
		return r.handleErr(err)
	}
	return 0
}

func (r *Runner) newRootCommand(cfg config.Config, registry *template.Registry) *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "ttguide",
		Short: "Run Tenstorrent setup steps in dedicated tmux terminals",
		Long: `ttguide types the commands of the Tenstorrent hardware walkthrough into
named tmux sessions. Long-running servers get their own terminal so the main
terminal stays usable.`,
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringP("config", "c", "", "config file (default "+cfg.ConfigPath+")")
	root.PersistentFlags().BoolVar(&g.dryRun, "dry-run", false, "print commands instead of typing them into tmux")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", cfg.LogLevel, "log level (DEBUG|INFO|WARN|ERROR)")
	root.PersistentFlags().BoolVar(&g.noColor, "no-color", false, "disable colored notifications")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	root.AddCommand(
		r.newRunCommand(cfg, g),
		r.newOpCommand(cfg, g, registry),
		r.newOpsCommand(cfg, registry),
		r.newVarsCommand(cfg),
		r.newChannelsCommand(cfg, g),
		r.newPrefsCommand(cfg, g),
		r.newHistoryCommand(cfg, g),
		r.newMonitorCommand(cfg, g),
		r.newServerCommand(cfg),
		r.newDoctorCommand(cfg, g),
	)
	return root
}

// openApp builds the application for one command invocation.
func (r *Runner) openApp(ctx context.Context, cfg config.Config, g *globalFlags) (*app.App, error) {
	log := logging.New(logging.Config{
		Level:  logging.ParseLevel(g.logLevel),
		Output: r.errOut,
		Pretty: true,
	})
	return app.Open(ctx, cfg, app.Options{
		FS:       r.fs,
		Runner:   r.procRunner,
		DryRun:   g.dryRun,
		Out:      r.out,
		Notifier: r.console,
		Log:      log,
		Home:     r.homeDir(),
		Getenv:   r.getenv,
		Prompt:   r.secretPrompt(),
	})
}

func parseGlobalArgs(args []string) (string, []string, error) {
	path := ""
	rest := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--config" || args[i] == "-c":
			if i+1 >= len(args) {
				return "", nil, fmt.Errorf("%s requires value", args[i])
			}
			path = args[i+1]
			i++
		case strings.HasPrefix(args[i], "--config="):
			path = strings.TrimPrefix(args[i], "--config=")
		case args[i] == "--":
			rest = append(rest, args[i:]...)
			return path, rest, nil
		default:
			rest = append(rest, args[i])
		}
	}
	return path, rest, nil
}

func isCobraUsageError(err error) bool {
	msg := err.Error()
	for _, prefix := range []string{"unknown command", "unknown flag", "unknown shorthand flag", "accepts ", "requires at least", "invalid argument"} {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}

func exactArgs(n int, usage string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usagef("usage: %s", usage)
		}
		return nil
	}
}

// handleErr reports a failed command as a single error notification.
func (r *Runner) handleErr(err error) int {
	r.console.Error(err.Error())
	return 1
}

func (r *Runner) handleUsageErr(err error) int {
	r.console.Error(err.Error() + " (run 'ttguide --help' for usage)")
	return 2
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
