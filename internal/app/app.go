// Package app wires configuration, storage and the terminal host into the
// dispatcher used by the command line.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/g960059/ttguide/internal/config"
	"github.com/g960059/ttguide/internal/db"
	"github.com/g960059/ttguide/internal/dispatch"
	"github.com/g960059/ttguide/internal/model"
	"github.com/g960059/ttguide/internal/prefs"
	"github.com/g960059/ttguide/internal/probe"
	"github.com/g960059/ttguide/internal/security"
	"github.com/g960059/ttguide/internal/target"
	"github.com/g960059/ttguide/internal/template"
	"github.com/g960059/ttguide/internal/terminal"
	"github.com/g960059/ttguide/internal/vars"
)

const historyRetention = 90 * 24 * time.Hour

// secretEnv names the environment variable consulted for a secret that was
// not given on the command line.
var secretEnv = map[string]string{"token": "HF_TOKEN"}

type Options struct {
	FS afero.Fs
	// Runner replaces the process runner behind tmux and the monitor.
	Runner target.Runner
	// DryRun prints commands to Out instead of typing them into tmux.
	DryRun   bool
	Out      io.Writer
	Notifier dispatch.Notifier
	Log      zerolog.Logger
	Home     string
	Getenv   func(string) string
	// Prompt asks the user for a secret value. Nil disables prompting.
	Prompt func(name string) (string, error)
}

type App struct {
	Config     config.Config
	Log        zerolog.Logger
	Store      *db.Store
	Registry   *template.Registry
	Manager    *terminal.Manager
	Dispatcher *dispatch.Dispatcher
	Prefs      *prefs.Store
	Exec       *target.Executor

	opts  Options
	newID func() string
	now   func() time.Time
}

// Open loads user templates, opens the state database and builds the
// dispatcher. The caller must Close the app.
func Open(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	if opts.FS == nil {
		opts.FS = afero.NewOsFs()
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}
	if opts.Home == "" {
		if home, err := os.UserHomeDir(); err == nil {
			opts.Home = home
		}
	}

	registry, err := LoadRegistry(opts.FS, cfg)
	if err != nil {
		return nil, err
	}

	store, err := db.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := db.ApplyMigrations(ctx, store.DB()); err != nil {
		_ = store.Close()
		return nil, err
	}

	exec := target.NewExecutor(cfg)
	if opts.Runner != nil {
		exec = target.NewExecutorWithRunner(cfg, opts.Runner)
	}

	var manager *terminal.Manager
	if opts.DryRun {
		manager = terminal.NewManager(terminal.NewEchoHost(opts.Out))
	} else {
		manager = terminal.NewManager(terminal.NewTmuxHost(exec, cfg.SessionPrefix), terminal.WithBindings(store))
	}

	a := &App{
		Config:   cfg,
		Log:      opts.Log,
		Store:    store,
		Registry: registry,
		Manager:  manager,
		Prefs:    prefs.New(store),
		Exec:     exec,
		opts:     opts,
		newID:    uuid.NewString,
		now:      time.Now,
	}
	a.Dispatcher = dispatch.New(registry, manager, opts.Notifier, a.placement)
	return a, nil
}

// LoadRegistry returns the builtin operations overlaid with the user template
// file, if one is configured.
func LoadRegistry(fs afero.Fs, cfg config.Config) (*template.Registry, error) {
	registry := template.DefaultRegistry()
	if cfg.TemplateFile == "" {
		return registry, nil
	}
	extra, err := template.LoadFile(fs, cfg.TemplateFile)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return registry, nil
	}
	registry, err = registry.Overlay(extra...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.TemplateFile, err)
	}
	if err := registry.Validate(cfg.ChannelIDs()); err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.TemplateFile, err)
	}
	return registry, nil
}

func (a *App) Close() error {
	return a.Store.Close()
}

func (a *App) placement(channel model.ChannelID) (string, string) {
	ch := a.Config.Channel(channel)
	return ch.DisplayName, ch.Cwd
}

// Vars builds the resolution context with overrides taking precedence over
// the env file, config and defaults.
func (a *App) Vars(overrides map[string]string) (template.Vars, error) {
	return vars.Build(a.opts.FS, vars.Sources{
		Home:      a.opts.Home,
		Config:    a.Config.Variables,
		EnvFile:   a.Config.EnvFile,
		Overrides: overrides,
	})
}

// Dispatch runs an operation and records it in history. Secrets absent from
// ctxVars are taken from the environment or prompted for; ctxVars itself is
// never modified.
func (a *App) Dispatch(ctx context.Context, name string, ctxVars template.Vars, opts ...dispatch.Option) (dispatch.Result, error) {
	tmpl, err := a.Dispatcher.Describe(name)
	if err != nil {
		return dispatch.Result{}, err
	}
	ctxVars = maps.Clone(ctxVars)
	if ctxVars == nil {
		ctxVars = template.Vars{}
	}
	if err := a.fillSecrets(tmpl, ctxVars); err != nil {
		return dispatch.Result{}, err
	}

	log := a.Log.With().Str("operation", name).Logger()
	res, err := a.Dispatcher.Run(ctx, name, ctxVars, opts...)
	if err != nil {
		log.Debug().Err(err).Msg("dispatch failed")
		return res, err
	}
	res.Redacted = security.RedactCommand(res.Redacted)
	log.Info().
		Str("channel", string(res.Channel)).
		Str("session_id", res.SessionID).
		Str("command", res.Redacted).
		Msg("dispatched")

	if a.opts.DryRun {
		return res, nil
	}
	if err := a.record(ctx, res); err != nil {
		// The command already ran; losing the history row is not fatal.
		log.Debug().Err(err).Msg("record dispatch history")
		if a.opts.Notifier != nil {
			a.opts.Notifier.Warning(fmt.Sprintf("%s was sent but not recorded in history: %v", res.Operation, err))
		}
	}
	return res, nil
}

func (a *App) fillSecrets(tmpl template.Template, ctxVars template.Vars) error {
	for _, name := range tmpl.Secrets {
		if _, ok := ctxVars[name]; ok {
			continue
		}
		if env, ok := secretEnv[name]; ok {
			if v := a.opts.Getenv(env); v != "" {
				ctxVars[name] = v
				continue
			}
		}
		if a.opts.Prompt == nil {
			continue
		}
		v, err := a.opts.Prompt(name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		ctxVars[name] = v
	}
	return nil
}

func (a *App) record(ctx context.Context, res dispatch.Result) error {
	now := a.now().UTC()
	if err := a.Store.InsertDispatch(ctx, model.DispatchRecord{
		DispatchID:   a.newID(),
		Operation:    res.Operation,
		Channel:      res.Channel,
		SessionID:    res.SessionID,
		Command:      res.Redacted,
		DispatchedAt: now,
	}); err != nil {
		return err
	}
	_, err := a.Store.PruneDispatches(ctx, now.Add(-historyRetention))
	return err
}

func (a *App) History(ctx context.Context, limit int) ([]model.DispatchRecord, error) {
	return a.Store.ListDispatches(ctx, limit)
}

// Channels reports every configured channel plus any channel a template
// routes to.
func (a *App) Channels(ctx context.Context) ([]terminal.Status, error) {
	return a.Manager.Inspect(ctx, a.channelIDs())
}

func (a *App) Forget(ctx context.Context, channel model.ChannelID) error {
	if !a.knownChannel(channel) {
		return fmt.Errorf("%s: unknown channel %q", model.ErrInvalidArgument, channel)
	}
	return a.Manager.Forget(ctx, channel)
}

func (a *App) channelIDs() []model.ChannelID {
	ids := a.Config.ChannelIDs()
	seen := make(map[model.ChannelID]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	for _, t := range a.Registry.List() {
		if !seen[t.Channel] {
			seen[t.Channel] = true
			ids = append(ids, t.Channel)
		}
	}
	return ids
}

func (a *App) knownChannel(channel model.ChannelID) bool {
	for _, id := range a.channelIDs() {
		if id == channel {
			return true
		}
	}
	return false
}

// ServerEndpoint resolves where the given server listens using ctx for the
// port.
func (a *App) ServerEndpoint(kind probe.Kind, ctxVars template.Vars) (probe.Endpoint, error) {
	key := "apiPort"
	if kind == probe.KindVLLM {
		key = "vllmPort"
	}
	port, ok := ctxVars[key]
	if !ok || port == "" {
		return probe.Endpoint{}, &template.MissingVariableError{Variable: key}
	}
	return probe.Endpoint{Kind: kind, Host: a.Config.ServerHost, Port: port}, nil
}

// ProbeFor returns the server an operation talks to, if any.
func ProbeFor(operation string) (probe.Kind, bool) {
	switch operation {
	case "test-api-server":
		return probe.KindAPI, true
	case "test-vllm-server":
		return probe.KindVLLM, true
	}
	return "", false
}

// IsSecretUnset reports whether err is a missing secret variable, which the
// CLI explains with a hint about the environment variable.
func IsSecretUnset(err error, tmpl template.Template) (string, bool) {
	var missing *template.MissingVariableError
	if !errors.As(err, &missing) {
		return "", false
	}
	for _, s := range tmpl.Secrets {
		if s == missing.Variable {
			return secretEnv[s], true
		}
	}
	return "", false
}
