// Package dispatch runs named operations: it resolves the operation's command
// and types it into the terminal of the operation's channel.
package dispatch

import (
	"context"
	"fmt"

	"github.com/g960059/ttguide/internal/model"
	"github.com/g960059/ttguide/internal/template"
	"github.com/g960059/ttguide/internal/terminal"
)

// Channels hands out sessions per channel.
type Channels interface {
	GetOrCreate(ctx context.Context, channel model.ChannelID, displayName, cwd string) (terminal.Session, error)
	Send(ctx context.Context, session terminal.Session, text string, preserveFocus bool) error
}

// Notifier shows transient messages to the user.
type Notifier interface {
	Info(message string)
	Warning(message string)
	Error(message string)
}

// ChannelPlacement resolves the display name and working directory of a
// channel.
type ChannelPlacement func(channel model.ChannelID) (displayName, cwd string)

type options struct {
	notify        bool
	focusTerminal bool
}

type Option func(*options)

// WithNotify shows a confirmation after the command is sent.
func WithNotify() Option {
	return func(o *options) { o.notify = true }
}

// WithoutFocus sends the command without bringing the terminal forward.
func WithoutFocus() Option {
	return func(o *options) { o.focusTerminal = false }
}

type Result struct {
	Operation string
	Channel   model.ChannelID
	SessionID string
	// Command is the text sent to the terminal. Redacted has secret values
	// masked and is the only form that should be logged or stored.
	Command  string
	Redacted string
}

type Dispatcher struct {
	registry  *template.Registry
	channels  Channels
	notifier  Notifier
	placement ChannelPlacement
}

func New(registry *template.Registry, channels Channels, notifier Notifier, placement ChannelPlacement) *Dispatcher {
	if placement == nil {
		placement = func(ch model.ChannelID) (string, string) { return string(ch), "" }
	}
	return &Dispatcher{
		registry:  registry,
		channels:  channels,
		notifier:  notifier,
		placement: placement,
	}
}

// Run dispatches the named operation. Lookup and resolution errors are
// returned before any terminal is touched.
func (d *Dispatcher) Run(ctx context.Context, name string, vars template.Vars, opts ...Option) (Result, error) {
	o := options{focusTerminal: true}
	for _, opt := range opts {
		opt(&o)
	}

	tmpl, err := d.registry.Get(name)
	if err != nil {
		return Result{}, err
	}
	command, err := tmpl.Resolve(vars)
	if err != nil {
		return Result{}, err
	}
	redacted, err := tmpl.Redacted(vars)
	if err != nil {
		return Result{}, err
	}

	displayName, cwd := d.placement(tmpl.Channel)
	session, err := d.channels.GetOrCreate(ctx, tmpl.Channel, displayName, cwd)
	if err != nil {
		return Result{}, err
	}
	if err := d.channels.Send(ctx, session, command, !o.focusTerminal); err != nil {
		return Result{}, &terminal.TerminalUnavailableError{Channel: tmpl.Channel, Err: err}
	}

	if o.notify && d.notifier != nil {
		d.notifier.Info(fmt.Sprintf("%s sent to %s terminal", tmpl.Name, displayName))
	}
	return Result{
		Operation: tmpl.Name,
		Channel:   tmpl.Channel,
		SessionID: session.ID(),
		Command:   command,
		Redacted:  redacted,
	}, nil
}

// Describe returns the operation's template, for callers that need to know
// its variables or channel before running it.
func (d *Dispatcher) Describe(name string) (template.Template, error) {
	return d.registry.Get(name)
}
