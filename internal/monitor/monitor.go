// Package monitor periodically probes the Tenstorrent devices and tracks
// their health.
package monitor

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/g960059/ttguide/internal/config"
	"github.com/g960059/ttguide/internal/model"
	"github.com/g960059/ttguide/internal/target"
)

type CommandRunner interface {
	Run(ctx context.Context, command []string) (target.RunResult, error)
}

// Settings is read before every poll so changes apply without a restart.
type Settings interface {
	GetInterval(ctx context.Context) (int, error)
	IsEnabled(ctx context.Context) (bool, error)
}

type Sample struct {
	At       time.Time
	Health   model.DeviceHealth
	Changed  bool
	Snapshot Snapshot
	Err      error
}

type Monitor struct {
	runner   CommandRunner
	settings Settings
	command  []string
	policy   Policy
	log      zerolog.Logger
	now      func() time.Time
	after    func(time.Duration) <-chan time.Time

	state HealthState
}

type Option func(*Monitor)

func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithTimer replaces time.After between polls.
func WithTimer(after func(time.Duration) <-chan time.Time) Option {
	return func(m *Monitor) { m.after = after }
}

func New(runner CommandRunner, settings Settings, cfg config.Config, log zerolog.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		runner:   runner,
		settings: settings,
		command:  append([]string(nil), cfg.MonitorCommand...),
		policy:   PolicyFromConfig(cfg),
		log:      log.With().Str("component", "monitor").Logger(),
		now:      time.Now,
		after:    time.After,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Monitor) State() HealthState {
	return m.state
}

// Poll runs the snapshot command once and folds the outcome into the health
// state.
func (m *Monitor) Poll(ctx context.Context) Sample {
	now := m.now()
	res, err := m.runner.Run(ctx, m.command)
	var snap Snapshot
	if err == nil {
		snap, err = ParseSnapshot(res.Output)
	}

	prev := m.state.Current
	m.state = NextHealth(m.policy, m.state, err == nil, now)
	s := Sample{
		At:       now,
		Health:   m.state.Current,
		Changed:  prev != "" && prev != m.state.Current,
		Snapshot: snap,
		Err:      err,
	}

	ev := m.log.Debug()
	if s.Changed {
		ev = m.log.Info().Str("from", string(prev))
	}
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Str("health", string(s.Health)).Int("boards", len(snap.Boards)).Msg("device probe")
	return s
}

// Run polls until ctx is done. While monitoring is disabled it only
// re-reads the settings each interval.
func (m *Monitor) Run(ctx context.Context, report func(Sample)) error {
	for ctx.Err() == nil {
		enabled, err := m.settings.IsEnabled(ctx)
		if err != nil {
			return err
		}
		if enabled {
			s := m.Poll(ctx)
			if report != nil {
				report(s)
			}
		}

		interval, err := m.settings.GetInterval(ctx)
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-m.after(time.Duration(interval) * time.Second):
		}
	}
	return nil
}
