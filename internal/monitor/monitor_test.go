package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/g960059/ttguide/internal/config"
	"github.com/g960059/ttguide/internal/model"
	"github.com/g960059/ttguide/internal/target"
)

type scriptedRunner struct {
	outputs []string
	errs    []error
	calls   [][]string
}

func (r *scriptedRunner) Run(_ context.Context, command []string) (target.RunResult, error) {
	i := len(r.calls)
	r.calls = append(r.calls, command)
	if i >= len(r.outputs) {
		return target.RunResult{}, errors.New("no more scripted output")
	}
	return target.RunResult{Output: r.outputs[i]}, r.errs[i]
}

type fixedSettings struct {
	enabled  bool
	interval int
	err      error
}

func (s *fixedSettings) GetInterval(context.Context) (int, error) { return s.interval, s.err }
func (s *fixedSettings) IsEnabled(context.Context) (bool, error)  { return s.enabled, s.err }

func TestPollTracksHealth(t *testing.T) {
	failure := errors.New("exit status 1")
	runner := &scriptedRunner{
		outputs: []string{sampleSnapshot, "", "", "", sampleSnapshot, sampleSnapshot},
		errs:    []error{nil, failure, failure, failure, nil, nil},
	}
	base := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	tick := 0
	m := New(runner, &fixedSettings{}, config.DefaultConfig(), zerolog.Nop(), WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}))

	var got []model.DeviceHealth
	for range runner.outputs {
		got = append(got, m.Poll(context.Background()).Health)
	}
	assert.Equal(t, []model.DeviceHealth{
		model.DeviceHealthOK,
		model.DeviceHealthDegraded,
		model.DeviceHealthDegraded,
		model.DeviceHealthDown,
		model.DeviceHealthDown,
		model.DeviceHealthOK,
	}, got)
	assert.Equal(t, []string{"tt-smi", "-s"}, runner.calls[0])
}

func TestPollMarksChangedSamples(t *testing.T) {
	runner := &scriptedRunner{
		outputs: []string{sampleSnapshot, "garbage"},
		errs:    []error{nil, nil},
	}
	m := New(runner, &fixedSettings{}, config.DefaultConfig(), zerolog.Nop())

	first := m.Poll(context.Background())
	assert.False(t, first.Changed)
	assert.Equal(t, []string{"n150 L", "p150a"}, first.Snapshot.BoardTypes())

	second := m.Poll(context.Background())
	assert.True(t, second.Changed)
	assert.Error(t, second.Err)
	assert.Equal(t, model.DeviceHealthDegraded, second.Health)
}

func TestRunUsesIntervalAndStopsOnCancel(t *testing.T) {
	runner := &scriptedRunner{
		outputs: []string{sampleSnapshot, sampleSnapshot, sampleSnapshot},
		errs:    []error{nil, nil, nil},
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var waits []time.Duration
	m := New(runner, &fixedSettings{enabled: true, interval: 7}, config.DefaultConfig(), zerolog.Nop(),
		WithTimer(func(d time.Duration) <-chan time.Time {
			waits = append(waits, d)
			ch := make(chan time.Time, 1)
			ch <- time.Time{}
			return ch
		}))

	samples := 0
	err := m.Run(ctx, func(Sample) {
		samples++
		if samples == 3 {
			cancel()
		}
	})
	require.NoError(t, err)
	assert.Equal(t, 3, samples)
	assert.Len(t, runner.calls, 3)
	for _, w := range waits {
		assert.Equal(t, 7*time.Second, w)
	}
}

func TestRunSkipsProbesWhileDisabled(t *testing.T) {
	runner := &scriptedRunner{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	waits := 0
	m := New(runner, &fixedSettings{enabled: false, interval: 5}, config.DefaultConfig(), zerolog.Nop(),
		WithTimer(func(time.Duration) <-chan time.Time {
			waits++
			if waits == 2 {
				cancel()
			}
			ch := make(chan time.Time)
			if waits < 2 {
				close(ch)
			}
			return ch
		}))

	require.NoError(t, m.Run(ctx, nil))
	assert.Empty(t, runner.calls)
	assert.Equal(t, 2, waits)
}

func TestRunReturnsSettingsError(t *testing.T) {
	boom := errors.New("database is locked")
	m := New(&scriptedRunner{}, &fixedSettings{err: boom}, config.DefaultConfig(), zerolog.Nop())
	assert.ErrorIs(t, m.Run(context.Background(), nil), boom)
}
