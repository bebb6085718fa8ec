package monitor

import (
	"time"

	"github.com/g960059/ttguide/internal/config"
	"github.com/g960059/ttguide/internal/model"
)

// Policy bounds the health transitions. A device goes degraded on its first
// failed probe and down after DownFailures consecutive failures inside
// DownWindow. It returns to ok after RecoverSuccesses consecutive successes.
type Policy struct {
	DownWindow       time.Duration
	DownFailures     int
	RecoverSuccesses int
}

func PolicyFromConfig(cfg config.Config) Policy {
	return Policy{
		DownWindow:       cfg.DeviceDownWindow,
		DownFailures:     cfg.DeviceDownFailures,
		RecoverSuccesses: cfg.DeviceRecoverSuccesses,
	}
}

type HealthState struct {
	Current              model.DeviceHealth
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	LastTransitionAt     time.Time
}

func NextHealth(p Policy, state HealthState, success bool, now time.Time) HealthState {
	if state.Current == "" {
		state.Current = model.DeviceHealthOK
	}
	if state.LastTransitionAt.IsZero() {
		state.LastTransitionAt = now
	}

	if success {
		state.ConsecutiveSuccesses++
		state.ConsecutiveFailures = 0
		if state.Current != model.DeviceHealthOK && state.ConsecutiveSuccesses >= p.RecoverSuccesses {
			state.Current = model.DeviceHealthOK
			state.LastTransitionAt = now
		}
		return state
	}

	state.ConsecutiveFailures++
	state.ConsecutiveSuccesses = 0
	switch state.Current {
	case model.DeviceHealthOK:
		state.Current = model.DeviceHealthDegraded
		state.LastTransitionAt = now
	case model.DeviceHealthDegraded:
		if now.Sub(state.LastTransitionAt) > p.DownWindow {
			// Window expired; this failure opens a new one.
			state.ConsecutiveFailures = 1
			state.LastTransitionAt = now
			return state
		}
		if state.ConsecutiveFailures >= p.DownFailures {
			state.Current = model.DeviceHealthDown
			state.LastTransitionAt = now
		}
	case model.DeviceHealthDown:
		// stays down until enough probes succeed
	}
	return state
}
