package monitor

import (
	"testing"
	"time"

	"github.com/g960059/ttguide/internal/config"
	"github.com/g960059/ttguide/internal/model"
)

func TestHealthTransitionPolicy(t *testing.T) {
	p := PolicyFromConfig(config.DefaultConfig())
	now := time.Now().UTC()
	state := HealthState{Current: model.DeviceHealthOK, LastTransitionAt: now}

	state = NextHealth(p, state, false, now.Add(1*time.Second))
	if state.Current != model.DeviceHealthDegraded {
		t.Fatalf("ok->degraded expected, got %s", state.Current)
	}
	state = NextHealth(p, state, false, now.Add(2*time.Second))
	state = NextHealth(p, state, false, now.Add(3*time.Second))
	if state.Current != model.DeviceHealthDown {
		t.Fatalf("degraded->down expected after failures, got %s", state.Current)
	}

	state = NextHealth(p, state, true, now.Add(4*time.Second))
	if state.Current != model.DeviceHealthDown {
		t.Fatalf("still down until enough successes, got %s", state.Current)
	}
	state = NextHealth(p, state, true, now.Add(5*time.Second))
	if state.Current != model.DeviceHealthOK {
		t.Fatalf("down->ok expected on recovery threshold, got %s", state.Current)
	}
}

func TestDownTransitionRequiresFailureWindow(t *testing.T) {
	p := PolicyFromConfig(config.DefaultConfig())
	p.DownWindow = 2 * time.Second
	now := time.Now().UTC()

	state := HealthState{Current: model.DeviceHealthOK, LastTransitionAt: now}
	state = NextHealth(p, state, false, now.Add(1*time.Second))
	state = NextHealth(p, state, false, now.Add(10*time.Second))
	state = NextHealth(p, state, false, now.Add(11*time.Second))

	if state.Current != model.DeviceHealthDegraded {
		t.Fatalf("expected degraded with failures outside window, got %s", state.Current)
	}
}

func TestZeroStateStartsOK(t *testing.T) {
	p := PolicyFromConfig(config.DefaultConfig())
	state := NextHealth(p, HealthState{}, true, time.Now())
	if state.Current != model.DeviceHealthOK || state.ConsecutiveSuccesses != 1 {
		t.Fatalf("unexpected state %+v", state)
	}
}
