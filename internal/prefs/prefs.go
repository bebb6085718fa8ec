// Package prefs exposes the few persisted settings that steer periodic
// device checks. Values are read from the store on every call.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/g960059/ttguide/internal/db"
)

const (
	KeyInterval = "statusbar.update_interval"
	KeyEnabled  = "statusbar.enabled"

	DefaultInterval = 5
	MinInterval     = 1
	MaxInterval     = 3600
)

type Backend interface {
	GetPreference(ctx context.Context, key string) (string, error)
	SetPreference(ctx context.Context, key, value string) error
}

type Store struct {
	backend Backend
}

func New(backend Backend) *Store {
	return &Store{backend: backend}
}

// GetInterval returns the polling interval in seconds.
func (s *Store) GetInterval(ctx context.Context) (int, error) {
	raw, err := s.backend.GetPreference(ctx, KeyInterval)
	if errors.Is(err, db.ErrNotFound) {
		return DefaultInterval, nil
	}
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < MinInterval || v > MaxInterval {
		return DefaultInterval, nil
	}
	return v, nil
}

func (s *Store) SetInterval(ctx context.Context, seconds int) error {
	if seconds < MinInterval || seconds > MaxInterval {
		return fmt.Errorf("interval must be between %d and %d seconds, got %d", MinInterval, MaxInterval, seconds)
	}
	return s.backend.SetPreference(ctx, KeyInterval, strconv.Itoa(seconds))
}

func (s *Store) IsEnabled(ctx context.Context) (bool, error) {
	raw, err := s.backend.GetPreference(ctx, KeyEnabled)
	if errors.Is(err, db.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, nil
	}
	return v, nil
}

func (s *Store) SetEnabled(ctx context.Context, enabled bool) error {
	return s.backend.SetPreference(ctx, KeyEnabled, strconv.FormatBool(enabled))
}
