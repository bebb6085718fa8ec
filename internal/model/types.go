package model

import "time"

// ChannelID names a logical terminal slot that operations are routed to.
type ChannelID string

const (
	ChannelMain   ChannelID = "main"
	ChannelServer ChannelID = "server"
)

type TargetKind string

const (
	TargetKindLocal TargetKind = "local"
	TargetKindSSH   TargetKind = "ssh"
)

type Target struct {
	Kind          TargetKind
	ConnectionRef string
}

type DeviceHealth string

const (
	DeviceHealthOK       DeviceHealth = "ok"
	DeviceHealthDegraded DeviceHealth = "degraded"
	DeviceHealthDown     DeviceHealth = "down"
)

// ChannelBinding records which host session currently backs a channel.
type ChannelBinding struct {
	Channel     ChannelID `json:"channel"`
	SessionID   string    `json:"session_id"`
	DisplayName string    `json:"display_name"`
	Cwd         string    `json:"cwd"`
	CreatedAt   time.Time `json:"created_at"`
}

// DispatchRecord is one successful dispatch. Command is always stored redacted.
type DispatchRecord struct {
	DispatchID   string    `json:"dispatch_id"`
	Operation    string    `json:"operation"`
	Channel      ChannelID `json:"channel"`
	SessionID    string    `json:"session_id"`
	Command      string    `json:"command"`
	DispatchedAt time.Time `json:"dispatched_at"`
}

// Error codes printed by the CLI.
const (
	ErrUnknownOperation    = "E_UNKNOWN_OPERATION"
	ErrMissingVariable     = "E_MISSING_VARIABLE"
	ErrTerminalUnavailable = "E_TERMINAL_UNAVAILABLE"
	ErrTargetUnreachable   = "E_TARGET_UNREACHABLE"
	ErrInvalidArgument     = "E_INVALID_ARGUMENT"
)
