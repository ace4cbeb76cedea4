package environment

import (
	"time"
)

// State represents the lifecycle state of the environment
type State string

const (
	StateIdle        State = "idle"
	StateBooting     State = "booting"
	StateReady       State = "ready"
	StateUnavailable State = "unavailable"
)

// Info describes the managed environment
type Info struct {
	ID        string    `json:"id,omitempty"`
	Image     string    `json:"image"`
	WorkDir   string    `json:"work_dir"`
	State     State     `json:"state"`
	BootError string    `json:"boot_error,omitempty"`
	BootedAt  time.Time `json:"booted_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
