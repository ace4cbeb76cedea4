package sizecheck

import (
	"time"

	"github.com/patina/sizecheck/pkg/environment"
)

// Phase represents where the latest check stands
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseRunning Phase = "running"
	PhaseDone    Phase = "done"
	PhaseFailed  Phase = "failed"
)

// Snapshot is the observable state handed to presentation layers
type Snapshot struct {
	Environment environment.State `json:"environment"`
	Ready       bool              `json:"ready"`
	Phase       Phase             `json:"phase"`
	Loading     bool              `json:"loading"`
	Package     string            `json:"package,omitempty"`
	CheckID     string            `json:"check_id,omitempty"`
	Report      string            `json:"report"`
	Warning     string            `json:"warning,omitempty"`
	Error       string            `json:"error,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
}
