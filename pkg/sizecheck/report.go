package sizecheck

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Report is the combined outcome of one install-and-measure run
type Report struct {
	ID         string         `json:"id"`
	Package    string         `json:"package"`
	ModuleDir  string         `json:"module_dir"`
	Install    *CommandResult `json:"install"`
	Size       *CommandResult `json:"size"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Text       string         `json:"text"`
}

// newReport assembles a report and renders its text
func newReport(identifier, moduleDir string, install, size *CommandResult, startedAt time.Time) *Report {
	r := &Report{
		ID:         uuid.NewString(),
		Package:    identifier,
		ModuleDir:  moduleDir,
		Install:    install,
		Size:       size,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
	}
	r.Text = Render(identifier, install.Output, size.Output)
	return r
}

// Render formats install and size output under their headers
func Render(identifier, installOutput, sizeOutput string) string {
	return fmt.Sprintf("Installing %s...\n%s\n\nPackage Size:\n%s", identifier, installOutput, sizeOutput)
}

// String returns the rendered report text
func (r *Report) String() string {
	return r.Text
}
