package api

import (
	"github.com/patina/sizecheck/pkg/environment"
	"github.com/patina/sizecheck/pkg/sizecheck"
)

// CheckRequest represents a request to measure a package
type CheckRequest struct {
	Package string `json:"package"`
}

// CheckResponse contains the finished report
type CheckResponse struct {
	Report *sizecheck.Report `json:"report"`
}

// StatusResponse contains the observable checker and environment state
type StatusResponse struct {
	Check       sizecheck.Snapshot `json:"check"`
	Environment environment.Info   `json:"environment"`
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// Error codes returned in ErrorResponse.Code
const (
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeNotReady        = "NOT_READY"
	CodeInProgress      = "CHECK_IN_PROGRESS"
	CodeTimeout         = "TIMEOUT"
	CodeManifestFailed  = "MANIFEST_WRITE_FAILED"
	CodeCommandFailed   = "COMMAND_FAILED"
	CodeBootFailed      = "BOOT_FAILED"
	CodeStreamingFailed = "STREAMING_UNSUPPORTED"
)
