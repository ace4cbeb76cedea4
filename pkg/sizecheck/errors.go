package sizecheck

import (
	"errors"

	"github.com/patina/sizecheck/pkg/environment"
)

var (
	// ErrEmptyIdentifier indicates a blank package identifier. Callers
	// treat it as a no-op.
	ErrEmptyIdentifier = errors.New("package identifier is empty")

	// ErrEnvironmentNotReady indicates a check was requested before boot completed
	ErrEnvironmentNotReady = environment.ErrNotReady

	// ErrBootFailed indicates the environment could not be provisioned
	ErrBootFailed = environment.ErrBootFailed

	// ErrCheckInProgress indicates another check holds the environment
	ErrCheckInProgress = errors.New("a size check is already in progress")

	// ErrManifestWriteFailed indicates the manifest could not be written
	ErrManifestWriteFailed = errors.New("manifest write failed")

	// ErrSpawnFailed indicates a command could not start or crashed
	ErrSpawnFailed = errors.New("command failed")

	// ErrTimeout indicates a command did not finish in time
	ErrTimeout = errors.New("command timed out")
)

// IsNotReady returns true if the error is ErrEnvironmentNotReady
func IsNotReady(err error) bool {
	return errors.Is(err, ErrEnvironmentNotReady)
}

// IsInProgress returns true if the error is ErrCheckInProgress
func IsInProgress(err error) bool {
	return errors.Is(err, ErrCheckInProgress)
}

// IsTimeout returns true if the error is ErrTimeout
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
