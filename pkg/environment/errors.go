package environment

import "errors"

var (
	// ErrNotReady indicates the environment has not finished booting
	ErrNotReady = errors.New("environment not ready")

	// ErrBootFailed indicates provisioning the environment failed
	ErrBootFailed = errors.New("environment boot failed")

	// ErrManagerClosed indicates the manager has been closed
	ErrManagerClosed = errors.New("manager is closed")

	// ErrNoEngine indicates no sandbox engine was provided
	ErrNoEngine = errors.New("sandbox engine not provided")
)

// IsNotReady returns true if the error is ErrNotReady
func IsNotReady(err error) bool {
	return errors.Is(err, ErrNotReady)
}

// IsBootFailed returns true if the error is ErrBootFailed
func IsBootFailed(err error) bool {
	return errors.Is(err, ErrBootFailed)
}
