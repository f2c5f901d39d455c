package crawl

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound means no crawl record exists for the given id.
	ErrNotFound = errors.New("not_found")

	// ErrCorrupt means a crawl record exists but is missing required fields.
	ErrCorrupt = errors.New("corrupt crawl record")

	// ErrAlreadyRunning rejects Start on a crawl that is already running.
	ErrAlreadyRunning = errors.New("already_running")

	// ErrNotRunning rejects Stop on a crawl that is not running.
	ErrNotRunning = errors.New("not_running")
)

// StartError aggregates the per-worker failures collected during Start.
// Workers started before the failing attempts are not rolled back; the
// caller sees every underlying error and must reconcile.
type StartError struct {
	Errors []string
}

func (e *StartError) Error() string {
	return "start failed: " + strings.Join(e.Errors, "; ")
}

// StopError aggregates the per-worker failures collected during Stop. The
// crawl stays running when any stop call fails, so the caller can retry.
type StopError struct {
	Errors []string
}

func (e *StopError) Error() string {
	return "stop failed: " + strings.Join(e.Errors, "; ")
}
