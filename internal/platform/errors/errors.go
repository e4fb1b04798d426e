package apperrors

import "errors"

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("not found")
	ErrNoActiveSession    = errors.New("no active session")
	ErrGenerationRunning  = errors.New("generation already in progress")
	ErrSyncRunning        = errors.New("sync already in progress")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrPluginFailure      = errors.New("plugin failure")
)
