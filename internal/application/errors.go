package application

import "errors"

var (
	// ErrPermissionDenied is returned by Run when a required permission was refused.
	ErrPermissionDenied = errors.New("session: permission denied")

	// ErrNoInputDevice is returned by Run when no microphone is available.
	ErrNoInputDevice = errors.New("session: audio input device not found")

	// ErrActivationFailed is returned by Run when the version check never succeeded.
	ErrActivationFailed = errors.New("session: activation failed")

	// ErrSessionClosed is returned by requests submitted after the loop stopped.
	ErrSessionClosed = errors.New("session: closed")

	errActivationPending = errors.New("activation pending")
)
