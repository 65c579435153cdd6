// Package errors defines the notification layer's error taxonomy and the
// handlers that surface failures to the user. Nothing here is fatal: callers
// convert failures into log lines or a user-facing message.
package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	// ErrUnsupportedPlatform reports that notifications or service workers are unavailable.
	ErrUnsupportedPlatform = stderrors.New("notifications are not supported on this platform")
	// ErrPermissionDenied reports that the user refused or dismissed the permission prompt.
	ErrPermissionDenied = stderrors.New("notification permission denied")
	// ErrTokenUnavailable reports that no push token could be obtained.
	ErrTokenUnavailable = stderrors.New("push token unavailable")
	// ErrBackendRejected reports a non-2xx answer from the backend.
	ErrBackendRejected = stderrors.New("backend rejected request")
	// ErrAudioPlayback reports a notification sound that could not be played.
	ErrAudioPlayback = stderrors.New("notification sound playback failed")
	// ErrNotAuthenticated reports a missing auth token.
	ErrNotAuthenticated = stderrors.New("not authenticated")
)

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return stderrors.As(err, target) }

// New returns an error that formats as the given text.
func New(text string) error { return stderrors.New(text) }

// Known reports whether err wraps one of the sentinels above.
func Known(err error) bool {
	for _, target := range []error{
		ErrUnsupportedPlatform, ErrPermissionDenied, ErrTokenUnavailable,
		ErrBackendRejected, ErrAudioPlayback, ErrNotAuthenticated,
	} {
		if Is(err, target) {
			return true
		}
	}
	return false
}

// UserMessage renders err as the short string shown in provider state and CLI output.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case Is(err, ErrUnsupportedPlatform):
		return "Notifications are not supported on this device"
	case Is(err, ErrPermissionDenied):
		return "Notification permission was not granted"
	case Is(err, ErrTokenUnavailable):
		return "Could not obtain a push token; check the VAPID key and network"
	case Is(err, ErrBackendRejected):
		return "The server did not accept the push token"
	case Is(err, ErrNotAuthenticated):
		return "Log in first: pharmacy-notify login --token <token>"
	case Is(err, ErrAudioPlayback):
		return "Notification sound could not be played"
	default:
		return fmt.Sprintf("Notification setup failed: %v", err)
	}
}

// Report sends err to h using the severity its kind deserves.
func Report(h ErrorHandler, err error) {
	if err == nil || h == nil {
		return
	}
	switch {
	case Is(err, ErrAudioPlayback), Is(err, ErrPermissionDenied):
		h.Warning(UserMessage(err))
	default:
		h.Error(UserMessage(err))
	}
}
