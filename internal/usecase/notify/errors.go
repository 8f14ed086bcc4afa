package notify

import "errors"

// Sentinel errors for the notification pipeline.
var (
	// ErrAlreadyRunning indicates a concurrent Process call was rejected by
	// the single-flight guard. Its text is surfaced verbatim in
	// ProcessResult.Errors so schedulers can match on it.
	ErrAlreadyRunning = errors.New("Another processing job is already running")

	// ErrNoSubscriptions indicates a dispatch was requested for a user with
	// no registered push endpoints.
	ErrNoSubscriptions = errors.New("user has no push subscriptions")
)
