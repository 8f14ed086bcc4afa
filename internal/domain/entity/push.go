package entity

import "time"

// Default push settings applied when a user has never saved preferences.
const (
	DefaultQuietStartHour = 22
	DefaultQuietEndHour   = 7
	DefaultMaxPerDay      = 10
)

// PushSettings holds a user's push delivery preferences.
type PushSettings struct {
	UserID       int64
	QuietEnabled bool
	QuietStart   int // hour of day, 0-23
	QuietEnd     int // hour of day, 0-23
	MaxPerDay    int
}

// DefaultPushSettings returns the settings used when a user has none stored.
func DefaultPushSettings(userID int64) *PushSettings {
	return &PushSettings{
		UserID:       userID,
		QuietEnabled: true,
		QuietStart:   DefaultQuietStartHour,
		QuietEnd:     DefaultQuietEndHour,
		MaxPerDay:    DefaultMaxPerDay,
	}
}

// InQuietHours reports whether the given hour of day falls inside the user's
// quiet window. The window is [start, end) and wraps midnight when start > end:
// {22, 7} suppresses 22:00-23:59 and 00:00-06:59.
func (s *PushSettings) InQuietHours(hour int) bool {
	if !s.QuietEnabled {
		return false
	}
	if s.QuietStart == s.QuietEnd {
		return false
	}
	if s.QuietStart < s.QuietEnd {
		return hour >= s.QuietStart && hour < s.QuietEnd
	}
	return hour >= s.QuietStart || hour < s.QuietEnd
}

// PushSubscription is one browser push endpoint registered by a user.
type PushSubscription struct {
	ID         int64
	UserID     int64
	Endpoint   string
	P256dhKey  string
	AuthKey    string
	CreatedAt  time.Time
	LastUsedAt *time.Time
}
