package notify

import (
	"errors"

	"jamati/internal/kvstore"
	"jamati/internal/persisted"
)

// Permission mirrors the three platform permission states.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// PermissionKey is where the last permission answer is persisted.
const PermissionKey = "jamati-notification-permission"

// SummaryTimeKey is where the daily summary time is persisted.
const SummaryTimeKey = "jamati-summary-time"

// DefaultSummaryTime is used until the user picks another time.
const DefaultSummaryTime = "06:00"

// NewPermissionValue binds the persisted permission state.
func NewPermissionValue(kv kvstore.Store) *persisted.Value[Permission] {
	return persisted.New(kv, PermissionKey, PermissionDefault)
}

// NewSummaryTimeValue binds the persisted daily summary time.
func NewSummaryTimeValue(kv kvstore.Store) *persisted.Value[string] {
	return persisted.New(kv, SummaryTimeKey, DefaultSummaryTime)
}

// messageKeys are the keys MessageKey can return.
var messageKeys = map[string]bool{
	"notifications.unsupported": true,
	"notifications.enabled":     true,
	"notifications.denied":      true,
}

// IsMessageKey reports whether key is one of the permission result keys.
func IsMessageKey(key string) bool {
	return messageKeys[key]
}

// MessageKey is the translation key shown to the user after a permission
// request.
func MessageKey(p Permission, err error) string {
	switch {
	case errors.Is(err, ErrUnsupported):
		return "notifications.unsupported"
	case p == PermissionGranted:
		return "notifications.enabled"
	default:
		return "notifications.denied"
	}
}
