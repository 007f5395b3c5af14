// Package notifications delivers ntfy push notifications for notable bot
// events such as new contacts and fatal session errors.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers never need to check whether notifications are enabled.
package notifications
