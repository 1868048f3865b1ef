package notify

import (
	"log/slog"

	"github.com/fieldline/fieldline/directory"
)

// Option configures an Extension.
type Option func(*Extension)

// WithKinds restricts the extension to the listed notification kinds.
// By default every kind is delivered.
//
// Example:
//
//	notify.New(sender,
//	    notify.WithKinds(
//	        directory.NotifyJobConfirmed,
//	        directory.NotifyJobDeclined,
//	    ),
//	)
func WithKinds(kinds ...directory.NotificationKind) Option {
	return func(e *Extension) {
		e.enabled = make(map[directory.NotificationKind]bool, len(kinds))
		for _, k := range kinds {
			e.enabled[k] = true
		}
	}
}

// WithContacts wires a contact directory so notification bodies carry
// the customer's display name instead of a generic placeholder.
func WithContacts(contacts directory.ContactDirectory) Option {
	return func(e *Extension) { e.contacts = contacts }
}

// WithLogger sets a custom logger for the extension.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extension) { e.logger = l }
}
