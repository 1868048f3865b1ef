// Package notify is a Fieldline extension that turns lifecycle events
// into outbound notifications.
//
// Confirmations and declines are delivered to the user who created the
// job; assignment changes are delivered to each assigned user. Series
// creation is batched so an assignee receives one message per create,
// not one per occurrence. Delivery goes through the [directory.Notifier]
// interface — the caller wires email, SMS, or push at setup time.
//
// # Usage
//
//	reg.Register(notify.New(sender,
//	    notify.WithContacts(dir),
//	))
//
// # Selective filtering
//
//	notify.New(sender,
//	    notify.WithKinds(
//	        directory.NotifyJobConfirmed,
//	        directory.NotifyJobDeclined,
//	    ),
//	)
package notify
