// Package notify delivers presence transition notifications. Delivery
// is fire-and-forget: the monitor enqueues, a dispatcher goroutine
// sends, and a slow or failing push service never blocks a scan cycle.
// Delivery is at-most-once; a notification dropped because the queue
// is full or the process exits is lost, which is acceptable for a
// presence monitor where the next transition supersedes the last.
package notify

import (
	"context"
	"fmt"

	"lanwatch/internal/device"
)

// Notification is one message ready for delivery.
type Notification struct {
	Title string
	Body  string
	Level device.Level
	MAC   device.MAC
}

// Notifier delivers a single notification synchronously.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// FromEvent renders a presence transition into a notification using
// the device's resolved policy.
func FromEvent(ev device.Event) Notification {
	name := ev.Policy.DisplayName
	if name == "" {
		name = string(ev.MAC)
	}

	var title, body string
	switch ev.Kind {
	case device.EventDeparted:
		title = "Device left"
		body = fmt.Sprintf("%s left the network", name)
	default:
		title = "Device joined"
		body = fmt.Sprintf("%s joined the network", name)
	}
	if ev.Hostname != "" && ev.Hostname != name {
		body = fmt.Sprintf("%s (%s)", body, ev.Hostname)
	}

	return Notification{
		Title: title,
		Body:  body,
		Level: ev.Policy.Level,
		MAC:   ev.MAC,
	}
}

// Nop discards every notification. Used when no push key is
// configured.
type Nop struct{}

// Send implements Notifier.
func (Nop) Send(context.Context, Notification) error { return nil }
