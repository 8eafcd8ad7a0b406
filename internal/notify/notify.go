// ABOUTME: Registration notification delivery over an external gateway
// ABOUTME: Failures are logged and swallowed so signup flow is never blocked

package notify

import (
	"context"
)

// Kind identifies what event a notification describes.
type Kind string

const (
	KindRegistration Kind = "registration"
	KindApproval     Kind = "approval"
)

// Message carries the notification content.
type Message struct {
	Kind          Kind   `json:"kind"`
	Username      string `json:"username"`
	ClinicName    string `json:"clinicName,omitempty"`
	TherapistName string `json:"therapistName,omitempty"`
}

// Receipt reports which channels accepted the notification.
type Receipt struct {
	Email bool `json:"email"`
	SMS   bool `json:"sms"`
}

// Notifier sends out-of-band notifications about account events.
// Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, msg Message) Receipt
}

// Noop discards all notifications. Used when notify is disabled in config.
type Noop struct{}

func (Noop) Notify(ctx context.Context, msg Message) Receipt {
	return Receipt{}
}

var _ Notifier = Noop{}
