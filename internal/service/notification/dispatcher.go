// internal/service/notification/dispatcher.go
package notification

import (
	"fmt"

	"leadcrm-service/internal/domain/customer"

	"go.uber.org/zap"
)

// EmailChannel delivers a subject and HTML body to one address.
type EmailChannel interface {
	Send(to, subject, bodyHTML string) error
}

// MessageChannel delivers a short text message and returns a provider id.
type MessageChannel interface {
	Send(to, body string) (string, error)
}

// Dispatcher fans new-customer events out to the configured channels.
// Delivery is fire-and-forget and never blocks the caller.
type Dispatcher struct {
	email    EmailChannel
	whatsapp MessageChannel
	adminTo  string
	logger   *zap.Logger
}

func NewDispatcher(email EmailChannel, whatsapp MessageChannel, adminTo string, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{email: email, whatsapp: whatsapp, adminTo: adminTo, logger: logger}
}

func (d *Dispatcher) NotifyNewCustomer(event customer.NewCustomerEvent) {
	go d.deliver(event)
}

func (d *Dispatcher) deliver(event customer.NewCustomerEvent) {
	if d.email != nil && d.adminTo != "" {
		subject := fmt.Sprintf("New customer %s in queue %s", event.UID, event.Queue)
		body := fmt.Sprintf(
			"<p>A new customer record was created.</p>"+
				"<p><b>ID:</b> %s<br/><b>Queue:</b> %s<br/><b>Name:</b> %s<br/>"+
				"<b>Phone:</b> %s<br/><b>Email:</b> %s<br/><b>Agent:</b> %s</p>",
			event.UID, event.Queue, event.FirstName, event.Phone, event.Email, event.AgentName,
		)
		if err := d.email.Send(d.adminTo, subject, body); err != nil {
			d.logger.Warn("failed to send new-customer email",
				zap.String("uid", event.UID), zap.Error(err))
		}
	}

	if d.whatsapp != nil && event.WhatsApp != "" {
		body := fmt.Sprintf("Hi %s, thanks for getting in touch. Your reference is %s.",
			event.FirstName, event.UID)
		sid, err := d.whatsapp.Send(event.WhatsApp, body)
		if err != nil {
			d.logger.Warn("failed to send welcome whatsapp",
				zap.String("uid", event.UID), zap.Error(err))
			return
		}
		d.logger.Info("welcome whatsapp sent",
			zap.String("uid", event.UID), zap.String("sid", sid))
	}
}
