// Package notify bridges ledger events to outbound mail. It subscribes to
// the paid-booking subject and sends the visitor a receipt.
package notify

import (
	"encoding/json"

	"github.com/travelika/forest-bookings/internal/platform/mailer"
	"github.com/travelika/forest-bookings/internal/pricing"
	"github.com/travelika/forest-bookings/pkg/events"
	"github.com/travelika/forest-bookings/pkg/logger"
)

type Notifier struct {
	mail mailer.Service
}

func NewNotifier(mail mailer.Service) *Notifier {
	return &Notifier{mail: mail}
}

// Start registers the notifier on the bus. Mail failures log and are
// otherwise swallowed.
func (n *Notifier) Start(bus events.Subscriber) error {
	return bus.Subscribe(events.BookingPaid, n.onBookingPaid)
}

func (n *Notifier) onBookingPaid(msg *events.Message) {
	var evt events.BookingPaidEvent
	if err := json.Unmarshal(msg.Data, &evt); err != nil {
		logger.Error("malformed paid event", "error", err)
		return
	}

	name := evt.Name
	if name == "" {
		name = evt.Email
	}
	label := pricing.ForestLabel(evt.Forest)

	if err := n.mail.SendReceipt(evt.Email, name, evt.Code, label, evt.Amount); err != nil {
		logger.Error("receipt mail failed", "code", evt.Code, "email", evt.Email, "error", err)
	}
}
