package mailer

import (
	"github.com/travelika/forest-bookings/pkg/logger"
)

// DevMailer logs mail instead of sending it. Default when no API key is
// configured.
type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) Send(toEmail, toName, subject, text, _ string) (string, error) {
	logger.Info("dev mail", "to", toEmail, "name", toName, "subject", subject, "text", text)
	return "dev", nil
}

func (d *DevMailer) SendReceipt(email, name, code, forest string, amount int64) error {
	logger.Info("dev receipt mail",
		"to", email, "name", name, "code", code, "forest", forest, "amount_idr", FormatIDR(amount))
	return nil
}
