package mailer

// Service sends transactional mail. SendReceipt is the one message this
// system produces: a paid-booking receipt.
type Service interface {
	Send(toEmail, toName, subject, text, html string) (string, error)
	SendReceipt(email, name, code, forest string, amount int64) error
}
