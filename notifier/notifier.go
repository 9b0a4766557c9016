package notifier

import (
	"context"
	"log"

	"mini-crm/mailer"
)

// Notifier fans a notice out to a list of recipients, best effort. The
// request that triggered the notice has already returned, so transport
// errors are logged and dropped, never surfaced.
type Notifier struct {
	mail   mailer.Mailer
	logger *log.Logger
}

func New(mail mailer.Mailer, logger *log.Logger) *Notifier {
	return &Notifier{mail: mail, logger: logger}
}

func (n *Notifier) Notify(ctx context.Context, recipients []string, subject, body string) {
	for _, to := range recipients {
		if err := n.mail.Send(ctx, to, subject, body, ""); err != nil {
			n.logger.Printf("Notification to %s failed: %v", to, err)
		}
	}
}
