package services

import (
	"encoding/json"
	"fmt"
	"net/smtp"
	"os"
	"time"

	"hostpilot-server/models"

	"github.com/google/uuid"
	"github.com/jordan-wright/email"
)

// EmailTransport sends multipart (plain + html) mail through the single
// deployment-wide SMTP credential, using a connection pool so every send
// carries a bounded timeout.
type EmailTransport struct {
	pool    *email.Pool
	from    string
	timeout time.Duration
	clock   Clock
}

func NewEmailTransport(clock Clock) (*EmailTransport, error) {
	host := os.Getenv("SMTP_HOST")
	port := os.Getenv("SMTP_PORT")
	user := os.Getenv("SMTP_USER")
	pass := os.Getenv("SMTP_PASSWORD")
	if host == "" {
		return nil, ErrNoCredentials
	}
	if port == "" {
		port = "587"
	}

	pool, err := email.NewPool(host+":"+port, 4, smtp.PlainAuth("", user, pass, host))
	if err != nil {
		return nil, &TransportError{Provider: "smtp", Err: err}
	}

	from := os.Getenv("EMAIL_SENDER")
	if from == "" {
		from = user
	}

	return &EmailTransport{pool: pool, from: from, timeout: 8 * time.Second, clock: clock}, nil
}

func (t *EmailTransport) Kind() string { return "email" }

func (t *EmailTransport) Send(msg *models.Message) (*SendResult, error) {
	if msg.Recipient == "" {
		return nil, &TransportError{Provider: "smtp", Err: ErrInvalidRecipient}
	}

	e := email.NewEmail()
	e.From = t.from
	if msg.Sender != "" {
		e.From = msg.Sender
	}
	e.To = []string{msg.Recipient}
	e.Subject = msg.Subject
	e.Text = []byte(msg.Text)
	if msg.HTMLText != "" {
		e.HTML = []byte(msg.HTMLText)
	}

	var info recipientInfo
	if msg.RecipientInfo != nil {
		json.Unmarshal(msg.RecipientInfo, &info)
	}
	e.Cc = info.CC
	e.Bcc = info.BCC

	// Assign our own Message-ID so threads reconcile on replies.
	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), models.ForwardDomain())
	e.Headers.Set("Message-Id", messageID)
	if msg.ReplyToReference != "" {
		e.Headers.Set("In-Reply-To", msg.ReplyToReference)
		e.Headers.Set("References", msg.ReplyToReference)
	}

	if err := t.pool.Send(e, t.timeout); err != nil {
		return nil, &TransportError{Provider: "smtp", Err: err}
	}

	return &SendResult{ExternalID: messageID, DeliveredAt: t.clock()}, nil
}
