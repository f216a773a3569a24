package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"hostpilot-server/models"
)

// Transport errors. TransportError wraps a provider rejection or timeout;
// the dispatcher maps it to a failed delivery without retrying.
var (
	ErrInvalidRecipient = errors.New("invalid recipient")
	ErrNoCredentials    = errors.New("missing transport credentials")
)

type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// SendResult is what a successful adapter call yields. ExternalID may be
// empty for transports that do not issue one.
type SendResult struct {
	ExternalID  string
	DeliveredAt time.Time
}

// Transport is a delivery sink. Adapters are idempotent with respect to the
// Message row; re-entry is guarded upstream by the delivery-status machine.
type Transport interface {
	Kind() string // email, sms, api
	Send(msg *models.Message) (*SendResult, error)
}

// TransportSet bundles the three adapters the dispatcher routes between.
type TransportSet struct {
	Email   Transport
	SMS     Transport
	Channel Transport
}

// NewTransportSet wires the production adapters from process env. A
// missing SMTP credential disables email rather than failing startup; SMS
// and channel adapters check credentials per send.
func NewTransportSet(clock Clock) *TransportSet {
	set := &TransportSet{
		SMS:     NewSMSTransport(clock),
		Channel: NewChannelTransport(clock),
	}
	emailTransport, err := NewEmailTransport(clock)
	if err != nil {
		log.Printf("⚠️  TRANSPORT: email disabled: %v", err)
	} else {
		set.Email = emailTransport
	}
	return set
}

// ForMessageType picks the adapter for a message's transport type.
func (s *TransportSet) ForMessageType(messageType string) Transport {
	switch messageType {
	case models.MessageSMS, models.MessagePhone:
		return s.SMS
	case models.MessageAPI:
		return s.Channel
	default:
		return s.Email
	}
}

// recipientInfo is the typed per-transport payload stored on a message.
type recipientInfo struct {
	CC     []string `json:"cc,omitempty"`
	BCC    []string `json:"bcc,omitempty"`
	Msisdn string   `json:"msisdn,omitempty"`
	Thread string   `json:"thread,omitempty"`
}
