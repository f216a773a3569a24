package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Message types.
const (
	MessageEmail        = "email"
	MessageEmailManaged = "email_managed"
	MessageSMS          = "sms"
	MessagePhone        = "phone"
	MessageAPI          = "api"
)

// Delivery states. The dispatcher owns the not_started -> started
// transition; only one dispatcher instance wins it per message.
const (
	DeliveryNotStarted   = "not_started"
	DeliveryStarted      = "started"
	DeliveryDelivered    = "delivered"
	DeliveryNotDelivered = "not_delivered"
	DeliveryFailed       = "failed"
)

// Message is one unit of delivery inside a conversation. Creation order is
// authoritative for display; dispatch may complete out of order.
type Message struct {
	gorm.Model
	ConversationID uint   `json:"conversationID" gorm:"index;not null"`
	Type           string `json:"type" gorm:"size:16;index"` // email, email_managed, sms, phone, api
	Outgoing       bool   `json:"outgoing"`
	Automated      bool   `json:"automated"`

	Text          string         `json:"text" gorm:"type:text"`
	HTMLText      string         `json:"htmlText" gorm:"type:text"`
	Subject       string         `json:"subject" gorm:"size:256"`
	Sender        string         `json:"sender" gorm:"size:256"`
	Recipient     string         `json:"recipient" gorm:"size:256"`
	RecipientInfo datatypes.JSON `json:"recipientInfo"` // typed per transport (cc/bcc, msisdn, thread)

	DeliveryStatus string     `json:"deliveryStatus" gorm:"size:16;index;default:not_started"`
	DateDelivered  *time.Time `json:"dateDelivered"`

	ExternalID       string  `json:"externalID" gorm:"size:128;index"`      // provider-side id
	ExternalEmailID  *string `json:"externalEmailID" gorm:"size:256;uniqueIndex"` // RFC-822 Message-ID; inbound dedup key
	ReplyToReference string  `json:"replyToReference" gorm:"size:256"`
}
