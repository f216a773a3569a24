package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Parse task states.
const (
	ParseInit      = "init"
	ParseQueue     = "queue"
	ParseStarted   = "started"
	ParseCompleted = "completed"
	ParseError     = "error"
)

// ParseEmailTask is one raw inbound email payload as delivered by the
// provider webhook. Failed tasks keep their payload for manual re-parse.
type ParseEmailTask struct {
	gorm.Model
	TaskUID string `json:"taskUID" gorm:"size:36;uniqueIndex"`
	Status  string `json:"status" gorm:"size:12;index;default:init"` // init, queue, started, completed, error
	Error   string `json:"error" gorm:"size:500"`

	To       string         `json:"to" gorm:"size:256"`
	From     string         `json:"from" gorm:"size:256"`
	Subject  string         `json:"subject" gorm:"size:512"`
	DKIM     string         `json:"dkim" gorm:"size:256"`
	SPF      string         `json:"spf" gorm:"size:64"`
	SenderIP string         `json:"senderIP" gorm:"size:64"`
	Envelope datatypes.JSON `json:"envelope"`
	Charsets datatypes.JSON `json:"charsets"`
	Headers  string         `json:"headers" gorm:"type:text"`
	HTML     string         `json:"html" gorm:"type:text"`
	Text     string         `json:"text" gorm:"type:text"`

	AttachmentCount int `json:"attachmentCount"`

	MessageID *uint    `json:"messageID" gorm:"index"` // resulting Message once parsed
	Message   *Message `json:"message,omitempty" gorm:"foreignKey:MessageID"`
}
