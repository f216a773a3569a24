package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notification channels.
const (
	NotifySMS   = "sms"
	NotifyEmail = "email"
	NotifySlack = "slack"
)

// Content object tags for the Notification/WorkLog polymorphic link.
const (
	ContentReservation  = "reservation"
	ContentMessage      = "message"
	ContentJob          = "job"
	ContentVendor       = "vendor"
	ContentConversation = "conversation"
)

// Notification is an outbound operational side effect waiting for the
// drainer. IsSent stays false until a transport accepted it.
type Notification struct {
	gorm.Model
	OrganizationID uint           `json:"organizationID" gorm:"index;not null"`
	UserID         uint           `json:"userID" gorm:"index;not null"`
	User           *User          `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Channel        string         `json:"channel" gorm:"size:12;index"` // sms, email, slack
	Content        string         `json:"content" gorm:"size:1000"`
	ContentData    datatypes.JSON `json:"contentData"`
	IsSent         bool           `json:"isSent" gorm:"default:false;index"`
	IsRead         bool           `json:"isRead" gorm:"default:false"`

	// Tagged link to the object the notification is about.
	ContentType string `json:"contentType" gorm:"size:16;index"` // reservation, message, job, vendor, conversation
	ContentID   uint   `json:"contentID" gorm:"index"`
}
