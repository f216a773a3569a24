package models

import (
	"gorm.io/gorm"
)

// Conversation is the single per-reservation message thread. ThreadID is
// the channel-side thread identifier when the reservation lives on a
// booking channel; it may be empty.
type Conversation struct {
	gorm.Model
	OrganizationID uint   `json:"organizationID" gorm:"index;not null"`
	ReservationID  uint   `json:"reservationID" gorm:"uniqueIndex;not null"`
	ThreadID       string `json:"threadID" gorm:"size:64;index"`
	Unread         bool   `json:"unread" gorm:"default:false"`

	Messages []Message `json:"messages" gorm:"constraint:OnDelete:CASCADE"`
}
