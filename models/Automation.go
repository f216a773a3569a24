package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Automation events, each anchored to a reservation date field.
const (
	EventBooking      = "booking"      // reservation creation date
	EventCancellation = "cancellation" // reservation cancellation date
	EventCheckIn      = "check_in"     // start date
	EventCheckOut     = "check_out"    // end date
	EventMessage      = "message"      // last update date
	EventChange       = "change"       // last update date
)

// Delivery methods. Auto picks the channel API when the reservation has an
// external-channel counterpart, email otherwise.
const (
	MethodEmail   = "email"
	MethodSMS     = "sms"
	MethodMessage = "message"
	MethodAuto    = "auto"
)

// Recipient types.
const (
	RecipientGuest = "guest"
	RecipientEmail = "email"
)

// ReservationAutomation is one firing rule: send the template to the
// recipient at event date minus DaysDelta, at Time in the property-local
// zone. A nil template disables the rule.
type ReservationAutomation struct {
	gorm.Model
	OrganizationID   uint           `json:"organizationID" gorm:"index;not null"`
	TemplateID       *uint          `json:"templateID" gorm:"index"`
	Template         *Template      `json:"template,omitempty" gorm:"foreignKey:TemplateID"`
	Event            string         `json:"event" gorm:"size:16;index"` // booking, cancellation, check_in, check_out, message, change
	DaysDelta        int            `json:"daysDelta"`
	Time             string         `json:"time" gorm:"type:varchar(5)"` // "HH:MM" property-local wall clock
	Method           string         `json:"method" gorm:"size:12;default:auto"` // email, sms, message, auto
	RecipientType    string         `json:"recipientType" gorm:"size:12;default:guest"` // guest, email
	RecipientAddress string         `json:"recipientAddress" gorm:"size:256"`
	CCAddress        datatypes.JSON `json:"ccAddress"`  // []string, email only
	BCCAddress       datatypes.JSON `json:"bccAddress"` // []string, email only
	IsActive         *bool          `json:"isActive" gorm:"default:true;index"`
}

// ReservationMessage records that an automation fired for a reservation.
// The unique (automation, reservation) pair is what makes overlapping
// scheduler ticks idempotent.
type ReservationMessage struct {
	gorm.Model
	AutomationID  uint           `json:"automationID" gorm:"uniqueIndex:idx_automation_reservation;not null"`
	ReservationID uint           `json:"reservationID" gorm:"uniqueIndex:idx_automation_reservation;not null"`
	Reservation   *Reservation   `json:"reservation,omitempty" gorm:"foreignKey:ReservationID"`
	Event         string         `json:"event" gorm:"size:16"`
	Recipient     string         `json:"recipient" gorm:"size:256"`
	RecipientInfo datatypes.JSON `json:"recipientInfo"` // {cc: [], bcc: []}
	Subject       string         `json:"subject" gorm:"size:256"`
	Content       string         `json:"content" gorm:"type:text"`
	MessageID     *uint          `json:"messageID" gorm:"index"` // the Message the dispatcher created
}
