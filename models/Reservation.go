package models

import (
	"time"

	"gorm.io/gorm"
)

// Reservation statuses.
const (
	ReservationInquiry   = "inquiry"
	ReservationRequest   = "request"
	ReservationAccepted  = "accepted"
	ReservationCancelled = "cancelled"
	ReservationCompleted = "completed"
)

// Reservation sources. App and Web are first-party; the rest are channels.
const (
	SourceApp         = "app"
	SourceWeb         = "web"
	SourceAirbnb      = "airbnb"
	SourceVRBO        = "vrbo"
	SourceBooking     = "booking"
	SourceTripAdvisor = "trip_advisor"
	SourceHomeaway    = "homeaway"
)

// Reservation is a stay at a property. StartDate/EndDate are dates, not
// instants; EndDate is strictly after StartDate.
type Reservation struct {
	gorm.Model
	OrganizationID   uint       `json:"organizationID" gorm:"index;not null"`
	PropertyID       uint       `json:"propertyID" gorm:"index;not null"`
	Property         *Property  `json:"property,omitempty" gorm:"foreignKey:PropertyID"`
	GuestID          uint       `json:"guestID" gorm:"index"`
	Guest            *User      `json:"guest,omitempty" gorm:"foreignKey:GuestID"`
	StartDate        time.Time  `json:"startDate" gorm:"type:date;index"`
	EndDate          time.Time  `json:"endDate" gorm:"type:date"`
	Status           string     `json:"status" gorm:"size:16;index"` // inquiry, request, accepted, cancelled, completed
	Source           string     `json:"source" gorm:"size:20;index"` // app, web, airbnb, vrbo, booking, trip_advisor, homeaway
	ConfirmationCode string     `json:"confirmationCode" gorm:"size:20;index"`
	ExternalID       string     `json:"externalID" gorm:"size:64;index"`
	Adults           int        `json:"adults"`
	Children         int        `json:"children"`
	Infants          int        `json:"infants"`
	BaseTotal        float64    `json:"baseTotal"`
	Price            float64    `json:"price"`
	Currency         string     `json:"currency" gorm:"default:'USD'"`
	DateCancelled    *time.Time `json:"dateCancelled"`

	Fees         []ReservationFee `json:"fees" gorm:"constraint:OnDelete:CASCADE"`
	Conversation *Conversation    `json:"conversation,omitempty"`
}

// IsChannelSource reports whether the reservation came from a third-party
// booking channel rather than the app or web surface.
func (r *Reservation) IsChannelSource() bool {
	return r.Source != SourceApp && r.Source != SourceWeb && r.Source != ""
}

// Fee types. Unknown fee names map to OtherFee with the name preserved.
const (
	CleaningFee     = "cleaning_fee"
	ServiceFee      = "service_fee"
	SecurityDeposit = "security_deposit"
	OtherFee        = "other_fee"
)

// ReservationFee is one named fee line attached to a reservation.
type ReservationFee struct {
	gorm.Model
	ReservationID uint    `json:"reservationID" gorm:"index;not null"`
	FeeType       string  `json:"feeType" gorm:"size:24"` // cleaning_fee, service_fee, security_deposit, other_fee
	Name          string  `json:"name" gorm:"size:64"`
	Amount        float64 `json:"amount"`
}

// FeeTypeForName maps a channel fee label to our fee type, case-insensitive.
func FeeTypeForName(name string) string {
	switch normalizeFeeName(name) {
	case "cleaning fee":
		return CleaningFee
	case "service fee":
		return ServiceFee
	case "security deposit":
		return SecurityDeposit
	default:
		return OtherFee
	}
}

func normalizeFeeName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		out = append(out, r)
	}
	// collapse surrounding whitespace only; interior spacing is stable
	s := string(out)
	for len(s) > 0 && (s[0] == ' ' || s[0] == '\n' || s[0] == '\t') {
		s = s[1:]
	}
	for len(s) > 0 && (s[len(s)-1] == ' ' || s[len(s)-1] == '\n' || s[len(s)-1] == '\t') {
		s = s[:len(s)-1]
	}
	return s
}
