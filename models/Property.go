package models

import (
	"gorm.io/gorm"
)

// Property is a rentable tenant asset. TimeZone is the IANA zone the
// automation scheduler projects wall-clock time into; a property with a
// blank zone never participates in scheduling.
type Property struct {
	gorm.Model
	OrganizationID uint    `json:"organizationID" gorm:"index;not null"`
	OwnerID        uint    `json:"ownerID" gorm:"index"`
	Owner          *User   `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
	Title          string  `json:"title"`
	AddressLine1   string  `json:"addressLine1"`
	City           string  `json:"city"`
	State          string  `json:"state"`
	Zip            string  `json:"zip"`
	Country        string  `json:"country"`
	TimeZone       string  `json:"timeZone" gorm:"size:64;index"` // IANA identifier
	CheckInTime    string  `json:"checkInTime" gorm:"type:varchar(10)"`
	CheckOutTime   string  `json:"checkOutTime" gorm:"type:varchar(10)"`
	NightlyPrice   float64 `json:"nightlyPrice"`
	Currency       string  `json:"currency" gorm:"default:'USD'"`
	IsActive       *bool   `json:"isActive" gorm:"default:true"`

	ExternalListings []ExternalListing  `json:"externalListings" gorm:"constraint:OnDelete:CASCADE"`
	Calendars        []ExternalCalendar `json:"calendars" gorm:"constraint:OnDelete:CASCADE"`
}

// ExternalListing binds a property to its identity on a booking channel.
type ExternalListing struct {
	gorm.Model
	PropertyID uint   `json:"propertyID" gorm:"index;not null"`
	Channel    string `json:"channel" gorm:"size:32"` // airbnb, homeaway, vrbo, booking
	ListingID  string `json:"listingID" gorm:"size:64;index;not null"`
}

// ExternalCalendar is an iCal feed imported for a property; its URL embeds
// the channel listing id and serves as a fallback listing index.
type ExternalCalendar struct {
	gorm.Model
	PropertyID uint   `json:"propertyID" gorm:"index;not null"`
	URL        string `json:"url" gorm:"size:512"`
}
