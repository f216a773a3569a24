package models

import (
	"gorm.io/gorm"
)

// User is a person the platform talks to or about: a guest, a property
// owner, a vendor's contact, or an operator.
type User struct {
	gorm.Model
	OrganizationID      *uint  `json:"organizationID" gorm:"index"`
	FirstName           string `json:"firstName"`
	LastName            string `json:"lastName"`
	Email               string `json:"email" gorm:"index"`
	PhoneNumber         string `json:"phoneNumber" gorm:"index"`
	AvatarURL           string `json:"avatarURL"`
	ExternalID          string `json:"externalID" gorm:"size:64;index"` // guest id on the booking channel
	AllowsNotifications *bool  `json:"allowsNotifications" gorm:"default:true"`
	Role                string `json:"role" gorm:"type:varchar(20);default:guest;index"` // guest, owner, vendor, admin, super_admin
}

// FullName joins first and last name, tolerating either being blank.
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}
