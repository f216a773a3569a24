package models

import (
	"os"
	"strings"

	"gorm.io/gorm"
)

// ForwardingEmail routes inbound channel mail to an organization. Name is
// the opaque 12-char local-part; lookups are case-insensitive.
type ForwardingEmail struct {
	gorm.Model
	OrganizationID uint   `json:"organizationID" gorm:"index;not null"`
	Name           string `json:"name" gorm:"size:12;uniqueIndex;not null"`
	Enabled        *bool  `json:"enabled" gorm:"default:true"`
}

// ForwardDomain is the domain inbound addresses live on.
func ForwardDomain() string {
	if d := os.Getenv("EMAIL_FORWARD_DOMAIN"); d != "" {
		return d
	}
	return "in.hostpilot.app"
}

// Address returns the full inbound address for this forwarding entry.
func (f *ForwardingEmail) Address() string {
	return strings.ToLower(f.Name) + "@" + ForwardDomain()
}
