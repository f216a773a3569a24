package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Organization is the tenant boundary. Every messaging entity hangs off an
// organization and is removed with it.
type Organization struct {
	gorm.Model
	Name            string `json:"name" gorm:"not null"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	ChannelEnabled  bool   `json:"channelEnabled" gorm:"default:false"`  // channel-API messaging on
	ChatAutoRespond bool   `json:"chatAutoRespond" gorm:"default:false"` // auto-respond to inbound chat

	ForwardingEmails []ForwardingEmail       `json:"forwardingEmails" gorm:"constraint:OnDelete:CASCADE"`
	Templates        []Template              `json:"templates" gorm:"constraint:OnDelete:CASCADE"`
	Automations      []ReservationAutomation `json:"automations" gorm:"constraint:OnDelete:CASCADE"`
	Variables        []Variable              `json:"variables" gorm:"constraint:OnDelete:CASCADE"`
	Numbers          []Number                `json:"numbers" gorm:"constraint:OnDelete:CASCADE"`
	Credentials      []ChannelCredential     `json:"credentials" gorm:"constraint:OnDelete:CASCADE"`
}

// Variable is an organization-defined template variable, resolvable from
// templates as {{variables.<name>}}.
type Variable struct {
	gorm.Model
	OrganizationID uint   `json:"organizationID" gorm:"uniqueIndex:idx_org_variable_name;not null"`
	Name           string `json:"name" gorm:"size:64;uniqueIndex:idx_org_variable_name;not null"`
	Value          string `json:"value" gorm:"size:500"`
}

// ChannelCredential holds per-organization credentials for a third-party
// booking channel's messaging API.
type ChannelCredential struct {
	gorm.Model
	OrganizationID uint   `json:"organizationID" gorm:"index;not null"`
	Channel        string `json:"channel" gorm:"size:32;index"` // airbnb, homeaway, vrbo
	BaseURL        string `json:"baseURL" gorm:"size:256"`
	APIKey         string `json:"-" gorm:"size:128"`
	APISecret      string `json:"-" gorm:"size:128"`
}

// Number is an SMS sender number owned by an organization.
type Number struct {
	gorm.Model
	OrganizationID uint   `json:"organizationID" gorm:"index;not null"`
	PhoneNumber    string `json:"phoneNumber" gorm:"size:20;uniqueIndex"`
	IsActive       *bool  `json:"isActive" gorm:"default:true"`
}

// ChannelAccount is a login the organization holds on an external listing
// site; the verification-code webhook updates LastVerificationCode.
type ChannelAccount struct {
	gorm.Model
	OrganizationID       uint           `json:"organizationID" gorm:"index;not null"`
	Site                 string         `json:"site" gorm:"size:64"` // e.g. apartments.com
	Phone                string         `json:"phone" gorm:"size:20;index"`
	Username             string         `json:"username" gorm:"size:128"`
	LastVerificationCode string         `json:"lastVerificationCode" gorm:"size:8"`
	Meta                 datatypes.JSON `json:"meta"`
}
