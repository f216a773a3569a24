package models

import (
	"gorm.io/gorm"
)

// Template types.
const (
	TemplateEmail   = "email"
	TemplateMessage = "message"
)

// Template is a substitution template for automated guest communication.
// Subject, Headline and Content all accept {{ var.path }} tokens. A nil
// PropertyID scopes the template to the whole organization.
type Template struct {
	gorm.Model
	OrganizationID uint      `json:"organizationID" gorm:"index;not null"`
	PropertyID     *uint     `json:"propertyID" gorm:"index"`
	Property       *Property `json:"property,omitempty" gorm:"foreignKey:PropertyID"`
	Name           string    `json:"name" gorm:"size:128"`
	Subject        string    `json:"subject" gorm:"size:256"`
	Headline       string    `json:"headline" gorm:"size:256"`
	Content        string    `json:"content" gorm:"type:text"`
	TemplateType   string    `json:"templateType" gorm:"size:16;default:email"` // email, message
}
