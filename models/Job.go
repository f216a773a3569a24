package models

import (
	"time"

	"gorm.io/gorm"
)

// Job statuses.
const (
	JobNotAccepted      = "not_accepted"
	JobNotAcceptedSeen  = "not_accepted_seen"
	JobAccepted         = "accepted"
	JobIncomplete       = "incomplete"
	JobInProgress       = "in_progress"
	JobPaused           = "paused"
	JobCompleted        = "completed"
	JobUnableToComplete = "unable_to_complete"
	JobCancelled        = "cancelled"
	JobDeclined         = "declined"
)

// WorkLog events.
const (
	WorkInit         = "init"
	WorkSeen         = "seen"
	WorkAccept       = "accept"
	WorkIncomplete   = "incomplete"
	WorkStart        = "start"
	WorkPause        = "pause"
	WorkFinish       = "finish"
	WorkFinishUnable = "finish_unable"
	WorkCancel       = "cancel"
	WorkDecline      = "decline"
	WorkReassign     = "reassign"
	WorkContact      = "contact"
	WorkProblem      = "problem"
)

// Vendor is a service provider attached to an organization.
type Vendor struct {
	gorm.Model
	OrganizationID uint   `json:"organizationID" gorm:"index;not null"`
	UserID         uint   `json:"userID" gorm:"index;not null"`
	User           *User  `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Trade          string `json:"trade" gorm:"size:64"` // cleaning, maintenance, ...
	IsActive       *bool  `json:"isActive" gorm:"default:true"`
}

// Job is a unit of vendor work; its status transitions drive the worklog
// pipeline.
type Job struct {
	gorm.Model
	OrganizationID uint       `json:"organizationID" gorm:"index;not null"`
	PropertyID     *uint      `json:"propertyID" gorm:"index"`
	VendorID       *uint      `json:"vendorID" gorm:"index"` // current assignee
	Vendor         *Vendor    `json:"vendor,omitempty" gorm:"foreignKey:VendorID"`
	Title          string     `json:"title" gorm:"size:256"`
	Description    string     `json:"description" gorm:"type:text"`
	Status         string     `json:"status" gorm:"size:24;index;default:not_accepted"`
	ScheduledFor   *time.Time `json:"scheduledFor"`
}

// WorkLog is the append-only audit row for a job lifecycle event.
type WorkLog struct {
	gorm.Model
	JobID   uint   `json:"jobID" gorm:"index;not null"`
	Event   string `json:"event" gorm:"size:16;index"`
	ActorID *uint  `json:"actorID"`
	Note    string `json:"note" gorm:"size:500"`
}

// Report is a vendor's check-in from the field; problems get their own
// worklog event.
type Report struct {
	gorm.Model
	JobID     uint   `json:"jobID" gorm:"index;not null"`
	VendorID  uint   `json:"vendorID" gorm:"index"`
	IsProblem bool   `json:"isProblem"`
	Note      string `json:"note" gorm:"type:text"`
}
