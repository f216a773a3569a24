package services

import (
	"encoding/json"
	"fmt"
	"log"

	"gorm.io/datatypes"

	"hostpilot-server/models"
	"hostpilot-server/storage"
)

// statusEvents maps a job status transition target to the worklog event it
// records.
var statusEvents = map[string]string{
	models.JobNotAccepted:      models.WorkInit,
	models.JobNotAcceptedSeen:  models.WorkSeen,
	models.JobAccepted:         models.WorkAccept,
	models.JobIncomplete:       models.WorkIncomplete,
	models.JobInProgress:       models.WorkStart,
	models.JobPaused:           models.WorkPause,
	models.JobCompleted:        models.WorkFinish,
	models.JobUnableToComplete: models.WorkFinishUnable,
	models.JobCancelled:        models.WorkCancel,
	models.JobDeclined:         models.WorkDecline,
}

// WorkLogService observes job lifecycle changes, appends the worklog rows
// and queues the operational notifications they imply. Notifications are
// rows only; the drainer sends them.
type WorkLogService struct{}

func NewWorkLogService() *WorkLogService {
	return &WorkLogService{}
}

// JobCreated records the init event and pings the assignee, when there is
// one.
func (w *WorkLogService) JobCreated(job *models.Job, actorID *uint) error {
	if err := w.appendLog(job.ID, models.WorkInit, actorID, ""); err != nil {
		return err
	}
	if job.VendorID == nil {
		return nil
	}
	return w.notifyVendor(job.OrganizationID, *job.VendorID,
		fmt.Sprintf("New job: %s. Reply YES to accept or DECLINE to pass.", job.Title),
		models.ContentJob, job.ID)
}

// JobStatusChanged appends the worklog event for the new status. Unknown
// statuses are logged and skipped rather than failing the transition.
func (w *WorkLogService) JobStatusChanged(job *models.Job, actorID *uint, note string) error {
	event, ok := statusEvents[job.Status]
	if !ok {
		log.Printf("⏭  WORKLOG: job %d: no event for status %q", job.ID, job.Status)
		return nil
	}
	return w.appendLog(job.ID, event, actorID, note)
}

// AssigneeChanged records the reassignment and pings the new assignee.
func (w *WorkLogService) AssigneeChanged(job *models.Job, newVendorID uint, actorID *uint) error {
	if err := w.appendLog(job.ID, models.WorkReassign, actorID, ""); err != nil {
		return err
	}
	return w.notifyVendor(job.OrganizationID, newVendorID,
		fmt.Sprintf("Job reassigned to you: %s. Reply YES to accept.", job.Title),
		models.ContentJob, job.ID)
}

// AssigneeConfirmed queues the confirmation the vendor gets after
// accepting a job.
func (w *WorkLogService) AssigneeConfirmed(job *models.Job, vendor *models.Vendor) error {
	return w.notify(job.OrganizationID, vendor.UserID,
		fmt.Sprintf("You're confirmed for: %s.", job.Title),
		models.ContentJob, job.ID)
}

// ReportCreated records a field report as contact, or problem when the
// vendor flagged one.
func (w *WorkLogService) ReportCreated(report *models.Report) error {
	event := models.WorkContact
	if report.IsProblem {
		event = models.WorkProblem
	}
	var vendor models.Vendor
	var actorID *uint
	if err := storage.DB.First(&vendor, report.VendorID).Error; err == nil {
		actorID = &vendor.UserID
	}
	return w.appendLog(report.JobID, event, actorID, report.Note)
}

// VendorCreated sends the welcome SMS so the vendor knows job texts will
// arrive on this number.
func (w *WorkLogService) VendorCreated(vendor *models.Vendor) error {
	return w.notify(vendor.OrganizationID, vendor.UserID,
		"Welcome! You'll receive job requests at this number. Reply YES to accept a job.",
		models.ContentVendor, vendor.ID)
}

func (w *WorkLogService) appendLog(jobID uint, event string, actorID *uint, note string) error {
	entry := models.WorkLog{
		JobID:   jobID,
		Event:   event,
		ActorID: actorID,
		Note:    note,
	}
	if err := storage.DB.Create(&entry).Error; err != nil {
		log.Printf("❌ WORKLOG: job %d event %s: %v", jobID, event, err)
		return err
	}
	return nil
}

func (w *WorkLogService) notifyVendor(organizationID, vendorID uint, content, contentType string, contentID uint) error {
	var vendor models.Vendor
	if err := storage.DB.First(&vendor, vendorID).Error; err != nil {
		return err
	}
	return w.notify(organizationID, vendor.UserID, content, contentType, contentID)
}

func (w *WorkLogService) notify(organizationID, userID uint, content, contentType string, contentID uint) error {
	data, _ := json.Marshal(map[string]interface{}{"contentType": contentType, "contentID": contentID})
	notification := models.Notification{
		OrganizationID: organizationID,
		UserID:         userID,
		Channel:        models.NotifySMS,
		Content:        content,
		ContentData:    datatypes.JSON(data),
		ContentType:    contentType,
		ContentID:      contentID,
	}
	if err := storage.DB.Create(&notification).Error; err != nil {
		log.Printf("❌ WORKLOG: queueing notification for user %d: %v", userID, err)
		return err
	}
	return nil
}
