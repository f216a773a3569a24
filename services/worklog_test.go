package services

import (
	"testing"

	"hostpilot-server/models"
	"hostpilot-server/storage"
)

type worklogFixture struct {
	org    models.Organization
	user   models.User
	vendor models.Vendor
	job    models.Job
}

func seedJob(t *testing.T) *worklogFixture {
	t.Helper()
	f := &worklogFixture{}
	f.org = models.Organization{Name: "Acme Stays"}
	storage.DB.Create(&f.org)
	f.user = models.User{FirstName: "Vera", PhoneNumber: "+15035551234", Role: "vendor"}
	storage.DB.Create(&f.user)
	f.vendor = models.Vendor{OrganizationID: f.org.ID, UserID: f.user.ID, Trade: "cleaning"}
	storage.DB.Create(&f.vendor)
	f.job = models.Job{
		OrganizationID: f.org.ID,
		VendorID:       &f.vendor.ID,
		Title:          "Turnover clean",
		Status:         models.JobNotAccepted,
	}
	storage.DB.Create(&f.job)
	return f
}

func TestJobCreatedLogsInitAndNotifiesAssignee(t *testing.T) {
	setupTestDB(t)
	f := seedJob(t)

	w := NewWorkLogService()
	if err := w.JobCreated(&f.job, nil); err != nil {
		t.Fatal(err)
	}

	var entry models.WorkLog
	if err := storage.DB.First(&entry).Error; err != nil {
		t.Fatalf("no worklog: %v", err)
	}
	if entry.Event != models.WorkInit || entry.JobID != f.job.ID {
		t.Fatalf("entry %+v", entry)
	}

	var notification models.Notification
	if err := storage.DB.First(&notification).Error; err != nil {
		t.Fatalf("no notification: %v", err)
	}
	if notification.UserID != f.user.ID || notification.Channel != models.NotifySMS {
		t.Fatalf("notification %+v", notification)
	}
	if notification.ContentType != models.ContentJob || notification.ContentID != f.job.ID {
		t.Fatal("notification not linked to job")
	}
	if notification.IsSent {
		t.Fatal("notification marked sent before drain")
	}
}

func TestJobStatusChangeEventMapping(t *testing.T) {
	setupTestDB(t)
	f := seedJob(t)
	w := NewWorkLogService()

	cases := []struct {
		status string
		event  string
	}{
		{models.JobNotAcceptedSeen, models.WorkSeen},
		{models.JobAccepted, models.WorkAccept},
		{models.JobInProgress, models.WorkStart},
		{models.JobPaused, models.WorkPause},
		{models.JobCompleted, models.WorkFinish},
		{models.JobUnableToComplete, models.WorkFinishUnable},
		{models.JobCancelled, models.WorkCancel},
		{models.JobDeclined, models.WorkDecline},
		{models.JobIncomplete, models.WorkIncomplete},
	}
	for _, tc := range cases {
		f.job.Status = tc.status
		if err := w.JobStatusChanged(&f.job, &f.user.ID, ""); err != nil {
			t.Fatalf("%s: %v", tc.status, err)
		}
		var entry models.WorkLog
		storage.DB.Order("id DESC").First(&entry)
		if entry.Event != tc.event {
			t.Fatalf("status %s logged %s, want %s", tc.status, entry.Event, tc.event)
		}
	}

	var count int64
	storage.DB.Model(&models.WorkLog{}).Count(&count)
	if count != int64(len(cases)) {
		t.Fatalf("%d worklog rows, want exactly one per change", count)
	}
}

func TestAssigneeChangedAppendsReassignAndNotifies(t *testing.T) {
	setupTestDB(t)
	f := seedJob(t)

	newUser := models.User{FirstName: "Nils", PhoneNumber: "+15035559876", Role: "vendor"}
	storage.DB.Create(&newUser)
	newVendor := models.Vendor{OrganizationID: f.org.ID, UserID: newUser.ID, Trade: "maintenance"}
	storage.DB.Create(&newVendor)

	w := NewWorkLogService()
	if err := w.AssigneeChanged(&f.job, newVendor.ID, nil); err != nil {
		t.Fatal(err)
	}

	var entry models.WorkLog
	storage.DB.Order("id DESC").First(&entry)
	if entry.Event != models.WorkReassign {
		t.Fatalf("event %q", entry.Event)
	}
	var notification models.Notification
	if err := storage.DB.First(&notification).Error; err != nil {
		t.Fatalf("no notification: %v", err)
	}
	if notification.UserID != newUser.ID {
		t.Fatal("notification went to the old assignee")
	}
}

func TestReportCreatedProblemEvent(t *testing.T) {
	setupTestDB(t)
	f := seedJob(t)
	w := NewWorkLogService()

	report := models.Report{JobID: f.job.ID, VendorID: f.vendor.ID, IsProblem: true, Note: "leak under sink"}
	storage.DB.Create(&report)
	if err := w.ReportCreated(&report); err != nil {
		t.Fatal(err)
	}

	var entry models.WorkLog
	storage.DB.Order("id DESC").First(&entry)
	if entry.Event != models.WorkProblem || entry.Note != "leak under sink" {
		t.Fatalf("entry %+v", entry)
	}
	if entry.ActorID == nil || *entry.ActorID != f.user.ID {
		t.Fatal("actor not resolved from vendor")
	}

	plain := models.Report{JobID: f.job.ID, VendorID: f.vendor.ID, Note: "halfway done"}
	storage.DB.Create(&plain)
	if err := w.ReportCreated(&plain); err != nil {
		t.Fatal(err)
	}
	// fresh struct: a populated one would pin the query to its primary key
	var latest models.WorkLog
	storage.DB.Order("id DESC").First(&latest)
	if latest.Event != models.WorkContact {
		t.Fatalf("event %q, want contact", latest.Event)
	}
}

func TestVendorCreatedQueuesWelcome(t *testing.T) {
	setupTestDB(t)
	f := seedJob(t)

	w := NewWorkLogService()
	if err := w.VendorCreated(&f.vendor); err != nil {
		t.Fatal(err)
	}
	var notification models.Notification
	if err := storage.DB.First(&notification).Error; err != nil {
		t.Fatalf("no notification: %v", err)
	}
	if notification.ContentType != models.ContentVendor || notification.ContentID != f.vendor.ID {
		t.Fatalf("notification %+v", notification)
	}
}

func TestNotificationDrainSendsSMS(t *testing.T) {
	setupTestDB(t)
	f := seedJob(t)

	w := NewWorkLogService()
	w.JobCreated(&f.job, nil)

	transports, _, smsT, _ := fakeTransports(false)
	ns := NewNotificationService(transports)
	if sent := ns.Drain(); sent != 1 {
		t.Fatalf("drained %d, want 1", sent)
	}
	if len(smsT.sent) != 1 || smsT.sent[0].Recipient != "+15035551234" {
		t.Fatalf("sms sends: %+v", smsT.sent)
	}

	var notification models.Notification
	storage.DB.First(&notification)
	if !notification.IsSent {
		t.Fatal("notification not marked sent")
	}
	// A second drain finds nothing.
	if sent := ns.Drain(); sent != 0 {
		t.Fatalf("second drain sent %d", sent)
	}
}

func TestNotificationDrainLeavesFailedUnsent(t *testing.T) {
	setupTestDB(t)
	f := seedJob(t)
	NewWorkLogService().JobCreated(&f.job, nil)

	transports, _, _, _ := fakeTransports(true)
	ns := NewNotificationService(transports)
	if sent := ns.Drain(); sent != 0 {
		t.Fatalf("drained %d on failing transport", sent)
	}
	var notification models.Notification
	storage.DB.First(&notification)
	if notification.IsSent {
		t.Fatal("failed notification marked sent")
	}
}
