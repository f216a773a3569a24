package routes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/kataras/iris/v12"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"hostpilot-server/models"
	"hostpilot-server/storage"
)

// setupTestDB points storage.DB at a per-test in-memory sqlite database
// with the full schema migrated.
func setupTestDB(t *testing.T) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	storage.DB = db
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})
}

// buildWebhookApp wires just the webhook party; webhooks carry no token.
func buildWebhookApp() *iris.Application {
	app := iris.New()
	webhook := app.Party("/api/webhook")
	{
		webhook.Post("/email", InboundEmail)
		webhook.Get("/sms", InboundSMS)
		webhook.Post("/sms", InboundSMS)
		webhook.Post("/verification", VerificationCode)
	}
	app.Build()
	return app
}

func postForm(t *testing.T, app *iris.Application, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp := httptest.NewRecorder()
	app.ServeHTTP(resp, req)
	return resp
}

func TestInboundEmailStoresParseTask(t *testing.T) {
	setupTestDB(t)
	app := buildWebhookApp()

	form := url.Values{}
	form.Set("to", "AB12CD34EF56@in.hostpilot.app")
	form.Set("from", "express@airbnb.com")
	form.Set("subject", "Reservation confirmed")
	form.Set("dkim", "{@airbnb.com : pass}")
	form.Set("envelope", `{"to":["AB12CD34EF56@in.hostpilot.app"],"from":"express@airbnb.com"}`)
	form.Set("headers", "Message-Id: <m1@airbnb.com>\n")
	form.Set("text", "Confirmation code: HMABCD1234")
	form.Set("attachments", "2")

	resp := postForm(t, app, "/api/webhook/email", form)
	if resp.Code != http.StatusOK {
		t.Fatalf("status %d", resp.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad body %q: %v", resp.Body.String(), err)
	}
	if body["taskUID"] == "" {
		t.Fatal("no taskUID in response")
	}

	var task models.ParseEmailTask
	if err := storage.DB.Where("task_uid = ?", body["taskUID"]).First(&task).Error; err != nil {
		t.Fatalf("task not stored: %v", err)
	}
	if task.Status != models.ParseInit {
		t.Fatalf("status %q", task.Status)
	}
	if task.From != "express@airbnb.com" || task.To != "AB12CD34EF56@in.hostpilot.app" {
		t.Fatalf("task %q -> %q", task.From, task.To)
	}
	if task.AttachmentCount != 2 {
		t.Fatalf("attachments %d", task.AttachmentCount)
	}
}

func seedVendorJob(t *testing.T) (*models.Vendor, *models.Job) {
	t.Helper()
	org := models.Organization{Name: "Acme Stays"}
	storage.DB.Create(&org)
	user := models.User{FirstName: "Vera", PhoneNumber: "+15035551234", Role: "vendor"}
	storage.DB.Create(&user)
	vendor := models.Vendor{OrganizationID: org.ID, UserID: user.ID, Trade: "cleaning"}
	storage.DB.Create(&vendor)
	job := models.Job{
		OrganizationID: org.ID,
		VendorID:       &vendor.ID,
		Title:          "Turnover clean",
		Status:         models.JobNotAccepted,
	}
	storage.DB.Create(&job)
	return &vendor, &job
}

func TestInboundSMSYesAcceptsJob(t *testing.T) {
	setupTestDB(t)
	vendor, job := seedVendorJob(t)
	app := buildWebhookApp()

	form := url.Values{}
	form.Set("msisdn", "15035551234")
	form.Set("to", "15035550000")
	form.Set("messageId", "sms-1")
	form.Set("text", "yes")

	if resp := postForm(t, app, "/api/webhook/sms", form); resp.Code != http.StatusOK {
		t.Fatalf("status %d", resp.Code)
	}

	var updated models.Job
	storage.DB.First(&updated, job.ID)
	if updated.Status != models.JobAccepted {
		t.Fatalf("job status %q", updated.Status)
	}

	var entry models.WorkLog
	if err := storage.DB.Where("job_id = ? AND event = ?", job.ID, models.WorkAccept).
		First(&entry).Error; err != nil {
		t.Fatalf("no accept worklog: %v", err)
	}
	if entry.ActorID == nil || *entry.ActorID != vendor.UserID {
		t.Fatal("accept not attributed to the vendor")
	}

	// the vendor gets a confirmation queued
	var notification models.Notification
	if err := storage.DB.Where("user_id = ?", vendor.UserID).First(&notification).Error; err != nil {
		t.Fatalf("no confirmation notification: %v", err)
	}
	if notification.IsSent {
		t.Fatal("confirmation marked sent before drain")
	}
}

func TestInboundSMSUnknownKeywordParksJob(t *testing.T) {
	setupTestDB(t)
	_, job := seedVendorJob(t)
	app := buildWebhookApp()

	form := url.Values{}
	form.Set("msisdn", "15035551234")
	form.Set("text", "on my way, stuck in traffic")

	postForm(t, app, "/api/webhook/sms", form)

	var updated models.Job
	storage.DB.First(&updated, job.ID)
	if updated.Status != models.JobIncomplete {
		t.Fatalf("job status %q, want incomplete", updated.Status)
	}
}

func TestInboundSMSUnknownSenderIsNoOp(t *testing.T) {
	setupTestDB(t)
	_, job := seedVendorJob(t)
	app := buildWebhookApp()

	form := url.Values{}
	form.Set("msisdn", "12125559999")
	form.Set("text", "yes")

	if resp := postForm(t, app, "/api/webhook/sms", form); resp.Code != http.StatusOK {
		t.Fatalf("status %d", resp.Code)
	}
	var updated models.Job
	storage.DB.First(&updated, job.ID)
	if updated.Status != models.JobNotAccepted {
		t.Fatalf("stranger moved the job to %q", updated.Status)
	}
}

func TestInboundSMSViaGetParams(t *testing.T) {
	setupTestDB(t)
	_, job := seedVendorJob(t)
	app := buildWebhookApp()

	req := httptest.NewRequest(http.MethodGet,
		"/api/webhook/sms?msisdn=15035551234&text=checkin&keyword=CHECKIN", nil)
	resp := httptest.NewRecorder()
	app.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("status %d", resp.Code)
	}

	var updated models.Job
	storage.DB.First(&updated, job.ID)
	if updated.Status != models.JobInProgress {
		t.Fatalf("job status %q", updated.Status)
	}
}

func TestVerificationCodeStored(t *testing.T) {
	setupTestDB(t)
	org := models.Organization{Name: "Acme Stays"}
	storage.DB.Create(&org)
	account := models.ChannelAccount{OrganizationID: org.ID, Site: "apartments", Phone: "+15035551234"}
	storage.DB.Create(&account)

	app := buildWebhookApp()
	body := `{"phone":"15035551234","content":"Your apartments.com verification code is 7G4K."}`
	req := httptest.NewRequest(http.MethodPost, "/api/webhook/verification", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	app.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("status %d", resp.Code)
	}

	var updated models.ChannelAccount
	storage.DB.First(&updated, account.ID)
	if updated.LastVerificationCode != "7G4K" {
		t.Fatalf("code %q", updated.LastVerificationCode)
	}
}

func TestVerificationCodeIgnoresUnrelatedContent(t *testing.T) {
	setupTestDB(t)
	org := models.Organization{Name: "Acme Stays"}
	storage.DB.Create(&org)
	account := models.ChannelAccount{OrganizationID: org.ID, Site: "apartments", Phone: "+15035551234"}
	storage.DB.Create(&account)

	app := buildWebhookApp()
	body := `{"phone":"15035551234","content":"Your bank code is 9Z2X."}`
	req := httptest.NewRequest(http.MethodPost, "/api/webhook/verification", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	app.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("status %d", resp.Code)
	}

	var updated models.ChannelAccount
	storage.DB.First(&updated, account.ID)
	if updated.LastVerificationCode != "" {
		t.Fatalf("unrelated content stored code %q", updated.LastVerificationCode)
	}
}
