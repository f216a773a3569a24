package routes

import (
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/kataras/iris/v12"
	"gorm.io/datatypes"

	"hostpilot-server/models"
	"hostpilot-server/services"
	"hostpilot-server/storage"
	"hostpilot-server/utils"
)

// InboundEmail receives the email provider's multipart webhook and stores
// the payload as a parse task. Always 200; the provider must never retry,
// parse failures surface on the task row instead.
func InboundEmail(ctx iris.Context) {
	task := models.ParseEmailTask{
		TaskUID:  uuid.NewString(),
		Status:   models.ParseInit,
		To:       ctx.FormValue("to"),
		From:     ctx.FormValue("from"),
		Subject:  ctx.FormValue("subject"),
		DKIM:     ctx.FormValue("dkim"),
		SPF:      ctx.FormValue("SPF"),
		SenderIP: ctx.FormValue("sender_ip"),
		Headers:  ctx.FormValue("headers"),
		HTML:     ctx.FormValue("html"),
		Text:     ctx.FormValue("text"),
	}
	if envelope := ctx.FormValue("envelope"); envelope != "" {
		task.Envelope = datatypes.JSON(envelope)
	}
	if charsets := ctx.FormValue("charsets"); charsets != "" {
		task.Charsets = datatypes.JSON(charsets)
	}
	if attachments := ctx.FormValue("attachments"); attachments != "" {
		task.AttachmentCount, _ = strconv.Atoi(attachments)
	}

	if err := storage.DB.Create(&task).Error; err != nil {
		log.Printf("❌ WEBHOOK: storing email task: %v", err)
	}

	// 200 no matter what; a non-2xx would make the provider re-deliver.
	ctx.StatusCode(iris.StatusOK)
	ctx.JSON(iris.Map{"taskUID": task.TaskUID})
}

// smsKeywordStatuses maps an inbound SMS keyword to the job status it
// requests. Anything unrecognized parks the job as incomplete for operator
// review.
var smsKeywordStatuses = map[string]string{
	"yes":     models.JobAccepted,
	"checkin": models.JobInProgress,
	"finish":  models.JobCompleted,
	"pause":   models.JobPaused,
	"cancel":  models.JobCancelled,
	"decline": models.JobDeclined,
}

// InboundSMS receives the SMS provider's inbound webhook. The sender is
// matched to a vendor by phone and the keyword drives their current job.
func InboundSMS(ctx iris.Context) {
	msisdn := ctx.FormValueDefault("msisdn", ctx.URLParam("msisdn"))
	text := ctx.FormValueDefault("text", ctx.URLParam("text"))
	keyword := ctx.FormValueDefault("keyword", ctx.URLParam("keyword"))
	if keyword == "" {
		keyword = text
	}
	keyword = strings.ToLower(strings.TrimSpace(keyword))

	status, ok := smsKeywordStatuses[keyword]
	if !ok {
		status = models.JobIncomplete
	}

	job, vendor := jobForSender(msisdn)
	if job == nil {
		log.Printf("⏭  WEBHOOK: sms from %s matches no open job", msisdn)
		ctx.StatusCode(iris.StatusOK)
		return
	}

	if err := storage.DB.Model(&models.Job{}).Where("id = ?", job.ID).
		Update("status", status).Error; err != nil {
		log.Printf("❌ WEBHOOK: updating job %d: %v", job.ID, err)
		ctx.StatusCode(iris.StatusOK)
		return
	}
	job.Status = status

	worklog := services.NewWorkLogService()
	if err := worklog.JobStatusChanged(job, &vendor.UserID, text); err == nil && status == models.JobAccepted {
		// confirmation back to the vendor
		worklog.AssigneeConfirmed(job, vendor)
	}

	ctx.StatusCode(iris.StatusOK)
}

// jobForSender finds the most recent actionable job assigned to the vendor
// whose phone matches the sender.
func jobForSender(msisdn string) (*models.Job, *models.Vendor) {
	phone := utils.ToE164(msisdn)
	if phone == "" {
		return nil, nil
	}

	var user models.User
	err := storage.DB.Where("phone_number = ? OR phone_number = ?", phone, msisdn).
		First(&user).Error
	if err != nil {
		return nil, nil
	}
	var vendor models.Vendor
	if err := storage.DB.Where("user_id = ?", user.ID).First(&vendor).Error; err != nil {
		return nil, nil
	}

	var job models.Job
	err = storage.DB.
		Where("vendor_id = ? AND status NOT IN ?", vendor.ID,
			[]string{models.JobCompleted, models.JobCancelled, models.JobDeclined}).
		Order("id DESC").First(&job).Error
	if err != nil {
		return nil, nil
	}
	return &job, &vendor
}

var verificationCodePattern = regexp.MustCompile(`\b([A-Z0-9]{4})\b`)

type verificationInput struct {
	Phone   string `json:"phone" validate:"required"`
	Content string `json:"content" validate:"required"`
}

// VerificationCode ingests a verification SMS relayed for a channel
// account login and stores the code on the matching account.
func VerificationCode(ctx iris.Context) {
	var req verificationInput
	if err := ctx.ReadJSON(&req); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	if !strings.Contains(req.Content, "apartments.com") {
		ctx.StatusCode(iris.StatusOK)
		return
	}
	m := verificationCodePattern.FindStringSubmatch(req.Content)
	if m == nil {
		ctx.StatusCode(iris.StatusOK)
		return
	}

	phone := utils.ToE164(req.Phone)
	result := storage.DB.Model(&models.ChannelAccount{}).
		Where("phone = ? OR phone = ?", phone, req.Phone).
		Update("last_verification_code", m[1])
	if result.Error != nil {
		log.Printf("❌ WEBHOOK: storing verification code: %v", result.Error)
	} else if result.RowsAffected == 0 {
		log.Printf("⏭  WEBHOOK: verification code for unknown phone %s", req.Phone)
	}

	ctx.StatusCode(iris.StatusOK)
}
