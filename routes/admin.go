package routes

import (
	"github.com/kataras/iris/v12"

	"hostpilot-server/models"
	"hostpilot-server/services"
	"hostpilot-server/storage"
	"hostpilot-server/utils"
)

// AdminListParseTasks: GET /api/admin/parse-tasks?status=...&page=...&per_page=...
func AdminListParseTasks(ctx iris.Context) {
	page := ctx.URLParamIntDefault("page", 1)
	perPage := ctx.URLParamIntDefault("per_page", 25)
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 25
	}

	q := storage.DB.Model(&models.ParseEmailTask{})
	if status := ctx.URLParam("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	var tasks []models.ParseEmailTask
	err := q.Select("id, created_at, updated_at, task_uid, status, error, \"to\", \"from\", subject, dkim, spf, sender_ip, attachment_count, message_id").
		Order("id DESC").Offset((page - 1) * perPage).Limit(perPage).Find(&tasks).Error
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	utils.JSONPage(ctx, tasks, page, perPage, total)
}

// AdminGetParseTask: GET /api/admin/parse-tasks/{uid} — full payload.
func AdminGetParseTask(ctx iris.Context) {
	uid := ctx.Params().Get("uid")
	var task models.ParseEmailTask
	if err := storage.DB.Where("task_uid = ?", uid).First(&task).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}
	ctx.JSON(task)
}

// AdminReparseTask: POST /api/admin/parse-tasks/{uid}/reparse — runs the
// parse pipeline again on the stored payload. The usual path for errored
// tasks once the operator fixed the underlying data.
func AdminReparseTask(ctx iris.Context) {
	uid := ctx.Params().Get("uid")
	var task models.ParseEmailTask
	if err := storage.DB.Where("task_uid = ?", uid).First(&task).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}
	if task.HTML == "" && task.Text == "" && task.Headers == "" {
		utils.JSONError(ctx, iris.StatusConflict, "payload_cleaned", "task payload has been cleaned up")
		return
	}

	before := iris.Map{"status": task.Status, "error": task.Error}

	parser := services.NewEmailParser(services.NewMessageStore(services.NowUTC), services.NowUTC)
	parser.ProcessTask(&task)

	utils.Audit(ctx, "parse_task.reparse", "parse_email_task", task.ID, before,
		iris.Map{"status": task.Status, "error": task.Error})
	ctx.JSON(task)
}

// AdminListNotifications: GET /api/admin/notifications?sent=...
func AdminListNotifications(ctx iris.Context) {
	page := ctx.URLParamIntDefault("page", 1)
	perPage := ctx.URLParamIntDefault("per_page", 25)
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 25
	}

	q := storage.DB.Model(&models.Notification{})
	if sent := ctx.URLParam("sent"); sent != "" {
		q = q.Where("is_sent = ?", sent == "true")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	var notifications []models.Notification
	err := q.Preload("User").Order("id DESC").
		Offset((page - 1) * perPage).Limit(perPage).Find(&notifications).Error
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	utils.JSONPage(ctx, notifications, page, perPage, total)
}
