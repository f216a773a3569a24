package routes

import (
	"net/http"

	"github.com/kataras/iris/v12"

	"hostpilot-server/models"
	"hostpilot-server/services"
	"hostpilot-server/storage"
	"hostpilot-server/utils"
)

// ListConversations: GET /api/conversations?organizationID=...&unread=true
func ListConversations(ctx iris.Context) {
	orgID, err := ctx.URLParamInt("organizationID")
	if err != nil || orgID <= 0 {
		ctx.StopWithStatus(http.StatusBadRequest)
		return
	}

	q := storage.DB.Where("organization_id = ?", orgID)
	if ctx.URLParam("unread") == "true" {
		q = q.Where("unread = ?", true)
	}
	var conversations []models.Conversation
	if err := q.Order("updated_at DESC").Find(&conversations).Error; err != nil {
		ctx.StopWithStatus(http.StatusInternalServerError)
		return
	}
	ctx.JSON(conversations)
}

// ListMessages: GET /api/messages?conversationID=...&cursor=...&limit=...
func ListMessages(ctx iris.Context) {
	convID, err := ctx.URLParamInt("conversationID")
	if err != nil || convID <= 0 {
		ctx.StopWithStatus(http.StatusBadRequest)
		return
	}
	limit, _ := ctx.URLParamInt("limit")
	if limit <= 0 || limit > 100 {
		limit = 30
	}
	cursor, _ := ctx.URLParamInt("cursor")

	q := storage.DB.Where("conversation_id = ?", convID)
	if cursor > 0 {
		q = q.Where("id < ?", cursor)
	}
	var msgs []models.Message
	if err := q.Order("id DESC").Limit(limit).Find(&msgs).Error; err != nil {
		ctx.StopWithStatus(http.StatusInternalServerError)
		return
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	nextCursor := 0
	if len(msgs) > 0 {
		nextCursor = int(msgs[0].ID)
	}
	ctx.JSON(iris.Map{"messages": msgs, "nextCursor": nextCursor})
}

// MarkConversationRead: POST /api/conversations/{id}/read
func MarkConversationRead(ctx iris.Context) {
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		ctx.StopWithStatus(http.StatusBadRequest)
		return
	}
	result := storage.DB.Model(&models.Conversation{}).
		Where("id = ?", id).Update("unread", false)
	if result.Error != nil {
		ctx.StopWithStatus(http.StatusInternalServerError)
		return
	}
	if result.RowsAffected == 0 {
		utils.CreateNotFound(ctx)
		return
	}
	ctx.JSON(iris.Map{"success": true})
}

type SendMessageInput struct {
	ReservationID uint   `json:"reservationID" validate:"required"`
	Type          string `json:"type" validate:"omitempty,oneof=email email_managed sms phone api"`
	Subject       string `json:"subject" validate:"lt=256"`
	Text          string `json:"text" validate:"required,lt=5000"`
	Recipient     string `json:"recipient"`
}

// SendMessage appends an operator-authored outbound message and delivers it
// immediately.
func SendMessage(ctx iris.Context) {
	var req SendMessageInput
	if err := ctx.ReadJSON(&req); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var reservation models.Reservation
	if err := storage.DB.Preload("Guest").First(&reservation, req.ReservationID).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	store := services.NewMessageStore(services.NowUTC)
	conversation, err := store.GetOrCreateConversation(&reservation)
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	recipient := req.Recipient
	if recipient == "" && reservation.Guest != nil {
		recipient = reservation.Guest.Email
	}
	messageType := req.Type
	if messageType == "" {
		messageType = models.MessageEmail
	}

	message := &models.Message{
		Type:      messageType,
		Outgoing:  true,
		Subject:   req.Subject,
		Text:      req.Text,
		Recipient: recipient,
	}
	if _, err := store.AppendMessage(conversation, message); err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	dispatcher := services.NewDispatcher(store, services.NewTransportSet(services.NowUTC), services.NowUTC)
	if err := dispatcher.Deliver(message); err != nil {
		// message row exists with its failure state; surface it as-is
		ctx.JSON(message)
		return
	}
	ctx.JSON(message)
}

// RetryMessage: POST /api/messages/{id}/retry — operator re-send of a
// failed message. Resets the delivery state and goes through the normal
// claim path.
func RetryMessage(ctx iris.Context) {
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		ctx.StopWithStatus(http.StatusBadRequest)
		return
	}
	var message models.Message
	if err := storage.DB.First(&message, id).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}
	if message.DeliveryStatus != models.DeliveryFailed {
		utils.JSONError(ctx, iris.StatusConflict, "not_failed", "only failed messages can be retried")
		return
	}

	err = storage.DB.Model(&models.Message{}).Where("id = ?", message.ID).
		Update("delivery_status", models.DeliveryNotStarted).Error
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	message.DeliveryStatus = models.DeliveryNotStarted

	store := services.NewMessageStore(services.NowUTC)
	dispatcher := services.NewDispatcher(store, services.NewTransportSet(services.NowUTC), services.NowUTC)
	_ = dispatcher.Deliver(&message)
	ctx.JSON(message)
}
