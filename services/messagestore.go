package services

import (
	"time"

	"hostpilot-server/models"
	"hostpilot-server/storage"
)

// MessageStore owns Conversation and Message persistence. All transitions
// of a message's delivery status funnel through here.
type MessageStore struct {
	clock Clock
}

func NewMessageStore(clock Clock) *MessageStore {
	return &MessageStore{clock: clock}
}

// GetOrCreateConversation returns the reservation's single conversation,
// creating it when absent. The unique reservation index makes concurrent
// creation collapse to one row.
func (s *MessageStore) GetOrCreateConversation(reservation *models.Reservation) (*models.Conversation, error) {
	var conversation models.Conversation
	err := storage.DB.
		Where(models.Conversation{ReservationID: reservation.ID}).
		Attrs(models.Conversation{OrganizationID: reservation.OrganizationID}).
		FirstOrCreate(&conversation).Error
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

// AppendMessage stores a new message on the conversation. No external I/O
// happens here; dispatch is a separate step.
func (s *MessageStore) AppendMessage(conversation *models.Conversation, message *models.Message) (*models.Message, error) {
	message.ConversationID = conversation.ID
	if message.DeliveryStatus == "" {
		message.DeliveryStatus = models.DeliveryNotStarted
	}
	if err := storage.DB.Create(message).Error; err != nil {
		return nil, err
	}
	// Inbound delivered messages flip the conversation unread.
	if !message.Outgoing && message.DeliveryStatus == models.DeliveryDelivered {
		storage.DB.Model(&models.Conversation{}).Where("id = ?", conversation.ID).
			Update("unread", true)
	}
	return message, nil
}

// ClaimForDelivery CAS-transitions not_started -> started. Exactly one
// dispatcher instance wins; the rest observe a false return and stop.
func (s *MessageStore) ClaimForDelivery(message *models.Message) bool {
	result := storage.DB.Model(&models.Message{}).
		Where("id = ? AND delivery_status = ?", message.ID, models.DeliveryNotStarted).
		Update("delivery_status", models.DeliveryStarted)
	if result.Error != nil || result.RowsAffected != 1 {
		return false
	}
	message.DeliveryStatus = models.DeliveryStarted
	return true
}

// MarkDelivered records a successful send.
func (s *MessageStore) MarkDelivered(message *models.Message, externalID string, deliveredAt time.Time) error {
	updates := map[string]interface{}{
		"delivery_status": models.DeliveryDelivered,
		"date_delivered":  deliveredAt,
	}
	if externalID != "" {
		updates["external_id"] = externalID
	}
	err := storage.DB.Model(&models.Message{}).Where("id = ?", message.ID).Updates(updates).Error
	if err != nil {
		return err
	}
	message.DeliveryStatus = models.DeliveryDelivered
	message.DateDelivered = &deliveredAt
	message.ExternalID = externalID
	return nil
}

// MarkFailed records a failed send. There is no automatic retry; the
// operator re-sends from the admin surface.
func (s *MessageStore) MarkFailed(message *models.Message) error {
	err := storage.DB.Model(&models.Message{}).Where("id = ?", message.ID).
		Update("delivery_status", models.DeliveryFailed).Error
	if err != nil {
		return err
	}
	message.DeliveryStatus = models.DeliveryFailed
	return nil
}

// DedupeExternalID removes any other message claiming the same external id.
// Channel-side ids are authoritative; a duplicate means the channel echoed
// a message we already hold.
func (s *MessageStore) DedupeExternalID(message *models.Message) error {
	if message.ExternalID == "" {
		return nil
	}
	return storage.DB.
		Where("external_id = ? AND id <> ?", message.ExternalID, message.ID).
		Delete(&models.Message{}).Error
}
