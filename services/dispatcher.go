package services

import (
	"log"

	"hostpilot-server/models"
	"hostpilot-server/storage"
)

// Dispatcher consumes not-yet-sent messages, routes them to a transport
// and records the delivery outcome. Failed sends are not retried; retry is
// an operator action.
type Dispatcher struct {
	store      *MessageStore
	transports *TransportSet
	clock      Clock
}

func NewDispatcher(store *MessageStore, transports *TransportSet, clock Clock) *Dispatcher {
	return &Dispatcher{store: store, transports: transports, clock: clock}
}

// DrainPending dispatches every materialised firing that has no Message
// yet. Returns how many messages were created.
func (d *Dispatcher) DrainPending() int {
	var pending []models.ReservationMessage
	err := storage.DB.Where("message_id IS NULL").Find(&pending).Error
	if err != nil {
		log.Printf("❌ DISPATCH: listing pending firings: %v", err)
		return 0
	}

	sent := 0
	for i := range pending {
		if err := d.DispatchReservationMessage(&pending[i]); err != nil {
			log.Printf("❌ DISPATCH: firing %d: %v", pending[i].ID, err)
			continue
		}
		sent++
	}
	return sent
}

// DispatchReservationMessage turns one firing into a Message and delivers
// it. Method resolution happens here, not at scheduling time, so AUTO can
// observe the reservation's live channel state.
func (d *Dispatcher) DispatchReservationMessage(firing *models.ReservationMessage) error {
	var automation models.ReservationAutomation
	if err := storage.DB.First(&automation, firing.AutomationID).Error; err != nil {
		return err
	}
	var reservation models.Reservation
	if err := storage.DB.First(&reservation, firing.ReservationID).Error; err != nil {
		return err
	}

	conversation, err := d.store.GetOrCreateConversation(&reservation)
	if err != nil {
		return err
	}

	messageType := d.resolveMessageType(automation.Method, &reservation, conversation)

	message := &models.Message{
		Type:          messageType,
		Outgoing:      true,
		Automated:     true,
		Text:          firing.Content,
		Subject:       firing.Subject,
		Recipient:     firing.Recipient,
		RecipientInfo: firing.RecipientInfo,
	}
	if _, err := d.store.AppendMessage(conversation, message); err != nil {
		return err
	}

	// Back-pointer first: the unique firing row is the idempotence anchor,
	// so a crash after this point re-delivers nothing.
	err = storage.DB.Model(&models.ReservationMessage{}).
		Where("id = ?", firing.ID).Update("message_id", message.ID).Error
	if err != nil {
		return err
	}
	firing.MessageID = &message.ID

	return d.Deliver(message)
}

// Deliver pushes one message through its transport. Safe to call from any
// producer; the claim CAS makes re-entry a no-op.
func (d *Dispatcher) Deliver(message *models.Message) error {
	if !d.store.ClaimForDelivery(message) {
		log.Printf("⏭  DISPATCH: message %d already claimed", message.ID)
		return nil
	}

	transport := d.transports.ForMessageType(message.Type)
	if transport == nil {
		d.store.MarkFailed(message)
		return ErrNoCredentials
	}

	result, err := transport.Send(message)
	if err != nil {
		log.Printf("❌ DISPATCH: message %d via %s: %v", message.ID, transport.Kind(), err)
		return d.store.MarkFailed(message)
	}

	if err := d.store.MarkDelivered(message, result.ExternalID, result.DeliveredAt); err != nil {
		return err
	}

	// Channel ids are authoritative: drop any echo row sharing this id.
	if message.Automated && message.Outgoing && message.Type == models.MessageAPI && result.ExternalID != "" {
		if err := d.store.DedupeExternalID(message); err != nil {
			log.Printf("❌ DISPATCH: dedupe for message %d: %v", message.ID, err)
		}
	}
	return nil
}

func (d *Dispatcher) resolveMessageType(method string, reservation *models.Reservation, conversation *models.Conversation) string {
	switch method {
	case models.MethodSMS:
		return models.MessageSMS
	case models.MethodMessage:
		return models.MessageAPI
	case models.MethodEmail:
		return models.MessageEmail
	default: // auto
		if reservation.IsChannelSource() || conversation.ThreadID != "" {
			return models.MessageAPI
		}
		return models.MessageEmail
	}
}
