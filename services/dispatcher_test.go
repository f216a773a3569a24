package services

import (
	"testing"

	"hostpilot-server/models"
	"hostpilot-server/storage"
)

func TestDispatchDeliversFiring(t *testing.T) {
	setupTestDB(t)
	seedCheckInAutomation(t)

	clock := fixedClock("2020-06-15T17:07:00Z")
	if fired := NewScheduler(clock).Tick(); fired != 1 {
		t.Fatalf("tick fired %d", fired)
	}

	transports, emailT, _, _ := fakeTransports(false)
	store := NewMessageStore(clock)
	dispatcher := NewDispatcher(store, transports, clock)

	if sent := dispatcher.DrainPending(); sent != 1 {
		t.Fatalf("drained %d, want 1", sent)
	}
	if len(emailT.sent) != 1 {
		t.Fatalf("email transport saw %d sends", len(emailT.sent))
	}

	var message models.Message
	if err := storage.DB.First(&message).Error; err != nil {
		t.Fatalf("no message: %v", err)
	}
	if message.DeliveryStatus != models.DeliveryDelivered {
		t.Fatalf("status %q", message.DeliveryStatus)
	}
	if message.DateDelivered == nil || message.ExternalID == "" {
		t.Fatal("delivered message missing date or external id")
	}
	if message.Text != "Hello Ada" || message.Recipient != "a@x" {
		t.Fatalf("message %q to %q", message.Text, message.Recipient)
	}
	if !message.Outgoing || !message.Automated {
		t.Fatal("message not marked outgoing+automated")
	}

	var firing models.ReservationMessage
	storage.DB.First(&firing)
	if firing.MessageID == nil || *firing.MessageID != message.ID {
		t.Fatal("firing back-pointer not set")
	}

	// Draining again finds nothing pending.
	if sent := dispatcher.DrainPending(); sent != 0 {
		t.Fatalf("second drain sent %d", sent)
	}
}

func TestDispatchFailureMarksFailedWithoutRetry(t *testing.T) {
	setupTestDB(t)
	seedCheckInAutomation(t)

	clock := fixedClock("2020-06-15T17:07:00Z")
	NewScheduler(clock).Tick()

	transports, emailT, _, _ := fakeTransports(true)
	store := NewMessageStore(clock)
	dispatcher := NewDispatcher(store, transports, clock)
	dispatcher.DrainPending()

	var message models.Message
	if err := storage.DB.First(&message).Error; err != nil {
		t.Fatalf("no message: %v", err)
	}
	if message.DeliveryStatus != models.DeliveryFailed {
		t.Fatalf("status %q, want failed", message.DeliveryStatus)
	}

	// The claim CAS keeps a second drain from re-sending a failed message.
	emailT.fail = false
	dispatcher.DrainPending()
	if len(emailT.sent) != 0 {
		t.Fatalf("failed message was retried")
	}
}

func TestClaimForDeliveryIsExclusive(t *testing.T) {
	setupTestDB(t)
	store := NewMessageStore(fixedClock("2020-06-15T17:07:00Z"))

	conversation := models.Conversation{OrganizationID: 1, ReservationID: 1}
	storage.DB.Create(&conversation)
	message := &models.Message{ConversationID: conversation.ID, Type: models.MessageEmail, Outgoing: true, Text: "hi"}
	if _, err := store.AppendMessage(&conversation, message); err != nil {
		t.Fatal(err)
	}

	if !store.ClaimForDelivery(message) {
		t.Fatal("first claim refused")
	}
	if store.ClaimForDelivery(message) {
		t.Fatal("second claim won")
	}
}

func TestResolveMessageTypeAuto(t *testing.T) {
	d := &Dispatcher{}

	channelRes := &models.Reservation{Source: models.SourceAirbnb}
	webRes := &models.Reservation{Source: models.SourceWeb}
	threaded := &models.Conversation{ThreadID: "77"}
	plain := &models.Conversation{}

	if got := d.resolveMessageType(models.MethodAuto, channelRes, plain); got != models.MessageAPI {
		t.Fatalf("channel reservation resolved %q", got)
	}
	if got := d.resolveMessageType(models.MethodAuto, webRes, threaded); got != models.MessageAPI {
		t.Fatalf("threaded conversation resolved %q", got)
	}
	if got := d.resolveMessageType(models.MethodAuto, webRes, plain); got != models.MessageEmail {
		t.Fatalf("plain web reservation resolved %q", got)
	}
	if got := d.resolveMessageType(models.MethodSMS, webRes, plain); got != models.MessageSMS {
		t.Fatalf("explicit sms resolved %q", got)
	}
}

func TestDedupeRemovesChannelEcho(t *testing.T) {
	setupTestDB(t)
	store := NewMessageStore(fixedClock("2020-06-15T17:07:00Z"))

	conversation := models.Conversation{OrganizationID: 1, ReservationID: 1}
	storage.DB.Create(&conversation)

	echo := &models.Message{ConversationID: conversation.ID, Type: models.MessageAPI, ExternalID: "x-1", Text: "echo"}
	storage.DB.Create(echo)
	mine := &models.Message{ConversationID: conversation.ID, Type: models.MessageAPI, ExternalID: "x-1", Text: "mine"}
	storage.DB.Create(mine)

	if err := store.DedupeExternalID(mine); err != nil {
		t.Fatal(err)
	}
	var count int64
	storage.DB.Model(&models.Message{}).Where("external_id = ?", "x-1").Count(&count)
	if count != 1 {
		t.Fatalf("%d messages share the external id", count)
	}
	var survivor models.Message
	storage.DB.Where("external_id = ?", "x-1").First(&survivor)
	if survivor.ID != mine.ID {
		t.Fatal("wrong message survived dedupe")
	}
}
