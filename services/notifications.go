package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"hostpilot-server/models"
	"hostpilot-server/storage"
)

// NotificationService drains queued Notification rows out through the
// configured channels. Rows stay unsent on failure and get retried on the
// next drain.
type NotificationService struct {
	transports *TransportSet
	client     *http.Client
}

// NewNotificationService creates a new notification service instance
func NewNotificationService(transports *TransportSet) *NotificationService {
	return &NotificationService{
		transports: transports,
		client:     &http.Client{Timeout: 5 * time.Second},
	}
}

// Drain sends every unsent notification. Returns how many went out.
func (ns *NotificationService) Drain() int {
	var pending []models.Notification
	err := storage.DB.Preload("User").Where("is_sent = ?", false).Find(&pending).Error
	if err != nil {
		log.Printf("❌ NOTIFY: listing pending notifications: %v", err)
		return 0
	}

	sent := 0
	for i := range pending {
		if err := ns.send(&pending[i]); err != nil {
			log.Printf("❌ NOTIFY: notification %d: %v", pending[i].ID, err)
			continue
		}
		storage.DB.Model(&models.Notification{}).Where("id = ?", pending[i].ID).
			Update("is_sent", true)
		sent++
	}
	if sent > 0 {
		log.Printf("✅ NOTIFY: sent %d notifications", sent)
	}
	return sent
}

func (ns *NotificationService) send(notification *models.Notification) error {
	user := notification.User
	if user == nil {
		var loaded models.User
		if err := storage.DB.First(&loaded, notification.UserID).Error; err != nil {
			return fmt.Errorf("user %d not found: %v", notification.UserID, err)
		}
		user = &loaded
	}
	if user.AllowsNotifications != nil && !*user.AllowsNotifications {
		// opted out counts as handled, not as a retryable failure
		return nil
	}

	switch notification.Channel {
	case models.NotifySMS:
		return ns.sendSMS(user, notification)
	case models.NotifyEmail:
		return ns.sendEmail(user, notification)
	case models.NotifySlack:
		return ns.sendSlack(notification)
	default:
		return fmt.Errorf("unknown channel %q", notification.Channel)
	}
}

func (ns *NotificationService) sendSMS(user *models.User, notification *models.Notification) error {
	if user.PhoneNumber == "" {
		return fmt.Errorf("user %d has no phone number", user.ID)
	}
	message := &models.Message{
		Type:      models.MessageSMS,
		Recipient: user.PhoneNumber,
		Text:      notification.Content,
	}
	_, err := ns.transports.SMS.Send(message)
	return err
}

func (ns *NotificationService) sendEmail(user *models.User, notification *models.Notification) error {
	if user.Email == "" {
		return fmt.Errorf("user %d has no email", user.ID)
	}
	message := &models.Message{
		Type:      models.MessageEmail,
		Recipient: user.Email,
		Subject:   notification.Content,
		Text:      notification.Content,
	}
	_, err := ns.transports.Email.Send(message)
	return err
}

func (ns *NotificationService) sendSlack(notification *models.Notification) error {
	webhookURL := os.Getenv("SLACK_WEBHOOK_URL")
	if webhookURL == "" {
		return ErrNoCredentials
	}
	payload, err := json.Marshal(map[string]string{"text": notification.Content})
	if err != nil {
		return err
	}
	resp, err := ns.client.Post(webhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook status %d", resp.StatusCode)
	}
	return nil
}
