package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"hostpilot-server/models"
	"hostpilot-server/storage"
	"hostpilot-server/utils"
)

// SMSTransport delivers through the SMS provider's REST endpoint. The
// sender number comes from the organization's pool, falling back to the
// deployment default.
type SMSTransport struct {
	client  *http.Client
	baseURL string
	apiKey  string
	secret  string
	clock   Clock
}

type smsResponse struct {
	Messages []struct {
		Status    string `json:"status"`
		MessageID string `json:"message-id"`
		ErrorText string `json:"error-text"`
	} `json:"messages"`
}

func NewSMSTransport(clock Clock) *SMSTransport {
	baseURL := os.Getenv("SMS_API_URL")
	if baseURL == "" {
		baseURL = "https://rest.nexmo.com"
	}
	return &SMSTransport{
		client:  &http.Client{Timeout: 3 * time.Second},
		baseURL: baseURL,
		apiKey:  os.Getenv("SMS_API_KEY"),
		secret:  os.Getenv("SMS_API_SECRET"),
		clock:   clock,
	}
}

func (t *SMSTransport) Kind() string { return "sms" }

func (t *SMSTransport) Send(msg *models.Message) (*SendResult, error) {
	to := utils.ToE164(msg.Recipient)
	if to == "" {
		return nil, &TransportError{Provider: "sms", Err: ErrInvalidRecipient}
	}
	if t.apiKey == "" {
		return nil, &TransportError{Provider: "sms", Err: ErrNoCredentials}
	}

	form := url.Values{}
	form.Set("api_key", t.apiKey)
	form.Set("api_secret", t.secret)
	form.Set("from", t.senderNumber(msg))
	form.Set("to", strings.TrimPrefix(to, "+"))
	form.Set("text", msg.Text)

	resp, err := t.client.PostForm(t.baseURL+"/sms/json", form)
	if err != nil {
		return nil, &TransportError{Provider: "sms", Err: err}
	}
	defer resp.Body.Close()

	var body smsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &TransportError{Provider: "sms", Err: err}
	}
	if len(body.Messages) == 0 {
		return nil, &TransportError{Provider: "sms", Err: fmt.Errorf("empty provider response")}
	}
	if body.Messages[0].Status != "0" {
		return nil, &TransportError{Provider: "sms", Err: fmt.Errorf("provider status %s: %s", body.Messages[0].Status, body.Messages[0].ErrorText)}
	}

	return &SendResult{ExternalID: body.Messages[0].MessageID, DeliveredAt: t.clock()}, nil
}

// senderNumber picks an active number from the owning organization's pool.
func (t *SMSTransport) senderNumber(msg *models.Message) string {
	var conversation models.Conversation
	if err := storage.DB.First(&conversation, msg.ConversationID).Error; err == nil {
		var number models.Number
		err := storage.DB.
			Where("organization_id = ? AND is_active = ?", conversation.OrganizationID, true).
			Order("id").First(&number).Error
		if err == nil {
			return number.PhoneNumber
		}
	}
	return os.Getenv("SMS_DEFAULT_NUMBER")
}
