package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"hostpilot-server/models"
	"hostpilot-server/storage"
)

// ChannelTransport pushes a message into the external reservation's thread
// on the booking channel, using the owning organization's credentials.
type ChannelTransport struct {
	client *http.Client
	clock  Clock
}

func NewChannelTransport(clock Clock) *ChannelTransport {
	return &ChannelTransport{
		client: &http.Client{Timeout: 5 * time.Second},
		clock:  clock,
	}
}

func (t *ChannelTransport) Kind() string { return "api" }

type channelPayload struct {
	Message string `json:"message"`
}

type channelResponse struct {
	ID string `json:"id"`
}

func (t *ChannelTransport) Send(msg *models.Message) (*SendResult, error) {
	var conversation models.Conversation
	if err := storage.DB.First(&conversation, msg.ConversationID).Error; err != nil {
		return nil, &TransportError{Provider: "channel", Err: err}
	}
	if conversation.ThreadID == "" {
		return nil, &TransportError{Provider: "channel", Err: fmt.Errorf("conversation %d has no thread id", conversation.ID)}
	}

	var reservation models.Reservation
	if err := storage.DB.First(&reservation, conversation.ReservationID).Error; err != nil {
		return nil, &TransportError{Provider: "channel", Err: err}
	}

	var cred models.ChannelCredential
	err := storage.DB.
		Where("organization_id = ? AND channel = ?", conversation.OrganizationID, reservation.Source).
		First(&cred).Error
	if err != nil {
		return nil, &TransportError{Provider: "channel", Err: ErrNoCredentials}
	}

	body, _ := json.Marshal(channelPayload{Message: msg.Text})
	req, err := http.NewRequest(http.MethodPost,
		fmt.Sprintf("%s/threads/%s/messages", cred.BaseURL, conversation.ThreadID),
		bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Provider: "channel", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cred.APIKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &TransportError{Provider: "channel", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, &TransportError{Provider: "channel", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var out channelResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &TransportError{Provider: "channel", Err: err}
	}

	return &SendResult{ExternalID: out.ID, DeliveredAt: t.clock()}, nil
}
