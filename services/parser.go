package services

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/textproto"
	"strings"
	"time"

	"hostpilot-server/models"
	"hostpilot-server/storage"
)

// Parser failure taxonomy. Every kind lands the task in the error state
// with its payload retained for manual re-parse.
var (
	ErrDkimFail                = errors.New("dkim check failed")
	ErrUnknownForwardingAddress = errors.New("unknown forwarding address")
	ErrDuplicateMessage        = errors.New("duplicate message-id")
	ErrUnknownSource           = errors.New("unknown source")
	ErrUnknownIntent           = errors.New("unknown intent")
	ErrAmbiguousProperty       = errors.New("ambiguous property")
)

// Classified intents.
const (
	IntentNewReservation      = "new_reservation"
	IntentNewMessage          = "new_message"
	IntentNewInquiry          = "new_inquiry"
	IntentReservationCanceled = "reservation_canceled"
	IntentReservationRequest  = "reservation_request"
)

// inboundEmail is everything extraction pulls out of one payload.
type inboundEmail struct {
	Source string
	Intent string

	ListingID        string
	ThreadID         string
	ConfirmationCode string

	GuestExternalID string
	GuestFirstName  string
	GuestLastName   string
	GuestEmail      string
	GuestAvatar     string

	StartDate *time.Time
	EndDate   *time.Time
	Adults    int
	Children  int
	Infants   int

	NightlyRate float64
	Nights      int
	BaseTotal   float64
	Total       float64
	Fees        []feeLine

	Body         string
	Subject      string
	MessageID    string
	Date         *time.Time
	OutgoingEcho bool // owner echo on mediated channels
}

type feeLine struct {
	Name   string
	Amount float64
}

// EmailParser consumes ParseEmailTasks: validates, classifies, extracts
// and reconciles one forwarded channel email into the reservation graph.
type EmailParser struct {
	store *MessageStore
	clock Clock
}

func NewEmailParser(store *MessageStore, clock Clock) *EmailParser {
	return &EmailParser{store: store, clock: clock}
}

// QueueInitTasks promotes freshly webhooked tasks into the work queue.
func (p *EmailParser) QueueInitTasks() int {
	result := storage.DB.Model(&models.ParseEmailTask{}).
		Where("status = ?", models.ParseInit).
		Update("status", models.ParseQueue)
	if result.Error != nil {
		log.Printf("❌ PARSER: queueing tasks: %v", result.Error)
		return 0
	}
	return int(result.RowsAffected)
}

// ProcessQueued works through every queued task. Each task is independent;
// one failure never blocks its siblings.
func (p *EmailParser) ProcessQueued() {
	var tasks []models.ParseEmailTask
	if err := storage.DB.Where("status = ?", models.ParseQueue).Find(&tasks).Error; err != nil {
		log.Printf("❌ PARSER: listing queued tasks: %v", err)
		return
	}
	for i := range tasks {
		p.ProcessTask(&tasks[i])
	}
}

// ProcessTask runs the full parse pipeline for one task and records the
// outcome on the row. Any error leaves the payload in place.
func (p *EmailParser) ProcessTask(task *models.ParseEmailTask) {
	storage.DB.Model(&models.ParseEmailTask{}).Where("id = ?", task.ID).
		Update("status", models.ParseStarted)

	message, err := p.parse(task)
	if err != nil {
		log.Printf("❌ PARSER: task %d: %v", task.ID, err)
		storage.DB.Model(&models.ParseEmailTask{}).Where("id = ?", task.ID).
			Updates(map[string]interface{}{
				"status": models.ParseError,
				"error":  err.Error(),
			})
		task.Status = models.ParseError
		task.Error = err.Error()
		return
	}

	updates := map[string]interface{}{"status": models.ParseCompleted, "error": ""}
	if message != nil {
		updates["message_id"] = message.ID
		task.MessageID = &message.ID
	}
	storage.DB.Model(&models.ParseEmailTask{}).Where("id = ?", task.ID).Updates(updates)
	task.Status = models.ParseCompleted
}

func (p *EmailParser) parse(task *models.ParseEmailTask) (*models.Message, error) {
	if !strings.Contains(strings.ToLower(task.DKIM), "pass") {
		return nil, ErrDkimFail
	}

	headers := parseRawHeaders(task.Headers)

	forwarding, err := p.resolveForwarding(task)
	if err != nil {
		return nil, err
	}

	messageID := strings.TrimSpace(headers.Get("Message-Id"))
	if messageID != "" {
		var count int64
		storage.DB.Model(&models.Message{}).
			Where("external_email_id = ?", messageID).Count(&count)
		if count > 0 {
			return nil, ErrDuplicateMessage
		}
	}

	in, err := classify(headers, task.Headers)
	if err != nil {
		return nil, err
	}
	in.MessageID = messageID
	in.Subject = task.Subject
	if date, err := parseHeaderDate(headers.Get("Date")); err == nil {
		in.Date = &date
	}

	switch in.Source {
	case models.SourceAirbnb:
		extractAirbnb(task, headers, in)
	default:
		extractHomeaway(task, headers, in)
	}

	return p.reconcile(forwarding.OrganizationID, in)
}

// resolveForwarding maps the envelope recipient's local part to a
// registered forwarding address, case-insensitive.
func (p *EmailParser) resolveForwarding(task *models.ParseEmailTask) (*models.ForwardingEmail, error) {
	address := envelopeTo(task)
	local := address
	if at := strings.IndexByte(address, '@'); at >= 0 {
		local = address[:at]
	}
	local = strings.ToLower(strings.TrimSpace(local))
	if local == "" {
		return nil, ErrUnknownForwardingAddress
	}

	var forwarding models.ForwardingEmail
	err := storage.DB.
		Where("LOWER(name) = ? AND enabled = ?", local, true).
		First(&forwarding).Error
	if err != nil {
		return nil, ErrUnknownForwardingAddress
	}
	return &forwarding, nil
}

func envelopeTo(task *models.ParseEmailTask) string {
	if task.Envelope != nil {
		var envelope struct {
			To []string `json:"to"`
		}
		if err := json.Unmarshal(task.Envelope, &envelope); err == nil && len(envelope.To) > 0 {
			return envelope.To[0]
		}
	}
	return task.To
}

var airbnbSenders = map[string]bool{
	"express@airbnb.com":   true,
	"automated@airbnb.com": true,
}

// classify runs the two-axis (source, intent) state machine over the raw
// headers.
func classify(headers textproto.MIMEHeader, rawHeaders string) (*inboundEmail, error) {
	in := &inboundEmail{}
	originalSender := strings.ToLower(strings.TrimSpace(headers.Get("X-Original-Sender")))

	switch {
	case airbnbSenders[originalSender] ||
		strings.Contains(rawHeaders, "express@airbnb.com") ||
		strings.Contains(rawHeaders, "automated@airbnb.com"):
		in.Source = models.SourceAirbnb
		switch headers.Get("X-Template") {
		case "reservation/host_confirmation":
			in.Intent = IntentNewReservation
		case "messaging/new_message":
			in.Intent = IntentNewMessage
		case "reservation/inquiries/incoming_inquiry":
			in.Intent = IntentNewInquiry
		case "mdx_cancellation/reservation_canceled_by_guest_to_host":
			in.Intent = IntentReservationCanceled
		case "reservation/incoming_reservation":
			in.Intent = IntentReservationRequest
		default:
			return nil, fmt.Errorf("%w: airbnb template %q", ErrUnknownIntent, headers.Get("X-Template"))
		}

	case strings.Contains(originalSender, "messages.homeaway.com"):
		switch strings.ToLower(headers.Get("X-Mediated-Site")) {
		case "homeaway":
			in.Source = models.SourceHomeaway
		case "vrbo":
			in.Source = models.SourceVRBO
		default:
			return nil, fmt.Errorf("%w: mediated site %q", ErrUnknownSource, headers.Get("X-Mediated-Site"))
		}
		switch headers.Get("X-Mediated-Message-Type") {
		case "INQUIRY":
			in.Intent = IntentNewInquiry
		case "RESERVATION_ACTION_EMAIL_BLANK", "INQUIRY_ACTION_EMAIL_BLANK":
			in.Intent = IntentNewMessage
		default:
			return nil, fmt.Errorf("%w: mediated type %q", ErrUnknownIntent, headers.Get("X-Mediated-Message-Type"))
		}

	default:
		return nil, ErrUnknownSource
	}
	return in, nil
}

// parseRawHeaders reads the provider's raw header blob into a MIME header
// map. Bad input yields an empty map, never an error; classification then
// fails with its own taxonomy.
func parseRawHeaders(raw string) textproto.MIMEHeader {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\n", "\r\n")
	reader := textproto.NewReader(bufio.NewReader(strings.NewReader(normalized + "\r\n\r\n")))
	headers, err := reader.ReadMIMEHeader()
	if err != nil && headers == nil {
		return textproto.MIMEHeader{}
	}
	return headers
}

var headerDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 -0700",
}

func parseHeaderDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range headerDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", value)
}
