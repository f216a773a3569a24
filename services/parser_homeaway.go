package services

import (
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"hostpilot-server/models"
)

// extractHomeaway reads the structured X-Inquiry-* headers HomeAway/VRBO
// mediated mail carries; only the prose message comes from the body.
func extractHomeaway(task *models.ParseEmailTask, headers textproto.MIMEHeader, in *inboundEmail) {
	in.ListingID = strings.TrimSpace(headers.Get("X-Inquiry-Listing"))
	in.ThreadID = strings.TrimSpace(headers.Get("X-Mediated-Thread"))
	in.GuestEmail = strings.TrimSpace(headers.Get("X-Inquiry-Email"))
	in.GuestFirstName, in.GuestLastName = splitName(headers.Get("X-Inquiry-Name"))

	if arrival, err := parseInquiryDate(headers.Get("X-Inquiry-Arrival")); err == nil {
		in.StartDate = &arrival
	}
	if departure, err := parseInquiryDate(headers.Get("X-Inquiry-Departure")); err == nil {
		in.EndDate = &departure
	}
	if adults, err := strconv.Atoi(strings.TrimSpace(headers.Get("X-Inquiry-Adults"))); err == nil {
		in.Adults = adults
	}
	if children, err := strconv.Atoi(strings.TrimSpace(headers.Get("X-Inquiry-Children"))); err == nil {
		in.Children = children
	}

	// Owner echo: the owner messaging their own thread comes back through
	// the mediation relay addressed to OWNER with matching ids.
	recipientType := strings.ToUpper(strings.TrimSpace(headers.Get("X-Mediated-Recipient-Type")))
	recipientID := strings.TrimSpace(headers.Get("X-Mediated-Recipient-Id"))
	senderID := strings.TrimSpace(headers.Get("X-Mediated-Sender-Id"))
	if in.Intent == IntentNewMessage && recipientType == "OWNER" && recipientID != "" && recipientID == senderID {
		in.OutgoingEcho = true
	}

	text := task.Text
	if text == "" {
		text = htmlToText(task.HTML)
	}
	in.Body = strings.TrimSpace(text)
}

func parseInquiryDate(value string) (time.Time, error) {
	return time.Parse("2006-01-02", strings.TrimSpace(value))
}
