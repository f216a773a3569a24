package services

import (
	"html"
	"net/mail"
	"net/textproto"
	"regexp"
	"strconv"
	"strings"
	"time"

	"hostpilot-server/models"
)

var (
	airbnbRoomsPattern  = regexp.MustCompile(`airbnb\.com/rooms/(\d+)`)
	airbnbThreadPattern = regexp.MustCompile(`airbnb\.com/z/q/(\d+)`)
	airbnbUserPattern   = regexp.MustCompile(`users/show/(\d+)`)
	airbnbAvatarPattern = regexp.MustCompile(`https://a0\.muscache\.com/[^\s"'<>]+`)

	confirmationPattern = regexp.MustCompile(`\b([A-Z0-9]{10})\b`)
	stayDatePattern     = regexp.MustCompile(`[A-Z][a-z]{2} \d{1,2}, \d{4}`)

	adultsPattern   = regexp.MustCompile(`(\d+)\s+adults?`)
	childrenPattern = regexp.MustCompile(`(\d+)\s+child(?:ren)?`)
	infantsPattern  = regexp.MustCompile(`(\d+)\s+infants?`)
	guestsPattern   = regexp.MustCompile(`(\d+)\s+guests?`)

	// $1,234.56 with an optional ASCII or Unicode minus
	moneyPattern   = regexp.MustCompile(`([−-]?)\$([\d,]+(?:\.\d{2})?)`)
	nightlyPattern = regexp.MustCompile(`([−-]?)\$([\d,]+(?:\.\d{2})?)\s*x\s*(\d+)\s*Nights?`)
)

// extractAirbnb pulls reservation facts out of an Airbnb notification via
// stable text markers in the HTML body and a handful of headers.
func extractAirbnb(task *models.ParseEmailTask, headers textproto.MIMEHeader, in *inboundEmail) {
	body := task.HTML
	text := task.Text
	if text == "" {
		text = htmlToText(body)
	}

	if m := airbnbRoomsPattern.FindStringSubmatch(body); m != nil {
		in.ListingID = m[1]
	}
	if m := airbnbThreadPattern.FindStringSubmatch(body); m != nil {
		in.ThreadID = m[1]
	}
	if m := airbnbUserPattern.FindStringSubmatch(body); m != nil {
		in.GuestExternalID = m[1]
	}
	if m := airbnbAvatarPattern.FindString(body); m != "" {
		in.GuestAvatar = m
	}
	in.ConfirmationCode = findConfirmationCode(text)

	// Guest identity rides on the Reply-To header.
	if address, err := mail.ParseAddress(headers.Get("Reply-To")); err == nil {
		in.GuestEmail = address.Address
		name := strings.TrimSpace(strings.TrimSuffix(address.Name, "(Airbnb)"))
		in.GuestFirstName, in.GuestLastName = splitName(name)
	}

	// Stay dates: the first two %b %d, %Y strings in the itinerary block.
	if dates := stayDatePattern.FindAllString(text, 2); len(dates) == 2 {
		if start, err := parseStayDate(dates[0]); err == nil {
			in.StartDate = &start
		}
		if end, err := parseStayDate(dates[1]); err == nil {
			in.EndDate = &end
		}
	}

	extractGuestCounts(text, in)
	extractPayout(text, in)

	in.Body = strings.TrimSpace(text)
}

// findConfirmationCode looks for a 10-char [A-Z0-9] token. Pure-letter
// candidates are rejected; real codes always carry a digit.
func findConfirmationCode(text string) string {
	// Prefer a candidate near the confirmation marker.
	if idx := strings.Index(strings.ToLower(text), "confirmation"); idx >= 0 {
		window := text[idx:]
		if len(window) > 200 {
			window = window[:200]
		}
		if code := firstCodeWithDigit(window); code != "" {
			return code
		}
	}
	return firstCodeWithDigit(text)
}

func firstCodeWithDigit(text string) string {
	for _, m := range confirmationPattern.FindAllString(text, -1) {
		if strings.IndexAny(m, "0123456789") >= 0 {
			return m
		}
	}
	return ""
}

func extractGuestCounts(text string, in *inboundEmail) {
	if m := adultsPattern.FindStringSubmatch(text); m != nil {
		in.Adults, _ = strconv.Atoi(m[1])
	} else if m := guestsPattern.FindStringSubmatch(text); m != nil {
		// a bare "N guests" counts as adults
		in.Adults, _ = strconv.Atoi(m[1])
	}
	if m := childrenPattern.FindStringSubmatch(text); m != nil {
		in.Children, _ = strconv.Atoi(m[1])
	}
	if m := infantsPattern.FindStringSubmatch(text); m != nil {
		in.Infants, _ = strconv.Atoi(m[1])
	}
}

// extractPayout walks the payout block line by line: the nightly line
// first, then its base total, then named fee lines, then the grand total.
func extractPayout(text string, in *inboundEmail) {
	lines := strings.Split(text, "\n")
	seenNightly := false
	pendingLabel := ""

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if m := nightlyPattern.FindStringSubmatch(line); m != nil {
			in.NightlyRate = parseMoney(m[1], m[2])
			in.Nights, _ = strconv.Atoi(m[3])
			if in.Nights == 0 {
				in.Nights = 1
			}
			seenNightly = true
			pendingLabel = ""
			// a same-line trailing amount is the base total
			rest := line[nightlyPattern.FindStringIndex(line)[1]:]
			if m := moneyPattern.FindStringSubmatch(rest); m != nil {
				in.BaseTotal = parseMoney(m[1], m[2])
			}
			continue
		}

		if !seenNightly {
			continue
		}

		if m := moneyPattern.FindStringSubmatch(line); m != nil && strings.HasPrefix(strings.TrimLeft(line, "−-"), "$") {
			amount := parseMoney(m[1], m[2])
			switch {
			case in.BaseTotal == 0 && pendingLabel == "":
				in.BaseTotal = amount
			case strings.EqualFold(pendingLabel, "total"):
				in.Total = amount
				pendingLabel = ""
			case pendingLabel != "":
				in.Fees = append(in.Fees, feeLine{Name: pendingLabel, Amount: amount})
				pendingLabel = ""
			}
			continue
		}

		pendingLabel = line
	}

	// Single-line payout: "$d.dd x 1 Night" with no explicit base total.
	if seenNightly && in.BaseTotal == 0 {
		in.BaseTotal = in.NightlyRate * float64(in.Nights)
	}
	if in.Total == 0 {
		in.Total = in.BaseTotal
		for _, fee := range in.Fees {
			in.Total += fee.Amount
		}
	}
}

func parseMoney(sign, digits string) float64 {
	value, _ := strconv.ParseFloat(strings.ReplaceAll(digits, ",", ""), 64)
	if sign != "" {
		return -value
	}
	return value
}

func parseStayDate(value string) (time.Time, error) {
	return time.Parse("Jan 2, 2006", strings.TrimSpace(value))
}

func splitName(name string) (first, last string) {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "", ""
	}
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

var (
	tagPattern       = regexp.MustCompile(`(?s)<(?:style|script)[^>]*>.*?</(?:style|script)>`)
	breakPattern     = regexp.MustCompile(`(?i)<(?:br|/p|/div|/td|/tr|/li|/h[1-6])[^>]*>`)
	anyTagPattern    = regexp.MustCompile(`<[^>]*>`)
	multiBlankLines  = regexp.MustCompile(`\n{3,}`)
	trailingSpacePat = regexp.MustCompile(`[ \t]+\n`)
)

// htmlToText flattens channel HTML enough for marker-based extraction.
// The extraction works on stable text markers, not DOM structure.
func htmlToText(htmlBody string) string {
	out := tagPattern.ReplaceAllString(htmlBody, "")
	out = breakPattern.ReplaceAllString(out, "\n")
	out = anyTagPattern.ReplaceAllString(out, "")
	out = html.UnescapeString(out)
	out = strings.ReplaceAll(out, "\u00a0", " ")
	out = trailingSpacePat.ReplaceAllString(out, "\n")
	out = multiBlankLines.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
