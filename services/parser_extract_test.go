package services

import (
	"testing"
)

func TestExtractPayoutSingleNightLine(t *testing.T) {
	in := &inboundEmail{}
	extractPayout("$80.00 x 1 Night\n", in)
	if in.Nights != 1 {
		t.Fatalf("nights %d", in.Nights)
	}
	if in.NightlyRate != 80 {
		t.Fatalf("rate %v", in.NightlyRate)
	}
	if in.BaseTotal != 80 || in.Total != 80 {
		t.Fatalf("totals %v/%v", in.BaseTotal, in.Total)
	}
}

func TestExtractPayoutFullBlock(t *testing.T) {
	text := `$100.00 x 3 Nights
$300.00
Cleaning fee
$50.00
Service fee
−$20.00
Total
$330.00
`
	in := &inboundEmail{}
	extractPayout(text, in)
	if in.NightlyRate != 100 || in.Nights != 3 {
		t.Fatalf("nightly %v x %d", in.NightlyRate, in.Nights)
	}
	if in.BaseTotal != 300 {
		t.Fatalf("base %v", in.BaseTotal)
	}
	if len(in.Fees) != 2 {
		t.Fatalf("%d fees", len(in.Fees))
	}
	if in.Fees[1].Name != "Service fee" || in.Fees[1].Amount != -20 {
		t.Fatalf("fee %+v, want negative service fee", in.Fees[1])
	}
	if in.Total != 330 {
		t.Fatalf("total %v", in.Total)
	}
}

func TestParseMoney(t *testing.T) {
	cases := []struct {
		sign, digits string
		want         float64
	}{
		{"", "1,234.56", 1234.56},
		{"-", "20.00", -20},
		{"−", "5.50", -5.5}, // Unicode minus
	}
	for _, tc := range cases {
		if got := parseMoney(tc.sign, tc.digits); got != tc.want {
			t.Errorf("parseMoney(%q,%q) = %v, want %v", tc.sign, tc.digits, got, tc.want)
		}
	}
}

func TestFindConfirmationCodePrefersMarkerWindow(t *testing.T) {
	text := "Ref ZZZZ999999 elsewhere.\nYour confirmation code is HMABCD1234, enjoy."
	if got := findConfirmationCode(text); got != "HMABCD1234" {
		t.Fatalf("got %q", got)
	}
}

func TestFindConfirmationCodeRequiresDigit(t *testing.T) {
	if got := findConfirmationCode("code ABCDEFGHIJ only letters"); got != "" {
		t.Fatalf("letter-only token accepted: %q", got)
	}
}

func TestSplitName(t *testing.T) {
	first, last := splitName("Ada Lovelace King")
	if first != "Ada" || last != "Lovelace King" {
		t.Fatalf("got %q %q", first, last)
	}
	first, last = splitName("Ben")
	if first != "Ben" || last != "" {
		t.Fatalf("got %q %q", first, last)
	}
}

func TestHTMLToText(t *testing.T) {
	html := `<html><style>p{color:red}</style><body><p>Hello&nbsp;Ada</p><div>Line two</div></body></html>`
	got := htmlToText(html)
	if got != "Hello Ada\nLine two" {
		t.Fatalf("got %q", got)
	}
}

func TestParseHeaderDateLayouts(t *testing.T) {
	for _, value := range []string{
		"Mon, 15 Jun 2020 10:00:00 +0000",
		"15 Jun 2020 10:00:00 -0700",
	} {
		if _, err := parseHeaderDate(value); err != nil {
			t.Errorf("parseHeaderDate(%q): %v", value, err)
		}
	}
	if _, err := parseHeaderDate("next tuesday"); err == nil {
		t.Error("garbage date accepted")
	}
}
