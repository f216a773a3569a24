package services

import (
	"testing"
	"time"

	"hostpilot-server/models"
)

func testRenderContext() *RenderContext {
	return &RenderContext{
		Guest: map[string]interface{}{
			"first_name": "Ada",
			"email":      "a@x",
		},
		Property: map[string]interface{}{
			"city": "Portland",
		},
		Variables: map[string]interface{}{
			"wifi_password": "hunter2",
		},
	}
}

func TestRenderSubstitutesTokens(t *testing.T) {
	got := Render("Hello {{guest.first_name}}, wifi is {{variables.wifi_password}}", testRenderContext())
	want := "Hello Ada, wifi is hunter2"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRenderTolerantOfWhitespace(t *testing.T) {
	got := Render("Hi {{ guest.first_name }}!", testRenderContext())
	if got != "Hi Ada!" {
		t.Fatalf("got %q", got)
	}
}

func TestRenderLeavesUnresolvedTokensUnchanged(t *testing.T) {
	cases := []string{
		"code: {{reservation.confirmation_code}}", // known root, missing leaf
		"{{bogus.path}}",                          // unknown root
		"{{guest}}",                               // bare root is not a value
	}
	for _, tc := range cases {
		if got := Render(tc, testRenderContext()); got != tc {
			t.Errorf("Render(%q) = %q, want unchanged", tc, got)
		}
	}
}

func TestRenderIdempotentWhenFullyResolved(t *testing.T) {
	ctx := testRenderContext()
	once := Render("Hello {{guest.first_name}} in {{property.city}}", ctx)
	twice := Render(once, ctx)
	if once != twice {
		t.Fatalf("render not idempotent: %q vs %q", once, twice)
	}
}

func TestBuildRenderContextDropsBlankValues(t *testing.T) {
	res := &models.Reservation{
		StartDate: time.Date(2020, 6, 15, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2020, 6, 18, 0, 0, 0, 0, time.UTC),
		Status:    models.ReservationAccepted,
	}
	guest := &models.User{FirstName: "Ada"}
	ctx := BuildRenderContext(res, nil, guest, nil, nil)

	// Blank confirmation code must pass tokens through, not render "".
	in := "code {{reservation.confirmation_code}}"
	if got := Render(in, ctx); got != in {
		t.Fatalf("blank confirmation code rendered: %q", got)
	}
	if got := Render("{{reservation.start_date}}", ctx); got != "Jun 15, 2020" {
		t.Fatalf("start date rendered %q", got)
	}
	// Blank guest email dropped too.
	in = "{{guest.email}}"
	if got := Render(in, ctx); got != in {
		t.Fatalf("blank guest email rendered: %q", got)
	}
}

func TestBuildRenderContextVariables(t *testing.T) {
	variables := []models.Variable{
		{Name: "door_code", Value: "4312"},
	}
	ctx := BuildRenderContext(nil, nil, nil, nil, variables)
	if got := Render("door: {{variables.door_code}}", ctx); got != "door: 4312" {
		t.Fatalf("got %q", got)
	}
}
