package services

import (
	"testing"
	"time"
)

func TestInZoneProjectsInstant(t *testing.T) {
	instant := time.Date(2020, 6, 15, 17, 7, 0, 0, time.UTC)
	local, err := InZone(instant, "America/Los_Angeles")
	if err != nil {
		t.Fatalf("InZone: %v", err)
	}
	if local.Hour() != 10 || local.Minute() != 7 {
		t.Fatalf("got %s, want 10:07 local", local.Format("15:04"))
	}
}

func TestInZoneRejectsBlankAndUnknownZones(t *testing.T) {
	instant := time.Now()
	if _, err := InZone(instant, ""); err == nil {
		t.Fatal("blank zone accepted")
	}
	if _, err := InZone(instant, "Mars/Olympus_Mons"); err == nil {
		t.Fatal("unknown zone accepted")
	}
}

func TestSameLocalDate(t *testing.T) {
	stored := time.Date(2020, 6, 15, 0, 0, 0, 0, time.UTC)
	pacific, _ := time.LoadLocation("America/Los_Angeles")
	local := time.Date(2020, 6, 15, 10, 7, 0, 0, pacific)
	if !SameLocalDate(stored, local) {
		t.Fatal("same calendar day not matched")
	}
	if SameLocalDate(stored, local.AddDate(0, 0, 1)) {
		t.Fatal("next day matched")
	}
}
