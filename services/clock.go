package services

import (
	"fmt"
	"time"
)

// Clock supplies "now". Scheduling code takes a Clock instead of reading
// time.Now so firing windows are reproducible in tests.
type Clock func() time.Time

// NowUTC is the production clock.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// InZone projects an instant into a property's IANA zone. An unknown or
// blank zone is a soft error; callers skip the affected property.
func InZone(instant time.Time, zone string) (time.Time, error) {
	if zone == "" {
		return time.Time{}, fmt.Errorf("blank time zone")
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("unknown time zone %q: %w", zone, err)
	}
	return instant.In(loc), nil
}

// SameLocalDate reports whether a stored date equals the local calendar day
// of the given instant. Stored dates compare on their calendar components
// only; the zone they were persisted in is irrelevant.
func SameLocalDate(stored time.Time, local time.Time) bool {
	return stored.Format("2006-01-02") == local.Format("2006-01-02")
}
