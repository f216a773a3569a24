package services

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"hostpilot-server/models"
	"hostpilot-server/storage"
)

// setupTestDB points storage.DB at a per-test in-memory sqlite database
// with the full schema migrated.
func setupTestDB(t *testing.T) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	storage.DB = db
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})
}

func fixedClock(value string) Clock {
	instant, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return instant }
}

// fakeTransport records sends instead of hitting a provider.
type fakeTransport struct {
	kind  string
	sent  []*models.Message
	fail  bool
	extID string
}

func (f *fakeTransport) Kind() string { return f.kind }

func (f *fakeTransport) Send(msg *models.Message) (*SendResult, error) {
	if f.fail {
		return nil, &TransportError{Provider: f.kind, Err: fmt.Errorf("provider down")}
	}
	f.sent = append(f.sent, msg)
	extID := f.extID
	if extID == "" {
		extID = fmt.Sprintf("%s-ext-%d", f.kind, len(f.sent))
	}
	return &SendResult{ExternalID: extID, DeliveredAt: time.Date(2020, 6, 15, 17, 7, 0, 0, time.UTC)}, nil
}

func fakeTransports(fail bool) (*TransportSet, *fakeTransport, *fakeTransport, *fakeTransport) {
	emailT := &fakeTransport{kind: "email", fail: fail}
	smsT := &fakeTransport{kind: "sms", fail: fail}
	channelT := &fakeTransport{kind: "api", fail: fail}
	return &TransportSet{Email: emailT, SMS: smsT, Channel: channelT}, emailT, smsT, channelT
}

func boolPtr(v bool) *bool { return &v }
