package services

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	"hostpilot-server/models"
	"hostpilot-server/storage"

	"gorm.io/datatypes"
	"gorm.io/gorm/clause"
)

// Scheduler materialises due automations into ReservationMessage rows.
// Ticks are independent and safe to overlap: the unique
// (automation, reservation) index is the de-dup key, so a second tick in
// the same local hour observes the first's insert and skips.
type Scheduler struct {
	clock Clock
}

func NewScheduler(clock Clock) *Scheduler {
	return &Scheduler{clock: clock}
}

// eventDateColumn maps an automation event to the reservation column the
// firing day is computed from.
func eventDateColumn(event string) string {
	switch event {
	case models.EventCheckIn:
		return "start_date"
	case models.EventCheckOut:
		return "end_date"
	case models.EventBooking:
		return "created_at"
	case models.EventCancellation:
		return "date_cancelled"
	default:
		return "updated_at"
	}
}

// Tick runs one scheduler pass over every active automation. Failures are
// isolated per automation. Returns the number of firings materialised.
func (s *Scheduler) Tick() int {
	var automations []models.ReservationAutomation
	err := storage.DB.Where("is_active = ?", true).Find(&automations).Error
	if err != nil {
		log.Printf("❌ SCHEDULER: listing automations: %v", err)
		return 0
	}

	fired := 0
	for i := range automations {
		n, err := s.processAutomation(&automations[i])
		if err != nil {
			log.Printf("❌ SCHEDULER: automation %d: %v", automations[i].ID, err)
			continue
		}
		fired += n
	}
	return fired
}

func (s *Scheduler) processAutomation(automation *models.ReservationAutomation) (int, error) {
	// A null template disables the rule.
	if automation.TemplateID == nil {
		log.Printf("⏭  SCHEDULER: automation %d has no template, skipping", automation.ID)
		return 0, nil
	}
	var template models.Template
	if err := storage.DB.First(&template, *automation.TemplateID).Error; err != nil {
		log.Printf("⏭  SCHEDULER: automation %d template missing, skipping", automation.ID)
		return 0, nil
	}

	hour, ok := parseWallClockHour(automation.Time)
	if !ok {
		return 0, fmt.Errorf("bad wall clock %q", automation.Time)
	}

	zones, err := s.distinctZones(automation.OrganizationID)
	if err != nil {
		return 0, err
	}

	fired := 0
	for _, zone := range zones {
		localNow, err := InZone(s.clock(), zone)
		if err != nil {
			// soft error: properties in an unknown zone sit out this tick
			log.Printf("⏭  SCHEDULER: %v", err)
			continue
		}
		shifted := localNow.AddDate(0, 0, -automation.DaysDelta)
		if shifted.Hour() != hour {
			continue
		}

		reservations, err := s.dueReservations(automation, &template, zone, shifted.Format("2006-01-02"))
		if err != nil {
			return fired, err
		}
		for i := range reservations {
			created, err := s.fire(automation, &template, &reservations[i])
			if err != nil {
				log.Printf("❌ SCHEDULER: automation %d reservation %d: %v",
					automation.ID, reservations[i].ID, err)
				continue
			}
			if created {
				fired++
			}
		}
	}
	return fired, nil
}

// distinctZones lists the time zones of the organization's properties.
// Blank zones are excluded: those properties never participate.
func (s *Scheduler) distinctZones(organizationID uint) ([]string, error) {
	var zones []string
	err := storage.DB.Model(&models.Property{}).
		Where("organization_id = ? AND time_zone <> ''", organizationID).
		Distinct().Pluck("time_zone", &zones).Error
	return zones, err
}

// dueReservations selects accepted reservations whose event date lands on
// the shifted local day, minus those this automation already fired for.
func (s *Scheduler) dueReservations(automation *models.ReservationAutomation, template *models.Template, zone, localDate string) ([]models.Reservation, error) {
	propQuery := storage.DB.Model(&models.Property{}).Select("id").
		Where("organization_id = ? AND time_zone = ?", automation.OrganizationID, zone)
	if template.PropertyID != nil {
		propQuery = propQuery.Where("id = ?", *template.PropertyID)
	}

	column := eventDateColumn(automation.Event)
	var reservations []models.Reservation
	err := storage.DB.
		Where("organization_id = ?", automation.OrganizationID).
		Where("status = ?", models.ReservationAccepted).
		Where("property_id IN (?)", propQuery).
		Where("date("+column+") = ?", localDate).
		Where("id NOT IN (?)", storage.DB.Model(&models.ReservationMessage{}).
			Select("reservation_id").Where("automation_id = ?", automation.ID)).
		Find(&reservations).Error
	return reservations, err
}

// fire renders the template for one reservation and inserts the
// materialised ReservationMessage. Returns false when the firing was
// skipped (blank recipient) or lost the unique-insert race.
func (s *Scheduler) fire(automation *models.ReservationAutomation, template *models.Template, reservation *models.Reservation) (bool, error) {
	var property models.Property
	if err := storage.DB.First(&property, reservation.PropertyID).Error; err != nil {
		return false, err
	}

	var guest models.User
	storage.DB.First(&guest, reservation.GuestID)
	var owner models.User
	storage.DB.First(&owner, property.OwnerID)
	var variables []models.Variable
	storage.DB.Where("organization_id = ?", automation.OrganizationID).Find(&variables)

	renderCtx := BuildRenderContext(reservation, &property, &guest, &owner, variables)

	recipient := ""
	switch automation.RecipientType {
	case models.RecipientEmail:
		recipient = automation.RecipientAddress
	default:
		recipient = guest.Email
	}
	if strings.TrimSpace(recipient) == "" {
		log.Printf("⏭  SCHEDULER: automation %d reservation %d has blank recipient, skipping",
			automation.ID, reservation.ID)
		return false, nil
	}

	subject := Render(template.Subject, renderCtx)
	content := Render(template.Content, renderCtx)
	if template.Headline != "" {
		content = Render(template.Headline, renderCtx) + "\n\n" + content
	}

	info, _ := json.Marshal(recipientInfo{
		CC:  decodeAddressList(automation.CCAddress),
		BCC: decodeAddressList(automation.BCCAddress),
	})

	firing := models.ReservationMessage{
		AutomationID:  automation.ID,
		ReservationID: reservation.ID,
		Event:         automation.Event,
		Recipient:     recipient,
		RecipientInfo: info,
		Subject:       subject,
		Content:       content,
	}
	result := storage.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&firing)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func decodeAddressList(raw datatypes.JSON) []string {
	if raw == nil {
		return nil
	}
	var out []string
	json.Unmarshal(raw, &out)
	return out
}

// parseWallClockHour reads the hour out of an "HH:MM" wall clock. Firing
// compares hours only; the 15-minute tick quantises within the hour.
func parseWallClockHour(wallClock string) (int, bool) {
	parts := strings.SplitN(wallClock, ":", 2)
	if len(parts) == 0 || parts[0] == "" {
		return 0, false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	return hour, true
}
