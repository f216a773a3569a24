package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"hostpilot-server/models"
	"hostpilot-server/storage"
	"hostpilot-server/utils"
)

// ForwardingRegistry issues and manages the per-organization forwarding
// addresses channel mail gets forwarded to.
type ForwardingRegistry struct{}

func NewForwardingRegistry() *ForwardingRegistry {
	return &ForwardingRegistry{}
}

// Register mints a new forwarding address for the organization. The local
// part is a random 12-char token; a collision retries with a fresh one.
func (f *ForwardingRegistry) Register(organizationID uint) (*models.ForwardingEmail, error) {
	for attempt := 0; attempt < 5; attempt++ {
		name, err := utils.GenerateShortToken(6)
		if err != nil {
			return nil, err
		}
		enabled := true
		forwarding := models.ForwardingEmail{
			OrganizationID: organizationID,
			Name:           name,
			Enabled:        &enabled,
		}
		err = storage.DB.Create(&forwarding).Error
		if err == nil {
			return &forwarding, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) && !isUniqueViolation(err) {
			return nil, err
		}
	}
	return nil, errors.New("could not allocate a forwarding address")
}

// SetEnabled toggles the address without deleting it, so mail to a retired
// address keeps failing loudly instead of silently routing.
func (f *ForwardingRegistry) SetEnabled(organizationID uint, forwardingID uint, enabled bool) error {
	result := storage.DB.Model(&models.ForwardingEmail{}).
		Where("id = ? AND organization_id = ?", forwardingID, organizationID).
		Update("enabled", enabled)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Lookup resolves a local part, case-insensitive. Disabled addresses do not
// resolve.
func (f *ForwardingRegistry) Lookup(localPart string) (*models.ForwardingEmail, error) {
	var forwarding models.ForwardingEmail
	err := storage.DB.
		Where("LOWER(name) = ? AND enabled = ?", strings.ToLower(strings.TrimSpace(localPart)), true).
		First(&forwarding).Error
	if err != nil {
		return nil, err
	}
	return &forwarding, nil
}

// List returns all of an organization's addresses, enabled or not.
func (f *ForwardingRegistry) List(organizationID uint) ([]models.ForwardingEmail, error) {
	var addresses []models.ForwardingEmail
	err := storage.DB.Where("organization_id = ?", organizationID).
		Order("id").Find(&addresses).Error
	return addresses, err
}

// isUniqueViolation matches both the sqlite and postgres unique-constraint
// error texts, which gorm does not always translate.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") ||
		strings.Contains(msg, "duplicate key value")
}
