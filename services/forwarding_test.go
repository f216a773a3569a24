package services

import (
	"errors"
	"strings"
	"testing"

	"gorm.io/gorm"

	"hostpilot-server/models"
	"hostpilot-server/storage"
)

func TestRegisterMintsTwelveCharAddress(t *testing.T) {
	setupTestDB(t)
	org := models.Organization{Name: "Acme Stays"}
	storage.DB.Create(&org)

	registry := NewForwardingRegistry()
	forwarding, err := registry.Register(org.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(forwarding.Name) != 12 {
		t.Fatalf("name %q, want 12 chars", forwarding.Name)
	}
	if strings.ToUpper(forwarding.Name) != forwarding.Name {
		t.Fatalf("name %q not uppercase", forwarding.Name)
	}
	if forwarding.Enabled == nil || !*forwarding.Enabled {
		t.Fatal("new address not enabled")
	}
	if !strings.HasSuffix(forwarding.Address(), "@in.hostpilot.app") {
		t.Fatalf("address %q", forwarding.Address())
	}
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	setupTestDB(t)
	org := models.Organization{Name: "Acme Stays"}
	storage.DB.Create(&org)

	registry := NewForwardingRegistry()
	forwarding, err := registry.Register(org.ID)
	if err != nil {
		t.Fatal(err)
	}

	// A registered local part always resolves back, whatever the caller's
	// casing.
	for _, probe := range []string{
		forwarding.Name,
		strings.ToLower(forwarding.Name),
		" " + forwarding.Name + " ",
	} {
		found, err := registry.Lookup(probe)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", probe, err)
		}
		if found.ID != forwarding.ID {
			t.Fatalf("Lookup(%q) resolved %d, want %d", probe, found.ID, forwarding.ID)
		}
	}
}

func TestLookupIgnoresDisabledAddresses(t *testing.T) {
	setupTestDB(t)
	org := models.Organization{Name: "Acme Stays"}
	storage.DB.Create(&org)

	registry := NewForwardingRegistry()
	forwarding, err := registry.Register(org.ID)
	if err != nil {
		t.Fatal(err)
	}
	if err := registry.SetEnabled(org.ID, forwarding.ID, false); err != nil {
		t.Fatal(err)
	}

	if _, err := registry.Lookup(forwarding.Name); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("disabled address resolved: %v", err)
	}

	// Re-enabling brings it back.
	if err := registry.SetEnabled(org.ID, forwarding.ID, true); err != nil {
		t.Fatal(err)
	}
	if _, err := registry.Lookup(forwarding.Name); err != nil {
		t.Fatalf("re-enabled address did not resolve: %v", err)
	}
}

func TestSetEnabledUnknownAddress(t *testing.T) {
	setupTestDB(t)
	registry := NewForwardingRegistry()
	if err := registry.SetEnabled(1, 999, false); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("got %v", err)
	}
}

func TestSetEnabledScopedToOrganization(t *testing.T) {
	setupTestDB(t)
	org := models.Organization{Name: "Acme Stays"}
	storage.DB.Create(&org)
	other := models.Organization{Name: "Rival Rentals"}
	storage.DB.Create(&other)

	registry := NewForwardingRegistry()
	forwarding, err := registry.Register(org.ID)
	if err != nil {
		t.Fatal(err)
	}
	if err := registry.SetEnabled(other.ID, forwarding.ID, false); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("cross-organization toggle allowed: %v", err)
	}
}

func TestListReturnsAllAddresses(t *testing.T) {
	setupTestDB(t)
	org := models.Organization{Name: "Acme Stays"}
	storage.DB.Create(&org)

	registry := NewForwardingRegistry()
	a, _ := registry.Register(org.ID)
	b, _ := registry.Register(org.ID)
	registry.SetEnabled(org.ID, b.ID, false)

	addresses, err := registry.List(org.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(addresses) != 2 {
		t.Fatalf("%d addresses", len(addresses))
	}
	if addresses[0].ID != a.ID || addresses[1].ID != b.ID {
		t.Fatal("addresses out of order")
	}
}
