package services

import (
	"errors"
	"strings"

	"github.com/mailmirror/core/internal/database/models"
	"gorm.io/gorm"
)

// ContactService deduplicates correspondents by address
type ContactService struct {
	db *gorm.DB
}

// NewContactService creates a new ContactService instance
func NewContactService(db *gorm.DB) *ContactService {
	return &ContactService{db: db}
}

// Resolve returns the contact for an address, creating it on first
// sighting. A non-empty name only ever fills an empty stored name;
// once set, the name is never overwritten. An empty address resolves
// to no contact. Safe to call concurrently for the same address: a
// lost create race falls back to re-fetching the winner's row.
func (s *ContactService) Resolve(address, name string) (*models.Contact, error) {
	address = strings.ToLower(strings.TrimSpace(address))
	if address == "" {
		return nil, nil
	}
	name = strings.TrimSpace(name)

	var contact models.Contact
	err := s.db.Where("email = ?", address).First(&contact).Error
	if err == nil {
		if contact.Name == "" && name != "" {
			// Guarded update: only fills the name while it is still empty
			res := s.db.Model(&models.Contact{}).
				Where("id = ? AND (name = '' OR name IS NULL)", contact.ID).
				Update("name", name)
			if res.Error != nil {
				return nil, res.Error
			}
			if res.RowsAffected > 0 {
				contact.Name = name
			}
		}
		return &contact, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	contact = models.Contact{Email: address, Name: name}
	if err := s.db.Create(&contact).Error; err != nil {
		// Unique constraint hit: someone else created it first
		var existing models.Contact
		if ferr := s.db.Where("email = ?", address).First(&existing).Error; ferr != nil {
			return nil, err
		}
		return &existing, nil
	}
	return &contact, nil
}

// GetByEmail retrieves a contact by its case-normalized address
func (s *ContactService) GetByEmail(address string) (*models.Contact, error) {
	address = strings.ToLower(strings.TrimSpace(address))

	var contact models.Contact
	if err := s.db.Where("email = ?", address).First(&contact).Error; err != nil {
		return nil, err
	}
	return &contact, nil
}
