package domain

import (
	"context"
	"time"

	"gorm.io/datatypes"
)

// PendingRegistration carries the data collected by the first registration
// step until the OTP sent to Email is verified. It is consumed exactly once.
type PendingRegistration struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	Name      string         `gorm:"size:100;not null" json:"name"`
	Email     string         `gorm:"size:255;not null;index" json:"email"`
	Phone     string         `gorm:"size:32" json:"phone,omitempty"`
	Company   string         `gorm:"size:200" json:"company,omitempty"`
	Profile   datatypes.JSON `json:"profile,omitempty"`
	ExpiresAt time.Time      `gorm:"not null;index" json:"expires_at"`
	CreatedAt time.Time      `json:"created_at"`
}

// Expired reports whether the registration context is past its expiry at now.
func (p *PendingRegistration) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// PendingRegistrationStore persists pending registration contexts.
//
// Get returns an error matching IsExpired once ExpiresAt has passed and
// IsNotFound when the id is unknown or already consumed. Consume returns the
// context and removes it atomically; a second Consume for the same id fails
// with IsNotFound.
type PendingRegistrationStore interface {
	Save(ctx context.Context, p *PendingRegistration) error
	Get(ctx context.Context, id string) (*PendingRegistration, error)
	Consume(ctx context.Context, id string) (*PendingRegistration, error)
}
