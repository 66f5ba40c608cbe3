package registration

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/simp-lee/gemfront/internal/domain"
	"github.com/simp-lee/gemfront/internal/pkg"
)

// gormStore implements domain.PendingRegistrationStore using GORM.
type gormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore creates a store over the pending_registrations table.
func NewGormStore(db *gorm.DB) domain.PendingRegistrationStore {
	return &gormStore{db: db, now: time.Now}
}

// Save inserts p. An existing id is reported as AlreadyExists.
func (s *gormStore) Save(ctx context.Context, p *domain.PendingRegistration) error {
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.NewAppError(domain.CodeAlreadyExists, "registration already exists", err)
		}
		return domain.NewAppError(domain.CodeInternal, "failed to save registration", err)
	}
	return nil
}

// Get returns the pending registration with id.
func (s *gormStore) Get(ctx context.Context, id string) (*domain.PendingRegistration, error) {
	return s.find(s.db.WithContext(ctx), id)
}

// Consume reads and deletes the registration in one transaction. The delete
// is conditional on the row still existing, so only one caller wins.
func (s *gormStore) Consume(ctx context.Context, id string) (*domain.PendingRegistration, error) {
	var out *domain.PendingRegistration
	err := pkg.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		p, err := s.find(tx, id)
		if err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&domain.PendingRegistration{})
		if res.Error != nil {
			return domain.NewAppError(domain.CodeInternal, "failed to consume registration", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *gormStore) find(db *gorm.DB, id string) (*domain.PendingRegistration, error) {
	var p domain.PendingRegistration
	if err := db.Where("id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.NewAppError(domain.CodeInternal, "failed to load registration", err)
	}
	if p.Expired(s.now()) {
		return nil, domain.ErrExpired
	}
	return &p, nil
}
