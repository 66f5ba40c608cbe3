package registration

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/simp-lee/gemfront/internal/domain"
	"github.com/simp-lee/gemfront/internal/remote"
)

// DefaultTTL is how long a registration waits for its OTP.
const DefaultTTL = 15 * time.Minute

// Endpoints are the remote registration paths.
type Endpoints struct {
	SendOTP string
	Verify  string
	Resend  string
}

// Service runs the multi-step registration flow.
type Service interface {
	Start(ctx context.Context, req StartRequest) (*domain.PendingRegistration, error)
	Pending(ctx context.Context, id string) (*domain.PendingRegistration, error)
	Verify(ctx context.Context, id, otp string) (*domain.PendingRegistration, error)
	Resend(ctx context.Context, id string) (*domain.PendingRegistration, error)
}

type registrationService struct {
	client    remote.Client
	store     domain.PendingRegistrationStore
	endpoints Endpoints
	ttl       time.Duration
	now       func() time.Time
}

// NewService creates a registration Service.
func NewService(client remote.Client, store domain.PendingRegistrationStore, endpoints Endpoints, ttl time.Duration) Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &registrationService{
		client:    client,
		store:     store,
		endpoints: endpoints,
		ttl:       ttl,
		now:       time.Now,
	}
}

// Start asks the remote API to email an OTP and then saves the context the
// verify step needs.
func (s *registrationService) Start(ctx context.Context, req StartRequest) (*domain.PendingRegistration, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if len(req.Profile) > 0 && !json.Valid(req.Profile) {
		return nil, domain.NewAppError(domain.CodeValidation, "profile must be valid JSON", nil)
	}

	body := map[string]any{
		"name":    req.Name,
		"email":   req.Email,
		"phone":   req.Phone,
		"company": req.Company,
	}
	if len(req.Profile) > 0 {
		body["profile"] = req.Profile
	}
	if _, err := s.client.Post(ctx, s.endpoints.SendOTP, body, nil); err != nil {
		return nil, remoteError(err)
	}

	now := s.now()
	p := &domain.PendingRegistration{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Email:     req.Email,
		Phone:     strings.TrimSpace(req.Phone),
		Company:   strings.TrimSpace(req.Company),
		Profile:   datatypes.JSON(req.Profile),
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.store.Save(ctx, p); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "registration started", "registration_id", p.ID)
	return p, nil
}

// Pending returns a registration that is still waiting for its OTP.
func (s *registrationService) Pending(ctx context.Context, id string) (*domain.PendingRegistration, error) {
	return s.store.Get(ctx, id)
}

// Verify checks otp with the remote API and consumes the registration. A
// rejected OTP leaves the registration in place for another attempt.
func (s *registrationService) Verify(ctx context.Context, id, otp string) (*domain.PendingRegistration, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.client.Post(ctx, s.endpoints.Verify, map[string]string{
		"email": p.Email,
		"otp":   strings.TrimSpace(otp),
	}, nil); err != nil {
		return nil, remoteError(err)
	}

	consumed, err := s.store.Consume(ctx, id)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "registration verified", "registration_id", id)
	return consumed, nil
}

// Resend asks the remote API for a new OTP.
func (s *registrationService) Resend(ctx context.Context, id string) (*domain.PendingRegistration, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.client.Post(ctx, s.endpoints.Resend, map[string]string{"email": p.Email}, nil); err != nil {
		return nil, remoteError(err)
	}
	return p, nil
}

// remoteError keeps the remote message. 4xx answers are the user's to fix.
func remoteError(err error) error {
	status := remote.StatusOf(err)
	if status >= http.StatusBadRequest && status < http.StatusInternalServerError {
		return domain.NewAppError(domain.CodeValidation, remote.UserMessage(err), err)
	}
	return domain.NewAppError(domain.CodeUpstream, remote.UserMessage(err), err)
}
