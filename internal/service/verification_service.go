package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/license-service/internal/domain"
	"github.com/spec-kit/license-service/internal/events"
	"github.com/spec-kit/license-service/internal/repository"
)

// Decision reasons, used as metric labels and event payloads.
const (
	ReasonValid           = "valid"
	ReasonInvalidKey      = "invalid_key"
	ReasonDomainMismatch  = "domain_mismatch"
	ReasonProductMismatch = "product_mismatch"
	ReasonNotActive       = "not_active"
	ReasonExpired         = "expired"
)

// VerifyInput is one verification question.
type VerifyInput struct {
	LicenseKey  string
	Domain      string
	ProductName string
}

// VerificationResult is the decision for a VerifyInput. License is set only when Valid.
type VerificationResult struct {
	Valid   bool
	Message string
	Reason  string
	License *domain.License
}

// DecisionRecorder counts decisions.
type DecisionRecorder interface {
	RecordDecision(valid bool, reason string)
}

// VerificationService decides whether a license key is valid for a domain and product.
type VerificationService struct {
	licenses   repository.LicenseRepository
	dispatcher events.Dispatcher
	recorder   DecisionRecorder
	logger     *zap.Logger
	now        func() time.Time
}

// VerificationDependencies bundles collaborators of the service.
type VerificationDependencies struct {
	Licenses   repository.LicenseRepository
	Dispatcher events.Dispatcher
	Recorder   DecisionRecorder
	Logger     *zap.Logger
	Now        func() time.Time
}

// NewVerificationService builds the service.
func NewVerificationService(deps VerificationDependencies) *VerificationService {
	s := &VerificationService{
		licenses:   deps.Licenses,
		dispatcher: deps.Dispatcher,
		recorder:   deps.Recorder,
		logger:     deps.Logger,
		now:        deps.Now,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Verify applies the checks in order: key, domain, product, status, expiration. Denials are
// results, not errors; an error means the store could not be read.
func (s *VerificationService) Verify(ctx context.Context, in VerifyInput) (VerificationResult, error) {
	// license_key is a UUID column; Postgres would reject anything else with a cast error.
	if _, err := uuid.Parse(in.LicenseKey); err != nil {
		return s.finish(ctx, in, nil, deny(ReasonInvalidKey, "Invalid license key")), nil
	}

	license, err := s.licenses.GetByKey(ctx, in.LicenseKey)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.finish(ctx, in, nil, deny(ReasonInvalidKey, "Invalid license key")), nil
	}
	if err != nil {
		return VerificationResult{}, fmt.Errorf("load license: %w", err)
	}

	switch {
	case license.Domain != in.Domain:
		return s.finish(ctx, in, license, deny(ReasonDomainMismatch, "Domain mismatch")), nil
	case license.ProductName == "" || license.ProductName != in.ProductName:
		return s.finish(ctx, in, license, deny(ReasonProductMismatch, "Product mismatch")), nil
	case license.Status != domain.LicenseStatusActive:
		return s.finish(ctx, in, license, deny(ReasonNotActive, fmt.Sprintf("License is %s", license.Status))), nil
	case license.ExpiredAt(s.now()):
		s.expire(ctx, license)
		return s.finish(ctx, in, license, deny(ReasonExpired, "License has expired")), nil
	}

	return s.finish(ctx, in, license, VerificationResult{
		Valid:   true,
		Message: "License is valid",
		Reason:  ReasonValid,
		License: license,
	}), nil
}

func deny(reason, message string) VerificationResult {
	return VerificationResult{Valid: false, Message: message, Reason: reason}
}

func (s *VerificationService) expire(ctx context.Context, license *domain.License) {
	if err := s.licenses.MarkExpired(ctx, license.ID); err != nil {
		s.logger.Warn("failed to mark license expired", zap.String("license_id", license.ID), zap.Error(err))
		return
	}
	license.Status = domain.LicenseStatusExpired
	s.publish(ctx, events.Event{
		Type:      events.EventLicenseExpired,
		LicenseID: license.ID,
		Payload: events.LicenseExpiredPayload{
			ClientName:     license.ClientName,
			ExpirationDate: license.ExpirationDate,
		},
	})
}

func (s *VerificationService) finish(ctx context.Context, in VerifyInput, license *domain.License, result VerificationResult) VerificationResult {
	if s.recorder != nil {
		s.recorder.RecordDecision(result.Valid, result.Reason)
	}

	eventType := events.EventLicenseDenied
	if result.Valid {
		eventType = events.EventLicenseVerified
	}
	event := events.Event{
		Type: eventType,
		Payload: events.VerificationPayload{
			Domain:      in.Domain,
			ProductName: in.ProductName,
			Reason:      result.Reason,
			Message:     result.Message,
		},
	}
	if license != nil {
		event.LicenseID = license.ID
	}
	s.publish(ctx, event)
	return result
}

func (s *VerificationService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = s.now().UTC()
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
