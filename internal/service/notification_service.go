package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/license-service/internal/config"
	"github.com/spec-kit/license-service/internal/events"
)

const webhookTimeout = 5 * time.Second

// NotificationService handles emitting notifications for license events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventLicenseVerified, n.handleLicenseVerified)
	n.dispatcher.Subscribe(events.EventLicenseDenied, n.handleLicenseDenied)
	n.dispatcher.Subscribe(events.EventLicenseExpired, n.handleLicenseExpired)
}

func (n *NotificationService) handleLicenseVerified(ctx context.Context, event events.Event) error {
	n.logger.Debug("LicenseVerified", zap.String("license_id", event.LicenseID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleLicenseDenied(ctx context.Context, event events.Event) error {
	n.logger.Info("LicenseDenied", zap.String("license_id", event.LicenseID), zap.Any("payload", event.Payload))
	n.notifyWebhook(event)
	return nil
}

func (n *NotificationService) handleLicenseExpired(ctx context.Context, event events.Event) error {
	n.logger.Info("LicenseExpired", zap.String("license_id", event.LicenseID), zap.Any("payload", event.Payload))
	n.notifyWebhook(event)
	return nil
}

// notifyWebhook posts event as JSON to the configured webhook in the background, so a slow
// receiver never holds up the verification that published it.
func (n *NotificationService) notifyWebhook(event events.Event) {
	url := strings.TrimSpace(n.cfg.WebhookURL)
	if url == "" {
		return
	}
	go func() {
		if err := postJSON(url, event); err != nil {
			n.logger.Warn("webhook notification failed",
				zap.String("url", url),
				zap.String("event_type", string(event.Type)),
				zap.Error(err))
			return
		}
		n.logger.Debug("webhook notified",
			zap.String("license_id", event.LicenseID),
			zap.String("event_type", string(event.Type)))
	}()
}

func postJSON(url string, body interface{}) error {
	code, _, errs := fiber.Post(url).JSON(body).Timeout(webhookTimeout).Bytes()
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if code < fiber.StatusOK || code >= fiber.StatusMultipleChoices {
		return fmt.Errorf("webhook responded with status %d", code)
	}
	return nil
}
