package worker

import (
	"github.com/spec-kit/license-service/internal/service"
)

// StartNotificationWorker registers notification handlers for license events.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
