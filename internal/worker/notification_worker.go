package worker

import (
	"github.com/spec-kit/helpdesk-intake/internal/service"
)

// StartNotificationWorker registers staff notification handlers on the event dispatcher.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
