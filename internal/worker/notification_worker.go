package worker

import (
	"github.com/repairx/job-service/internal/events"
	"github.com/repairx/job-service/internal/service"
)

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// StartEventRelay forwards job events to other RepairX components.
func StartEventRelay(publisher *events.RedisPublisher, dispatcher events.Dispatcher) {
	if publisher == nil {
		return
	}
	publisher.Register(dispatcher)
}
