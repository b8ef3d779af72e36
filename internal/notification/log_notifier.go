package notification

import (
	"context"

	"github.com/renewly/renewly/internal/logger"
)

// LogNotifier writes events to the application log. Used in local mode
// and as the default until a real channel is configured.
type LogNotifier struct {
	logger *logger.Logger
}

func NewLogNotifier(logger *logger.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, event *Event) error {
	n.logger.Infow("notification",
		"event_type", event.Type,
		"customer_id", event.CustomerID,
		"payload", event.Payload,
	)
	return nil
}
