package notify

import (
	"context"

	"github.com/dmitrijs2005/utask/internal/logging"
)

// LogSender writes notifications to the log instead of delivering them.
// It is the development backend.
type LogSender struct {
	logger logging.Logger
}

func NewLogSender(logger logging.Logger) *LogSender {
	return &LogSender{logger: logger.With("module", "notify")}
}

func (s *LogSender) Send(ctx context.Context, m Message) error {
	s.logger.Info(ctx, "notification",
		"id", m.ID,
		"kind", string(m.Kind),
		"email", m.Email,
		"link", m.Link,
	)
	return nil
}
