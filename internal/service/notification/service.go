// internal/service/notification/service.go
package notification

import (
	"context"
	"errors"

	"callback-queue-service/internal/domain/callback"

	"go.uber.org/zap"
)

// Sink receives committed callback events.
type Sink interface {
	Publish(ctx context.Context, event callback.Event) error
}

// Dispatcher fans every event out to all sinks. A failing sink never stops
// the others; their errors are joined.
type Dispatcher struct {
	sinks []Sink
}

func NewDispatcher(sinks ...Sink) *Dispatcher {
	return &Dispatcher{sinks: sinks}
}

func (d *Dispatcher) Publish(ctx context.Context, event callback.Event) error {
	var errs []error
	for _, s := range d.sinks {
		if err := s.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes events to the structured log.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(_ context.Context, event callback.Event) error {
	fields := []zap.Field{
		zap.String("event", string(event.Type)),
		zap.String("callback_id", event.CallbackID),
		zap.String("title", event.Title),
		zap.String("message", event.Message),
	}
	if event.Callback != nil {
		fields = append(fields,
			zap.String("status", string(event.Callback.Status)),
			zap.Int("queue_position", event.Callback.QueuePosition),
			zap.Int("retry_count", event.Callback.RetryCount),
		)
	}

	switch event.Severity {
	case callback.SeverityError:
		s.logger.Error("callback event", fields...)
	case callback.SeverityWarning:
		s.logger.Warn("callback event", fields...)
	default:
		s.logger.Info("callback event", fields...)
	}
	return nil
}
