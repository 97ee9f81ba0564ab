// Package audit records security-relevant account and session events.
package audit

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"core-auth/internal/audit/domain"
)

// emitTimeout bounds a single async emit.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait after GracefulStop so in-flight async emits can finish.
const ShutdownDrainDuration = emitTimeout

// Emitter delivers audit events. Callers treat delivery as best-effort.
type Emitter interface {
	Emit(ctx context.Context, event *domain.Event) error
}

// LogEmitter writes events to a zap logger.
type LogEmitter struct {
	logger *zap.Logger
}

// NewLogEmitter returns an Emitter that logs each event at info level (warn for failures).
func NewLogEmitter(logger *zap.Logger) *LogEmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogEmitter{logger: logger.Named("audit")}
}

func (e *LogEmitter) Emit(_ context.Context, event *domain.Event) error {
	if event == nil {
		return nil
	}
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("action", string(event.Action)),
		zap.Bool("success", event.Success),
		zap.Time("at", event.CreatedAt),
	}
	if event.AccountID != "" {
		fields = append(fields, zap.String("account_id", event.AccountID))
	}
	if event.SessionID != "" {
		fields = append(fields, zap.String("session_id", event.SessionID))
	}
	if event.IPAddress != "" {
		fields = append(fields, zap.String("ip", event.IPAddress))
	}
	if event.UserAgent != "" {
		fields = append(fields, zap.String("user_agent", event.UserAgent))
	}
	if event.Detail != "" {
		fields = append(fields, zap.String("detail", event.Detail))
	}
	if event.Success {
		e.logger.Info("audit event", fields...)
	} else {
		e.logger.Warn("audit event", fields...)
	}
	return nil
}

// MultiEmitter fans an event out to several emitters. Nil entries are skipped.
type MultiEmitter []Emitter

func (m MultiEmitter) Emit(ctx context.Context, event *domain.Event) error {
	var errs []error
	for _, e := range m {
		if e == nil {
			continue
		}
		if err := e.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// EmitAsync runs Emit in a goroutine with emitTimeout so the caller is not blocked.
// The goroutine uses context.Background() so request cancellation does not abort the emit.
// Errors are logged to logger, which may be nil.
func EmitAsync(emitter Emitter, logger *zap.Logger, event *domain.Event) {
	if emitter == nil || event == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := emitter.Emit(ctx, event); err != nil && logger != nil {
			logger.Warn("audit: async emit failed",
				zap.String("action", string(event.Action)),
				zap.Error(err))
		}
	}()
}
