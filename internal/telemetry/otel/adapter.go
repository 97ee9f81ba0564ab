package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"core-auth/internal/audit"
	"core-auth/internal/audit/domain"
)

// recordEmitter is the part of otellog.Logger the audit emitter uses.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewAuditEmitter returns an audit.Emitter that sends events as OTel log records via provider.
// A nil provider yields a no-op emitter.
func NewAuditEmitter(provider *sdklog.LoggerProvider) audit.Emitter {
	if provider == nil {
		return noopEmitter{}
	}
	return newAuditEmitter(provider.Logger("core-auth.audit"))
}

func newAuditEmitter(logger recordEmitter) *otelEmitter {
	return &otelEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *domain.Event) error { return nil }

type otelEmitter struct {
	logger recordEmitter
}

// Emit converts the event to a log record. Empty fields are not attached as attributes.
func (e *otelEmitter) Emit(ctx context.Context, event *domain.Event) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	ts := event.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetObservedTimestamp(time.Now().UTC())
	rec.SetBody(otellog.StringValue(string(event.Action)))
	if event.Success {
		rec.SetSeverity(otellog.SeverityInfo)
	} else {
		rec.SetSeverity(otellog.SeverityWarn)
	}
	rec.AddAttributes(
		otellog.String("event_id", event.ID),
		otellog.String("action", string(event.Action)),
		otellog.Bool("success", event.Success),
	)
	for _, kv := range []struct{ key, value string }{
		{"account_id", event.AccountID},
		{"session_id", event.SessionID},
		{"ip_address", event.IPAddress},
		{"user_agent", event.UserAgent},
		{"detail", event.Detail},
	} {
		if kv.value != "" {
			rec.AddAttributes(otellog.String(kv.key, kv.value))
		}
	}
	e.logger.Emit(ctx, rec)
	return nil
}
