package otel

import (
	"context"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"core-auth/internal/audit/domain"
)

// recordCapture stores the last Record passed to Emit for assertion.
type recordCapture struct {
	rec otellog.Record
	n   int
}

func (r *recordCapture) Emit(_ context.Context, rec otellog.Record) {
	r.rec = rec
	r.n++
}

func attributes(rec otellog.Record) map[string]otellog.Value {
	attrs := make(map[string]otellog.Value)
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value
		return true
	})
	return attrs
}

func TestNewAuditEmitter_NilProvider_ReturnsNoop(t *testing.T) {
	em := NewAuditEmitter(nil)
	if em == nil {
		t.Fatal("NewAuditEmitter(nil) returned nil")
	}
	if err := em.Emit(context.Background(), domain.NewEvent(domain.ActionLogout, true, time.Now())); err != nil {
		t.Errorf("noop Emit: %v", err)
	}
}

func TestNewAuditEmitter_RealProvider(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	em := NewAuditEmitter(provider)
	if err := em.Emit(context.Background(), nil); err != nil {
		t.Errorf("Emit(ctx, nil): %v", err)
	}
	if err := em.Emit(context.Background(), domain.NewEvent(domain.ActionRegister, true, time.Now())); err != nil {
		t.Errorf("Emit: %v", err)
	}
}

func TestEmit_AttributeMapping(t *testing.T) {
	cap := &recordCapture{}
	em := newAuditEmitter(cap)
	at := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)
	event := domain.NewEvent(domain.ActionAuthenticate, true, at)
	event.AccountID = "acc_1"
	event.SessionID = "ses_1"
	event.IPAddress = "10.0.0.1"
	event.UserAgent = "curl/8"

	if err := em.Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	rec := cap.rec
	if !rec.Timestamp().Equal(at) {
		t.Errorf("timestamp = %v, want %v", rec.Timestamp(), at)
	}
	if got := rec.Body().AsString(); got != "account.authenticate" {
		t.Errorf("body = %q", got)
	}
	if rec.Severity() != otellog.SeverityInfo {
		t.Errorf("severity = %v, want info", rec.Severity())
	}
	attrs := attributes(rec)
	want := map[string]string{
		"event_id":   event.ID,
		"action":     "account.authenticate",
		"account_id": "acc_1",
		"session_id": "ses_1",
		"ip_address": "10.0.0.1",
		"user_agent": "curl/8",
	}
	for k, v := range want {
		if attrs[k].AsString() != v {
			t.Errorf("attr %q = %q, want %q", k, attrs[k].AsString(), v)
		}
	}
	if !attrs["success"].AsBool() {
		t.Error("success attribute should be true")
	}
	if _, ok := attrs["detail"]; ok {
		t.Error("empty detail should not be attached")
	}
}

func TestEmit_FailureAndZeroTimestamp(t *testing.T) {
	cap := &recordCapture{}
	em := newAuditEmitter(cap)
	event := &domain.Event{ID: "e1", Action: domain.ActionAuthenticate, Detail: "account locked"}

	before := time.Now().UTC()
	if err := em.Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	after := time.Now().UTC()

	rec := cap.rec
	if rec.Severity() != otellog.SeverityWarn {
		t.Errorf("severity = %v, want warn", rec.Severity())
	}
	if ts := rec.Timestamp(); ts.Before(before) || ts.After(after) {
		t.Errorf("timestamp = %v, should be between %v and %v", ts, before, after)
	}
	attrs := attributes(rec)
	if attrs["detail"].AsString() != "account locked" {
		t.Errorf("detail = %q", attrs["detail"].AsString())
	}
	if _, ok := attrs["account_id"]; ok {
		t.Error("empty account_id should not be attached")
	}
}
