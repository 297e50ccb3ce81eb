package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/ghuser/lendingclub/pkg/logger"
)

func setupTracer() *sdktrace.TracerProvider {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp
}

func nopLogger() logger.Logger {
	return logger.Nop()
}

// TestRetryWithBackoff_SuccessOnFirstAttempt verifies no retry occurs on success.
func TestRetryWithBackoff_SuccessOnFirstAttempt(t *testing.T) {
	calls := 0
	handler := func(_ context.Context, _ *message.Message) error {
		calls++
		return nil
	}
	msg := message.NewMessage("id", nil)
	err := retryWithBackoff(context.Background(), msg, handler, maxRetries, time.Millisecond, nopLogger())
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

// TestRetryWithBackoff_SuccessAfterRetries verifies retry continues until success.
func TestRetryWithBackoff_SuccessAfterRetries(t *testing.T) {
	calls := 0
	handler := func(_ context.Context, _ *message.Message) error {
		calls++
		if calls < 3 {
			return errors.New("transient error")
		}
		return nil
	}
	msg := message.NewMessage("id", nil)
	err := retryWithBackoff(context.Background(), msg, handler, maxRetries, time.Millisecond, nopLogger())
	if err != nil {
		t.Fatalf("expected nil after eventual success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

// TestRetryWithBackoff_ExhaustsRetries verifies an error is returned after all retries fail.
func TestRetryWithBackoff_ExhaustsRetries(t *testing.T) {
	calls := 0
	handler := func(_ context.Context, _ *message.Message) error {
		calls++
		return errors.New("permanent error")
	}
	msg := message.NewMessage("id", nil)
	err := retryWithBackoff(context.Background(), msg, handler, maxRetries, time.Millisecond, nopLogger())
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if calls != maxRetries {
		t.Errorf("expected %d calls, got %d", maxRetries, calls)
	}
}

// TestRetryWithBackoff_ContextCancelled verifies retry stops when context is canceled.
func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	calls := 0
	handler := func(_ context.Context, _ *message.Message) error {
		calls++
		return errors.New("error")
	}
	msg := message.NewMessage("id", nil)
	err := retryWithBackoff(ctx, msg, handler, maxRetries, time.Second, nopLogger())
	if err == nil {
		t.Fatal("expected error from canceled context")
	}
	// Should have called handler once then exited on ctx.Done
	if calls != 1 {
		t.Errorf("expected 1 call before context cancel, got %d", calls)
	}
}

// TestStartForwarder_NonForwarderMode verifies StartForwarder returns an error
// when called on an EventBus not configured with forwarder mode.
func TestStartForwarder_NonForwarderMode(t *testing.T) {
	bus := &EventBus{useForwarder: false}
	err := bus.StartForwarder(context.Background())
	if err == nil {
		t.Fatal("expected error for non-forwarder EventBus")
	}
}

// TestInMemoryEventBus_NoTransactions verifies the in-memory bus refuses
// outbox publishing and reports itself as non-durable.
func TestInMemoryEventBus_NoTransactions(t *testing.T) {
	bus := NewInMemoryEventBus(nopLogger())
	defer bus.Close() //nolint:errcheck

	if bus.Durable() {
		t.Error("in-memory bus must not be durable")
	}
	if _, err := bus.NewTxPublisher(nil); err == nil {
		t.Error("expected error for tx publisher without SQL transport")
	}
	if err := bus.Ping(context.Background()); err != nil {
		t.Errorf("ping on in-memory bus: %v", err)
	}
}

// TestInMemoryEventBus_PublishSubscribe verifies a message published after
// subscribing reaches the handler with its metadata and trace context.
func TestInMemoryEventBus_PublishSubscribe(t *testing.T) {
	tp := setupTracer()
	defer tp.Shutdown(context.Background()) //nolint:errcheck

	bus := NewInMemoryEventBus(nopLogger())
	defer bus.Close() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type payload struct {
		Day int `json:"day"`
	}
	got := make(chan payload, 1)
	traces := make(chan trace.TraceID, 1)
	errCh, err := bus.Subscribe(ctx, "lending.day.settled", func(hctx context.Context, msg *message.Message) error {
		if msg.Metadata.Get(MetaEventID) != "evt-1" {
			return errors.New("missing event_id metadata")
		}
		var p payload
		if err := DecodeJSON(msg, &p); err != nil {
			return err
		}
		traces <- trace.SpanFromContext(hctx).SpanContext().TraceID()
		got <- p
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	go func() {
		for range errCh {
		}
	}()

	pubCtx, span := otel.Tracer("test").Start(ctx, "publish")
	msg, err := NewJSONMessage("evt-1", 1, payload{Day: 7})
	if err != nil {
		t.Fatalf("NewJSONMessage: %v", err)
	}
	if err := bus.Publish(pubCtx, "lending.day.settled", msg); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	span.End()

	select {
	case p := <-got:
		if p.Day != 7 {
			t.Errorf("expected day 7, got %d", p.Day)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	if id := <-traces; id != span.SpanContext().TraceID() {
		t.Errorf("trace ID mismatch: want %s, got %s", span.SpanContext().TraceID(), id)
	}
}

// TestInMemoryEventBus_PoisonMessageDropped verifies a message whose handler
// keeps failing is dropped after the retries, so later publishes still flow.
func TestInMemoryEventBus_PoisonMessageDropped(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the retry backoff")
	}
	bus := NewInMemoryEventBus(nopLogger())
	defer bus.Close() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handled := make(chan string, 2)
	errCh, err := bus.Subscribe(ctx, "lending.item.listed", func(_ context.Context, msg *message.Message) error {
		if msg.UUID == "poison" {
			return errors.New("cannot project")
		}
		handled <- msg.UUID
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := bus.Publish(ctx, "lending.item.listed", message.NewMessage("poison", []byte(`{}`))); err != nil {
		t.Fatalf("Publish poison: %v", err)
	}
	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected handler error")
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for handler error")
	}

	if err := bus.Publish(ctx, "lending.item.listed", message.NewMessage("ok", []byte(`{}`))); err != nil {
		t.Fatalf("Publish ok: %v", err)
	}
	select {
	case id := <-handled:
		if id != "ok" {
			t.Errorf("expected ok, got %s", id)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("bus stalled after poison message")
	}
}

func TestNewJSONMessage(t *testing.T) {
	msg, err := NewJSONMessage("abc", 3, map[string]int{"n": 1})
	if err != nil {
		t.Fatalf("NewJSONMessage: %v", err)
	}
	if msg.Metadata.Get(MetaEventVersion) != "3" {
		t.Errorf("expected version 3, got %q", msg.Metadata.Get(MetaEventVersion))
	}
	if string(msg.Payload) != `{"n":1}` {
		t.Errorf("unexpected payload %s", msg.Payload)
	}
	if _, err := NewJSONMessage("x", 1, make(chan int)); err == nil {
		t.Error("expected marshal error for unsupported payload")
	}
}

// TestOTelPropagation_InjectExtract verifies that trace context injected via
// the same propagation path used by Publish/Subscribe round-trips correctly.
func TestOTelPropagation_InjectExtract(t *testing.T) {
	tp := setupTracer()
	defer tp.Shutdown(context.Background()) //nolint:errcheck

	ctx, span := otel.Tracer("test").Start(context.Background(), "publish-span")
	defer span.End()
	wantTraceID := span.SpanContext().TraceID()

	// Simulate Publish: inject trace context into message metadata.
	msg := message.NewMessage("id", nil)
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	for k, v := range carrier {
		msg.Metadata.Set(k, v)
	}

	// Simulate Subscribe: extract trace context from message metadata.
	extractCarrier := propagation.MapCarrier{}
	for k, v := range msg.Metadata {
		extractCarrier[k] = v
	}
	msgCtx := otel.GetTextMapPropagator().Extract(context.Background(), extractCarrier)

	gotSpan := trace.SpanFromContext(msgCtx)
	if !gotSpan.SpanContext().IsValid() {
		t.Fatal("extracted span context is not valid")
	}
	if gotSpan.SpanContext().TraceID() != wantTraceID {
		t.Errorf("trace ID mismatch: want %s, got %s", wantTraceID, gotSpan.SpanContext().TraceID())
	}
}
