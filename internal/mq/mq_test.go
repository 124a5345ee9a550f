package mq

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/petroasset/apiserver/config"
	"github.com/petroasset/apiserver/types"
)

// chanBackend delivers published messages to a single in-process subscriber.
type chanBackend struct {
	mu        sync.Mutex
	published []Message
	channels  []string
	deliver   chan Message
	closed    bool
}

func newChanBackend() *chanBackend {
	return &chanBackend{deliver: make(chan Message, 16)}
}

func (b *chanBackend) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	msg := Message{ID: channel, Data: data, Attributes: attrs}
	b.published = append(b.published, msg)
	b.channels = append(b.channels, channel)
	b.deliver <- msg
	return channel, nil
}

func (b *chanBackend) Subscribe(ctx context.Context, _ string, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-b.deliver:
			if err := handler(ctx, msg); err != nil {
				return err
			}
		}
	}
}

func (b *chanBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func TestStockAlertRoundTrip(t *testing.T) {
	backend := newChanBackend()
	q := New(backend, "")
	alert := types.StockAlert{
		Message:         "Low stock alert for Drill Pipe in Main Yard",
		StockStatus:     types.StockOutOfStock,
		CurrentQuantity: 5,
		InventoryID:     "inv-1",
	}
	if err := q.PublishStockAlert(context.Background(), alert); err != nil {
		t.Fatalf("PublishStockAlert: %v", err)
	}
	if backend.channels[0] != defaultAlertChannel {
		t.Fatalf("published to %q", backend.channels[0])
	}
	if backend.published[0].Attributes["stock_status"] != "OUT_OF_STOCK" {
		t.Fatalf("missing attributes: %v", backend.published[0].Attributes)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	received := make(chan types.StockAlert, 1)
	go func() {
		_ = q.ConsumeStockAlerts(ctx, func(_ context.Context, a types.StockAlert) error {
			received <- a
			return nil
		}, nil)
	}()

	select {
	case got := <-received:
		if got != alert {
			t.Fatalf("got %+v, want %+v", got, alert)
		}
	case <-ctx.Done():
		t.Fatal("alert was not consumed")
	}
}

func TestConsumeDropsMalformedMessages(t *testing.T) {
	backend := newChanBackend()
	q := New(backend, "alerts")
	backend.deliver <- Message{ID: "bad", Data: []byte("{not json")}
	backend.deliver <- Message{ID: "other", Data: []byte(`{}`), Attributes: map[string]string{attrEventType: "user_created"}}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var mu sync.Mutex
	var dropped []string
	err := q.ConsumeStockAlerts(ctx, func(context.Context, types.StockAlert) error {
		t.Error("handler called for malformed message")
		return nil
	}, func(msg Message, err error) {
		if !errors.Is(err, ErrMalformedMessage) {
			t.Errorf("unexpected error %v", err)
		}
		mu.Lock()
		dropped = append(dropped, msg.ID)
		mu.Unlock()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(dropped) != 2 {
		t.Fatalf("expected 2 dropped messages, got %v", dropped)
	}
}

func TestNewFromConfig(t *testing.T) {
	q, err := NewFromConfig(context.Background(), config.MQConfig{Backend: "none"})
	if err != nil || q != nil {
		t.Fatalf("none backend: %v, %v", q, err)
	}
	if _, err := NewFromConfig(context.Background(), config.MQConfig{Backend: "kafka"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if _, err := NewFromConfig(context.Background(), config.MQConfig{Backend: "pubsub"}); err == nil {
		t.Fatal("expected error for pubsub without project id")
	}
}
