// Package mq carries low-stock alerts between the API and the notification
// fan-out through a pluggable broker.
package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/petroasset/apiserver/config"
	"github.com/petroasset/apiserver/types"
)

const (
	attrEventType       = "event_type"
	attrInventoryID     = "inventory_id"
	eventStockAlert     = "stock_alert"
	contentTypeJSON     = "application/json"
	defaultAlertChannel = "inventory.stock-alerts"
)

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// StockAlertHandler consumes one decoded stock alert.
type StockAlertHandler func(ctx context.Context, alert types.StockAlert) error

// MQ publishes and consumes stock alerts over a backend.
type MQ struct {
	backend      Backend
	alertChannel string
}

// New constructs an MQ wrapper for the provided backend.
func New(backend Backend, alertChannel string) *MQ {
	if alertChannel == "" {
		alertChannel = defaultAlertChannel
	}
	return &MQ{backend: backend, alertChannel: alertChannel}
}

// NewFromConfig connects the configured broker. It returns nil when the
// backend is "none" or empty.
func NewFromConfig(ctx context.Context, cfg config.MQConfig) (*MQ, error) {
	var (
		backend Backend
		err     error
	)
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "rabbitmq":
		backend, err = NewRabbitMQClient(cfg.RabbitMQ)
	case "pubsub":
		backend, err = NewPubSubClient(ctx, cfg.PubSub)
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Backend, err)
	}
	return New(backend, cfg.StockAlertTopic), nil
}

// PublishStockAlert sends the alert to the stock alert channel.
func (m *MQ) PublishStockAlert(ctx context.Context, alert types.StockAlert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("encode stock alert: %w", err)
	}
	attrs := map[string]string{
		attrEventType:   eventStockAlert,
		attrInventoryID: alert.InventoryID,
		"stock_status":  string(alert.StockStatus),
	}
	if _, err := m.backend.Publish(ctx, m.alertChannel, data, attrs); err != nil {
		return fmt.Errorf("publish stock alert: %w", err)
	}
	return nil
}

// ErrMalformedMessage marks a delivery that can never be processed.
var ErrMalformedMessage = errors.New("malformed message")

// ConsumeStockAlerts blocks delivering decoded alerts to handler until ctx is
// cancelled or the backend fails. Undecodable messages are acknowledged and
// dropped through onMalformed so they are not redelivered forever.
func (m *MQ) ConsumeStockAlerts(ctx context.Context, handler StockAlertHandler, onMalformed func(Message, error)) error {
	return m.backend.Subscribe(ctx, m.alertChannel, func(ctx context.Context, msg Message) error {
		alert, err := decodeStockAlert(msg)
		if err != nil {
			if onMalformed != nil {
				onMalformed(msg, err)
			}
			return nil
		}
		return handler(ctx, alert)
	})
}

func decodeStockAlert(msg Message) (types.StockAlert, error) {
	if kind := msg.Attributes[attrEventType]; kind != "" && kind != eventStockAlert {
		return types.StockAlert{}, fmt.Errorf("%w: unexpected event type %q", ErrMalformedMessage, kind)
	}
	var alert types.StockAlert
	if err := json.Unmarshal(msg.Data, &alert); err != nil {
		return types.StockAlert{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if alert.InventoryID == "" || alert.Message == "" {
		return types.StockAlert{}, fmt.Errorf("%w: missing inventory id or message", ErrMalformedMessage)
	}
	return alert, nil
}

// Close closes the underlying backend.
func (m *MQ) Close() error {
	return m.backend.Close()
}
