package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// Type names a booking lifecycle event.
type Type string

const (
	BookingCreated   Type = "booking.created"
	DriverAssigned   Type = "booking.driver_assigned"
	DriverArrived    Type = "booking.driver_arrived"
	NoShowAvailable  Type = "booking.no_show_available"
	BookingNoShow    Type = "booking.no_show"
	TripStarted      Type = "booking.trip_started"
	TripCompleted    Type = "booking.trip_completed"
	BookingCancelled Type = "booking.cancelled"
	QueueJoined      Type = "queue.joined"
	QueueLeft        Type = "queue.left"
)

// Event is the JSON payload written to the booking events topic.
type Event struct {
	Type       Type           `json:"type"`
	BookingID  string         `json:"booking_id,omitempty"`
	DriverID   string         `json:"driver_id,omitempty"`
	CustomerID string         `json:"customer_id,omitempty"`
	Status     string         `json:"status,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Publisher ships events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic keyed by booking ID, so all
// events of one booking land on one partition in order.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}}
}

// Publish writes one event.
func (k *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}

	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	key := ev.BookingID
	if key == "" {
		key = ev.DriverID
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: b})
}

// Close flushes and closes the writer.
func (k *KafkaPublisher) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = NopPublisher{}
)
