package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"toda/internal/domain"
	"toda/internal/events"
	"toda/internal/notify"
)

// NotificationService fans booking lifecycle changes out to the event
// stream and to push notifications. Delivery is best-effort: failures are
// logged and never fail the calling operation.
type NotificationService struct {
	publisher events.Publisher
	pusher    notify.Pusher
}

// NewNotificationService creates a new NotificationService. Nil arguments
// disable the corresponding channel.
func NewNotificationService(publisher events.Publisher, pusher notify.Pusher) *NotificationService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if pusher == nil {
		pusher = notify.NopPusher{}
	}
	return &NotificationService{publisher: publisher, pusher: pusher}
}

// NotifyBookingCreated records a new booking request.
func (s *NotificationService) NotifyBookingCreated(ctx context.Context, b *domain.Booking) error {
	return s.send(ctx, bookingEvent(events.BookingCreated, b), "", notify.Message{})
}

// NotifyDriverAssigned tells the customer which driver is coming.
func (s *NotificationService) NotifyDriverAssigned(ctx context.Context, b *domain.Booking) error {
	return s.send(ctx, bookingEvent(events.DriverAssigned, b), notify.CustomerTopic(b.CustomerID), notify.Message{
		Title: "Driver Assigned",
		Body:  fmt.Sprintf("%s (TODA %s) is on the way", b.DriverName, b.TodaNumber),
		Data:  map[string]string{"booking_id": b.ID, "driver_id": b.AssignedDriverID},
	})
}

// NotifyDriverArrived tells the customer the driver is at the pickup point.
func (s *NotificationService) NotifyDriverArrived(ctx context.Context, b *domain.Booking) error {
	return s.send(ctx, bookingEvent(events.DriverArrived, b), notify.CustomerTopic(b.CustomerID), notify.Message{
		Title: "Driver Arrived",
		Body:  "Your driver is waiting at the pickup point",
		Data:  map[string]string{"booking_id": b.ID},
	})
}

// NotifyNoShowAvailable tells the driver the no-show report is unlocked.
func (s *NotificationService) NotifyNoShowAvailable(ctx context.Context, b *domain.Booking) error {
	return s.send(ctx, bookingEvent(events.NoShowAvailable, b), notify.DriverTopic(b.AssignedDriverID), notify.Message{
		Title: "Passenger Not Here?",
		Body:  "You can now report a no-show for this booking",
		Data:  map[string]string{"booking_id": b.ID},
	})
}

// NotifyNoShow reports a booking closed as no-show to both parties.
func (s *NotificationService) NotifyNoShow(ctx context.Context, b *domain.Booking) error {
	msg := notify.Message{
		Title: "Booking Closed",
		Body:  "The booking was closed because the passenger did not show up",
		Data:  map[string]string{"booking_id": b.ID},
	}
	_ = s.push(ctx, notify.DriverTopic(b.AssignedDriverID), msg)
	return s.send(ctx, bookingEvent(events.BookingNoShow, b), notify.CustomerTopic(b.CustomerID), msg)
}

// NotifyTripStarted tells the customer the trip has started.
func (s *NotificationService) NotifyTripStarted(ctx context.Context, b *domain.Booking) error {
	return s.send(ctx, bookingEvent(events.TripStarted, b), notify.CustomerTopic(b.CustomerID), notify.Message{
		Title: "Trip Started",
		Body:  "Enjoy your ride!",
		Data:  map[string]string{"booking_id": b.ID},
	})
}

// NotifyTripCompleted tells the customer the trip has ended.
func (s *NotificationService) NotifyTripCompleted(ctx context.Context, b *domain.Booking) error {
	ev := bookingEvent(events.TripCompleted, b)
	ev.Data = map[string]any{"fare": b.Fare, "convenience_fee": b.ConvenienceFee}
	return s.send(ctx, ev, notify.CustomerTopic(b.CustomerID), notify.Message{
		Title: "Trip Completed",
		Body:  fmt.Sprintf("Total: PHP %.2f", b.Fare+b.ConvenienceFee),
		Data:  map[string]string{"booking_id": b.ID},
	})
}

// NotifyBookingCancelled tells the assigned driver, if any, that the booking is off.
func (s *NotificationService) NotifyBookingCancelled(ctx context.Context, b *domain.Booking) error {
	topic := ""
	if b.AssignedDriverID != "" {
		topic = notify.DriverTopic(b.AssignedDriverID)
	}
	return s.send(ctx, bookingEvent(events.BookingCancelled, b), topic, notify.Message{
		Title: "Booking Cancelled",
		Body:  "The passenger cancelled the booking",
		Data:  map[string]string{"booking_id": b.ID},
	})
}

// NotifyQueueChange records a driver joining or leaving the queue.
func (s *NotificationService) NotifyQueueChange(ctx context.Context, t events.Type, driverID string) error {
	return s.send(ctx, events.Event{Type: t, DriverID: driverID, OccurredAt: time.Now()}, "", notify.Message{})
}

func bookingEvent(t events.Type, b *domain.Booking) events.Event {
	return events.Event{
		Type:       t,
		BookingID:  b.ID,
		DriverID:   b.AssignedDriverID,
		CustomerID: b.CustomerID,
		Status:     string(b.Status),
		OccurredAt: time.Now(),
	}
}

// send publishes ev and, when topic is set, pushes msg.
func (s *NotificationService) send(ctx context.Context, ev events.Event, topic string, msg notify.Message) error {
	slog.InfoContext(ctx, "booking event",
		"type", ev.Type, "booking_id", ev.BookingID, "driver_id", ev.DriverID, "status", ev.Status)

	if err := s.publisher.Publish(ctx, ev); err != nil {
		slog.WarnContext(ctx, "publish event failed", "type", ev.Type, "booking_id", ev.BookingID, "error", err)
	}

	if topic == "" {
		return nil
	}
	return s.push(ctx, topic, msg)
}

func (s *NotificationService) push(ctx context.Context, topic string, msg notify.Message) error {
	if err := s.pusher.PushToTopic(ctx, topic, msg); err != nil {
		slog.WarnContext(ctx, "push failed", "topic", topic, "error", err)
	}
	return nil
}
