package notify

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// Pusher sends a push notification to every device subscribed to a topic.
type Pusher interface {
	PushToTopic(ctx context.Context, topic string, msg Message) error
}

// Message is a push notification.
type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

// DriverTopic is the FCM topic a driver's app subscribes to.
func DriverTopic(driverID string) string { return "driver-" + driverID }

// CustomerTopic is the FCM topic a customer's app subscribes to.
func CustomerTopic(customerID string) string { return "customer-" + customerID }

// FCMPusher delivers pushes through Firebase Cloud Messaging.
type FCMPusher struct {
	client *messaging.Client
}

// NewFCMPusher initializes the Firebase Admin SDK from a service account file.
func NewFCMPusher(ctx context.Context, credentialsFile string) (*FCMPusher, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("get messaging client: %w", err)
	}

	return &FCMPusher{client: client}, nil
}

// PushToTopic sends msg with high Android priority.
func (p *FCMPusher) PushToTopic(ctx context.Context, topic string, msg Message) error {
	_, err := p.client.Send(ctx, &messaging.Message{
		Topic: topic,
		Data:  msg.Data,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: "toda_dispatch",
				Sound:     "default",
			},
		},
	})
	return err
}

// NopPusher drops every push. Used when Firebase is not configured.
type NopPusher struct{}

func (NopPusher) PushToTopic(context.Context, string, Message) error { return nil }

var (
	_ Pusher = (*FCMPusher)(nil)
	_ Pusher = NopPusher{}
)
