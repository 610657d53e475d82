package firebase

import (
	"context"
	"fmt"
	"log"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

const fcmBatchLimit = 500

// TokenDropper is called with a device token FCM reported as invalid.
type TokenDropper func(token string)

// Client implements notification.Messenger using Firebase Cloud Messaging
type Client struct {
	msgClient *messaging.Client
	onInvalid TokenDropper
}

// NewClient initializes a Firebase app and returns an FCM client.
// onInvalid may be nil.
func NewClient(ctx context.Context, credentialsFile string, onInvalid TokenDropper) (*Client, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	msgClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase messaging client: %w", err)
	}

	return &Client{msgClient: msgClient, onInvalid: onInvalid}, nil
}

// Send sends a push notification to a single device token
func (c *Client) Send(ctx context.Context, token string, title, body string, data map[string]string) error {
	_, err := c.msgClient.Send(ctx, &messaging.Message{
		Token:        token,
		Notification: &messaging.Notification{Title: title, Body: body},
		Data:         data,
	})
	if err != nil {
		if isInvalidToken(err) {
			c.drop(token, err)
			return fmt.Errorf("invalid token: %w", err)
		}
		return fmt.Errorf("failed to send FCM message: %w", err)
	}
	return nil
}

// SendMulticast sends a push notification to multiple device tokens in
// batches of at most 500.
func (c *Client) SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) error {
	var success, failure int
	for _, batch := range chunkTokens(tokens, fcmBatchLimit) {
		resp, err := c.msgClient.SendEachForMulticast(ctx, &messaging.MulticastMessage{
			Tokens:       batch,
			Notification: &messaging.Notification{Title: title, Body: body},
			Data:         data,
		})
		if err != nil {
			return fmt.Errorf("failed to send FCM multicast: %w", err)
		}

		success += resp.SuccessCount
		failure += resp.FailureCount
		for i, r := range resp.Responses {
			switch {
			case r.Error == nil:
			case isInvalidToken(r.Error):
				c.drop(batch[i], r.Error)
			default:
				log.Printf("FCM send error at index %d: %v", i, r.Error)
			}
		}
	}

	log.Printf("FCM multicast: %d success, %d failure", success, failure)
	return nil
}

func isInvalidToken(err error) bool {
	return messaging.IsUnregistered(err) || messaging.IsInvalidArgument(err)
}

func (c *Client) drop(token string, cause error) {
	log.Printf("Invalid FCM token (dropping): %v", cause)
	if c.onInvalid != nil {
		c.onInvalid(token)
	}
}

func chunkTokens(tokens []string, size int) [][]string {
	var chunks [][]string
	for i := 0; i < len(tokens); i += size {
		chunks = append(chunks, tokens[i:min(i+size, len(tokens))])
	}
	return chunks
}
