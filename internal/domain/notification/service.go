package notification

import (
	"context"
	"log"
	"slices"
	"sync"

	"finlink/internal/shared/messages"
)

// Service pushes connection notices to the configured devices.
type Service struct {
	messenger Messenger
	msgs      *messages.Messages

	mu     sync.RWMutex
	tokens []string
}

// NewService creates a new notification service. A nil messenger or an empty
// token list turns every send into a logged no-op.
func NewService(messenger Messenger, tokens []string, msgs *messages.Messages) *Service {
	if msgs == nil {
		msgs = messages.Default()
	}
	return &Service{messenger: messenger, tokens: slices.Clone(tokens), msgs: msgs}
}

// DropToken stops sending to a device token the messenger reported as invalid.
func (s *Service) DropToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = slices.DeleteFunc(s.tokens, func(t string) bool { return t == token })
	log.Printf("Device token dropped, %d remaining; remove it from FIREBASE_DEVICE_TOKENS", len(s.tokens))
}

// Notify validates and sends n to every configured device.
func (s *Service) Notify(ctx context.Context, n Notice) error {
	if err := n.Validate(); err != nil {
		return err
	}

	s.mu.RLock()
	tokens := slices.Clone(s.tokens)
	s.mu.RUnlock()

	if s.messenger == nil || len(tokens) == 0 {
		log.Printf("Notification skipped (no messenger or device tokens): %s", n.Title)
		return nil
	}

	if len(tokens) == 1 {
		return s.messenger.Send(ctx, tokens[0], n.Title, n.Body, n.data())
	}
	return s.messenger.SendMulticast(ctx, tokens, n.Title, n.Body, n.data())
}

// SendReviewNeeded reports accounts that were left unmatched after import.
// Failures are logged, never returned.
func (s *Service) SendReviewNeeded(ctx context.Context, connectionID, institution string, unmatched int) {
	if unmatched <= 0 {
		return
	}
	title, body := s.msgs.ReviewNeeded.Render(institution, unmatched)
	s.send(ctx, Notice{ConnectionID: connectionID, Title: title, Body: body, Category: CategoryReview})
}

// SendRelinkRequired reports a connection whose credential was rejected.
func (s *Service) SendRelinkRequired(ctx context.Context, connectionID, institution string) {
	title, body := s.msgs.RelinkRequired.Render(institution)
	s.send(ctx, Notice{ConnectionID: connectionID, Title: title, Body: body, Category: CategoryRelink})
}

// SendSyncComplete reports a finished balance refresh.
func (s *Service) SendSyncComplete(ctx context.Context, connectionID, institution string, updated int) {
	title, body := s.msgs.SyncComplete.Render(institution, updated)
	s.send(ctx, Notice{ConnectionID: connectionID, Title: title, Body: body, Category: CategorySync})
}

func (s *Service) send(ctx context.Context, n Notice) {
	if err := s.Notify(ctx, n); err != nil {
		log.Printf("Connection %s: failed to send %s notification: %v", n.ConnectionID, n.Category, err)
	}
}
