package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// RefreshRequest asks a worker to refresh one connection. It carries only
// the connection id; the worker loads everything else from storage.
type RefreshRequest struct {
	ID           string    `json:"id"`
	ConnectionID string    `json:"connectionId"`
	RequestedAt  time.Time `json:"requestedAt"`
}

// NewRefreshRequest creates a request with a fresh message id.
func NewRefreshRequest(connectionID string) *RefreshRequest {
	return &RefreshRequest{
		ID:           uuid.NewString(),
		ConnectionID: connectionID,
		RequestedAt:  time.Now().UTC(),
	}
}

func (m *RefreshRequest) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RefreshRequestFromJSON decodes a request and rejects one without a
// connection id.
func RefreshRequestFromJSON(data []byte) (*RefreshRequest, error) {
	var msg RefreshRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ConnectionID == "" {
		return nil, errors.New("refresh request without connection id")
	}
	return &msg, nil
}
