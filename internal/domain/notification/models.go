package notification

import "errors"

// Notification categories
const (
	CategoryReview  = "review"
	CategoryRelink  = "relink"
	CategorySync    = "sync"
	CategoryGeneral = "general"
)

var validCategories = map[string]struct{}{
	CategoryReview:  {},
	CategoryRelink:  {},
	CategorySync:    {},
	CategoryGeneral: {},
}

// Domain errors
var (
	ErrInvalidCategory = errors.New("invalid notification category")
	ErrEmptyNotice     = errors.New("notification title and body are required")
)

// Notice is one push notification about a connection.
type Notice struct {
	ConnectionID string
	Title        string
	Body         string
	Category     string
}

func (n Notice) Validate() error {
	if n.Title == "" || n.Body == "" {
		return ErrEmptyNotice
	}
	if !IsValidCategory(n.Category) {
		return ErrInvalidCategory
	}
	return nil
}

// data builds the FCM payload. The category doubles as the app route.
func (n Notice) data() map[string]string {
	d := map[string]string{"route": n.Category}
	if n.ConnectionID != "" {
		d["connectionId"] = n.ConnectionID
	}
	return d
}

func IsValidCategory(c string) bool {
	_, ok := validCategories[c]
	return ok
}
