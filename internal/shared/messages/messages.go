package messages

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// MessageText is a notification template. Title and Body are fmt formats;
// the arguments each notice passes are documented on Messages.
type MessageText struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type Messages struct {
	// ReviewNeeded: institution name, number of unmatched accounts.
	ReviewNeeded MessageText `json:"review_needed"`
	// RelinkRequired: institution name.
	RelinkRequired MessageText `json:"relink_required"`
	// SyncComplete: institution name, number of records updated.
	SyncComplete MessageText `json:"sync_complete"`
}

// Default returns the built-in English templates.
func Default() *Messages {
	return &Messages{
		ReviewNeeded: MessageText{
			Title: "%s: accounts need review",
			Body:  "%d linked account(s) could not be matched to a card or bank account.",
		},
		RelinkRequired: MessageText{
			Title: "%s needs to be re-linked",
			Body:  "The institution rejected the saved credential. Link it again to resume balance updates.",
		},
		SyncComplete: MessageText{
			Title: "%s balances updated",
			Body:  "%d record(s) refreshed.",
		},
	}
}

var (
	loaded   Messages
	loadOnce sync.Once
	loadErr  error
)

// Load reads the notifications JSON file and caches the result. Templates
// missing from the file keep their defaults; an empty path yields Default().
// Safe to call from multiple goroutines.
func Load(path string) (*Messages, error) {
	if path == "" {
		return Default(), nil
	}
	loadOnce.Do(func() {
		loaded = *Default()
		data, err := os.ReadFile(path)
		if err != nil {
			loadErr = fmt.Errorf("failed to read messages file: %w", err)
			return
		}
		if err := json.Unmarshal(data, &loaded); err != nil {
			loadErr = fmt.Errorf("failed to parse messages file: %w", err)
		}
	})
	if loadErr != nil {
		return nil, loadErr
	}
	return &loaded, nil
}

// Render formats the template with args.
func (m MessageText) Render(args ...any) (title, body string) {
	return fmt.Sprintf(m.Title, firstArg(args)...), fmt.Sprintf(m.Body, restArgs(args)...)
}

// firstArg feeds the title its single argument; titles take at most one.
func firstArg(args []any) []any {
	if len(args) == 0 {
		return nil
	}
	return args[:1]
}

func restArgs(args []any) []any {
	if len(args) <= 1 {
		return nil
	}
	return args[1:]
}
