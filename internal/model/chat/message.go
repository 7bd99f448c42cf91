package chat

import "time"

// Sender identifies who authored a transcript entry.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Valid reports whether s is a known sender.
func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderBot
}

// Message is one transcript entry. Entries are never edited after they are
// appended; a placeholder is removed once the real reply arrives.
type Message struct {
	ID            string    `json:"id"`
	Sender        Sender    `json:"sender"`
	Text          string    `json:"text"`
	HTML          string    `json:"html"`
	IsPlaceholder bool      `json:"isPlaceholder,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}
