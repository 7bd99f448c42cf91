package chat

import (
	"time"

	"github.com/saifinance/subha-ai/backend/internal/model/locale"
)

// State is a point-in-time snapshot of one widget session.
type State struct {
	SessionID     string          `json:"sessionId"`
	Language      locale.Language `json:"language"`
	Placeholder   string          `json:"placeholder"`
	Input         string          `json:"input"`
	InputDisabled bool            `json:"inputDisabled"`
	Connected     bool            `json:"connected"`
	Connecting    bool            `json:"connecting"`
	AwaitingReply bool            `json:"awaitingReply"`
	Error         string          `json:"error,omitempty"`
	Transcript    []Message       `json:"transcript"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// UpdateKind names what changed in a session.
type UpdateKind string

const (
	UpdateConnecting UpdateKind = "connecting"
	UpdateConnected  UpdateKind = "connected"
	UpdateMessage    UpdateKind = "message"
	UpdateError      UpdateKind = "error"
	UpdateLanguage   UpdateKind = "language"
	UpdateInput      UpdateKind = "input"
	UpdateReset      UpdateKind = "reset"
	UpdateIdle       UpdateKind = "idle"
)

// Update is pushed to subscribers after every state change.
type Update struct {
	Kind  UpdateKind `json:"kind"`
	State State      `json:"state"`
}
