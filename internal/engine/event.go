package engine

import (
	"context"

	"transitlab-bot/internal/prompt"
)

// Kind tags the four inbound event classes delivered by the chat
// transport.
type Kind int

const (
	KindButton Kind = iota
	KindText
	KindLocation
	KindDocument
)

func (k Kind) String() string {
	switch k {
	case KindButton:
		return "button"
	case KindText:
		return "text"
	case KindLocation:
		return "location"
	case KindDocument:
		return "document"
	}
	return "unknown"
}

// Event is one inbound chat event, already stripped of transport
// detail. Exactly the fields for its kind are set.
type Event struct {
	Kind     Kind
	UserID   int64
	Username string

	Data string // button: opaque callback payload
	Text string // text message

	Lat float64 // location
	Lon float64

	FileName string // document
	FileData []byte
}

// Responder is the outbound half of the chat transport: send a new
// message or edit the most recent one, each optionally carrying a
// button layout.
type Responder interface {
	Send(ctx context.Context, userID int64, p prompt.Prompt) error
	Edit(ctx context.Context, userID int64, p prompt.Prompt) error
	SendVideo(ctx context.Context, userID int64, caption string) error
}
