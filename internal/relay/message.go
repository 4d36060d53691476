package relay

import (
	"errors"
	"fmt"

	"github.com/roach88/gisdoc/internal/crdt"
	"github.com/roach88/gisdoc/internal/document"
	"github.com/roach88/gisdoc/internal/presence"
)

// MessageType distinguishes wire messages.
type MessageType string

const (
	// TypeSync carries a full op log: the server's on join, the client's on
	// connect.
	TypeSync MessageType = "sync"
	// TypeUpdate carries the ops of one or more transactions.
	TypeUpdate MessageType = "update"
	// TypeAwareness carries presence entries.
	TypeAwareness MessageType = "awareness"
)

// Message is the JSON frame exchanged on a relay websocket.
type Message struct {
	Type      MessageType      `json:"type"`
	Update    *crdt.Update     `json:"update,omitempty"`
	Awareness *presence.Update `json:"awareness,omitempty"`
}

// ErrBadMessage is wrapped by every message validation failure.
var ErrBadMessage = errors.New("bad relay message")

// Validate checks that the payload matches the type and that every op
// carries a value a document would accept.
func (m Message) Validate() error {
	switch m.Type {
	case TypeSync, TypeUpdate:
		if m.Update == nil {
			return fmt.Errorf("%w: %s without update", ErrBadMessage, m.Type)
		}
		for _, op := range m.Update.Ops {
			if err := document.CheckOp(op); err != nil {
				return fmt.Errorf("%w: %w", ErrBadMessage, err)
			}
		}
	case TypeAwareness:
		if m.Awareness == nil {
			return fmt.Errorf("%w: awareness without entries", ErrBadMessage)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrBadMessage, m.Type)
	}
	return nil
}

// envelope is what travels through a Broker: the message plus the id of
// the connection it came from, so that connection is skipped on delivery.
type envelope struct {
	Origin  string  `json:"origin"`
	Message Message `json:"message"`
}
