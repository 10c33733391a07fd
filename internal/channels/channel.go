// Package channels defines the contract between a chat platform adapter and
// the conversation gateway.
//
// Inbound traffic is a stream of Events, each tagged with exactly one
// EventKind. Outbound traffic goes through the Transport interface. Every
// outbound call succeeds or fails on its own; callers log failures and move on.
package channels

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Common errors
var (
	ErrNotStarted   = errors.New("channel not started")
	ErrInvalidRef   = errors.New("invalid message reference")
	ErrEmptyMessage = errors.New("message text is empty")
)

// EventKind tags an inbound Event.
type EventKind int

const (
	// EventText is a plain text message (not a command).
	EventText EventKind = iota + 1
	// EventCommand is a "/command [args]" message.
	EventCommand
	// EventSelection is a press on an option attached to an earlier message.
	EventSelection
)

func (k EventKind) String() string {
	switch k {
	case EventText:
		return "text"
	case EventCommand:
		return "command"
	case EventSelection:
		return "selection"
	default:
		return "unknown"
	}
}

// MessageRef identifies a message already delivered to a chat, so it can be
// edited or deleted later.
type MessageRef struct {
	ChatID    string
	MessageID string
}

// IsZero reports whether the ref points nowhere.
func (r MessageRef) IsZero() bool {
	return r.ChatID == "" || r.MessageID == ""
}

func (r MessageRef) String() string {
	return fmt.Sprintf("%s/%s", r.ChatID, r.MessageID)
}

// Event is one inbound update from a chat platform.
type Event struct {
	Kind   EventKind
	ChatID string
	UserID string

	// EventText and EventCommand: the platform id of the inbound message, so
	// replies can be threaded to it. Empty when the platform has none.
	MessageID string

	// EventText: the message text, verbatim.
	Text string

	// EventCommand: lower-cased command without the slash or @botname, and
	// whatever followed it.
	Command string
	Args    string

	// EventSelection: the platform's callback id (to acknowledge it), the
	// opaque payload of the chosen option, and the message carrying the options.
	CallbackID string
	Payload    string
	Source     MessageRef

	ReceivedAt time.Time
}

// Origin returns a ref to the inbound message, or a zero ref when the event
// does not carry one.
func (e *Event) Origin() MessageRef {
	if e.MessageID == "" {
		return MessageRef{}
	}
	return MessageRef{ChatID: e.ChatID, MessageID: e.MessageID}
}

// Option is one selectable choice attached to a prompt.
type Option struct {
	Label string // shown to the user
	Value string // delivered back as Event.Payload
}

// Transport is the outbound half of a chat platform.
type Transport interface {
	// SendText posts a new message to the chat.
	SendText(ctx context.Context, chatID, text string) (MessageRef, error)

	// Reply posts a new message to to's chat, shown as a reply to that message.
	Reply(ctx context.Context, to MessageRef, text string) (MessageRef, error)

	// SendOptions posts a prompt with one selectable option per entry.
	SendOptions(ctx context.Context, chatID, prompt string, options []Option) (MessageRef, error)

	// AckSelection acknowledges a selection event so the client stops
	// showing it as pending. text may be empty.
	AckSelection(ctx context.Context, callbackID, text string) error

	// EditText replaces the text of an existing message and drops its options.
	EditText(ctx context.Context, ref MessageRef, text string) error

	// Delete removes an existing message.
	Delete(ctx context.Context, ref MessageRef) error
}

// Source is the inbound half of a chat platform.
type Source interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Events() <-chan *Event
}
