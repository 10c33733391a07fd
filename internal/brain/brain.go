// Package brain talks to the chat-completion service.
//
// A call never panics and never returns a bare error: it yields an Outcome
// that is either a reply text or a classified failure. Callers decide what
// the user sees; the failure detail is for operators only.
package brain

import (
	"errors"
	"fmt"
)

// SystemPromptTemplate is interpolated with the active personality label.
const SystemPromptTemplate = "You are %s, and you help the user with their questions."

// SystemPrompt returns the system instruction for a personality.
func SystemPrompt(personality string) string {
	return fmt.Sprintf(SystemPromptTemplate, personality)
}

// Request is one completion request: the personality snapshot taken for
// this cycle and the user's text, passed through unmodified.
type Request struct {
	Personality string
	Text        string
}

// Message is one chat message on the wire.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Messages returns the two-message conversation sent to the service.
func (r Request) Messages() []Message {
	return []Message{
		{Role: "system", Content: SystemPrompt(r.Personality)},
		{Role: "user", Content: r.Text},
	}
}

// ErrorKind classifies a failed completion.
type ErrorKind string

const (
	// KindTransport: the service could not be reached or did not answer in
	// time (dial, DNS, timeout, cancelled, circuit open).
	KindTransport ErrorKind = "transport"
	// KindUpstream: the service answered with a non-2xx status or a body
	// without the expected choices[0].message.content.
	KindUpstream ErrorKind = "upstream"
)

// Sentinels for errors.Is against an *Error.
var (
	ErrTransport = errors.New("completion transport error")
	ErrUpstream  = errors.New("completion upstream error")
)

// Error is a classified completion failure.
type Error struct {
	Kind   ErrorKind
	Detail string
	Status int   // HTTP status, 0 when no response was received
	Cause  error // underlying error, may be nil
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Kind, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches ErrTransport / ErrUpstream by kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrUpstream:
		return e.Kind == KindUpstream
	}
	return false
}

// Outcome is the result of a completion: Success(text) or Failure(err).
// Exactly one of the two is set.
type Outcome struct {
	text string
	err  *Error
}

// Success builds a successful outcome.
func Success(text string) Outcome {
	return Outcome{text: text}
}

// Failure builds a failed outcome.
func Failure(err *Error) Outcome {
	return Outcome{err: err}
}

// OK reports whether the completion succeeded.
func (o Outcome) OK() bool {
	return o.err == nil
}

// Text is the reply text; empty on failure.
func (o Outcome) Text() string {
	return o.text
}

// Err returns the failure, or nil on success.
func (o Outcome) Err() error {
	if o.err == nil {
		return nil
	}
	return o.err
}

// Kind returns the failure kind, or "" on success.
func (o Outcome) Kind() ErrorKind {
	if o.err == nil {
		return ""
	}
	return o.err.Kind
}

func transportError(detail string, cause error) Outcome {
	return Failure(&Error{Kind: KindTransport, Detail: detail, Cause: cause})
}

func upstreamError(status int, detail string, cause error) Outcome {
	return Failure(&Error{Kind: KindUpstream, Status: status, Detail: detail, Cause: cause})
}
