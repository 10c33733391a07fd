// Package gateway routes chat events to the personality store and the
// completion client, and sends the results back through the transport.
package gateway

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/syho-lab/ainewsldo/internal/brain"
	"github.com/syho-lab/ainewsldo/internal/channels"
	"github.com/syho-lab/ainewsldo/internal/metrics"
	"github.com/syho-lab/ainewsldo/internal/persona"
)

// Completer produces a reply for one request. *brain.Client implements it.
type Completer interface {
	Complete(ctx context.Context, req brain.Request) brain.Outcome
}

// Router dispatches inbound events. It holds no per-conversation state; the
// only shared state is the personality store.
type Router struct {
	// Dependencies
	transport channels.Transport
	store     *persona.Store
	client    Completer
	logger    *slog.Logger

	// Lifecycle
	wg sync.WaitGroup
}

// Config configures the router.
type Config struct {
	Transport channels.Transport
	Store     *persona.Store
	Client    Completer
	Logger    *slog.Logger
}

// New creates a new router.
func New(cfg Config) *Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		transport: cfg.Transport,
		store:     cfg.Store,
		client:    cfg.Client,
		logger:    logger.With("component", "gateway"),
	}
}

// Run handles events until ctx is done or events is closed, each in its own
// goroutine, then waits for the in-flight handlers.
//
// Handlers run detached from ctx cancellation so a cycle that already sent
// its placeholder still finishes; the completion timeout bounds the wait.
func (r *Router) Run(ctx context.Context, events <-chan *channels.Event) error {
	handlerCtx := context.WithoutCancel(ctx)

	defer r.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			r.wg.Add(1)
			go func() {
				defer r.wg.Done()
				r.Dispatch(handlerCtx, ev)
			}()
		}
	}
}

// Dispatch handles a single event synchronously. A panic in a handler is
// logged and swallowed.
func (r *Router) Dispatch(ctx context.Context, ev *channels.Event) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("handler panicked",
				"kind", ev.Kind.String(),
				"chat_id", ev.ChatID,
				"panic", p,
				"stack", string(debug.Stack()),
			)
		}
	}()

	metrics.EventsTotal.WithLabelValues(ev.Kind.String()).Inc()

	switch ev.Kind {
	case channels.EventCommand:
		r.handleCommand(ctx, ev)
	case channels.EventSelection:
		r.handleSelection(ctx, ev)
	case channels.EventText:
		r.converse(ctx, ev)
	default:
		r.logger.Warn("dropping event of unknown kind", "kind", int(ev.Kind), "chat_id", ev.ChatID)
	}
}

// handleCommand replies to a slash command.
func (r *Router) handleCommand(ctx context.Context, ev *channels.Event) {
	logger := r.logger.With("chat_id", ev.ChatID, "command", ev.Command)
	logger.Debug("command received")

	switch ev.Command {
	case "start":
		r.send(ctx, logger, ev, WelcomeText)
	case "help":
		r.send(ctx, logger, ev, HelpText)
	case "change":
		r.promptPersonality(ctx, logger, ev.ChatID)
	case "current":
		r.send(ctx, logger, ev, currentText(r.store.Get()))
	default:
		r.send(ctx, logger, ev, UnknownCommandText)
	}
}

// promptPersonality sends one option per personality, in table order.
func (r *Router) promptPersonality(ctx context.Context, logger *slog.Logger, chatID string) {
	personas := r.store.Personas()
	options := make([]channels.Option, len(personas))
	for i, p := range personas {
		options[i] = channels.Option{Label: p.Caption, Value: p.Label}
	}

	if _, err := r.transport.SendOptions(ctx, chatID, ChangePrompt, options); err != nil {
		r.transportFailed(logger, "send_options", err)
	}
}

// handleSelection acknowledges the selection, stores the chosen label and
// replaces the prompt with a confirmation.
func (r *Router) handleSelection(ctx context.Context, ev *channels.Event) {
	logger := r.logger.With("chat_id", ev.ChatID, "payload", ev.Payload)

	label, ok := r.store.Known(ev.Payload)
	if !ok {
		logger.Warn("selection of unknown personality")
		if err := r.transport.AckSelection(ctx, ev.CallbackID, UnknownPersonalityText); err != nil {
			r.transportFailed(logger, "ack", err)
		}
		return
	}

	if err := r.transport.AckSelection(ctx, ev.CallbackID, ""); err != nil {
		r.transportFailed(logger, "ack", err)
	}

	if err := r.store.Set(label); err != nil {
		// Known just matched, so this only fires if the table changes underneath
		logger.Error("failed to set personality", "error", err)
		return
	}
	metrics.PersonalityChanges.WithLabelValues(label).Inc()
	logger.Info("personality changed", "personality", label)

	if ev.Source.IsZero() {
		r.send(ctx, logger, ev, confirmationText(label))
		return
	}
	if err := r.transport.EditText(ctx, ev.Source, confirmationText(label)); err != nil {
		r.transportFailed(logger, "edit", err)
	}
}

// converse runs one completion cycle: placeholder, completion, placeholder
// removal, final reply.
func (r *Router) converse(ctx context.Context, ev *channels.Event) {
	logger := r.logger.With("cycle_id", uuid.NewString(), "chat_id", ev.ChatID)

	reply := r.complete(ctx, logger, ev)
	r.send(ctx, logger, ev, reply)
}

// complete returns the text to send for ev. The placeholder lives exactly as
// long as this call, so it is always gone before the reply goes out.
func (r *Router) complete(ctx context.Context, logger *slog.Logger, ev *channels.Event) (reply string) {
	release := r.sendPlaceholder(ctx, logger, ev)
	defer release()

	defer func() {
		if p := recover(); p != nil {
			metrics.CompletionsTotal.WithLabelValues(metrics.OutcomeUpstream).Inc()
			logger.Error("completion panicked", "panic", p, "stack", string(debug.Stack()))
			reply = FailureText
		}
	}()

	label := r.store.Get()
	start := time.Now()
	out := r.client.Complete(ctx, brain.Request{Personality: label, Text: ev.Text})
	elapsed := time.Since(start)
	metrics.CompletionDuration.Observe(elapsed.Seconds())

	if !out.OK() {
		metrics.CompletionsTotal.WithLabelValues(string(out.Kind())).Inc()
		logger.Error("completion failed",
			"personality", label,
			"kind", string(out.Kind()),
			"duration", elapsed,
			"error", out.Err(),
		)
		return FailureText
	}

	metrics.CompletionsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	logger.Info("completion succeeded", "personality", label, "duration", elapsed)
	return out.Text()
}

// sendPlaceholder posts the thinking message and returns the func that
// removes it. If the send failed there is nothing to remove.
func (r *Router) sendPlaceholder(ctx context.Context, logger *slog.Logger, ev *channels.Event) func() {
	ref, err := r.post(ctx, ev, ThinkingText)
	if err != nil {
		r.transportFailed(logger, "send_placeholder", err)
		return func() {}
	}

	return func() {
		if err := r.transport.Delete(context.WithoutCancel(ctx), ref); err != nil {
			r.transportFailed(logger, "delete_placeholder", err)
		}
	}
}

func (r *Router) send(ctx context.Context, logger *slog.Logger, ev *channels.Event, text string) {
	if _, err := r.post(ctx, ev, text); err != nil {
		r.transportFailed(logger, "send", err)
	}
}

// post sends text to ev's chat, threaded to ev's message when it has one.
func (r *Router) post(ctx context.Context, ev *channels.Event, text string) (channels.MessageRef, error) {
	if to := ev.Origin(); !to.IsZero() {
		return r.transport.Reply(ctx, to, text)
	}
	return r.transport.SendText(ctx, ev.ChatID, text)
}

// transportFailed records an outbound failure. These never propagate.
func (r *Router) transportFailed(logger *slog.Logger, op string, err error) {
	metrics.TransportErrors.WithLabelValues(op).Inc()
	logger.Warn("transport call failed", "op", op, "error", err)
}
