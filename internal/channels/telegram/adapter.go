// Package telegram provides the Telegram channel adapter
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/syho-lab/ainewsldo/internal/channels"
	"github.com/syho-lab/ainewsldo/internal/config"
)

// maxMessageLen is Telegram's limit for a single text message, in runes.
const maxMessageLen = 4096

// Adapter implements channels.Source and channels.Transport for Telegram
type Adapter struct {
	config config.TelegramConfig
	bot    *tgbotapi.BotAPI
	logger *slog.Logger
	events chan *channels.Event

	// State
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a new Telegram adapter
func New(cfg config.TelegramConfig, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}

	return &Adapter{
		config: cfg,
		logger: logger.With("channel", "telegram"),
		events: make(chan *channels.Event, 100),
	}
}

// Name returns the channel name
func (a *Adapter) Name() string {
	return "telegram"
}

// Connect authorizes the bot token. Start calls it if needed; calling it
// directly gives a send-only adapter.
func (a *Adapter) Connect() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connectLocked()
}

func (a *Adapter) connectLocked() error {
	if a.bot != nil {
		return nil
	}
	if a.config.Token == "" {
		return fmt.Errorf("telegram token not configured")
	}

	endpoint := a.config.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	_ = tgbotapi.SetLogger(botLogger{logger: a.logger})

	bot, err := tgbotapi.NewBotAPIWithClient(a.config.Token, endpoint, &http.Client{})
	if err != nil {
		return fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.Debug = a.config.Debug

	a.bot = bot
	a.logger.Info("telegram bot authorized", "username", bot.Self.UserName)
	return nil
}

// Start authorizes the bot and begins long polling for updates
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return nil
	}
	if err := a.connectLocked(); err != nil {
		return err
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = a.config.PollTimeout
	updates := a.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	a.running = true

	go a.receiveUpdates(ctx, updates, a.bot.Self.UserName)
	return nil
}

// Stop stops polling and closes the event stream
func (a *Adapter) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return nil
	}

	a.cancel()
	a.bot.StopReceivingUpdates()
	<-a.done
	close(a.events)

	a.running = false
	a.logger.Info("telegram adapter stopped")
	return nil
}

// api returns the connected bot, or nil before Connect
func (a *Adapter) api() *tgbotapi.BotAPI {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bot
}

// Events returns inbound events in arrival order
func (a *Adapter) Events() <-chan *channels.Event {
	return a.events
}

// receiveUpdates converts Telegram updates into events
func (a *Adapter) receiveUpdates(ctx context.Context, updates tgbotapi.UpdatesChannel, botName string) {
	defer close(a.done)

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			ev := toEvent(update, botName)
			if ev == nil {
				continue
			}
			select {
			case a.events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

// toEvent maps an update onto an event, or nil for updates the bot ignores.
// Commands addressed to another bot ("/start@otherbot") are ignored; with an
// empty botName every mention is accepted.
func toEvent(update tgbotapi.Update, botName string) *channels.Event {
	if q := update.CallbackQuery; q != nil {
		ev := &channels.Event{
			Kind:       channels.EventSelection,
			CallbackID: q.ID,
			Payload:    q.Data,
			ReceivedAt: time.Now(),
		}
		if q.From != nil {
			ev.UserID = strconv.FormatInt(q.From.ID, 10)
		}
		if q.Message != nil && q.Message.Chat != nil {
			ev.ChatID = strconv.FormatInt(q.Message.Chat.ID, 10)
			ev.Source = channels.MessageRef{
				ChatID:    ev.ChatID,
				MessageID: strconv.Itoa(q.Message.MessageID),
			}
		}
		return ev
	}

	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return nil
	}

	ev := &channels.Event{
		ChatID:     strconv.FormatInt(msg.Chat.ID, 10),
		MessageID:  strconv.Itoa(msg.MessageID),
		ReceivedAt: time.Unix(int64(msg.Date), 0),
	}
	if msg.From != nil {
		ev.UserID = strconv.FormatInt(msg.From.ID, 10)
	}

	switch {
	case msg.IsCommand():
		if !addressedTo(msg.CommandWithAt(), botName) {
			return nil
		}
		ev.Kind = channels.EventCommand
		ev.Command = strings.ToLower(msg.Command())
		ev.Args = msg.CommandArguments()
	case msg.Text != "":
		ev.Kind = channels.EventText
		ev.Text = msg.Text
	default:
		// stickers, photos, service messages
		return nil
	}
	return ev
}

// addressedTo reports whether a command, as written with its optional
// @mention, is meant for botName.
func addressedTo(commandWithAt, botName string) bool {
	i := strings.Index(commandWithAt, "@")
	if i < 0 || botName == "" {
		return true
	}
	return strings.EqualFold(commandWithAt[i+1:], botName)
}

// SendText sends a message, splitting it if it exceeds Telegram's limit.
// The returned ref points at the last part.
func (a *Adapter) SendText(_ context.Context, chatID, text string) (channels.MessageRef, error) {
	return a.send(chatID, 0, text)
}

// Reply sends text as a reply to an earlier message. Only the first part of a
// split message carries the reply link. If the original is gone by then the
// text is still delivered, unthreaded.
func (a *Adapter) Reply(_ context.Context, to channels.MessageRef, text string) (channels.MessageRef, error) {
	if to.IsZero() {
		return channels.MessageRef{}, channels.ErrInvalidRef
	}
	msgID, err := parseMessageID(to.MessageID)
	if err != nil {
		return channels.MessageRef{}, err
	}
	return a.send(to.ChatID, msgID, text)
}

func (a *Adapter) send(chatID string, replyTo int, text string) (channels.MessageRef, error) {
	bot := a.api()
	if bot == nil {
		return channels.MessageRef{}, channels.ErrNotStarted
	}
	if text == "" {
		return channels.MessageRef{}, channels.ErrEmptyMessage
	}
	id, err := parseChatID(chatID)
	if err != nil {
		return channels.MessageRef{}, err
	}

	var ref channels.MessageRef
	for i, part := range splitMessage(text, maxMessageLen) {
		msg := tgbotapi.NewMessage(id, part)
		if i == 0 && replyTo != 0 {
			msg.ReplyToMessageID = replyTo
			msg.AllowSendingWithoutReply = true
		}
		sent, err := bot.Send(msg)
		if err != nil {
			return ref, err
		}
		ref = channels.MessageRef{ChatID: chatID, MessageID: strconv.Itoa(sent.MessageID)}
	}
	return ref, nil
}

// SendOptions sends a prompt with an inline keyboard, one button per row
func (a *Adapter) SendOptions(_ context.Context, chatID, prompt string, options []channels.Option) (channels.MessageRef, error) {
	bot := a.api()
	if bot == nil {
		return channels.MessageRef{}, channels.ErrNotStarted
	}
	id, err := parseChatID(chatID)
	if err != nil {
		return channels.MessageRef{}, err
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(options))
	for _, opt := range options {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(opt.Label, opt.Value),
		))
	}

	msg := tgbotapi.NewMessage(id, prompt)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)

	sent, err := bot.Send(msg)
	if err != nil {
		return channels.MessageRef{}, err
	}
	return channels.MessageRef{ChatID: chatID, MessageID: strconv.Itoa(sent.MessageID)}, nil
}

// AckSelection answers a callback query to remove the loading state
func (a *Adapter) AckSelection(_ context.Context, callbackID, text string) error {
	bot := a.api()
	if bot == nil {
		return channels.ErrNotStarted
	}
	_, err := bot.Request(tgbotapi.NewCallback(callbackID, text))
	return err
}

// EditText replaces a message's text; the inline keyboard goes with it
func (a *Adapter) EditText(_ context.Context, ref channels.MessageRef, text string) error {
	bot := a.api()
	if bot == nil {
		return channels.ErrNotStarted
	}
	chatID, msgID, err := parseRef(ref)
	if err != nil {
		return err
	}
	_, err = bot.Request(tgbotapi.NewEditMessageText(chatID, msgID, text))
	return err
}

// Delete removes a message
func (a *Adapter) Delete(_ context.Context, ref channels.MessageRef) error {
	bot := a.api()
	if bot == nil {
		return channels.ErrNotStarted
	}
	chatID, msgID, err := parseRef(ref)
	if err != nil {
		return err
	}
	_, err = bot.Request(tgbotapi.NewDeleteMessage(chatID, msgID))
	return err
}

// Helper functions

func parseChatID(userID string) (int64, error) {
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chat id %q: %w", userID, err)
	}
	return id, nil
}

func parseMessageID(id string) (int, error) {
	msgID, err := strconv.Atoi(id)
	if err != nil {
		return 0, fmt.Errorf("invalid message id %q: %w", id, err)
	}
	return msgID, nil
}

func parseRef(ref channels.MessageRef) (int64, int, error) {
	if ref.IsZero() {
		return 0, 0, channels.ErrInvalidRef
	}
	chatID, err := parseChatID(ref.ChatID)
	if err != nil {
		return 0, 0, err
	}
	msgID, err := parseMessageID(ref.MessageID)
	if err != nil {
		return 0, 0, err
	}
	return chatID, msgID, nil
}

// splitMessage cuts text into parts of at most limit runes, preferring to
// break after a newline in the second half of a part.
func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var parts []string
	for len(runes) > limit {
		cut := limit
		for i := limit - 1; i >= limit/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}
