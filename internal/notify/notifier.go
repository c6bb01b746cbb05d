package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"

	"jamati/internal/config"
	appLog "jamati/internal/log"
)

// ErrUnsupported means no notification capability is configured.
var ErrUnsupported = errors.New("notifications are not supported on this platform")

// Notifier is the platform notification capability.
type Notifier interface {
	// Available reports whether the capability exists at all.
	Available() bool
	// RequestPermission asks the platform whether notifications may be shown.
	RequestPermission(ctx context.Context) (Permission, error)
	// Show displays a notification. Delivery is not acknowledged.
	Show(ctx context.Context, title, body string) error
}

// New builds the notifier selected by cfg.
func New(cfg config.NotifierConfig) Notifier {
	switch cfg.Kind {
	case config.NotifierTelegram:
		return NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
	case config.NotifierNone:
		return None{}
	default:
		return Log{}
	}
}

// Log writes notifications to the application log. It is always
// available and always grants permission.
type Log struct{}

func (Log) Available() bool { return true }

func (Log) RequestPermission(context.Context) (Permission, error) {
	return PermissionGranted, nil
}

func (Log) Show(_ context.Context, title, body string) error {
	appLog.Info("notification", "title", title, "body", body)
	return nil
}

// None models a platform without notifications.
type None struct{}

func (None) Available() bool { return false }

func (None) RequestPermission(context.Context) (Permission, error) {
	return PermissionDenied, ErrUnsupported
}

func (None) Show(context.Context, string, string) error { return ErrUnsupported }

// telegramSender is the part of *tgbotapi.BotAPI the notifier uses.
type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram delivers notifications as bot messages to a single chat. The bot
// is created on first use because NewBotAPI calls getMe over the network.
type Telegram struct {
	token  string
	chatID int64

	mu     sync.Mutex
	sender telegramSender
	dial   func(token string) (telegramSender, error)
}

func NewTelegram(token string, chatID int64) *Telegram {
	return &Telegram{
		token:  token,
		chatID: chatID,
		dial: func(token string) (telegramSender, error) {
			return tgbotapi.NewBotAPI(token)
		},
	}
}

func (t *Telegram) Available() bool {
	return t.token != "" && t.chatID != 0
}

func (t *Telegram) bot() (telegramSender, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sender != nil {
		return t.sender, nil
	}
	s, err := t.dial(t.token)
	if err != nil {
		return nil, fmt.Errorf("telegram: connect: %w", err)
	}
	t.sender = s
	return s, nil
}

// RequestPermission grants when the bot token is accepted by Telegram.
func (t *Telegram) RequestPermission(context.Context) (Permission, error) {
	if !t.Available() {
		return PermissionDenied, ErrUnsupported
	}
	if _, err := t.bot(); err != nil {
		appLog.Error("telegram permission check failed", err, "chat_id", t.chatID)
		return PermissionDenied, nil
	}
	return PermissionGranted, nil
}

func (t *Telegram) Show(_ context.Context, title, body string) error {
	if !t.Available() {
		return ErrUnsupported
	}
	b, err := t.bot()
	if err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, title+"\n"+body)
	if _, err := b.Send(msg); err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	return nil
}
