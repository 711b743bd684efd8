// Package telegram alerts the astrologer out-of-band when paid questions
// are waiting. It only sends; it never reads updates.
package telegram

import (
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the slice of the bot API the notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier pushes a Telegram message to the astrologer's chat whenever
// the unread-question count rises. It holds no loop of its own; an
// InboxWatcher feeds it counts through HandleCount.
type Notifier struct {
	bot    Sender
	chatID int64

	lastCount int // touched only from the watcher goroutine
}

// NewNotifier authenticates the bot.
func NewNotifier(token string, chatID int64) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: authorize bot: %w", err)
	}
	bot.Debug = false
	log.Printf("✅ Authorized on account %s", bot.Self.UserName)

	return &Notifier{bot: bot, chatID: chatID}, nil
}

// NewNotifierWith wires a custom sender; used by tests.
func NewNotifierWith(sender Sender, chatID int64) *Notifier {
	return &Notifier{bot: sender, chatID: chatID}
}

// HandleCount takes the current unread-question count. An alert goes out
// only when the count rose since the previous report.
func (n *Notifier) HandleCount(count int) {
	defer func() { n.lastCount = count }()
	if count <= n.lastCount || count == 0 {
		return
	}
	text := fmt.Sprintf("🔮 %d question(s) awaiting your reading.", count)
	if _, err := n.bot.Send(tgbotapi.NewMessage(n.chatID, text)); err != nil {
		log.Printf("ERROR: Failed to send Telegram alert: %v", err)
	}
}
