package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/fishlab/gostim/internal/event"
)

func (b *Bot) Handle(_ context.Context, e event.Event) error {
	var text string
	switch evt := e.(type) {
	case event.SessionStartedEvent:
		text = fmt.Sprintf("[%s] session started: %s (subject %s)", evt.Source(), evt.SessionID, evt.SubjectID)
	case event.SwitchRejectedEvent:
		text = fmt.Sprintf("[%s] switch rejected: %s", evt.Source(), evt.Reason)
	case event.TunnelStartedEvent:
		text = evt.Message()
	default:
		return nil
	}

	_, err := b.bot.Send(tgbotapi.NewMessage(b.chatID, text))
	return err
}
