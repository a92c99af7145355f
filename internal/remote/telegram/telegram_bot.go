package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/fishlab/gostim/internal/stim"
)

type Bot struct {
	bot       *tgbotapi.BotAPI
	chatID    int64
	logger    *slog.Logger
	scheduler *stim.Scheduler
}

func (b *Bot) Start(ctx context.Context) error {
	offset, err := b.getLatestOffset()
	if err != nil {
		return err
	}

	u := tgbotapi.NewUpdate(offset)
	u.Timeout = 5
	updates := b.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.bot.StopReceivingUpdates()
			for range updates {
			}
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message != nil && update.Message.Chat != nil && update.Message.Chat.ID == b.chatID {
				switch strings.ToLower(update.Message.Text) {
				case "status":
					b.sendStatus()
				}
			}
		}
	}
}

func (b *Bot) sendStatus() {
	snap := b.scheduler.Snapshot()
	if snap == nil {
		b.send("No stimulus installed yet.")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Generation %d (%s, %s)\n", snap.Generation, snap.Kind(), snap.Phase))
	sb.WriteString(fmt.Sprintf("Installed %s ago\n", time.Since(snap.InstalledAt).Round(time.Second)))
	for k, v := range snap.Spec.Summary() {
		sb.WriteString(fmt.Sprintf("%s: %v\n", k, v))
	}
	b.send(sb.String())
}

func (b *Bot) send(text string) {
	if _, err := b.bot.Send(tgbotapi.NewMessage(b.chatID, text)); err != nil {
		b.logger.Error("Error sending telegram message", slog.Any("error", err))
	}
}

func (b *Bot) getLatestOffset() (int, error) {
	upds, err := b.bot.GetUpdates(tgbotapi.NewUpdate(-1))
	if err != nil {
		return 0, err
	}
	offset := 0
	if len(upds) > 0 {
		offset = upds[0].UpdateID + 1
	}
	return offset, nil
}

func (b *Bot) Close() {
	if b == nil || b.bot == nil {
		return
	}
	b.bot.StopReceivingUpdates()
	if c, ok := b.bot.Client.(*http.Client); ok && c != nil {
		if tr, ok := c.Transport.(*http.Transport); ok && tr != nil {
			tr.CloseIdleConnections()
		}
	}
}
