package discord

import (
	"context"
	"fmt"

	"github.com/fishlab/gostim/internal/event"
)

func (b *Bot) Handle(ctx context.Context, e event.Event) error {
	switch evt := e.(type) {
	case event.SessionStartedEvent:
		message := fmt.Sprintf("**[%s]** session started: %s (subject %s)", evt.Source(), evt.SessionID, evt.SubjectID)
		return b.sendEventMessage(ctx, message)
	case event.StimulusInstalledEvent:
		message := fmt.Sprintf("**[%s]** stimulus %d installed: %v", evt.Source(), evt.Generation, evt.Summary["kind"])
		return b.sendEventMessage(ctx, message)
	case event.SwitchRejectedEvent:
		message := fmt.Sprintf("**[%s]** switch rejected: %s", evt.Source(), evt.Reason)
		return b.sendEventMessage(ctx, message)
	case event.TunnelStartedEvent:
		return b.sendEventMessage(ctx, evt.Message())
	}

	return nil
}

func (b *Bot) sendEventMessage(ctx context.Context, message string) error {
	if b.useWebhook {
		return b.webhookClient.Send(ctx, message)
	}

	_, err := b.discordSession.ChannelMessageSend(b.channelID, message)
	return err
}
