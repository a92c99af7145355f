package discord

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/fishlab/gostim/internal/stim"
)

type Bot struct {
	discordSession *discordgo.Session
	channelID      string
	controller     *stim.Controller
	scheduler      *stim.Scheduler
	useWebhook     bool
	webhookClient  *webhookClient
}

func NewBot(token, channelID string, controller *stim.Controller, scheduler *stim.Scheduler, useWebhook bool, webhookURL string) (*Bot, error) {
	botInstance := &Bot{
		channelID:  channelID,
		controller: controller,
		scheduler:  scheduler,
		useWebhook: useWebhook,
	}

	if useWebhook {
		if webhookURL == "" {
			return nil, fmt.Errorf("webhook URL is required when using webhook mode")
		}
		botInstance.webhookClient = newWebhookClient(webhookURL)
		return botInstance, nil
	}

	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}

	botInstance.discordSession = dg

	return botInstance, nil
}

func (b *Bot) Start(ctx context.Context) error {
	if b.useWebhook {
		<-ctx.Done()
		return nil
	}

	b.discordSession.AddHandler(b.onMessageCreated)
	// MESSAGE_CONTENT intent is required by Discord to read message content
	b.discordSession.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentMessageContent
	err := b.discordSession.Open()
	if err != nil {
		return fmt.Errorf("error opening connection: %w", err)
	}

	// Wait until context is finished
	<-ctx.Done()

	return b.discordSession.Close()
}

func (b *Bot) onMessageCreated(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Ignore messages from the bot itself
	if m.Author.ID == s.State.User.ID {
		return
	}

	if !strings.HasPrefix(m.Content, "!") {
		return
	}

	prefix := strings.Split(m.Content, " ")[0]
	switch prefix {
	case "!status":
		b.handleStatusRequest(s, m)
	case "!blank":
		b.handleBlankRequest(s, m)
	case "!help":
		b.handleHelpRequest(s, m)
	default:
		s.ChannelMessageSend(m.ChannelID, fmt.Sprintf("Unknown command: `%s`. Type `!help` for available commands.", prefix))
	}
}
