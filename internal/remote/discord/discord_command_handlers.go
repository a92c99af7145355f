package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

func (b *Bot) handleStatusRequest(s *discordgo.Session, m *discordgo.MessageCreate) {
	snap := b.scheduler.Snapshot()
	if snap == nil {
		s.ChannelMessageSend(m.ChannelID, "No stimulus installed yet.")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("**Generation %d** (%s, %s)\n", snap.Generation, snap.Kind(), snap.Phase))
	sb.WriteString(fmt.Sprintf("Installed %s ago\n", time.Since(snap.InstalledAt).Round(time.Second)))
	for k, v := range snap.Spec.Summary() {
		sb.WriteString(fmt.Sprintf("%s: %v\n", k, v))
	}
	s.ChannelMessageSend(m.ChannelID, sb.String())
}

func (b *Bot) handleBlankRequest(s *discordgo.Session, m *discordgo.MessageCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	gen, err := b.controller.Blank(ctx)
	if err != nil {
		s.ChannelMessageSend(m.ChannelID, fmt.Sprintf("Failed to blank display: %v", err))
		return
	}
	s.ChannelMessageSend(m.ChannelID, fmt.Sprintf("Display blanked (generation %d).", gen))
}

func (b *Bot) handleHelpRequest(s *discordgo.Session, m *discordgo.MessageCreate) {
	help := "Available commands:\n" +
		"`!status` - Show the current stimulus and phase\n" +
		"`!blank` - Blank the display\n" +
		"`!help` - Show this message"
	s.ChannelMessageSend(m.ChannelID, help)
}
