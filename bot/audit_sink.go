package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"discord-modbot/tasks/expiry"
	"discord-modbot/utils/database/punishments"

	"github.com/bwmarrin/discordgo"
)

const liftColor = 0x2ECC71

// AuditSink posts automatic lifts to each guild's modlog channel.
type AuditSink struct {
	session *discordgo.Session
	store   *punishments.Store
}

// NewAuditSink creates the modlog poster.
func NewAuditSink(s *discordgo.Session, store *punishments.Store) *AuditSink {
	return &AuditSink{session: s, store: store}
}

// PostExpiry sends one lift notice. Guilds without a modlog channel are skipped.
func (a *AuditSink) PostExpiry(ctx context.Context, n expiry.Notice) error {
	channelID, err := a.store.LogChannel(ctx, n.Original.GuildID, punishments.LogTypeModlog)
	if errors.Is(err, punishments.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	_, err = a.session.ChannelMessageSendEmbed(channelID, liftEmbed(n), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to post lift of case %s: %w", n.Original.CaseID, err)
	}
	return nil
}

func liftEmbed(n expiry.Notice) *discordgo.MessageEmbed {
	note := "Automatic lift: original punishment has expired."
	if !n.ReversalOK {
		note += " The platform action could not be reverted; check manually."
	}
	return &discordgo.MessageEmbed{
		Color: liftColor,
		Author: &discordgo.MessageEmbedAuthor{
			Name: "Auto-" + string(n.Lift.Action),
		},
		Description: fmt.Sprintf("The temporary %s for **%s** has expired.",
			strings.ToLower(string(n.Original.Action)), n.Original.Display()),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "User", Value: fmt.Sprintf("%s (`%s`)", n.Original.Display(), n.Original.UserID)},
			{Name: "Reason", Value: note},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Original Case ID: %s", n.Original.CaseID),
		},
		Timestamp: time.UnixMilli(n.Lift.CreatedAt).Format(time.RFC3339),
	}
}
