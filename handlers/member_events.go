package handlers

import (
	"context"

	"discord-modbot/bot"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// HandleBanAdd records bans issued outside the bot.
func HandleBanAdd(e *discordgo.GuildBanAdd, b *bot.Bot) {
	if e.User == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if _, err := b.Moderation.BanAdded(ctx, e.GuildID, e.User.ID, e.User.String()); err != nil {
		b.Logger().Error("failed to record manual ban",
			zap.String("guild_id", e.GuildID), zap.String("user_id", e.User.ID), zap.Error(err))
	}
}

// HandleBanRemove marks active bans REMOVED when a moderator unbans by hand.
func HandleBanRemove(e *discordgo.GuildBanRemove, b *bot.Bot) {
	if e.User == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := b.Moderation.BanRemoved(ctx, e.GuildID, e.User.ID); err != nil {
		b.Logger().Error("failed to record manual unban",
			zap.String("guild_id", e.GuildID), zap.String("user_id", e.User.ID), zap.Error(err))
	}
}

// HandleMemberUpdate marks active timeouts REMOVED when the member no longer
// has one.
func HandleMemberUpdate(e *discordgo.GuildMemberUpdate, b *bot.Bot) {
	if e.Member == nil || e.User == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := b.Moderation.TimeoutChanged(ctx, e.GuildID, e.User.ID, e.CommunicationDisabledUntil); err != nil {
		b.Logger().Error("failed to record manual timeout clear",
			zap.String("guild_id", e.GuildID), zap.String("user_id", e.User.ID), zap.Error(err))
	}
}
