package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"discord-modbot/bot"
	"discord-modbot/handlers/punish"
	"discord-modbot/model"
	"discord-modbot/utils"
	"discord-modbot/utils/database/punishments"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// commandTimeout bounds the REST and database work behind one command.
const commandTimeout = 15 * time.Second

func moderationRequest(i *discordgo.InteractionCreate, opts commandOptions) (punish.Request, error) {
	target := opts.user("user")
	if target == nil {
		return punish.Request{}, errors.New("no user given")
	}
	mod := invoker(i)
	if target.ID == mod.ID {
		return punish.Request{}, errors.New("you cannot punish yourself")
	}
	return punish.Request{
		GuildID:      i.GuildID,
		UserID:       target.ID,
		UserTag:      target.String(),
		ModeratorID:  mod.ID,
		ModeratorTag: mod.String(),
		Reason:       opts.str("reason"),
		Duration:     opts.str("duration"),
	}, nil
}

type applyFunc func(ctx context.Context, req punish.Request) (*model.PunishmentRecord, error)

func handleTimed(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot, apply applyFunc) {
	opts := parseOptions(i)
	req, err := moderationRequest(i, opts)
	if err != nil {
		respondError(s, i, b, err.Error())
		return
	}
	if _, err := utils.ParseDuration(req.Duration); err != nil {
		respondError(s, i, b, err.Error())
		return
	}

	if err := utils.DeferResponse(s, i, false); err != nil {
		b.Logger().Warn("failed to defer interaction", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	rec, err := apply(ctx, req)
	if err != nil {
		b.Logger().Error("command failed", zap.String("command", i.ApplicationCommandData().Name), zap.Error(err))
		followUpError(s, i, b, err.Error())
		return
	}
	followUpEmbeds(s, i, b, punish.CaseEmbed(rec))
}

func HandleTempBan(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	handleTimed(s, i, b, b.Moderation.Ban)
}

func HandleTimeout(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	handleTimed(s, i, b, b.Moderation.Timeout)
}

func HandleWarn(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	opts := parseOptions(i)
	req, err := moderationRequest(i, opts)
	if err != nil {
		respondError(s, i, b, err.Error())
		return
	}

	if err := utils.DeferResponse(s, i, false); err != nil {
		b.Logger().Warn("failed to defer interaction", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	warn, escalated, err := b.Moderation.Warn(ctx, req)
	if warn == nil {
		b.Logger().Error("warn failed", zap.Error(err))
		followUpError(s, i, b, err.Error())
		return
	}

	embeds := []*discordgo.MessageEmbed{punish.CaseEmbed(warn)}
	if escalated != nil {
		embeds = append(embeds, punish.CaseEmbed(escalated))
	}
	if err != nil {
		b.Logger().Error("warning recorded but escalation failed", zap.String("case_id", warn.CaseID), zap.Error(err))
		embeds = append(embeds, &discordgo.MessageEmbed{
			Description: "⚠️ " + err.Error(),
			Color:       0xE74C3C,
		})
	}
	followUpEmbeds(s, i, b, embeds...)
}

func HandleVoid(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	opts := parseOptions(i)
	caseID := opts.str("case_id")

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	err := b.Moderation.Void(ctx, i.GuildID, caseID, invoker(i).String(), opts.str("reason"))
	switch {
	case errors.Is(err, punishments.ErrNotFound):
		respondError(s, i, b, fmt.Sprintf("Case `%s` does not exist in this server.", caseID))
	case errors.Is(err, punishments.ErrInvalidTransition):
		respondError(s, i, b, fmt.Sprintf("Case `%s` is no longer active.", caseID))
	case err != nil:
		b.Logger().Error("void failed", zap.String("case_id", caseID), zap.Error(err))
		respondError(s, i, b, "Failed to void the case.")
	default:
		respond(s, i, b, fmt.Sprintf("✅ Case `%s` voided.", caseID))
	}
}

func HandleUnwarn(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	caseID := parseOptions(i).str("case_id")

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	err := b.Moderation.RemoveWarning(ctx, i.GuildID, caseID)
	switch {
	case errors.Is(err, punishments.ErrNotFound):
		respondError(s, i, b, fmt.Sprintf("Warning `%s` does not exist in this server.", caseID))
	case errors.Is(err, punishments.ErrInvalidTransition):
		respondError(s, i, b, fmt.Sprintf("Warning `%s` is no longer active.", caseID))
	case err != nil:
		b.Logger().Error("unwarn failed", zap.String("case_id", caseID), zap.Error(err))
		respondError(s, i, b, "Failed to remove the warning.")
	default:
		respond(s, i, b, fmt.Sprintf("✅ Warning `%s` removed.", caseID))
	}
}

func HandlePurge(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	opts := parseOptions(i)
	target := opts.user("user")
	if target == nil {
		respondError(s, i, b, "no user given")
		return
	}
	if !opts.boolean("confirm") {
		respondError(s, i, b, fmt.Sprintf("Purge of **%s** cancelled. Set `confirm` to true to delete every record.", target.String()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	n, err := b.Moderation.PurgeUser(ctx, i.GuildID, target.ID)
	if err != nil {
		b.Logger().Error("purge failed", zap.String("user_id", target.ID), zap.Error(err))
		respondError(s, i, b, "Failed to purge the records.")
		return
	}
	respond(s, i, b, fmt.Sprintf("✅ %d records of **%s** permanently deleted.", n, target.String()))
}

func HandleAutomod(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	opts := parseOptions(i)
	action, err := model.ParseAction(opts.str("action"))
	if err != nil {
		respondError(s, i, b, err.Error())
		return
	}
	rule := model.EscalationRule{
		GuildID:       i.GuildID,
		WarningsCount: int(opts.integer("warnings")),
		Action:        action,
		Duration:      opts.str("duration"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := b.Moderation.SetEscalationRule(ctx, rule); err != nil {
		respondError(s, i, b, err.Error())
		return
	}

	msg := fmt.Sprintf("✅ At %d active warnings members will receive a %s", rule.WarningsCount, rule.Action)
	if rule.Duration != "" {
		msg += " for " + rule.Duration
	}
	respond(s, i, b, msg+".")
}

func HandleModlog(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	channelID := parseOptions(i).channelID("channel")

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := b.Moderation.SetModlogChannel(ctx, i.GuildID, channelID); err != nil {
		b.Logger().Error("failed to set modlog channel", zap.Error(err))
		respondError(s, i, b, "Failed to save the log channel.")
		return
	}
	respond(s, i, b, fmt.Sprintf("✅ Automatic lifts will be posted in <#%s>.", channelID))
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot, msg string) {
	if err := utils.SendSimpleResponse(s, i, msg); err != nil {
		b.Logger().Warn("error sending response", zap.Error(err))
	}
}

func respondError(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot, msg string) {
	if err := utils.SendErrorResponse(s, i, msg); err != nil {
		b.Logger().Warn("error sending error response", zap.Error(err))
	}
}

func followUpError(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot, msg string) {
	if err := utils.SendFollowUpError(s, i.Interaction, msg); err != nil {
		b.Logger().Warn("error sending follow-up error", zap.Error(err))
	}
}

func followUpEmbeds(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot, embeds ...*discordgo.MessageEmbed) {
	if err := utils.SendFollowUpEmbed(s, i.Interaction, embeds...); err != nil {
		b.Logger().Warn("error sending follow-up", zap.Error(err))
	}
}
