package punish

import (
	"fmt"
	"time"

	"discord-modbot/model"

	"github.com/bwmarrin/discordgo"
)

var actionColors = map[model.Action]int{
	model.ActionWarn:    0xF1C40F,
	model.ActionTimeout: 0xE67E22,
	model.ActionKick:    0xE74C3C,
	model.ActionBan:     0x992D22,
}

// CaseEmbed renders a freshly recorded case for the moderator who issued it.
func CaseEmbed(rec *model.PunishmentRecord) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("%s issued", rec.Action),
		Color: actionColors[rec.Action],
		Fields: []*discordgo.MessageEmbedField{
			{Name: "User", Value: fmt.Sprintf("<@%s> (`%s`)", rec.UserID, rec.UserID), Inline: true},
			{Name: "Moderator", Value: fmt.Sprintf("<@%s>", rec.ModeratorID), Inline: true},
			{Name: "Reason", Value: rec.Reason},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Case ID: %s", rec.CaseID),
		},
		Timestamp: time.UnixMilli(rec.CreatedAt).Format(time.RFC3339),
	}

	if ends, ok := rec.Expiry(); ok {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Expires",
			Value: fmt.Sprintf("<t:%d:R> (%s)", ends.Unix(), rec.Duration),
		})
	} else if rec.Action == model.ActionBan {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Expires",
			Value: "Never",
		})
	}
	return embed
}

// MemberNoticeEmbed is the DM a member receives when punished.
func MemberNoticeEmbed(rec *model.PunishmentRecord, guildName string) *discordgo.MessageEmbed {
	verb := map[model.Action]string{
		model.ActionWarn:    "warned",
		model.ActionTimeout: "timed out",
		model.ActionKick:    "kicked",
		model.ActionBan:     "banned",
	}[rec.Action]

	duration := "Permanent"
	switch {
	case rec.Action == model.ActionKick || rec.Action == model.ActionWarn:
		duration = "Instant"
	case rec.Duration != "":
		duration = rec.Duration
	}

	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("You have been %s in %s", verb, guildName),
		Color:       actionColors[rec.Action],
		Description: "Reason:\n```" + rec.Reason + "```",
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Action", Value: string(rec.Action), Inline: true},
			{Name: "Duration", Value: duration, Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Case ID: %s", rec.CaseID),
		},
	}
}
