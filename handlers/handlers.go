package handlers

import (
	"discord-modbot/bot"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func Register(b *bot.Bot) {
	b.CommandHandlers = commandHandlers(b)
	addHandlers(b)
}

func commandHandlers(b *bot.Bot) map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate) {
	return map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate){
		"tempban": func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			HandleTempBan(s, i, b)
		},
		"timeout": func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			HandleTimeout(s, i, b)
		},
		"warn": func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			HandleWarn(s, i, b)
		},
		"void": func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			HandleVoid(s, i, b)
		},
		"unwarn": func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			HandleUnwarn(s, i, b)
		},
		"purge": func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			HandlePurge(s, i, b)
		},
		"automod": func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			HandleAutomod(s, i, b)
		},
		"modlog": func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			HandleModlog(s, i, b)
		},
		"status": func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			SystemInfoHandler(s, i, b)
		},
	}
}

func addHandlers(b *bot.Bot) {
	b.Session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		handleInteraction(s, i, b)
	})
	b.Session.AddHandler(func(s *discordgo.Session, e *discordgo.GuildBanAdd) {
		HandleBanAdd(e, b)
	})
	b.Session.AddHandler(func(s *discordgo.Session, e *discordgo.GuildBanRemove) {
		HandleBanRemove(e, b)
	})
	b.Session.AddHandler(func(s *discordgo.Session, e *discordgo.GuildMemberUpdate) {
		HandleMemberUpdate(e, b)
	})
}

func handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		if i.GuildID == "" {
			return
		}
		name := i.ApplicationCommandData().Name
		h, ok := b.CommandHandlers[name]
		if !ok {
			b.Logger().Warn("unknown command", zap.String("command", name))
			return
		}
		h(s, i)
	}
}
