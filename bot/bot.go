package bot

import (
	"discord-modbot/handlers/punish"
	"discord-modbot/model"
	"discord-modbot/tasks/expiry"
	"discord-modbot/utils/database/punishments"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type Bot struct {
	Session            *discordgo.Session
	RegisteredCommands []*discordgo.ApplicationCommand
	CommandHandlers    map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate)

	Store      *punishments.Store
	Guild      *GuildActions
	Expiry     *expiry.Manager
	Moderation *punish.Service

	config    *model.Config
	log       *zap.Logger
	scheduler *Scheduler
}

func (b *Bot) GetConfig() *model.Config {
	return b.config
}

func (b *Bot) GetSession() *discordgo.Session {
	return b.Session
}

func (b *Bot) Logger() *zap.Logger {
	return b.log
}

func New(cfg *model.Config, store *punishments.Store, logger *zap.Logger) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, err
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers | discordgo.IntentsGuildBans

	guild := NewGuildActions(dg)
	manager := expiry.New(store, guild, NewAuditSink(dg, store), expiry.Options{
		SweepInterval: cfg.SweepInterval,
		Logger:        logger,
	})

	b := &Bot{
		Session:    dg,
		Store:      store,
		Guild:      guild,
		Expiry:     manager,
		Moderation: punish.NewService(store, guild, manager, logger),
		config:     cfg,
		log:        logger,
	}
	b.scheduler = NewScheduler(manager, logger)
	return b, nil
}

func (b *Bot) Close() {
	b.log.Info("Gracefully shutting down.")
	b.scheduler.Stop()
	if err := b.Session.Close(); err != nil {
		b.log.Warn("error closing session", zap.Error(err))
	}
}
