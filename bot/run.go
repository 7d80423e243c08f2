package bot

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"discord-modbot/commands"

	"github.com/bwmarrin/discordgo"
	"github.com/shirou/gopsutil/v3/host"
	"go.uber.org/zap"
)

func (b *Bot) Run() error {
	b.Session.AddHandler(b.onReady)

	if err := b.Session.Open(); err != nil {
		return fmt.Errorf("error opening connection: %w", err)
	}

	if b.config.DisableCommandRegister {
		b.log.Info("Command registration disabled, keeping existing commands.")
	} else {
		b.registerCommands()
	}

	fields := []zap.Field{zap.Int("commands", len(b.RegisteredCommands))}
	if uptime, err := host.Uptime(); err == nil {
		fields = append(fields, zap.Duration("host_uptime", time.Duration(uptime)*time.Second))
	}
	b.log.Info("Bot is now running. Press CTRL-C to exit.", fields...)

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.log.Info("Logged in", zap.String("user", r.User.String()), zap.Int("guilds", len(r.Guilds)))
	b.Expiry.SetActor(r.User.ID, r.User.String())
	b.Moderation.SetSelf(r.User.ID)
	b.scheduler.Start()
}

func (b *Bot) registerCommands() {
	cmds := commands.All()
	b.log.Info("Registering commands...", zap.Int("count", len(cmds)))
	registered, err := b.Session.ApplicationCommandBulkOverwrite(b.Session.State.User.ID, "", cmds)
	if err != nil {
		b.log.Error("cannot register commands", zap.Error(err))
		return
	}
	b.RegisteredCommands = registered
}
