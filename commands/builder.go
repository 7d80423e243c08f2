package commands

import (
	"discord-modbot/commands/defs"

	"github.com/bwmarrin/discordgo"
)

// All returns every slash command the bot registers.
func All() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		defs.TempBan,
		defs.Timeout,
		defs.Warn,
		defs.Void,
		defs.Unwarn,
		defs.Purge,
		defs.Automod,
		defs.Modlog,
		defs.Status,
	}
}
