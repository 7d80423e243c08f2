package defs

import "github.com/bwmarrin/discordgo"

var (
	banMembers      int64 = discordgo.PermissionBanMembers
	moderateMembers int64 = discordgo.PermissionModerateMembers
	manageServer    int64 = discordgo.PermissionManageServer
	administrator   int64 = discordgo.PermissionAdministrator
	dmPermission          = false
)

var durationOption = &discordgo.ApplicationCommandOption{
	Type:        discordgo.ApplicationCommandOptionString,
	Name:        "duration",
	Description: "How long it lasts, e.g. 30m, 12h, 7d, 1w2d",
	Required:    true,
}

var TempBan = &discordgo.ApplicationCommand{
	Name:                     "tempban",
	Description:              "Ban a member for a limited time",
	DefaultMemberPermissions: &banMembers,
	DMPermission:             &dmPermission,
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        "user",
			Description: "Member to ban",
			Required:    true,
		},
		durationOption,
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "reason",
			Description: "Why the member is banned",
			Required:    true,
		},
	},
}

var Timeout = &discordgo.ApplicationCommand{
	Name:                     "timeout",
	Description:              "Time a member out (up to 28 days)",
	DefaultMemberPermissions: &moderateMembers,
	DMPermission:             &dmPermission,
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        "user",
			Description: "Member to time out",
			Required:    true,
		},
		durationOption,
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "reason",
			Description: "Why the member is timed out",
			Required:    true,
		},
	},
}

var Warn = &discordgo.ApplicationCommand{
	Name:                     "warn",
	Description:              "Warn a member; automod rules may escalate",
	DefaultMemberPermissions: &moderateMembers,
	DMPermission:             &dmPermission,
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        "user",
			Description: "Member to warn",
			Required:    true,
		},
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "reason",
			Description: "Why the member is warned",
			Required:    true,
		},
	},
}

var Void = &discordgo.ApplicationCommand{
	Name:                     "void",
	Description:              "Annul an active case",
	DefaultMemberPermissions: &moderateMembers,
	DMPermission:             &dmPermission,
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "case_id",
			Description: "Case to annul",
			Required:    true,
		},
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "reason",
			Description: "Why the case is annulled",
			Required:    true,
		},
	},
}

var Unwarn = &discordgo.ApplicationCommand{
	Name:                     "unwarn",
	Description:              "Remove an active warning so it no longer counts towards automod",
	DefaultMemberPermissions: &moderateMembers,
	DMPermission:             &dmPermission,
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "case_id",
			Description: "Warning case to remove",
			Required:    true,
		},
	},
}

var Purge = &discordgo.ApplicationCommand{
	Name:                     "purge",
	Description:              "Permanently delete every moderation record of a member",
	DefaultMemberPermissions: &administrator,
	DMPermission:             &dmPermission,
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        "user",
			Description: "Member whose records are deleted",
			Required:    true,
		},
		{
			Type:        discordgo.ApplicationCommandOptionBoolean,
			Name:        "confirm",
			Description: "Set to true to confirm; this cannot be undone",
			Required:    true,
		},
	},
}

var Automod = &discordgo.ApplicationCommand{
	Name:                     "automod",
	Description:              "Set the action taken when a member reaches a warning count",
	DefaultMemberPermissions: &manageServer,
	DMPermission:             &dmPermission,
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionInteger,
			Name:        "warnings",
			Description: "Active warning count that triggers the rule",
			Required:    true,
			MinValue:    floatPtr(1),
		},
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "action",
			Description: "Action to take",
			Required:    true,
			Choices: []*discordgo.ApplicationCommandOptionChoice{
				{Name: "Ban", Value: "BAN"},
				{Name: "Timeout", Value: "TIMEOUT"},
				{Name: "Kick", Value: "KICK"},
			},
		},
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "duration",
			Description: "Length for bans and timeouts; leave empty for a permanent ban",
			Required:    false,
		},
	},
}

var Modlog = &discordgo.ApplicationCommand{
	Name:                     "modlog",
	Description:              "Set the channel that receives automatic lift notices",
	DefaultMemberPermissions: &manageServer,
	DMPermission:             &dmPermission,
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:         discordgo.ApplicationCommandOptionChannel,
			Name:         "channel",
			Description:  "Log channel",
			Required:     true,
			ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
		},
	},
}

var Status = &discordgo.ApplicationCommand{
	Name:                     "status",
	Description:              "Show host status and pending temporary punishments",
	DefaultMemberPermissions: &moderateMembers,
	DMPermission:             &dmPermission,
}

func floatPtr(v float64) *float64 {
	return &v
}
