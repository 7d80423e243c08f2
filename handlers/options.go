package handlers

import (
	"github.com/bwmarrin/discordgo"
)

type commandOptions struct {
	byName   map[string]*discordgo.ApplicationCommandInteractionDataOption
	resolved *discordgo.ApplicationCommandInteractionDataResolved
}

func parseOptions(i *discordgo.InteractionCreate) commandOptions {
	data := i.ApplicationCommandData()
	opts := commandOptions{
		byName:   make(map[string]*discordgo.ApplicationCommandInteractionDataOption),
		resolved: data.Resolved,
	}
	for _, opt := range data.Options {
		opts.byName[opt.Name] = opt
	}
	return opts
}

func (o commandOptions) str(name string) string {
	if opt, ok := o.byName[name]; ok {
		return opt.StringValue()
	}
	return ""
}

func (o commandOptions) integer(name string) int64 {
	if opt, ok := o.byName[name]; ok {
		return opt.IntValue()
	}
	return 0
}

// user prefers the resolved payload so no extra REST call is made.
func (o commandOptions) user(name string) *discordgo.User {
	opt, ok := o.byName[name]
	if !ok {
		return nil
	}
	u := opt.UserValue(nil)
	if o.resolved != nil {
		if full, ok := o.resolved.Users[u.ID]; ok {
			return full
		}
	}
	return u
}

func (o commandOptions) boolean(name string) bool {
	if opt, ok := o.byName[name]; ok {
		return opt.BoolValue()
	}
	return false
}

func (o commandOptions) channelID(name string) string {
	if opt, ok := o.byName[name]; ok {
		if v, ok := opt.Value.(string); ok {
			return v
		}
	}
	return ""
}

// invoker returns whoever ran the command.
func invoker(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}
