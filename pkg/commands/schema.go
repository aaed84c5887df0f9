package commands

import (
	"github.com/bwmarrin/discordgo"
)

// ApplicationCommands converts the registry into the payload for a bulk
// overwrite. The output is sorted by name so repeated registrations are identical.
func (r *Registry) ApplicationCommands() []*discordgo.ApplicationCommand {
	list := r.List()
	out := make([]*discordgo.ApplicationCommand, 0, len(list))
	for _, cmd := range list {
		out = append(out, toApplicationCommand(cmd))
	}
	return out
}

func toApplicationCommand(cmd *Command) *discordgo.ApplicationCommand {
	ac := &discordgo.ApplicationCommand{
		Type:                     discordgo.ChatApplicationCommand,
		Name:                     cmd.Name,
		Description:              cmd.Description,
		DefaultMemberPermissions: cmd.DefaultMemberPermissions,
	}
	if cmd.GuildOnly {
		contexts := []discordgo.InteractionContextType{discordgo.InteractionContextGuild}
		ac.Contexts = &contexts
	}
	for _, opt := range cmd.Options {
		ac.Options = append(ac.Options, toOption(opt))
	}
	for _, sub := range cmd.Subcommands {
		so := &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        sub.Name,
			Description: sub.Description,
		}
		for _, opt := range sub.Options {
			so.Options = append(so.Options, toOption(opt))
		}
		ac.Options = append(ac.Options, so)
	}
	return ac
}

func toOption(opt Option) *discordgo.ApplicationCommandOption {
	o := &discordgo.ApplicationCommandOption{
		Type:         opt.Type,
		Name:         opt.Name,
		Description:  opt.Description,
		Required:     opt.Required,
		MinValue:     opt.MinValue,
		MaxValue:     opt.MaxValue,
		MinLength:    opt.MinLength,
		MaxLength:    opt.MaxLength,
		ChannelTypes: opt.ChannelTypes,
	}
	for _, c := range opt.Choices {
		o.Choices = append(o.Choices, &discordgo.ApplicationCommandOptionChoice{Name: c.Name, Value: c.Value})
	}
	return o
}
