// Package handlers implements the bot's slash commands.
package handlers

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"guildwarden/pkg/audit"
	"guildwarden/pkg/commands"
	"guildwarden/pkg/guildconfig"
	"guildwarden/pkg/interaction"
	"guildwarden/pkg/logger"
)

const msgServerOnly = "This command can only be used in a server."

// Set holds the dependencies shared by all commands.
type Set struct {
	registry *commands.Registry
	settings guildconfig.Store
	audit    audit.Notifier
	log      *logger.Logger
	now      func() time.Time
}

// New creates the command set. notifier may be nil.
func New(reg *commands.Registry, settings guildconfig.Store, notifier audit.Notifier, log *logger.Logger) *Set {
	if notifier == nil {
		notifier = audit.Nop{}
	}
	return &Set{
		registry: reg,
		settings: settings,
		audit:    notifier,
		log:      log,
		now:      time.Now,
	}
}

// Commands returns every command this set provides.
func (s *Set) Commands() []*commands.Command {
	return []*commands.Command{
		s.pingCommand(),
		s.helpCommand(),
		s.serverInfoCommand(),
		s.userInfoCommand(),
		s.avatarCommand(),
		s.kickCommand(),
		s.banCommand(),
		s.unbanCommand(),
		s.timeoutCommand(),
		s.untimeoutCommand(),
		s.purgeCommand(),
		s.configCommand(),
		s.automodCommand(),
	}
}

// Register adds all commands to the registry.
func (s *Set) Register() error {
	for _, cmd := range s.Commands() {
		if err := s.registry.Register(cmd); err != nil {
			return err
		}
	}
	s.log.Debug("Registered commands", zap.Int("count", len(s.registry.List())))
	return nil
}

// record emits an audit entry. It never blocks on delivery.
func (s *Set) record(ctx context.Context, in *interaction.Interaction, action, targetID, reason, detail string) {
	s.audit.Notify(ctx, audit.Entry{
		GuildID:     in.GuildID,
		ChannelID:   in.ChannelID,
		Action:      action,
		ModeratorID: in.UserID,
		TargetID:    targetID,
		Reason:      reason,
		Detail:      detail,
		At:          s.now(),
	})
}

func userOptionSpec(description string, required bool) commands.Option {
	return commands.Option{
		Type:        discordgo.ApplicationCommandOptionUser,
		Name:        "user",
		Description: description,
		Required:    required,
	}
}

func reasonOptionSpec() commands.Option {
	return commands.Option{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "reason",
		Description: "Reason recorded in the audit log",
		MaxLength:   maxReasonLength,
	}
}
