package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"guildwarden/pkg/commands"
	"guildwarden/pkg/discord"
	"guildwarden/pkg/interaction"
)

// Discord refuses to bulk delete messages older than two weeks. The margin
// covers clock drift between us and Discord.
const (
	bulkDeleteMaxAge = 14*24*time.Hour - time.Minute
	purgeMin         = 1
	purgeMax         = 100
	banDeleteMaxDays = 7
)

func (s *Set) kickCommand() *commands.Command {
	return &commands.Command{
		Name:                     "kick",
		Description:              "Remove a member from the server",
		DefaultMemberPermissions: commands.Permissions(discordgo.PermissionKickMembers),
		GuildOnly:                true,
		Options: []commands.Option{
			userOptionSpec("Member to kick", true),
			reasonOptionSpec(),
		},
		Handler: func(ctx context.Context, in *interaction.Interaction, api discord.API) (interaction.Envelope, error) {
			if !in.InGuild() {
				return interaction.Ephemeral(msgServerOnly), nil
			}
			target, err := requiredUser(in, "user")
			if err != nil {
				return interaction.Envelope{}, err
			}
			if err := checkTarget(in, target, "kick"); err != nil {
				return interaction.Envelope{}, err
			}
			reason, err := reasonOption(in)
			if err != nil {
				return interaction.Envelope{}, err
			}

			if err := api.Kick(ctx, in.GuildID, target, reason); err != nil {
				return interaction.Envelope{}, err
			}
			s.record(ctx, in, "kick", target, reason, "")
			return interaction.Message(withReason("Kicked "+mention(target)+".", reason)), nil
		},
	}
}

func (s *Set) banCommand() *commands.Command {
	return &commands.Command{
		Name:                     "ban",
		Description:              "Ban a user from the server",
		DefaultMemberPermissions: commands.Permissions(discordgo.PermissionBanMembers),
		GuildOnly:                true,
		Options: []commands.Option{
			userOptionSpec("User to ban", true),
			reasonOptionSpec(),
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "delete_days",
				Description: "Days of their recent messages to delete (0-7)",
				MinValue:    commands.Float(0),
				MaxValue:    banDeleteMaxDays,
			},
		},
		Handler: func(ctx context.Context, in *interaction.Interaction, api discord.API) (interaction.Envelope, error) {
			if !in.InGuild() {
				return interaction.Ephemeral(msgServerOnly), nil
			}
			target, err := requiredUser(in, "user")
			if err != nil {
				return interaction.Envelope{}, err
			}
			if err := checkTarget(in, target, "ban"); err != nil {
				return interaction.Envelope{}, err
			}
			reason, err := reasonOption(in)
			if err != nil {
				return interaction.Envelope{}, err
			}
			days, _, err := intOption(in, "delete_days", 0, banDeleteMaxDays)
			if err != nil {
				return interaction.Envelope{}, err
			}

			if err := api.Ban(ctx, in.GuildID, target, reason, int(days)); err != nil {
				return interaction.Envelope{}, err
			}
			detail := ""
			if days > 0 {
				detail = fmt.Sprintf("Deleted %d day(s) of messages", days)
			}
			s.record(ctx, in, "ban", target, reason, detail)
			return interaction.Message(withReason("Banned "+mention(target)+".", reason)), nil
		},
	}
}

func (s *Set) unbanCommand() *commands.Command {
	return &commands.Command{
		Name:                     "unban",
		Description:              "Lift a ban",
		DefaultMemberPermissions: commands.Permissions(discordgo.PermissionBanMembers),
		GuildOnly:                true,
		Options: []commands.Option{
			userOptionSpec("User to unban (mention or ID)", true),
			reasonOptionSpec(),
		},
		Handler: func(ctx context.Context, in *interaction.Interaction, api discord.API) (interaction.Envelope, error) {
			if !in.InGuild() {
				return interaction.Ephemeral(msgServerOnly), nil
			}
			target, err := requiredUser(in, "user")
			if err != nil {
				return interaction.Envelope{}, err
			}
			reason, err := reasonOption(in)
			if err != nil {
				return interaction.Envelope{}, err
			}

			if err := api.Unban(ctx, in.GuildID, target, reason); err != nil {
				if discord.IsNotFound(err) {
					return interaction.Ephemeral(mention(target) + " is not banned."), nil
				}
				return interaction.Envelope{}, err
			}
			s.record(ctx, in, "unban", target, reason, "")
			return interaction.Message(withReason("Unbanned "+mention(target)+".", reason)), nil
		},
	}
}

func (s *Set) timeoutCommand() *commands.Command {
	return &commands.Command{
		Name:                     "timeout",
		Description:              "Temporarily stop a member from talking",
		DefaultMemberPermissions: commands.Permissions(discordgo.PermissionModerateMembers),
		GuildOnly:                true,
		Options: []commands.Option{
			userOptionSpec("Member to time out", true),
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "duration",
				Description: "How long, e.g. 10m, 2h, 1d12h (max 28d)",
				Required:    true,
				MaxLength:   32,
			},
			reasonOptionSpec(),
		},
		Handler: func(ctx context.Context, in *interaction.Interaction, api discord.API) (interaction.Envelope, error) {
			if !in.InGuild() {
				return interaction.Ephemeral(msgServerOnly), nil
			}
			target, err := requiredUser(in, "user")
			if err != nil {
				return interaction.Envelope{}, err
			}
			if err := checkTarget(in, target, "time out"); err != nil {
				return interaction.Envelope{}, err
			}
			raw := stringOption(in, "duration")
			d, ok := ParseDuration(raw)
			if !ok || d > MaxTimeout {
				return interaction.Envelope{}, commands.Invalid("duration",
					"Invalid duration %q. Use values like 10m, 2h or 1d12h, up to 28d.", raw)
			}
			reason, err := reasonOption(in)
			if err != nil {
				return interaction.Envelope{}, err
			}

			until := s.now().Add(d)
			if err := api.Timeout(ctx, in.GuildID, target, &until, reason); err != nil {
				return interaction.Envelope{}, err
			}
			s.record(ctx, in, "timeout", target, reason, "For "+FormatDuration(d))
			msg := fmt.Sprintf("Timed out %s for %s (until %s).", mention(target), FormatDuration(d), absolute(until))
			return interaction.Message(withReason(msg, reason)), nil
		},
	}
}

func (s *Set) untimeoutCommand() *commands.Command {
	return &commands.Command{
		Name:                     "untimeout",
		Description:              "Remove a member's timeout",
		DefaultMemberPermissions: commands.Permissions(discordgo.PermissionModerateMembers),
		GuildOnly:                true,
		Options: []commands.Option{
			userOptionSpec("Member to release", true),
			reasonOptionSpec(),
		},
		Handler: func(ctx context.Context, in *interaction.Interaction, api discord.API) (interaction.Envelope, error) {
			if !in.InGuild() {
				return interaction.Ephemeral(msgServerOnly), nil
			}
			target, err := requiredUser(in, "user")
			if err != nil {
				return interaction.Envelope{}, err
			}
			reason, err := reasonOption(in)
			if err != nil {
				return interaction.Envelope{}, err
			}

			if err := api.Timeout(ctx, in.GuildID, target, nil, reason); err != nil {
				return interaction.Envelope{}, err
			}
			s.record(ctx, in, "untimeout", target, reason, "")
			return interaction.Message(withReason("Removed the timeout for "+mention(target)+".", reason)), nil
		},
	}
}

func (s *Set) purgeCommand() *commands.Command {
	return &commands.Command{
		Name:                     "purge",
		Description:              "Delete recent messages in this channel",
		DefaultMemberPermissions: commands.Permissions(discordgo.PermissionManageMessages),
		GuildOnly:                true,
		Deferred:                 true,
		Ephemeral:                true,
		Options: []commands.Option{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "count",
				Description: "Number of messages to delete (1-100)",
				Required:    true,
				MinValue:    commands.Float(purgeMin),
				MaxValue:    purgeMax,
			},
		},
		Validate: validatePurge,
		Handler: func(ctx context.Context, in *interaction.Interaction, api discord.API) (interaction.Envelope, error) {
			if err := validatePurge(in); err != nil {
				return interaction.Envelope{}, err
			}
			count, _, _ := intOption(in, "count", purgeMin, purgeMax)

			msgs, err := api.ChannelMessages(ctx, in.ChannelID, int(count))
			if err != nil {
				return interaction.Envelope{}, err
			}
			ids, skipped := purgeable(msgs, s.now())
			if len(ids) == 0 {
				return interaction.Message("There are no messages I can delete here. Messages older than 14 days and pinned messages are skipped."), nil
			}
			if err := api.BulkDeleteMessages(ctx, in.ChannelID, ids, "purge requested by "+in.UserID); err != nil {
				return interaction.Envelope{}, err
			}

			detail := fmt.Sprintf("Deleted %d message(s)", len(ids))
			s.record(ctx, in, "purge", "", "", detail)
			msg := fmt.Sprintf("Deleted %d message(s).", len(ids))
			if skipped > 0 {
				msg += fmt.Sprintf(" Skipped %d pinned or older than 14 days.", skipped)
			}
			return interaction.Message(msg), nil
		},
	}
}

func validatePurge(in *interaction.Interaction) error {
	if !in.InGuild() || in.ChannelID == "" {
		return commands.Invalid("channel", msgServerOnly)
	}
	_, ok, err := intOption(in, "count", purgeMin, purgeMax)
	if err != nil {
		return err
	}
	if !ok {
		return commands.Invalid("count", "`count` is required.")
	}
	return nil
}

// purgeable picks the messages bulk delete will accept.
func purgeable(msgs []*discordgo.Message, now time.Time) (ids []string, skipped int) {
	cutoff := now.Add(-bulkDeleteMaxAge)
	for _, m := range msgs {
		if m == nil {
			continue
		}
		sent, err := discordgo.SnowflakeTimestamp(m.ID)
		if err != nil || m.Pinned || sent.Before(cutoff) {
			skipped++
			continue
		}
		ids = append(ids, m.ID)
	}
	return ids, skipped
}
