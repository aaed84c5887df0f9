package handlers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"guildwarden/pkg/commands"
	"guildwarden/pkg/discord"
	"guildwarden/pkg/interaction"
)

const embedColor = 0x5865F2

func (s *Set) pingCommand() *commands.Command {
	return &commands.Command{
		Name:        "ping",
		Description: "Check that the bot is responding",
		Handler: func(ctx context.Context, in *interaction.Interaction, api discord.API) (interaction.Envelope, error) {
			sent, err := discordgo.SnowflakeTimestamp(in.ID)
			if err != nil || sent.IsZero() {
				return interaction.Message("Pong!"), nil
			}
			latency := s.now().Sub(sent)
			if latency < 0 {
				latency = 0
			}
			return interaction.Message(fmt.Sprintf("Pong! (%d ms)", latency.Milliseconds())), nil
		},
	}
}

func (s *Set) helpCommand() *commands.Command {
	return &commands.Command{
		Name:        "help",
		Description: "List the available commands",
		Ephemeral:   true,
		Handler: func(ctx context.Context, in *interaction.Interaction, api discord.API) (interaction.Envelope, error) {
			var b strings.Builder
			b.WriteString("**Commands**\n")
			for _, cmd := range s.registry.List() {
				if len(cmd.Subcommands) == 0 {
					fmt.Fprintf(&b, "`/%s` %s\n", cmd.Name, cmd.Description)
					continue
				}
				subs := append([]*commands.Command(nil), cmd.Subcommands...)
				sort.Slice(subs, func(i, j int) bool { return subs[i].Name < subs[j].Name })
				for _, sub := range subs {
					fmt.Fprintf(&b, "`/%s %s` %s\n", cmd.Name, sub.Name, sub.Description)
				}
			}
			return interaction.Message(strings.TrimRight(b.String(), "\n")), nil
		},
	}
}

func (s *Set) serverInfoCommand() *commands.Command {
	return &commands.Command{
		Name:        "serverinfo",
		Description: "Show information about this server",
		GuildOnly:   true,
		Handler: func(ctx context.Context, in *interaction.Interaction, api discord.API) (interaction.Envelope, error) {
			if !in.InGuild() {
				return interaction.Ephemeral(msgServerOnly), nil
			}
			g, err := api.Guild(ctx, in.GuildID)
			if err != nil {
				return interaction.Envelope{}, err
			}

			members := g.ApproximateMemberCount
			if members == 0 {
				members = g.MemberCount
			}
			fields := []*discordgo.MessageEmbedField{
				{Name: "Owner", Value: mention(g.OwnerID), Inline: true},
				{Name: "Members", Value: fmt.Sprint(members), Inline: true},
				{Name: "Roles", Value: fmt.Sprint(len(g.Roles)), Inline: true},
				{Name: "Emojis", Value: fmt.Sprint(len(g.Emojis)), Inline: true},
				{Name: "Boost tier", Value: fmt.Sprintf("%d (%d boosts)", g.PremiumTier, g.PremiumSubscriptionCount), Inline: true},
			}
			if created, err := discordgo.SnowflakeTimestamp(g.ID); err == nil {
				fields = append(fields, &discordgo.MessageEmbedField{Name: "Created", Value: relative(created), Inline: true})
			}

			embed := &discordgo.MessageEmbed{
				Title:       g.Name,
				Description: g.Description,
				Color:       embedColor,
				Fields:      fields,
				Footer:      &discordgo.MessageEmbedFooter{Text: "ID " + g.ID},
			}
			if g.Icon != "" {
				embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: g.IconURL("256")}
			}
			return embedReply(embed), nil
		},
	}
}

func (s *Set) userInfoCommand() *commands.Command {
	return &commands.Command{
		Name:        "userinfo",
		Deferred:    true,
		Description: "Show information about a user",
		Options:     []commands.Option{userOptionSpec("User to look up (defaults to you)", false)},
		Handler: func(ctx context.Context, in *interaction.Interaction, api discord.API) (interaction.Envelope, error) {
			user, member, err := lookupUser(ctx, in, api)
			if err != nil {
				return interaction.Envelope{}, err
			}

			fields := []*discordgo.MessageEmbedField{
				{Name: "Username", Value: user.Username, Inline: true},
				{Name: "Bot", Value: yesNo(user.Bot), Inline: true},
			}
			if created, err := discordgo.SnowflakeTimestamp(user.ID); err == nil {
				fields = append(fields, &discordgo.MessageEmbedField{Name: "Account created", Value: relative(created), Inline: true})
			}
			if member != nil {
				if !member.JoinedAt.IsZero() {
					fields = append(fields, &discordgo.MessageEmbedField{Name: "Joined server", Value: relative(member.JoinedAt), Inline: true})
				}
				if member.Nick != "" {
					fields = append(fields, &discordgo.MessageEmbedField{Name: "Nickname", Value: member.Nick, Inline: true})
				}
				fields = append(fields, &discordgo.MessageEmbedField{Name: "Roles", Value: fmt.Sprint(len(member.Roles)), Inline: true})
				if until := member.CommunicationDisabledUntil; until != nil && until.After(s.now()) {
					fields = append(fields, &discordgo.MessageEmbedField{Name: "Timed out until", Value: absolute(*until), Inline: true})
				}
			}

			return embedReply(&discordgo.MessageEmbed{
				Title:     user.DisplayName(),
				Color:     embedColor,
				Fields:    fields,
				Thumbnail: &discordgo.MessageEmbedThumbnail{URL: user.AvatarURL("256")},
				Footer:    &discordgo.MessageEmbedFooter{Text: "ID " + user.ID},
			}), nil
		},
	}
}

func (s *Set) avatarCommand() *commands.Command {
	return &commands.Command{
		Name:        "avatar",
		Deferred:    true,
		Description: "Show a user's avatar",
		Options:     []commands.Option{userOptionSpec("User whose avatar to show (defaults to you)", false)},
		Handler: func(ctx context.Context, in *interaction.Interaction, api discord.API) (interaction.Envelope, error) {
			user, member, err := lookupUser(ctx, in, api)
			if err != nil {
				return interaction.Envelope{}, err
			}
			url := user.AvatarURL("1024")
			if member != nil && member.Avatar != "" {
				m := *member
				m.User = user
				if m.GuildID == "" {
					m.GuildID = in.GuildID
				}
				url = m.AvatarURL("1024")
			}
			return embedReply(&discordgo.MessageEmbed{
				Title: user.DisplayName() + "'s avatar",
				URL:   url,
				Color: embedColor,
				Image: &discordgo.MessageEmbedImage{URL: url},
			}), nil
		},
	}
}

// lookupUser resolves the "user" option, falling back to the invoker. The
// member is only returned inside a guild and may be nil if the user is
// not in it.
func lookupUser(ctx context.Context, in *interaction.Interaction, api discord.API) (*discordgo.User, *discordgo.Member, error) {
	id, ok, err := userOption(in, "user")
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		id = in.UserID
	}

	user := in.ResolvedUser(id)
	if user == nil {
		if user, err = api.User(ctx, id); err != nil {
			return nil, nil, err
		}
	}
	if !in.InGuild() {
		return user, nil, nil
	}

	member := in.ResolvedMember(id)
	if member == nil {
		member, err = api.Member(ctx, in.GuildID, id)
		if discord.IsNotFound(err) {
			return user, nil, nil
		}
		if err != nil {
			return nil, nil, err
		}
	}
	return user, member, nil
}

func embedReply(embed *discordgo.MessageEmbed) interaction.Envelope {
	env := interaction.Message("")
	env.Embeds = []*discordgo.MessageEmbed{embed}
	return env
}

func relative(t time.Time) string {
	return fmt.Sprintf("<t:%d:R>", t.Unix())
}

func absolute(t time.Time) string {
	return fmt.Sprintf("<t:%d:f>", t.Unix())
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
