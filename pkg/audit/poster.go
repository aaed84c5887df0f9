package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"guildwarden/pkg/bus"
	"guildwarden/pkg/discord"
	"guildwarden/pkg/guildconfig"
	"guildwarden/pkg/logger"
)

// Poster consumes audit entries and posts them to the guild's log channel,
// or to the fallback channel when the guild has none configured.
type Poster struct {
	api             discord.API
	settings        guildconfig.Store
	fallbackChannel string
	log             *logger.Logger
}

// NewPoster creates a Poster.
func NewPoster(api discord.API, settings guildconfig.Store, fallbackChannel string, log *logger.Logger) *Poster {
	return &Poster{api: api, settings: settings, fallbackChannel: fallbackChannel, log: log}
}

// Handle is a bus.Handler.
func (p *Poster) Handle(ctx context.Context, msg *bus.Message) error {
	var entry Entry
	if err := msg.Decode(&entry); err != nil {
		return fmt.Errorf("decoding audit entry: %w", err)
	}

	channelID := p.fallbackChannel
	if entry.GuildID != "" {
		settings, err := p.settings.Get(ctx, entry.GuildID)
		if err != nil {
			p.log.Warn("Could not load guild settings for audit", zap.String("guild_id", entry.GuildID), zap.Error(err))
		} else if settings.LogChannelID != "" {
			channelID = settings.LogChannelID
		}
	}
	if channelID == "" {
		p.log.Debug("No audit channel configured", zap.String("guild_id", entry.GuildID), zap.String("action", entry.Action))
		return nil
	}

	return p.api.SendMessage(ctx, channelID, &discordgo.MessageSend{
		Embeds:          []*discordgo.MessageEmbed{Embed(entry)},
		AllowedMentions: &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{}},
	})
}

var actionColors = map[string]int{
	"kick":      0xE67E22,
	"ban":       0xC0392B,
	"unban":     0x27AE60,
	"timeout":   0xF1C40F,
	"untimeout": 0x27AE60,
	"purge":     0x3498DB,
	"automod":   0x9B59B6,
}

// Embed renders an entry for a log channel.
func Embed(entry Entry) *discordgo.MessageEmbed {
	fields := []*discordgo.MessageEmbedField{
		{Name: "Moderator", Value: mention(entry.ModeratorID), Inline: true},
	}
	if entry.TargetID != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Target", Value: mention(entry.TargetID), Inline: true})
	}
	if entry.ChannelID != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Channel", Value: "<#" + entry.ChannelID + ">", Inline: true})
	}
	reason := entry.Reason
	if reason == "" {
		reason = "No reason given"
	}
	fields = append(fields, &discordgo.MessageEmbedField{Name: "Reason", Value: reason})
	if entry.Detail != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Details", Value: entry.Detail})
	}

	color, ok := actionColors[entry.Action]
	if !ok {
		color = 0x95A5A6
	}
	return &discordgo.MessageEmbed{
		Title:     titleFor(entry.Action),
		Color:     color,
		Fields:    fields,
		Timestamp: entry.At.UTC().Format(time.RFC3339),
	}
}

func titleFor(action string) string {
	switch action {
	case "kick":
		return "Member kicked"
	case "ban":
		return "User banned"
	case "unban":
		return "User unbanned"
	case "timeout":
		return "Member timed out"
	case "untimeout":
		return "Timeout removed"
	case "purge":
		return "Messages purged"
	case "automod":
		return "Auto-moderation changed"
	default:
		if action == "" {
			return "Moderation action"
		}
		return strings.ToUpper(action[:1]) + action[1:]
	}
}

func mention(id string) string {
	if id == "" {
		return "unknown"
	}
	return "<@" + id + ">"
}
