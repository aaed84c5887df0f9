// Package discord is the narrow REST surface used by command handlers.
package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
)

// API is the set of Discord REST operations handlers may perform.
// Every call is a single attempt bounded by the client's request timeout.
type API interface {
	Guild(ctx context.Context, guildID string) (*discordgo.Guild, error)
	Member(ctx context.Context, guildID, userID string) (*discordgo.Member, error)
	User(ctx context.Context, userID string) (*discordgo.User, error)

	Kick(ctx context.Context, guildID, userID, reason string) error
	Ban(ctx context.Context, guildID, userID, reason string, deleteDays int) error
	Unban(ctx context.Context, guildID, userID, reason string) error
	// Timeout sets or, with a nil until, clears a member's communication timeout.
	Timeout(ctx context.Context, guildID, userID string, until *time.Time, reason string) error

	ChannelMessages(ctx context.Context, channelID string, limit int) ([]*discordgo.Message, error)
	BulkDeleteMessages(ctx context.Context, channelID string, messageIDs []string, reason string) error
	SendMessage(ctx context.Context, channelID string, msg *discordgo.MessageSend) error

	AutoModRules(ctx context.Context, guildID string) ([]*discordgo.AutoModerationRule, error)
	CreateAutoModRule(ctx context.Context, guildID string, rule *discordgo.AutoModerationRule) (*discordgo.AutoModerationRule, error)
	DeleteAutoModRule(ctx context.Context, guildID, ruleID string) error

	// EditInteractionResponse replaces the original (possibly deferred) response.
	EditInteractionResponse(ctx context.Context, in *discordgo.Interaction, content string, embeds []*discordgo.MessageEmbed) error
	OverwriteCommands(ctx context.Context, appID, guildID string, cmds []*discordgo.ApplicationCommand) ([]*discordgo.ApplicationCommand, error)
}
