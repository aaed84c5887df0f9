// Package discordtest provides a testify mock of discord.API.
package discordtest

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/mock"

	"guildwarden/pkg/discord"
)

// API is a mock discord.API. Unexpected calls fail the test.
type API struct {
	mock.Mock
}

var _ discord.API = (*API)(nil)

func (m *API) Guild(ctx context.Context, guildID string) (*discordgo.Guild, error) {
	args := m.Called(ctx, guildID)
	g, _ := args.Get(0).(*discordgo.Guild)
	return g, args.Error(1)
}

func (m *API) Member(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
	args := m.Called(ctx, guildID, userID)
	mem, _ := args.Get(0).(*discordgo.Member)
	return mem, args.Error(1)
}

func (m *API) User(ctx context.Context, userID string) (*discordgo.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*discordgo.User)
	return u, args.Error(1)
}

func (m *API) Kick(ctx context.Context, guildID, userID, reason string) error {
	return m.Called(ctx, guildID, userID, reason).Error(0)
}

func (m *API) Ban(ctx context.Context, guildID, userID, reason string, deleteDays int) error {
	return m.Called(ctx, guildID, userID, reason, deleteDays).Error(0)
}

func (m *API) Unban(ctx context.Context, guildID, userID, reason string) error {
	return m.Called(ctx, guildID, userID, reason).Error(0)
}

func (m *API) Timeout(ctx context.Context, guildID, userID string, until *time.Time, reason string) error {
	return m.Called(ctx, guildID, userID, until, reason).Error(0)
}

func (m *API) ChannelMessages(ctx context.Context, channelID string, limit int) ([]*discordgo.Message, error) {
	args := m.Called(ctx, channelID, limit)
	msgs, _ := args.Get(0).([]*discordgo.Message)
	return msgs, args.Error(1)
}

func (m *API) BulkDeleteMessages(ctx context.Context, channelID string, messageIDs []string, reason string) error {
	return m.Called(ctx, channelID, messageIDs, reason).Error(0)
}

func (m *API) SendMessage(ctx context.Context, channelID string, msg *discordgo.MessageSend) error {
	return m.Called(ctx, channelID, msg).Error(0)
}

func (m *API) AutoModRules(ctx context.Context, guildID string) ([]*discordgo.AutoModerationRule, error) {
	args := m.Called(ctx, guildID)
	rules, _ := args.Get(0).([]*discordgo.AutoModerationRule)
	return rules, args.Error(1)
}

func (m *API) CreateAutoModRule(ctx context.Context, guildID string, rule *discordgo.AutoModerationRule) (*discordgo.AutoModerationRule, error) {
	args := m.Called(ctx, guildID, rule)
	r, _ := args.Get(0).(*discordgo.AutoModerationRule)
	return r, args.Error(1)
}

func (m *API) DeleteAutoModRule(ctx context.Context, guildID, ruleID string) error {
	return m.Called(ctx, guildID, ruleID).Error(0)
}

func (m *API) EditInteractionResponse(ctx context.Context, in *discordgo.Interaction, content string, embeds []*discordgo.MessageEmbed) error {
	return m.Called(ctx, in, content, embeds).Error(0)
}

func (m *API) OverwriteCommands(ctx context.Context, appID, guildID string, cmds []*discordgo.ApplicationCommand) ([]*discordgo.ApplicationCommand, error) {
	args := m.Called(ctx, appID, guildID, cmds)
	out, _ := args.Get(0).([]*discordgo.ApplicationCommand)
	return out, args.Error(1)
}
