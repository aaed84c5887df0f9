package discord

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"guildwarden/pkg/logger"
	"guildwarden/pkg/version"
)

// Client implements API on top of a discordgo REST session.
type Client struct {
	session *discordgo.Session
	timeout time.Duration
	log     *logger.Logger
}

// NewClient builds a REST-only session. The gateway websocket is never opened.
// Retries are disabled so every operation is a single attempt.
func NewClient(token string, timeout time.Duration, log *logger.Logger) (*Client, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	session.Client = &http.Client{Timeout: timeout}
	session.MaxRestRetries = 0
	session.ShouldRetryOnRateLimit = false
	session.UserAgent = version.UserAgent()

	return &Client{session: session, timeout: timeout, log: log}, nil
}

// Session exposes the underlying discordgo session.
func (c *Client) Session() *discordgo.Session {
	return c.session
}

func (c *Client) opts(ctx context.Context, extra ...discordgo.RequestOption) (context.Context, context.CancelFunc, []discordgo.RequestOption) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	return ctx, cancel, append([]discordgo.RequestOption{discordgo.WithContext(ctx)}, extra...)
}

func (c *Client) done(op string, start time.Time, err error) error {
	wrapped := wrap(op, err)
	if wrapped != nil {
		c.log.Debug("Discord request failed",
			zap.String("op", op),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(wrapped))
	}
	return wrapped
}

func reasonOpts(reason string) []discordgo.RequestOption {
	if reason == "" {
		return nil
	}
	return []discordgo.RequestOption{discordgo.WithAuditLogReason(reason)}
}

func (c *Client) Guild(ctx context.Context, guildID string) (*discordgo.Guild, error) {
	ctx, cancel, opts := c.opts(ctx)
	defer cancel()
	start := time.Now()
	g, err := c.session.GuildWithCounts(guildID, opts...)
	return g, c.done("fetch the server", start, err)
}

func (c *Client) Member(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
	ctx, cancel, opts := c.opts(ctx)
	defer cancel()
	start := time.Now()
	m, err := c.session.GuildMember(guildID, userID, opts...)
	return m, c.done("fetch the member", start, err)
}

func (c *Client) User(ctx context.Context, userID string) (*discordgo.User, error) {
	ctx, cancel, opts := c.opts(ctx)
	defer cancel()
	start := time.Now()
	u, err := c.session.User(userID, opts...)
	return u, c.done("fetch the user", start, err)
}

func (c *Client) Kick(ctx context.Context, guildID, userID, reason string) error {
	ctx, cancel, opts := c.opts(ctx)
	defer cancel()
	start := time.Now()
	err := c.session.GuildMemberDeleteWithReason(guildID, userID, reason, opts...)
	return c.done("kick the member", start, err)
}

func (c *Client) Ban(ctx context.Context, guildID, userID, reason string, deleteDays int) error {
	ctx, cancel, opts := c.opts(ctx)
	defer cancel()
	start := time.Now()
	err := c.session.GuildBanCreateWithReason(guildID, userID, reason, deleteDays, opts...)
	return c.done("ban the user", start, err)
}

func (c *Client) Unban(ctx context.Context, guildID, userID, reason string) error {
	ctx, cancel, opts := c.opts(ctx, reasonOpts(reason)...)
	defer cancel()
	start := time.Now()
	err := c.session.GuildBanDelete(guildID, userID, opts...)
	return c.done("unban the user", start, err)
}

func (c *Client) Timeout(ctx context.Context, guildID, userID string, until *time.Time, reason string) error {
	ctx, cancel, opts := c.opts(ctx, reasonOpts(reason)...)
	defer cancel()
	start := time.Now()
	err := c.session.GuildMemberTimeout(guildID, userID, until, opts...)
	op := "time out the member"
	if until == nil {
		op = "remove the timeout"
	}
	return c.done(op, start, err)
}

func (c *Client) ChannelMessages(ctx context.Context, channelID string, limit int) ([]*discordgo.Message, error) {
	ctx, cancel, opts := c.opts(ctx)
	defer cancel()
	start := time.Now()
	msgs, err := c.session.ChannelMessages(channelID, limit, "", "", "", opts...)
	return msgs, c.done("read channel messages", start, err)
}

func (c *Client) BulkDeleteMessages(ctx context.Context, channelID string, messageIDs []string, reason string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	ctx, cancel, opts := c.opts(ctx, reasonOpts(reason)...)
	defer cancel()
	start := time.Now()
	err := c.session.ChannelMessagesBulkDelete(channelID, messageIDs, opts...)
	return c.done("delete messages", start, err)
}

func (c *Client) SendMessage(ctx context.Context, channelID string, msg *discordgo.MessageSend) error {
	ctx, cancel, opts := c.opts(ctx)
	defer cancel()
	start := time.Now()
	_, err := c.session.ChannelMessageSendComplex(channelID, msg, opts...)
	return c.done("send a message", start, err)
}

func (c *Client) AutoModRules(ctx context.Context, guildID string) ([]*discordgo.AutoModerationRule, error) {
	ctx, cancel, opts := c.opts(ctx)
	defer cancel()
	start := time.Now()
	rules, err := c.session.AutoModerationRules(guildID, opts...)
	return rules, c.done("list auto-moderation rules", start, err)
}

func (c *Client) CreateAutoModRule(ctx context.Context, guildID string, rule *discordgo.AutoModerationRule) (*discordgo.AutoModerationRule, error) {
	ctx, cancel, opts := c.opts(ctx)
	defer cancel()
	start := time.Now()
	created, err := c.session.AutoModerationRuleCreate(guildID, rule, opts...)
	return created, c.done("create the auto-moderation rule", start, err)
}

func (c *Client) DeleteAutoModRule(ctx context.Context, guildID, ruleID string) error {
	ctx, cancel, opts := c.opts(ctx)
	defer cancel()
	start := time.Now()
	err := c.session.AutoModerationRuleDelete(guildID, ruleID, opts...)
	return c.done("delete the auto-moderation rule", start, err)
}

func (c *Client) EditInteractionResponse(ctx context.Context, in *discordgo.Interaction, content string, embeds []*discordgo.MessageEmbed) error {
	ctx, cancel, opts := c.opts(ctx)
	defer cancel()
	start := time.Now()
	edit := &discordgo.WebhookEdit{
		Content:         &content,
		AllowedMentions: &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{}},
	}
	if len(embeds) > 0 {
		edit.Embeds = &embeds
	}
	_, err := c.session.InteractionResponseEdit(in, edit, opts...)
	return c.done("update the response", start, err)
}

func (c *Client) OverwriteCommands(ctx context.Context, appID, guildID string, cmds []*discordgo.ApplicationCommand) ([]*discordgo.ApplicationCommand, error) {
	ctx, cancel, opts := c.opts(ctx)
	defer cancel()
	start := time.Now()
	out, err := c.session.ApplicationCommandBulkOverwrite(appID, guildID, cmds, opts...)
	return out, c.done("register commands", start, err)
}

var _ API = (*Client)(nil)
