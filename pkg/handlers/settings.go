package handlers

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"guildwarden/pkg/commands"
	"guildwarden/pkg/discord"
	"guildwarden/pkg/guildconfig"
	"guildwarden/pkg/interaction"
)

// Discord keyword filter limits.
const (
	maxKeywords      = 1000
	maxKeywordLength = 60
	autoModRuleName  = "guildwarden: blocked words"
)

var snowflakePattern = regexp.MustCompile(`^[0-9]{1,20}$`)

func (s *Set) configCommand() *commands.Command {
	return &commands.Command{
		Name:                     "config",
		Description:              "Configure the bot for this server",
		DefaultMemberPermissions: commands.Permissions(discordgo.PermissionManageGuild),
		GuildOnly:                true,
		Ephemeral:                true,
		Subcommands: []*commands.Command{
			{
				Name:        "log-channel",
				Description: "Set or clear the channel that receives moderation logs",
				Options: []commands.Option{{
					Type:         discordgo.ApplicationCommandOptionChannel,
					Name:         "channel",
					Description:  "Log channel (leave empty to clear)",
					ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews},
				}},
				Handler: s.setLogChannel,
			},
			{
				Name:        "show",
				Description: "Show this server's settings",
				Handler:     s.showConfig,
			},
		},
	}
}

func (s *Set) setLogChannel(ctx context.Context, in *interaction.Interaction, api discord.API) (interaction.Envelope, error) {
	if !in.InGuild() {
		return interaction.Ephemeral(msgServerOnly), nil
	}
	var channelID string
	if opt, ok := in.Option("channel"); ok {
		id, ok := opt.Snowflake()
		if !ok {
			return interaction.Envelope{}, commands.Invalid("channel", "`channel` must be a text channel.")
		}
		channelID = id
	}

	_, err := s.settings.Update(ctx, in.GuildID, func(st *guildconfig.Settings) error {
		st.LogChannelID = channelID
		st.UpdatedAt = s.now()
		st.UpdatedBy = in.UserID
		return nil
	})
	if err != nil {
		return interaction.Envelope{}, err
	}
	s.log.Info("Log channel updated",
		zap.String("guild_id", in.GuildID),
		zap.String("channel_id", channelID),
		zap.String("user_id", in.UserID))

	if channelID == "" {
		return interaction.Message("Moderation logs are no longer posted to a server channel."), nil
	}
	return interaction.Message(fmt.Sprintf("Moderation logs will be posted to <#%s>.", channelID)), nil
}

func (s *Set) showConfig(ctx context.Context, in *interaction.Interaction, api discord.API) (interaction.Envelope, error) {
	if !in.InGuild() {
		return interaction.Ephemeral(msgServerOnly), nil
	}
	st, err := s.settings.Get(ctx, in.GuildID)
	if err != nil {
		return interaction.Envelope{}, err
	}

	logChannel := "Not set"
	if st.LogChannelID != "" {
		logChannel = "<#" + st.LogChannelID + ">"
	}
	rules := "None"
	if len(st.AutoModRuleIDs) > 0 {
		rules = "`" + strings.Join(st.AutoModRuleIDs, "`, `") + "`"
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "Log channel", Value: logChannel, Inline: true},
		{Name: "Auto-moderation rules", Value: rules, Inline: true},
	}
	if !st.UpdatedAt.IsZero() {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  "Last changed",
			Value: fmt.Sprintf("%s by %s", relative(st.UpdatedAt), mention(st.UpdatedBy)),
		})
	}
	return embedReply(&discordgo.MessageEmbed{
		Title:  "Server settings",
		Color:  embedColor,
		Fields: fields,
	}), nil
}

func (s *Set) automodCommand() *commands.Command {
	return &commands.Command{
		Name:                     "automod",
		Description:              "Manage keyword auto-moderation rules",
		DefaultMemberPermissions: commands.Permissions(discordgo.PermissionManageGuild),
		GuildOnly:                true,
		Deferred:                 true,
		Ephemeral:                true,
		Subcommands: []*commands.Command{
			{
				Name:        "block-words",
				Description: "Create a rule that blocks messages containing these words",
				Options: []commands.Option{{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "words",
					Description: "Comma-separated words or phrases",
					Required:    true,
				}},
				Handler: s.blockWords,
			},
			{
				Name:        "remove",
				Description: "Delete an auto-moderation rule",
				Options: []commands.Option{{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "rule_id",
					Description: "ID of the rule to delete",
					Required:    true,
					MaxLength:   20,
				}},
				Handler: s.removeRule,
			},
			{
				Name:        "list",
				Description: "List this server's auto-moderation rules",
				Handler:     s.listRules,
			},
		},
	}
}

// ParseKeywords splits a comma-separated list, dropping blanks and
// duplicates.
func ParseKeywords(raw string) ([]string, error) {
	seen := make(map[string]bool)
	var words []string
	for _, part := range strings.Split(raw, ",") {
		w := strings.ToLower(strings.TrimSpace(part))
		if w == "" || seen[w] {
			continue
		}
		if utf8.RuneCountInString(w) > maxKeywordLength {
			return nil, commands.Invalid("words", "Each word can be at most %d characters.", maxKeywordLength)
		}
		seen[w] = true
		words = append(words, w)
	}
	if len(words) == 0 {
		return nil, commands.Invalid("words", "Give at least one word to block.")
	}
	if len(words) > maxKeywords {
		return nil, commands.Invalid("words", "A rule can hold at most %d words.", maxKeywords)
	}
	return words, nil
}

func (s *Set) blockWords(ctx context.Context, in *interaction.Interaction, api discord.API) (interaction.Envelope, error) {
	if !in.InGuild() {
		return interaction.Ephemeral(msgServerOnly), nil
	}
	words, err := ParseKeywords(stringOption(in, "words"))
	if err != nil {
		return interaction.Envelope{}, err
	}

	enabled := true
	rule, err := api.CreateAutoModRule(ctx, in.GuildID, &discordgo.AutoModerationRule{
		Name:        autoModRuleName,
		EventType:   discordgo.AutoModerationEventMessageSend,
		TriggerType: discordgo.AutoModerationEventTriggerKeyword,
		TriggerMetadata: &discordgo.AutoModerationTriggerMetadata{
			KeywordFilter: words,
		},
		Actions: []discordgo.AutoModerationAction{
			{Type: discordgo.AutoModerationRuleActionBlockMessage},
		},
		Enabled: &enabled,
	})
	if err != nil {
		return interaction.Envelope{}, err
	}

	_, err = s.settings.Update(ctx, in.GuildID, func(st *guildconfig.Settings) error {
		st.AutoModRuleIDs = appendUnique(st.AutoModRuleIDs, rule.ID)
		st.UpdatedAt = s.now()
		st.UpdatedBy = in.UserID
		return nil
	})
	if err != nil {
		// The rule exists on Discord even if we failed to remember it.
		s.log.Warn("Failed to save auto-moderation rule id",
			zap.String("guild_id", in.GuildID),
			zap.String("rule_id", rule.ID),
			zap.Error(err))
	}

	s.record(ctx, in, "automod", "", "", fmt.Sprintf("Created rule %s blocking %d word(s)", rule.ID, len(words)))
	return interaction.Message(fmt.Sprintf("Created rule `%s` blocking %d word(s).", rule.ID, len(words))), nil
}

func (s *Set) removeRule(ctx context.Context, in *interaction.Interaction, api discord.API) (interaction.Envelope, error) {
	if !in.InGuild() {
		return interaction.Ephemeral(msgServerOnly), nil
	}
	ruleID := stringOption(in, "rule_id")
	if !snowflakePattern.MatchString(ruleID) {
		return interaction.Envelope{}, commands.Invalid("rule_id", "%q is not a valid rule ID.", ruleID)
	}

	gone := false
	if err := api.DeleteAutoModRule(ctx, in.GuildID, ruleID); err != nil {
		if !discord.IsNotFound(err) {
			return interaction.Envelope{}, err
		}
		gone = true
	}

	if _, err := s.settings.Update(ctx, in.GuildID, func(st *guildconfig.Settings) error {
		st.AutoModRuleIDs = removeString(st.AutoModRuleIDs, ruleID)
		st.UpdatedAt = s.now()
		st.UpdatedBy = in.UserID
		return nil
	}); err != nil {
		return interaction.Envelope{}, err
	}

	if gone {
		return interaction.Message(fmt.Sprintf("Rule `%s` no longer exists.", ruleID)), nil
	}
	s.record(ctx, in, "automod", "", "", "Deleted rule "+ruleID)
	return interaction.Message(fmt.Sprintf("Deleted rule `%s`.", ruleID)), nil
}

func (s *Set) listRules(ctx context.Context, in *interaction.Interaction, api discord.API) (interaction.Envelope, error) {
	if !in.InGuild() {
		return interaction.Ephemeral(msgServerOnly), nil
	}
	rules, err := api.AutoModRules(ctx, in.GuildID)
	if err != nil {
		return interaction.Envelope{}, err
	}
	if len(rules) == 0 {
		return interaction.Message("This server has no auto-moderation rules."), nil
	}
	st, err := s.settings.Get(ctx, in.GuildID)
	if err != nil {
		return interaction.Envelope{}, err
	}
	managed := make(map[string]bool, len(st.AutoModRuleIDs))
	for _, id := range st.AutoModRuleIDs {
		managed[id] = true
	}

	var b strings.Builder
	for _, rule := range rules {
		state := "enabled"
		if rule.Enabled != nil && !*rule.Enabled {
			state = "disabled"
		}
		fmt.Fprintf(&b, "`%s` %s (%s", rule.ID, rule.Name, state)
		if rule.TriggerMetadata != nil && len(rule.TriggerMetadata.KeywordFilter) > 0 {
			fmt.Fprintf(&b, ", %d word(s)", len(rule.TriggerMetadata.KeywordFilter))
		}
		if managed[rule.ID] {
			b.WriteString(", created here")
		}
		b.WriteString(")\n")
	}
	return interaction.Message(strings.TrimRight(b.String(), "\n")), nil
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func removeString(list []string, v string) []string {
	out := list[:0]
	for _, existing := range list {
		if existing != v {
			out = append(out, existing)
		}
	}
	return out
}
