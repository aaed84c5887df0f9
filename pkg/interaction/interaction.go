// Package interaction holds the decoded form of an inbound interaction,
// the response envelope, and the JSON codec between them and the wire.
package interaction

import (
	"math"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// Type is the interaction kind carried in the top-level "type" field.
type Type int

// Interaction types.
const (
	TypePing               Type = Type(discordgo.InteractionPing)
	TypeApplicationCommand Type = Type(discordgo.InteractionApplicationCommand)
	TypeComponent          Type = Type(discordgo.InteractionMessageComponent)
	TypeAutocomplete       Type = Type(discordgo.InteractionApplicationCommandAutocomplete)
	TypeModalSubmit        Type = Type(discordgo.InteractionModalSubmit)
)

// Interaction is a decoded callback. CommandPath and Options are only
// populated for application commands.
type Interaction struct {
	ID        string
	AppID     string
	Token     string
	Type      Type
	GuildID   string
	ChannelID string
	UserID    string
	Locale    string

	// CommandPath is the command name, followed by a subcommand group and
	// subcommand when present.
	CommandPath []string
	Options     map[string]OptionValue

	// Resolved carries the users, members, roles and channels referenced by options.
	Resolved *discordgo.ApplicationCommandInteractionDataResolved

	raw *discordgo.Interaction
}

// InGuild reports whether the interaction was sent from a guild.
func (i *Interaction) InGuild() bool {
	return i.GuildID != ""
}

// Name returns the top-level command name, or "" for non-commands.
func (i *Interaction) Name() string {
	if len(i.CommandPath) == 0 {
		return ""
	}
	return i.CommandPath[0]
}

// FullName joins the command path with spaces, e.g. "config log-channel".
func (i *Interaction) FullName() string {
	return strings.Join(i.CommandPath, " ")
}

// Option returns the named option value.
func (i *Interaction) Option(name string) (OptionValue, bool) {
	v, ok := i.Options[name]
	return v, ok
}

// ResolvedUser returns the user object Discord resolved for id, if any.
func (i *Interaction) ResolvedUser(id string) *discordgo.User {
	if i.Resolved == nil {
		return nil
	}
	return i.Resolved.Users[id]
}

// ResolvedMember returns the partial member Discord resolved for id, if any.
func (i *Interaction) ResolvedMember(id string) *discordgo.Member {
	if i.Resolved == nil {
		return nil
	}
	return i.Resolved.Members[id]
}

// Wire returns the discordgo form needed for follow-up REST calls. For
// interactions built by hand it carries only the identifying fields.
func (i *Interaction) Wire() *discordgo.Interaction {
	if i.raw != nil {
		return i.raw
	}
	return &discordgo.Interaction{
		ID:        i.ID,
		AppID:     i.AppID,
		Token:     i.Token,
		Type:      discordgo.InteractionType(i.Type),
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
	}
}

// OptionValue is a single option as sent by the client. Accessors report
// false when the value has a different shape.
type OptionValue struct {
	Type  discordgo.ApplicationCommandOptionType
	Value interface{}
}

// String returns a string option.
func (o OptionValue) String() (string, bool) {
	s, ok := o.Value.(string)
	return s, ok
}

// Int returns an integer option. JSON numbers arrive as float64, so only
// whole values within int64 range succeed.
func (o OptionValue) Int() (int64, bool) {
	f, ok := o.Value.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// Float returns a number option.
func (o OptionValue) Float() (float64, bool) {
	f, ok := o.Value.(float64)
	return f, ok
}

// Bool returns a boolean option.
func (o OptionValue) Bool() (bool, bool) {
	b, ok := o.Value.(bool)
	return b, ok
}

// Snowflake returns the id carried by user, channel, role and mentionable options.
func (o OptionValue) Snowflake() (string, bool) {
	switch o.Type {
	case discordgo.ApplicationCommandOptionUser,
		discordgo.ApplicationCommandOptionChannel,
		discordgo.ApplicationCommandOptionRole,
		discordgo.ApplicationCommandOptionMentionable,
		discordgo.ApplicationCommandOptionAttachment:
	default:
		return "", false
	}
	s, ok := o.Value.(string)
	if !ok || s == "" {
		return "", false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return s, true
}
