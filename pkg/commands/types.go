// Package commands declares slash commands and maps invoked command
// paths to their handlers.
package commands

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"guildwarden/pkg/discord"
	"guildwarden/pkg/interaction"
)

// Handler executes a command. Returned errors are shown to the user as a
// short ephemeral message; full detail goes to the log.
type Handler func(ctx context.Context, in *interaction.Interaction, api discord.API) (interaction.Envelope, error)

// Command is the declarative description of a slash command and its handler.
// A command either has a Handler or Subcommands, never both.
type Command struct {
	Name        string
	Description string
	Options     []Option
	Subcommands []*Command

	// DefaultMemberPermissions is registration metadata only; Discord
	// enforces it client-side and the router never checks it.
	DefaultMemberPermissions *int64
	// GuildOnly commands are rejected outside a guild.
	GuildOnly bool
	// Deferred commands are acknowledged immediately and finished in the background.
	Deferred bool
	// Ephemeral makes successful replies visible only to the invoker.
	Ephemeral bool

	// Validate, when set, checks options before the handler runs. For
	// deferred commands it runs before the deferral is sent.
	Validate func(in *interaction.Interaction) error
	Handler  Handler
}

// Option declares a single command option.
type Option struct {
	Type         discordgo.ApplicationCommandOptionType
	Name         string
	Description  string
	Required     bool
	MinValue     *float64
	MaxValue     float64
	MinLength    *int
	MaxLength    int
	ChannelTypes []discordgo.ChannelType
	Choices      []Choice
}

// Choice is a fixed value offered for an option.
type Choice struct {
	Name  string
	Value interface{}
}

// ValidationError is a problem with user input, reported verbatim.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Invalid builds a ValidationError for field.
func Invalid(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Permissions returns a pointer for DefaultMemberPermissions.
func Permissions(bits int64) *int64 {
	return &bits
}

// Float returns a pointer for Option.MinValue.
func Float(v float64) *float64 {
	return &v
}

// Int returns a pointer for Option.MinLength.
func Int(v int) *int {
	return &v
}
