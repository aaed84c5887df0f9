package handlers

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"guildwarden/pkg/commands"
	"guildwarden/pkg/interaction"
)

// maxReasonLength is Discord's audit log reason limit.
const maxReasonLength = 512

func userOption(in *interaction.Interaction, name string) (string, bool, error) {
	opt, ok := in.Option(name)
	if !ok {
		return "", false, nil
	}
	id, ok := opt.Snowflake()
	if !ok {
		return "", false, commands.Invalid(name, "`%s` must be a user.", name)
	}
	return id, true, nil
}

func requiredUser(in *interaction.Interaction, name string) (string, error) {
	id, ok, err := userOption(in, name)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", commands.Invalid(name, "`%s` is required.", name)
	}
	return id, nil
}

func stringOption(in *interaction.Interaction, name string) string {
	opt, ok := in.Option(name)
	if !ok {
		return ""
	}
	s, _ := opt.String()
	return strings.TrimSpace(s)
}

// intOption reads an integer option, checking it against [min, max].
func intOption(in *interaction.Interaction, name string, min, max int64) (int64, bool, error) {
	opt, ok := in.Option(name)
	if !ok {
		return 0, false, nil
	}
	n, ok := opt.Int()
	if !ok {
		return 0, false, commands.Invalid(name, "`%s` must be a whole number between %d and %d.", name, min, max)
	}
	if n < min || n > max {
		return 0, false, commands.Invalid(name, "`%s` must be between %d and %d.", name, min, max)
	}
	return n, true, nil
}

func reasonOption(in *interaction.Interaction) (string, error) {
	reason := stringOption(in, "reason")
	if utf8.RuneCountInString(reason) > maxReasonLength {
		return "", commands.Invalid("reason", "The reason can be at most %d characters.", maxReasonLength)
	}
	return reason, nil
}

// checkTarget stops moderators from acting on themselves or the bot.
func checkTarget(in *interaction.Interaction, targetID, verb string) error {
	switch targetID {
	case in.UserID:
		return commands.Invalid("user", "You cannot %s yourself.", verb)
	case in.AppID:
		return commands.Invalid("user", "I cannot %s myself.", verb)
	}
	return nil
}

func mention(id string) string {
	return fmt.Sprintf("<@%s>", id)
}

func withReason(msg, reason string) string {
	if reason == "" {
		return msg
	}
	return msg + " Reason: " + reason
}
