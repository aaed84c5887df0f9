package interaction

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// ErrDecode marks a request body that could not be turned into an Interaction.
var ErrDecode = errors.New("malformed interaction payload")

// ErrUnknownKind is returned by Encode for a zero or unknown envelope kind.
var ErrUnknownKind = errors.New("unknown envelope kind")

type typeProbe struct {
	Type *int `json:"type"`
}

// Decode parses a raw request body. A Ping is recognised from its type
// alone, so a Ping with a malformed data object still decodes.
func Decode(raw []byte) (*Interaction, error) {
	var probe typeProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if probe.Type == nil {
		return nil, fmt.Errorf("%w: missing type", ErrDecode)
	}
	if Type(*probe.Type) == TypePing {
		return &Interaction{Type: TypePing}, nil
	}

	var wire discordgo.Interaction
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return fromWire(&wire), nil
}

func fromWire(wire *discordgo.Interaction) *Interaction {
	in := &Interaction{
		ID:        wire.ID,
		AppID:     wire.AppID,
		Token:     wire.Token,
		Type:      Type(wire.Type),
		GuildID:   wire.GuildID,
		ChannelID: wire.ChannelID,
		Locale:    string(wire.Locale),
		Options:   map[string]OptionValue{},
		raw:       wire,
	}
	switch {
	case wire.Member != nil && wire.Member.User != nil:
		in.UserID = wire.Member.User.ID
	case wire.User != nil:
		in.UserID = wire.User.ID
	}

	data, ok := wire.Data.(discordgo.ApplicationCommandInteractionData)
	if !ok {
		return in
	}
	in.Resolved = data.Resolved
	if data.Name != "" {
		in.CommandPath = []string{data.Name}
	}

	options := data.Options
	for depth := 0; depth < 2 && len(options) == 1; depth++ {
		opt := options[0]
		if opt == nil {
			break
		}
		if opt.Type != discordgo.ApplicationCommandOptionSubCommand &&
			opt.Type != discordgo.ApplicationCommandOptionSubCommandGroup {
			break
		}
		in.CommandPath = append(in.CommandPath, opt.Name)
		options = opt.Options
	}
	for _, opt := range options {
		if opt == nil || opt.Name == "" {
			continue
		}
		in.Options[opt.Name] = OptionValue{Type: opt.Type, Value: opt.Value}
	}
	return in
}

// Encode renders an envelope as an interaction response body. Mentions in
// message content are never parsed into pings.
func Encode(env Envelope) ([]byte, error) {
	resp, err := ToResponse(env)
	if err != nil {
		return nil, err
	}
	return json.Marshal(resp)
}

// ToResponse converts an envelope into the discordgo response type.
func ToResponse(env Envelope) (*discordgo.InteractionResponse, error) {
	var flags discordgo.MessageFlags
	if env.Ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}

	switch env.Kind {
	case KindPong:
		return &discordgo.InteractionResponse{Type: discordgo.InteractionResponsePong}, nil
	case KindMessage:
		return &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content:         env.Content,
				Embeds:          env.Embeds,
				AllowedMentions: &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{}},
				Flags:           flags,
			},
		}, nil
	case KindDeferredMessage:
		resp := &discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredChannelMessageWithSource}
		if flags != 0 {
			resp.Data = &discordgo.InteractionResponseData{Flags: flags}
		}
		return resp, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, env.Kind)
	}
}
