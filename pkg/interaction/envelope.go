package interaction

import "github.com/bwmarrin/discordgo"

// Kind selects the response type written back for an interaction.
type Kind int

const (
	// KindPong acknowledges a Ping.
	KindPong Kind = iota + 1
	// KindMessage replies with a message.
	KindMessage
	// KindDeferredMessage acknowledges now and edits the reply later.
	KindDeferredMessage
)

func (k Kind) String() string {
	switch k {
	case KindPong:
		return "pong"
	case KindMessage:
		return "message"
	case KindDeferredMessage:
		return "deferred"
	default:
		return "unknown"
	}
}

// Envelope is the single response produced for an interaction.
type Envelope struct {
	Kind      Kind
	Content   string
	Ephemeral bool
	Embeds    []*discordgo.MessageEmbed
}

// Pong returns the Ping acknowledgement.
func Pong() Envelope {
	return Envelope{Kind: KindPong}
}

// Message returns a visible reply.
func Message(content string) Envelope {
	return Envelope{Kind: KindMessage, Content: content}
}

// Ephemeral returns a reply only the invoking user can see.
func Ephemeral(content string) Envelope {
	return Envelope{Kind: KindMessage, Content: content, Ephemeral: true}
}

// Deferred returns the "thinking..." acknowledgement for long-running commands.
func Deferred(ephemeral bool) Envelope {
	return Envelope{Kind: KindDeferredMessage, Ephemeral: ephemeral}
}
