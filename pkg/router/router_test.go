package router

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"guildwarden/pkg/commands"
	"guildwarden/pkg/discord"
	"guildwarden/pkg/discord/discordtest"
	"guildwarden/pkg/interaction"
	"guildwarden/pkg/logger"
	"guildwarden/pkg/metrics"
	"guildwarden/pkg/verify"
)

type harness struct {
	router *Router
	api    *discordtest.API
	reg    *commands.Registry
	priv   ed25519.PrivateKey
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	api := &discordtest.API{}
	reg := commands.NewRegistry()
	r := New(verify.New(pub), reg, api, logger.NewNop(), metrics.New(), Config{DeferredTimeout: 5 * time.Second})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = r.Stop(ctx)
		api.AssertExpectations(t)
	})
	return &harness{router: r, api: api, reg: reg, priv: priv}
}

func (h *harness) signed(body string) Request {
	ts := fmt.Sprint(time.Now().Unix())
	sig := ed25519.Sign(h.priv, append([]byte(ts), body...))
	return Request{Signature: hex.EncodeToString(sig), Timestamp: ts, Body: []byte(body)}
}

func commandBody(name string, guild bool) string {
	guildField := ""
	if guild {
		guildField = `"guild_id":"333",`
	}
	return fmt.Sprintf(`{"id":"1","application_id":"2","token":"tok","type":2,%s"channel_id":"444",
		"member":{"user":{"id":"555"}},"user":{"id":"555"},"data":{"id":"9","name":%q}}`, guildField, name)
}

func decodeResponse(t *testing.T, res Result) discordgo.InteractionResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, res.Status)
	var resp discordgo.InteractionResponse
	require.NoError(t, json.Unmarshal(res.Body, &resp))
	return resp
}

func TestHandleRejectsBadSignature(t *testing.T) {
	h := newHarness(t)
	req := h.signed(`{"type":1}`)
	req.Body = []byte(`{"type": 1}`)

	res := h.router.Handle(context.Background(), req)
	assert.Equal(t, http.StatusUnauthorized, res.Status)
	assert.JSONEq(t, `{"error":"invalid request signature"}`, string(res.Body))
}

func TestHandleWithoutKeyRejectsEverything(t *testing.T) {
	h := newHarness(t)
	r := New(verify.New(nil), h.reg, h.api, logger.NewNop(), nil, Config{})
	assert.False(t, r.KeyLoaded())

	res := r.Handle(context.Background(), h.signed(`{"type":1}`))
	assert.Equal(t, http.StatusUnauthorized, res.Status)
}

func TestHandlePing(t *testing.T) {
	h := newHarness(t)
	res := h.router.Handle(context.Background(), h.signed(`{"type":1}`))
	assert.Equal(t, http.StatusOK, res.Status)
	assert.JSONEq(t, `{"type":1}`, string(res.Body))
}

func TestHandleDecodeFailure(t *testing.T) {
	h := newHarness(t)
	res := h.router.Handle(context.Background(), h.signed(`{"type":2,"data":{"name":"x","options":"nope"}}`))
	assert.Equal(t, http.StatusInternalServerError, res.Status)
	assert.JSONEq(t, `{"error":"internal server error"}`, string(res.Body))
}

func TestHandleDispatchesCommand(t *testing.T) {
	h := newHarness(t)
	var seen *interaction.Interaction
	h.reg.MustRegister(&commands.Command{
		Name:        "hello",
		Description: "Say hello",
		Handler: func(ctx context.Context, in *interaction.Interaction, api discord.API) (interaction.Envelope, error) {
			seen = in
			return interaction.Message("hi <@" + in.UserID + ">"), nil
		},
	})

	resp := decodeResponse(t, h.router.Handle(context.Background(), h.signed(commandBody("hello", true))))
	assert.Equal(t, discordgo.InteractionResponseChannelMessageWithSource, resp.Type)
	assert.Equal(t, "hi <@555>", resp.Data.Content)
	assert.Zero(t, resp.Data.Flags&discordgo.MessageFlagsEphemeral)
	require.NotNil(t, seen)
	assert.Equal(t, "333", seen.GuildID)
}

func TestHandleEphemeralCommand(t *testing.T) {
	h := newHarness(t)
	h.reg.MustRegister(&commands.Command{
		Name:        "secret",
		Description: "Quiet reply",
		Ephemeral:   true,
		Handler: func(ctx context.Context, in *interaction.Interaction, api discord.API) (interaction.Envelope, error) {
			return interaction.Message("shh"), nil
		},
	})

	resp := decodeResponse(t, h.router.Handle(context.Background(), h.signed(commandBody("secret", true))))
	assert.Equal(t, "shh", resp.Data.Content)
	assert.NotZero(t, resp.Data.Flags&discordgo.MessageFlagsEphemeral)
}

func TestHandleUnknownCommand(t *testing.T) {
	h := newHarness(t)
	resp := decodeResponse(t, h.router.Handle(context.Background(), h.signed(commandBody("nope", true))))
	assert.Equal(t, "Unknown command.", resp.Data.Content)
	assert.NotZero(t, resp.Data.Flags&discordgo.MessageFlagsEphemeral)
}

func TestHandleGuildOnlyOutsideGuild(t *testing.T) {
	h := newHarness(t)
	h.reg.MustRegister(&commands.Command{
		Name:        "kick",
		Description: "Kick",
		GuildOnly:   true,
		Handler: func(ctx context.Context, in *interaction.Interaction, api discord.API) (interaction.Envelope, error) {
			t.Fatal("handler must not run outside a guild")
			return interaction.Envelope{}, nil
		},
	})

	resp := decodeResponse(t, h.router.Handle(context.Background(), h.signed(commandBody("kick", false))))
	assert.Equal(t, msgGuildOnly, resp.Data.Content)
	assert.NotZero(t, resp.Data.Flags&discordgo.MessageFlagsEphemeral)
}

func TestHandleUnsupportedType(t *testing.T) {
	h := newHarness(t)
	body := `{"id":"1","application_id":"2","token":"tok","type":3,"guild_id":"333","member":{"user":{"id":"5"}},"data":{"custom_id":"x","component_type":2}}`
	resp := decodeResponse(t, h.router.Handle(context.Background(), h.signed(body)))
	assert.Equal(t, msgUnsupported, resp.Data.Content)
}

func TestHandlerErrorsBecomeSafeMessages(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"validation", commands.Invalid("count", "count must be between 1 and 100"), "count must be between 1 and 100"},
		{"forbidden", &discord.APIError{Op: "kick the member", Status: 403, Message: "Missing Permissions body"}, "Discord rejected the request to kick the member (HTTP 403)"},
		{"internal", errors.New("redis: connection refused at 10.0.0.3"), msgInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.reg.MustRegister(&commands.Command{
				Name:        "fail",
				Description: "Fails",
				Handler: func(ctx context.Context, in *interaction.Interaction, api discord.API) (interaction.Envelope, error) {
					return interaction.Envelope{}, tc.err
				},
			})

			resp := decodeResponse(t, h.router.Handle(context.Background(), h.signed(commandBody("fail", true))))
			assert.Contains(t, resp.Data.Content, tc.want)
			assert.NotContains(t, resp.Data.Content, "10.0.0.3")
			assert.NotContains(t, resp.Data.Content, "body")
			assert.NotZero(t, resp.Data.Flags&discordgo.MessageFlagsEphemeral)
		})
	}
}

func TestHandlerPanicIsRecovered(t *testing.T) {
	h := newHarness(t)
	h.reg.MustRegister(&commands.Command{
		Name:        "boom",
		Description: "Panics",
		Handler: func(ctx context.Context, in *interaction.Interaction, api discord.API) (interaction.Envelope, error) {
			panic("nil map write")
		},
	})

	resp := decodeResponse(t, h.router.Handle(context.Background(), h.signed(commandBody("boom", true))))
	assert.Equal(t, msgInternal, resp.Data.Content)
}

func TestHandlerReturningPongIsAnError(t *testing.T) {
	h := newHarness(t)
	h.reg.MustRegister(&commands.Command{
		Name:        "odd",
		Description: "Bad envelope",
		Handler: func(ctx context.Context, in *interaction.Interaction, api discord.API) (interaction.Envelope, error) {
			return interaction.Pong(), nil
		},
	})

	resp := decodeResponse(t, h.router.Handle(context.Background(), h.signed(commandBody("odd", true))))
	assert.Equal(t, discordgo.InteractionResponseChannelMessageWithSource, resp.Type)
	assert.Equal(t, msgInternal, resp.Data.Content)
}

func TestDeferredCommandEditsResponse(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	h.reg.MustRegister(&commands.Command{
		Name:        "slow",
		Description: "Slow",
		Deferred:    true,
		Ephemeral:   true,
		Handler: func(ctx context.Context, in *interaction.Interaction, api discord.API) (interaction.Envelope, error) {
			<-release
			return interaction.Message("done"), nil
		},
	})
	edited := make(chan string, 1)
	h.api.On("EditInteractionResponse", mock.Anything, mock.MatchedBy(func(w *discordgo.Interaction) bool {
		return w.Token == "tok" && w.AppID == "2"
	}), "done", mock.Anything).
		Run(func(args mock.Arguments) { edited <- args.String(2) }).
		Return(nil).Once()

	resp := decodeResponse(t, h.router.Handle(context.Background(), h.signed(commandBody("slow", true))))
	assert.Equal(t, discordgo.InteractionResponseDeferredChannelMessageWithSource, resp.Type)
	require.NotNil(t, resp.Data)
	assert.NotZero(t, resp.Data.Flags&discordgo.MessageFlagsEphemeral)

	close(release)
	select {
	case content := <-edited:
		assert.Equal(t, "done", content)
	case <-time.After(5 * time.Second):
		t.Fatal("deferred response was never edited")
	}
}

func TestDeferredFailureReportsSafeMessage(t *testing.T) {
	h := newHarness(t)
	h.reg.MustRegister(&commands.Command{
		Name:        "purge",
		Description: "Purge",
		Deferred:    true,
		Handler: func(ctx context.Context, in *interaction.Interaction, api discord.API) (interaction.Envelope, error) {
			return interaction.Envelope{}, &discord.APIError{Op: "delete messages", Status: 403}
		},
	})
	h.api.On("EditInteractionResponse", mock.Anything, mock.Anything,
		mock.MatchedBy(func(s string) bool { return strings.Contains(s, "HTTP 403") }),
		[]*discordgo.MessageEmbed(nil)).Return(nil).Once()

	res := h.router.Handle(context.Background(), h.signed(commandBody("purge", true)))
	assert.Equal(t, http.StatusOK, res.Status)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.router.Stop(ctx))
}

func TestStopRejectsNewDeferredWork(t *testing.T) {
	h := newHarness(t)
	h.reg.MustRegister(&commands.Command{
		Name:        "slow",
		Description: "Slow",
		Deferred:    true,
		Handler: func(ctx context.Context, in *interaction.Interaction, api discord.API) (interaction.Envelope, error) {
			t.Fatal("handler must not start after shutdown")
			return interaction.Envelope{}, nil
		},
	})
	require.NoError(t, h.router.Stop(context.Background()))

	resp := decodeResponse(t, h.router.Handle(context.Background(), h.signed(commandBody("slow", true))))
	assert.Equal(t, msgShuttingDown, resp.Data.Content)
}

func TestStopCancelsStuckDeferredWork(t *testing.T) {
	h := newHarness(t)
	h.reg.MustRegister(&commands.Command{
		Name:        "stuck",
		Description: "Never finishes on its own",
		Deferred:    true,
		Handler: func(ctx context.Context, in *interaction.Interaction, api discord.API) (interaction.Envelope, error) {
			<-ctx.Done()
			return interaction.Envelope{}, ctx.Err()
		},
	})
	edited := make(chan string, 1)
	h.api.On("EditInteractionResponse", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { edited <- args.String(2) }).
		Return(nil).Once()

	h.router.Handle(context.Background(), h.signed(commandBody("stuck", true)))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.router.Stop(ctx), context.DeadlineExceeded)

	select {
	case content := <-edited:
		assert.Equal(t, msgInternal, content)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled deferred command never reported back")
	}
}

func TestStopDoesNotWaitForHandlersIgnoringCancellation(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	defer close(release)
	h.reg.MustRegister(&commands.Command{
		Name:        "stubborn",
		Description: "Ignores its context",
		Deferred:    true,
		Handler: func(ctx context.Context, in *interaction.Interaction, api discord.API) (interaction.Envelope, error) {
			<-release
			return interaction.Message("late"), nil
		},
	})
	h.api.On("EditInteractionResponse", mock.Anything, mock.Anything, "late", mock.Anything).Return(nil).Maybe()

	h.router.Handle(context.Background(), h.signed(commandBody("stubborn", true)))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	assert.ErrorIs(t, h.router.Stop(ctx), context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestConcurrentInteractions(t *testing.T) {
	h := newHarness(t)
	var calls atomic.Int64
	h.reg.MustRegister(&commands.Command{
		Name:        "echo",
		Description: "Echo the user",
		Handler: func(ctx context.Context, in *interaction.Interaction, api discord.API) (interaction.Envelope, error) {
			calls.Add(1)
			return interaction.Message(in.ID), nil
		},
	})

	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := strings.Replace(commandBody("echo", true), `"id":"1"`, fmt.Sprintf(`"id":"%d"`, 1000+i), 1)
			res := h.router.Handle(context.Background(), h.signed(body))
			var resp discordgo.InteractionResponse
			if assert.NoError(t, json.Unmarshal(res.Body, &resp)) && assert.NotNil(t, resp.Data) {
				assert.Equal(t, fmt.Sprint(1000+i), resp.Data.Content)
			}
		}(i)
	}
	wg.Wait()
	assert.EqualValues(t, n, calls.Load())
}

func TestUserMessageTruncates(t *testing.T) {
	long := strings.Repeat("é", ErrorMessageLimit+50)
	msg := UserMessage(commands.Invalid("x", "%s", long))
	assert.Equal(t, ErrorMessageLimit, len([]rune(msg)))
	assert.True(t, strings.HasSuffix(msg, "…"))

	assert.Equal(t, msgTimeout, UserMessage(fmt.Errorf("wrap: %w", context.DeadlineExceeded)))
}

func TestValidateRunsBeforeDeferral(t *testing.T) {
	h := newHarness(t)
	h.reg.MustRegister(&commands.Command{
		Name:        "purge",
		Description: "Purge",
		Deferred:    true,
		Validate: func(in *interaction.Interaction) error {
			return commands.Invalid("count", "count must be between 1 and 100")
		},
		Handler: func(ctx context.Context, in *interaction.Interaction, api discord.API) (interaction.Envelope, error) {
			t.Fatal("handler must not run when validation fails")
			return interaction.Envelope{}, nil
		},
	})

	resp := decodeResponse(t, h.router.Handle(context.Background(), h.signed(commandBody("purge", true))))
	assert.Equal(t, discordgo.InteractionResponseChannelMessageWithSource, resp.Type)
	assert.Equal(t, "count must be between 1 and 100", resp.Data.Content)
	assert.NotZero(t, resp.Data.Flags&discordgo.MessageFlagsEphemeral)
}

func TestSlowRESTCallStillRepliesWithinBudget(t *testing.T) {
	h := newHarness(t)
	r := New(h.router.verifier, h.reg, h.api, logger.NewNop(), nil, Config{ResponseBudget: 50 * time.Millisecond})
	h.reg.MustRegister(&commands.Command{
		Name:        "serverinfo",
		Description: "Server info",
		Handler: func(ctx context.Context, in *interaction.Interaction, api discord.API) (interaction.Envelope, error) {
			g, err := api.Guild(ctx, in.GuildID)
			if err != nil {
				return interaction.Envelope{}, err
			}
			return interaction.Message(g.Name), nil
		},
	})
	h.api.On("Guild", mock.Anything, "333").
		After(500*time.Millisecond).
		Return(&discordgo.Guild{Name: "late"}, nil).Once()

	start := time.Now()
	resp := decodeResponse(t, r.Handle(context.Background(), h.signed(commandBody("serverinfo", true))))
	assert.Less(t, time.Since(start), 400*time.Millisecond)
	assert.Equal(t, msgTimeout, resp.Data.Content)
	assert.NotZero(t, resp.Data.Flags&discordgo.MessageFlagsEphemeral)
}

func TestHandlerHonouringContextStopsAtBudget(t *testing.T) {
	h := newHarness(t)
	r := New(h.router.verifier, h.reg, h.api, logger.NewNop(), nil, Config{ResponseBudget: 50 * time.Millisecond})
	handlerErr := make(chan error, 1)
	h.reg.MustRegister(&commands.Command{
		Name:        "wait",
		Description: "Waits on its context",
		Handler: func(ctx context.Context, in *interaction.Interaction, api discord.API) (interaction.Envelope, error) {
			<-ctx.Done()
			handlerErr <- ctx.Err()
			return interaction.Envelope{}, ctx.Err()
		},
	})

	resp := decodeResponse(t, r.Handle(context.Background(), h.signed(commandBody("wait", true))))
	assert.Equal(t, msgTimeout, resp.Data.Content)
	assert.ErrorIs(t, <-handlerErr, context.DeadlineExceeded)
}

func TestValidationErrorCountedAsInvalidOptions(t *testing.T) {
	h := newHarness(t)
	m := metrics.New()
	r := New(h.router.verifier, h.reg, h.api, logger.NewNop(), m, Config{})
	h.reg.MustRegister(&commands.Command{
		Name:        "timeout",
		Description: "Timeout",
		Handler: func(ctx context.Context, in *interaction.Interaction, api discord.API) (interaction.Envelope, error) {
			return interaction.Envelope{}, commands.Invalid("duration", "Use a duration like 10m.")
		},
	})

	resp := decodeResponse(t, r.Handle(context.Background(), h.signed(commandBody("timeout", true))))
	assert.Equal(t, "Use a duration like 10m.", resp.Data.Content)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `guildwarden_interactions_total{outcome="invalid_options"} 1`)
	assert.NotContains(t, body, `outcome="handler_error"`)
}
