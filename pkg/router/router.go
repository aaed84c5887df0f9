// Package router runs the interaction pipeline: verify the signature,
// decode the payload, dispatch to a command handler, and encode exactly
// one response envelope.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"guildwarden/pkg/commands"
	"guildwarden/pkg/discord"
	"guildwarden/pkg/interaction"
	"guildwarden/pkg/logger"
	"guildwarden/pkg/metrics"
	"guildwarden/pkg/verify"
)

// ErrorMessageLimit caps the length of error text shown to users.
const ErrorMessageLimit = 1800

// User-facing texts.
const (
	msgInternal     = "Something went wrong while running this command."
	msgTimeout      = "The command took too long to finish."
	msgGuildOnly    = "This command can only be used in a server."
	msgUnsupported  = "This interaction type is not supported."
	msgShuttingDown = "The bot is restarting. Please try again in a moment."
)

// Request is the raw material of one callback.
type Request struct {
	Signature string
	Timestamp string
	Body      []byte
}

// Result is what the HTTP layer writes back.
type Result struct {
	Status int
	Body   []byte
}

// Router dispatches interactions. It holds no per-request state, so one
// Router serves concurrent requests.
type Router struct {
	verifier *verify.Verifier
	registry *commands.Registry
	api      discord.API
	log      *logger.Logger
	metrics  *metrics.Metrics

	deferredTimeout time.Duration
	responseBudget  time.Duration

	mu       sync.Mutex
	stopping bool
	inFlight sync.WaitGroup
	baseCtx  context.Context
	cancel   context.CancelFunc
}

// DefaultResponseBudget leaves headroom inside Discord's three second
// window for encoding and writing the reply.
const DefaultResponseBudget = 2500 * time.Millisecond

// Config tunes router behaviour.
type Config struct {
	// DeferredTimeout bounds background work for deferred commands.
	DeferredTimeout time.Duration
	// ResponseBudget bounds synchronous handlers. When it runs out the
	// invoker gets a timeout message and the handler's context is cancelled.
	ResponseBudget time.Duration
}

// New creates a Router. m may be nil.
func New(v *verify.Verifier, reg *commands.Registry, api discord.API, log *logger.Logger, m *metrics.Metrics, cfg Config) *Router {
	if cfg.DeferredTimeout <= 0 {
		cfg.DeferredTimeout = 2 * time.Minute
	}
	if cfg.ResponseBudget <= 0 {
		cfg.ResponseBudget = DefaultResponseBudget
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Router{
		verifier:        v,
		registry:        reg,
		api:             api,
		log:             log,
		metrics:         m,
		deferredTimeout: cfg.DeferredTimeout,
		responseBudget:  cfg.ResponseBudget,
		baseCtx:         ctx,
		cancel:          cancel,
	}
}

// KeyLoaded reports whether the verifier has a usable public key.
func (r *Router) KeyLoaded() bool {
	return r.verifier.KeyLoaded()
}

// Handle runs the full pipeline for one request.
func (r *Router) Handle(ctx context.Context, req Request) Result {
	if !r.verifier.Verify(req.Signature, req.Timestamp, req.Body) {
		r.metrics.Interaction(metrics.OutcomeRejected)
		r.log.Debug("Rejected interaction with invalid signature",
			zap.Bool("key_loaded", r.verifier.KeyLoaded()),
			zap.Int("body_bytes", len(req.Body)))
		return errorResult(http.StatusUnauthorized, "invalid request signature")
	}

	in, err := interaction.Decode(req.Body)
	if err != nil {
		r.metrics.Interaction(metrics.OutcomeDecodeError)
		r.log.Error("Failed to decode interaction", zap.Error(err))
		return errorResult(http.StatusInternalServerError, "internal server error")
	}

	if in.Type == interaction.TypePing {
		r.metrics.Interaction(metrics.OutcomePong)
		return r.encode(interaction.Pong(), nil)
	}

	log := r.log.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("interaction_id", in.ID),
		zap.String("guild_id", in.GuildID),
		zap.String("user_id", in.UserID),
	)

	if in.Type != interaction.TypeApplicationCommand {
		log.Debug("Unsupported interaction type", zap.Int("type", int(in.Type)))
		r.metrics.Interaction(metrics.OutcomeOK)
		return r.encode(interaction.Ephemeral(msgUnsupported), log)
	}

	cmd, known := r.registry.Resolve(in.CommandPath)
	log = log.With(zap.String("command", in.FullName()), zap.Bool("known", known))
	label := in.FullName()
	if !known {
		label = "unknown"
	}

	if cmd.GuildOnly && !in.InGuild() {
		r.metrics.Interaction(metrics.OutcomeOK)
		return r.encode(interaction.Ephemeral(msgGuildOnly), log)
	}

	if cmd.Validate != nil {
		if err := cmd.Validate(in); err != nil {
			log.Debug("Command options rejected", zap.Error(err))
			r.metrics.Interaction(metrics.OutcomeInvalid)
			return r.encode(interaction.Ephemeral(UserMessage(err)), log)
		}
	}

	if cmd.Deferred {
		if !r.startDeferred(cmd, in, label, log) {
			return r.encode(interaction.Ephemeral(msgShuttingDown), log)
		}
		r.metrics.Interaction(metrics.OutcomeDeferred)
		return r.encode(interaction.Deferred(cmd.Ephemeral), log)
	}

	env, err := r.invokeWithin(ctx, cmd, in, label, log)
	if err != nil {
		if isValidation(err) {
			r.metrics.Interaction(metrics.OutcomeInvalid)
		} else {
			r.metrics.Interaction(metrics.OutcomeHandlerError)
		}
		return r.encode(interaction.Ephemeral(UserMessage(err)), log)
	}
	r.metrics.Interaction(metrics.OutcomeOK)
	return r.encode(env, log)
}

// invoke calls the handler, converting panics into errors. label names
// the command in metrics.
func (r *Router) invoke(ctx context.Context, cmd *commands.Command, in *interaction.Interaction, label string, log *zap.Logger) (env interaction.Envelope, err error) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
			log.Error("Command handler panicked",
				zap.Any("panic", p),
				zap.ByteString("stack", debug.Stack()))
		}
		r.metrics.ObserveCommand(label, time.Since(start))
		switch {
		case err == nil:
			log.Info("Command handled", zap.Duration("elapsed", time.Since(start)))
		case isValidation(err):
			log.Debug("Command options rejected", zap.Error(err))
		default:
			log.Warn("Command failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		}
	}()

	env, err = cmd.Handler(ctx, in, r.api)
	if err != nil {
		return interaction.Envelope{}, err
	}
	if env.Kind != interaction.KindMessage {
		return interaction.Envelope{}, fmt.Errorf("handler returned %s envelope", env.Kind)
	}
	if cmd.Ephemeral {
		env.Ephemeral = true
	}
	return env, nil
}

// invokeWithin runs a synchronous handler under the response budget. The
// reply is produced when the budget runs out even if the handler ignores
// its context; the handler keeps running until its REST calls return.
func (r *Router) invokeWithin(ctx context.Context, cmd *commands.Command, in *interaction.Interaction, label string, log *zap.Logger) (interaction.Envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, r.responseBudget)

	type outcome struct {
		env interaction.Envelope
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer cancel()
		env, err := r.invoke(ctx, cmd, in, label, log)
		done <- outcome{env: env, err: err}
	}()

	select {
	case o := <-done:
		return o.env, o.err
	case <-ctx.Done():
		select {
		case o := <-done:
			return o.env, o.err
		default:
		}
		log.Warn("Command exceeded response budget", zap.Duration("budget", r.responseBudget))
		return interaction.Envelope{}, ctx.Err()
	}
}

// startDeferred runs cmd in the background and edits the deferred reply
// with its result. It reports false once shutdown has begun.
func (r *Router) startDeferred(cmd *commands.Command, in *interaction.Interaction, label string, log *zap.Logger) bool {
	r.mu.Lock()
	if r.stopping {
		r.mu.Unlock()
		return false
	}
	r.inFlight.Add(1)
	r.mu.Unlock()

	r.metrics.DeferredStarted()
	go func() {
		defer r.inFlight.Done()
		defer r.metrics.DeferredFinished()

		ctx, cancel := context.WithTimeout(r.baseCtx, r.deferredTimeout)
		defer cancel()

		env, err := r.invoke(ctx, cmd, in, label, log)
		content, embeds := env.Content, env.Embeds
		if err != nil {
			content, embeds = UserMessage(err), nil
		}

		// The edit gets its own deadline so a handler that used up the
		// whole budget can still report the failure.
		editCtx, editCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer editCancel()
		if editErr := r.api.EditInteractionResponse(editCtx, in.Wire(), content, embeds); editErr != nil {
			log.Error("Failed to update deferred response", zap.Error(editErr))
		}
	}()
	return true
}

// Stop waits for deferred commands until ctx expires, then cancels the
// rest and returns without waiting for handlers that ignore cancellation.
func (r *Router) Stop(ctx context.Context) error {
	r.mu.Lock()
	r.stopping = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.inFlight.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		return ctx.Err()
	}
}

func (r *Router) encode(env interaction.Envelope, log *zap.Logger) Result {
	body, err := interaction.Encode(env)
	if err != nil {
		if log == nil {
			log = r.log.Logger
		}
		log.Error("Failed to encode response", zap.Error(err))
		body, _ = interaction.Encode(interaction.Ephemeral(msgInternal))
	}
	return Result{Status: http.StatusOK, Body: body}
}

func isValidation(err error) bool {
	var validation *commands.ValidationError
	return errors.As(err, &validation)
}

func errorResult(status int, message string) Result {
	body, _ := json.Marshal(map[string]string{"error": message})
	return Result{Status: status, Body: body}
}

// UserMessage turns a handler error into text that is safe to show:
// validation problems verbatim, Discord failures as operation and status,
// anything else as a generic message.
func UserMessage(err error) string {
	var validation *commands.ValidationError
	var apiErr *discord.APIError
	var msg string
	switch {
	case errors.As(err, &validation):
		msg = validation.Message
	case errors.As(err, &apiErr):
		msg = apiErr.UserMessage()
	case errors.Is(err, context.DeadlineExceeded):
		msg = msgTimeout
	default:
		msg = msgInternal
	}
	return Truncate(msg, ErrorMessageLimit)
}

// Truncate shortens s to at most limit runes, marking the cut with an ellipsis.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}
