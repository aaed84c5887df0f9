package commands

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"guildwarden/pkg/discord"
	"guildwarden/pkg/interaction"
)

// ErrDuplicateCommand is returned when a name is registered twice.
var ErrDuplicateCommand = errors.New("command already registered")

var namePattern = regexp.MustCompile(`^[-_a-z0-9]{1,32}$`)

// Registry maps command names to commands. It is filled at start-up and
// read concurrently afterwards.
type Registry struct {
	commands map[string]*Command
	fallback *Command
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry with the default unknown-command fallback.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]*Command),
		fallback: &Command{
			Name:      "unknown",
			Ephemeral: true,
			Handler:   unknownCommand,
		},
	}
}

func unknownCommand(ctx context.Context, in *interaction.Interaction, api discord.API) (interaction.Envelope, error) {
	return interaction.Ephemeral("Unknown command."), nil
}

// Register adds a top-level command. Subcommands inherit GuildOnly,
// Deferred and Ephemeral from their parent.
func (r *Registry) Register(cmd *Command) error {
	if err := validate(cmd, true); err != nil {
		return err
	}
	for _, sub := range cmd.Subcommands {
		sub.GuildOnly = sub.GuildOnly || cmd.GuildOnly
		sub.Deferred = sub.Deferred || cmd.Deferred
		sub.Ephemeral = sub.Ephemeral || cmd.Ephemeral
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[cmd.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateCommand, cmd.Name)
	}
	r.commands[cmd.Name] = cmd
	return nil
}

// MustRegister registers every command or panics. Used for static command sets.
func (r *Registry) MustRegister(cmds ...*Command) {
	for _, cmd := range cmds {
		if err := r.Register(cmd); err != nil {
			panic(err)
		}
	}
}

// SetFallback replaces the handler used for unknown command paths.
func (r *Registry) SetFallback(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = &Command{Name: "unknown", Ephemeral: true, Handler: h}
}

func validate(cmd *Command, topLevel bool) error {
	if cmd == nil {
		return fmt.Errorf("command cannot be nil")
	}
	if !namePattern.MatchString(cmd.Name) {
		return fmt.Errorf("invalid command name %q", cmd.Name)
	}
	if cmd.Description == "" || len([]rune(cmd.Description)) > 100 {
		return fmt.Errorf("command %s: description must be 1-100 characters", cmd.Name)
	}
	if (cmd.Handler == nil) == (len(cmd.Subcommands) == 0) {
		return fmt.Errorf("command %s: needs either a handler or subcommands", cmd.Name)
	}
	if !topLevel && len(cmd.Subcommands) > 0 {
		return fmt.Errorf("command %s: subcommands cannot be nested", cmd.Name)
	}
	if len(cmd.Subcommands) > 0 && len(cmd.Options) > 0 {
		return fmt.Errorf("command %s: options belong on subcommands", cmd.Name)
	}

	seen := make(map[string]bool)
	for _, opt := range cmd.Options {
		if !namePattern.MatchString(opt.Name) || seen[opt.Name] {
			return fmt.Errorf("command %s: invalid or duplicate option %q", cmd.Name, opt.Name)
		}
		seen[opt.Name] = true
	}
	for _, sub := range cmd.Subcommands {
		if err := validate(sub, false); err != nil {
			return fmt.Errorf("%s: %w", cmd.Name, err)
		}
		if seen[sub.Name] {
			return fmt.Errorf("%w: %s %s", ErrDuplicateCommand, cmd.Name, sub.Name)
		}
		seen[sub.Name] = true
	}
	return nil
}

// Get retrieves a top-level command by exact name.
func (r *Registry) Get(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, exists := r.commands[name]
	return cmd, exists
}

// Resolve returns the command that handles path. Names match exactly and
// case-sensitively. Unknown names and unknown subcommands resolve to the
// fallback, so the result is never nil.
func (r *Registry) Resolve(path []string) (cmd *Command, known bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(path) == 0 {
		return r.fallback, false
	}
	root, ok := r.commands[path[0]]
	if !ok {
		return r.fallback, false
	}
	if len(root.Subcommands) == 0 {
		if len(path) != 1 {
			return r.fallback, false
		}
		return root, true
	}
	if len(path) != 2 {
		return r.fallback, false
	}
	for _, sub := range root.Subcommands {
		if sub.Name == path[1] {
			return sub, true
		}
	}
	return r.fallback, false
}

// List returns all top-level commands sorted by name.
func (r *Registry) List() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cmds := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds
}
