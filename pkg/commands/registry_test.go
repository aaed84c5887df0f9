package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"

	"guildwarden/pkg/discord"
	"guildwarden/pkg/interaction"
)

func reply(text string) Handler {
	return func(ctx context.Context, in *interaction.Interaction, api discord.API) (interaction.Envelope, error) {
		return interaction.Message(text), nil
	}
}

func invoke(t *testing.T, cmd *Command) string {
	t.Helper()
	env, err := cmd.Handler(context.Background(), &interaction.Interaction{}, nil)
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return env.Content
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	err := r.Register(&Command{Name: "ping", Description: "Pong", Handler: reply("pong")})
	if err != nil {
		t.Fatalf("register ping: %v", err)
	}
	err = r.Register(&Command{
		Name:        "config",
		Description: "Server settings",
		GuildOnly:   true,
		Subcommands: []*Command{
			{Name: "show", Description: "Show settings", Handler: reply("show")},
			{Name: "log-channel", Description: "Set log channel", Handler: reply("log")},
		},
	})
	if err != nil {
		t.Fatalf("register config: %v", err)
	}
	return r
}

func TestResolveExactMatch(t *testing.T) {
	r := newTestRegistry(t)

	cmd, known := r.Resolve([]string{"ping"})
	if !known || invoke(t, cmd) != "pong" {
		t.Fatalf("ping did not resolve")
	}

	cmd, known = r.Resolve([]string{"config", "log-channel"})
	if !known || invoke(t, cmd) != "log" {
		t.Fatalf("config log-channel did not resolve")
	}
	if !cmd.GuildOnly {
		t.Fatalf("subcommand should inherit GuildOnly")
	}
}

func TestResolveUnknownFallsBack(t *testing.T) {
	r := newTestRegistry(t)

	paths := [][]string{
		nil,
		{"Ping"},
		{"nope"},
		{"config"},
		{"config", "missing"},
		{"ping", "extra"},
	}
	for _, path := range paths {
		cmd, known := r.Resolve(path)
		if known {
			t.Errorf("%v: expected unknown", path)
		}
		env, err := cmd.Handler(context.Background(), &interaction.Interaction{}, nil)
		if err != nil {
			t.Fatalf("%v: fallback returned error: %v", path, err)
		}
		if !env.Ephemeral || env.Content != "Unknown command." {
			t.Errorf("%v: unexpected fallback envelope %+v", path, env)
		}
	}
}

func TestRegisterRejectsBadCommands(t *testing.T) {
	r := newTestRegistry(t)

	err := r.Register(&Command{Name: "ping", Description: "again", Handler: reply("x")})
	if !errors.Is(err, ErrDuplicateCommand) {
		t.Fatalf("expected ErrDuplicateCommand, got %v", err)
	}

	bad := []*Command{
		nil,
		{Name: "Upper", Description: "x", Handler: reply("x")},
		{Name: "nodesc", Handler: reply("x")},
		{Name: "nohandler", Description: "x"},
		{Name: "both", Description: "x", Handler: reply("x"), Subcommands: []*Command{{Name: "a", Description: "a", Handler: reply("a")}}},
		{Name: "dupsub", Description: "x", Subcommands: []*Command{
			{Name: "a", Description: "a", Handler: reply("a")},
			{Name: "a", Description: "a", Handler: reply("a")},
		}},
		{Name: "dupopt", Description: "x", Handler: reply("x"), Options: []Option{
			{Name: "user", Type: discordgo.ApplicationCommandOptionUser, Description: "u"},
			{Name: "user", Type: discordgo.ApplicationCommandOptionUser, Description: "u"},
		}},
	}
	for _, cmd := range bad {
		if err := r.Register(cmd); err == nil {
			t.Errorf("expected error registering %+v", cmd)
		}
	}
}

func TestListSorted(t *testing.T) {
	r := newTestRegistry(t)
	list := r.List()
	if len(list) != 2 || list[0].Name != "config" || list[1].Name != "ping" {
		t.Fatalf("unexpected list order")
	}
}

func TestApplicationCommands(t *testing.T) {
	r := newTestRegistry(t)
	err := r.Register(&Command{
		Name:                     "purge",
		Description:              "Delete recent messages",
		DefaultMemberPermissions: Permissions(discordgo.PermissionManageMessages),
		Options: []Option{{
			Type:        discordgo.ApplicationCommandOptionInteger,
			Name:        "count",
			Description: "How many",
			Required:    true,
			MinValue:    Float(1),
			MaxValue:    100,
		}},
		Handler: reply("purged"),
	})
	if err != nil {
		t.Fatalf("register purge: %v", err)
	}

	cmds := r.ApplicationCommands()
	if len(cmds) != 3 {
		t.Fatalf("expected 3 commands, got %d", len(cmds))
	}
	config, purge := cmds[0], cmds[2]

	if config.Contexts == nil || len(*config.Contexts) != 1 || (*config.Contexts)[0] != discordgo.InteractionContextGuild {
		t.Fatalf("guild-only command should be limited to guild context")
	}
	if len(config.Options) != 2 || config.Options[0].Type != discordgo.ApplicationCommandOptionSubCommand {
		t.Fatalf("subcommands not exported: %+v", config.Options)
	}
	if purge.DefaultMemberPermissions == nil || *purge.DefaultMemberPermissions != discordgo.PermissionManageMessages {
		t.Fatalf("permissions not exported")
	}
	opt := purge.Options[0]
	if !opt.Required || opt.MinValue == nil || *opt.MinValue != 1 || opt.MaxValue != 100 {
		t.Fatalf("option constraints not exported: %+v", opt)
	}
}
