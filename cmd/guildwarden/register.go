package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"guildwarden/pkg/commands"
	"guildwarden/pkg/config"
	"guildwarden/pkg/discord"
	"guildwarden/pkg/handlers"
	"guildwarden/pkg/logger"
)

const registerTimeout = 30 * time.Second

var (
	registerGuild  string
	registerDryRun bool
	commandsFormat string
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Upload slash command definitions to Discord",
	Long: `Overwrite the application's slash commands with the built-in set.

Without --guild the commands are registered globally, which can take up to
an hour to reach every client. With --guild they are registered for that
server only and appear immediately.`,
	RunE: runRegister,
}

var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "Print slash command definitions",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := buildRegistry(logger.NewNop())
		if err != nil {
			return err
		}
		return writeDefinitions(cmd.OutOrStdout(), reg.ApplicationCommands(), commandsFormat)
	},
}

func init() {
	registerCmd.Flags().StringVar(&registerGuild, "guild", "", "register for one guild instead of globally")
	registerCmd.Flags().BoolVar(&registerDryRun, "dry-run", false, "print the payload instead of sending it")
	commandsCmd.Flags().StringVarP(&commandsFormat, "format", "f", "yaml", "output format: yaml or json")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.NewLoader().Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildRegistry registers the built-in commands without any runtime
// dependencies; handlers are never invoked here.
func buildRegistry(log *logger.Logger) (*commands.Registry, error) {
	reg := commands.NewRegistry()
	if err := handlers.New(reg, nil, nil, log).Register(); err != nil {
		return nil, err
	}
	return reg, nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Logger.ToLoggerConfig())
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	reg, err := buildRegistry(log)
	if err != nil {
		return err
	}
	defs := reg.ApplicationCommands()

	if registerDryRun {
		return writeDefinitions(cmd.OutOrStdout(), defs, "json")
	}
	if cfg.Discord.Token == "" || cfg.Discord.ApplicationID == "" {
		return fmt.Errorf("discord.token and discord.application_id are required to register commands")
	}

	guild := registerGuild
	if guild == "" {
		guild = cfg.Discord.GuildID
	}
	// Registration runs outside any interaction, so the short
	// interaction-path timeout does not apply.
	client, err := discord.NewClient(cfg.Discord.Token, registerTimeout, log.Named("discord"))
	if err != nil {
		return err
	}
	out, err := client.OverwriteCommands(context.Background(), cfg.Discord.ApplicationID, guild, defs)
	if err != nil {
		return err
	}

	scope := "globally"
	if guild != "" {
		scope = "for guild " + guild
	}
	log.Info("Registered commands", zap.Int("count", len(out)), zap.String("guild_id", guild))
	fmt.Fprintf(cmd.OutOrStdout(), "Registered %d commands %s.\n", len(out), scope)
	return nil
}

// writeDefinitions prints command definitions. YAML keys follow the JSON
// field names Discord uses.
func writeDefinitions(w io.Writer, defs []*discordgo.ApplicationCommand, format string) error {
	data, err := json.MarshalIndent(defs, "", "  ")
	if err != nil {
		return err
	}
	switch strings.ToLower(format) {
	case "json":
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml", "yml":
		var generic interface{}
		if err := json.Unmarshal(data, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (want yaml or json)", format)
	}
}
