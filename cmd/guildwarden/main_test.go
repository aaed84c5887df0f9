package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"guildwarden/pkg/config"
	"guildwarden/pkg/logger"
)

func TestServiceConfig_DefaultArguments(t *testing.T) {
	originalConfigPath := configPath
	t.Cleanup(func() { configPath = originalConfigPath })

	configPath = ""
	t.Setenv(config.ConfigPathEnv, "")

	got := ServiceConfig().Arguments
	want := []string{"serve"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected arguments %v, got %v", want, got)
	}
}

func TestServiceConfig_IncludesConfigFlag(t *testing.T) {
	originalConfigPath := configPath
	t.Cleanup(func() { configPath = originalConfigPath })

	configFile := filepath.Join(t.TempDir(), "guildwarden.yaml")
	configPath = configFile
	t.Setenv(config.ConfigPathEnv, "")

	got := ServiceConfig().Arguments
	want := []string{"-c", configFile, "serve"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected arguments %v, got %v", want, got)
	}
}

func TestServiceConfig_UsesConfigPathEnvWhenFlagNotProvided(t *testing.T) {
	originalConfigPath := configPath
	t.Cleanup(func() { configPath = originalConfigPath })

	configPath = ""
	configFile := filepath.Join(t.TempDir(), "env-config.yaml")
	t.Setenv(config.ConfigPathEnv, configFile)

	got := ServiceConfig().Arguments
	want := []string{"-c", configFile, "serve"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected arguments %v, got %v", want, got)
	}
}

func TestBuildRegistry(t *testing.T) {
	reg, err := buildRegistry(logger.NewNop())
	if err != nil {
		t.Fatalf("buildRegistry failed: %v", err)
	}
	if len(reg.ApplicationCommands()) == 0 {
		t.Fatal("expected built-in commands")
	}
	if _, ok := reg.Get("purge"); !ok {
		t.Fatal("purge command missing")
	}
}

func TestWriteDefinitions(t *testing.T) {
	reg, err := buildRegistry(logger.NewNop())
	if err != nil {
		t.Fatalf("buildRegistry failed: %v", err)
	}
	defs := reg.ApplicationCommands()

	var jsonOut bytes.Buffer
	if err := writeDefinitions(&jsonOut, defs, "json"); err != nil {
		t.Fatalf("json: %v", err)
	}
	var decoded []map[string]interface{}
	if err := json.Unmarshal(jsonOut.Bytes(), &decoded); err != nil {
		t.Fatalf("json output does not parse: %v", err)
	}
	if len(decoded) != len(defs) {
		t.Fatalf("expected %d definitions, got %d", len(defs), len(decoded))
	}

	var yamlOut bytes.Buffer
	if err := writeDefinitions(&yamlOut, defs, "YAML"); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	var fromYAML []map[string]interface{}
	if err := yaml.Unmarshal(yamlOut.Bytes(), &fromYAML); err != nil {
		t.Fatalf("yaml output does not parse: %v", err)
	}
	if len(fromYAML) != len(defs) || fromYAML[0]["name"] == nil {
		t.Fatalf("unexpected yaml output:\n%s", yamlOut.String())
	}
	if !strings.Contains(yamlOut.String(), "default_member_permissions") {
		t.Fatalf("yaml keys should follow Discord field names:\n%s", yamlOut.String())
	}

	if err := writeDefinitions(&bytes.Buffer{}, defs, "toml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
