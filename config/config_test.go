package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()

	if err := Load("does-not-exist.yaml"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if Conf.Server.Port != "3001" {
		t.Errorf("Expected default port 3001, got %q", Conf.Server.Port)
	}
	if Conf.Store.Type != "sqlite" {
		t.Errorf("Expected default store type sqlite, got %q", Conf.Store.Type)
	}
	if Conf.JWT.ExpireDays != 30 {
		t.Errorf("Expected default expiry 30 days, got %d", Conf.JWT.ExpireDays)
	}
	if Conf.Reply.Provider != "http" {
		t.Errorf("Expected default reply provider http, got %q", Conf.Reply.Provider)
	}
}

func TestLoad_EnvWithoutFile(t *testing.T) {
	viper.Reset()
	t.Setenv("SANCTUM_SERVER_PORT", "9999")
	t.Setenv("SANCTUM_JWT_SECRET", "env-secret")
	t.Setenv("SANCTUM_REPLY_PRIMARY_URL", "https://reply.example/api")

	if err := Load("does-not-exist.yaml"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if Conf.Server.Port != "9999" {
		t.Errorf("Expected env port 9999, got %q", Conf.Server.Port)
	}
	if Conf.JWT.Secret != "env-secret" {
		t.Errorf("Expected env jwt secret, got %q", Conf.JWT.Secret)
	}
	if Conf.Reply.PrimaryURL != "https://reply.example/api" {
		t.Errorf("Expected env primary URL, got %q", Conf.Reply.PrimaryURL)
	}
}

func TestLoad_FileAndEnvPrecedence(t *testing.T) {
	viper.Reset()

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "server:\n  port: \"4000\"\njwt:\n  secret: file-secret\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	t.Setenv("SANCTUM_JWT_SECRET", "env-secret")

	if err := Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if Conf.Server.Port != "4000" {
		t.Errorf("Expected file port 4000, got %q", Conf.Server.Port)
	}
	if Conf.JWT.Secret != "env-secret" {
		t.Errorf("Expected env to override file secret, got %q", Conf.JWT.Secret)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	viper.Reset()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if err := Load(path); err == nil {
		t.Error("Expected an error for a malformed config file")
	}
}
