package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/config"
	"github.com/spf13/cobra"
)

func setRequired(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("DATABASE_URL", filepath.Join(t.TempDir(), "relay.db"))
}

func noEnvFile(t *testing.T) []string {
	return []string{filepath.Join(t.TempDir(), "missing.env")}
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	c, err := config.Load(config.LoadOptions{EnvFiles: noEnvFile(t)})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.RegistryRefresh != 5*time.Minute {
		t.Errorf("RegistryRefresh = %s", c.RegistryRefresh)
	}
	if c.Workers != 8 || c.Lang != "en" || c.RpcRetry != 5 {
		t.Errorf("unexpected defaults %+v", c)
	}
	if c.WebhookMode() {
		t.Errorf("webhook mode must be off without WEBHOOK_URL")
	}
}

func TestLoadEnvironment(t *testing.T) {
	setRequired(t)
	t.Setenv("ADMIN_USER_ID", "1000000001")
	t.Setenv("WEBHOOK_URL", "https://relay.example.com/hook")
	t.Setenv("WEBHOOK_PORT", "8443")
	t.Setenv("API_ID", "123456")
	t.Setenv("API_HASH", "0123456789abcdef0123456789abcdef")
	t.Setenv("PHONE_NUMBER", "+12345678901")
	t.Setenv("REGISTRY_REFRESH", "30s")
	t.Setenv("LOG_LEVEL", "debug")

	c, err := config.Load(config.LoadOptions{EnvFiles: noEnvFile(t)})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.AdminUserID != 1000000001 || c.Webhook.Port != 8443 || c.APIID != 123456 {
		t.Fatalf("env not applied: %+v", c)
	}
	if !c.WebhookMode() || !c.HasFallbackSession() {
		t.Fatalf("expected webhook mode and fallback session")
	}
	if c.RegistryRefresh != 30*time.Second || c.Log.Level != "debug" {
		t.Fatalf("nested/duration keys not applied: %+v", c)
	}
	if len(c.WebhookSecret()) != 32 {
		t.Fatalf("unexpected secret %q", c.WebhookSecret())
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	content := "BOT_TOKEN=from-file\nDATABASE_URL=" + filepath.Join(dir, "x.db") + "\nSECRET_KEY=s3cret\n"
	if err := os.WriteFile(env, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"BOT_TOKEN", "DATABASE_URL", "SECRET_KEY"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	c, err := config.Load(config.LoadOptions{EnvFiles: []string{env}})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.BotToken != "from-file" || c.SecretKey != "s3cret" {
		t.Fatalf(".env values not loaded: %+v", c)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("WEBHOOK_URL", "https://x")
	_, err := config.Load(config.LoadOptions{EnvFiles: noEnvFile(t)})
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"BOT_TOKEN", "DATABASE_URL", "WEBHOOK_PORT"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestFlagsOverride(t *testing.T) {
	setRequired(t)
	t.Setenv("WORKERS", "2")
	cmd := &cobra.Command{Use: "x", Run: func(*cobra.Command, []string) {}}
	config.RegisterFlags(cmd)
	if err := cmd.ParseFlags([]string{"--workers", "16", "--env", noEnvFile(t)[0]}); err != nil {
		t.Fatal(err)
	}
	c, err := config.Load(config.OptionsFromCommand(cmd))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Workers != 16 {
		t.Fatalf("flag should override env, got %d", c.Workers)
	}
}
