package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Gateway.DefaultURL != "wss://gateway.discord.gg" {
		t.Errorf("DefaultURL = %q", cfg.Gateway.DefaultURL)
	}
	if cfg.Gateway.Send.Limit != 120 || cfg.Gateway.Send.Window != time.Minute {
		t.Errorf("Send = %+v, want 120 per 1m", cfg.Gateway.Send)
	}
	if !cfg.Gateway.Heartbeat.ZombieDetection {
		t.Error("zombie detection should default on")
	}
	if cfg.Store.Backend != "sqlite" {
		t.Errorf("Store.Backend = %q, want sqlite", cfg.Store.Backend)
	}
	if cfg.Logger.Level != "info" {
		t.Errorf("Logger.Level = %q, want %q", cfg.Logger.Level, "info")
	}
}

func TestLoadNonExistentReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.Driver != "nhooyr" {
		t.Errorf("expected defaults, got Driver=%q", cfg.Gateway.Driver)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
logger:
  level: "debug"
  format: "json"
gateway:
  driver: "gorilla"
  send:
    limit: 60
    window: 30s
  retry:
    initial: 2s
    max: 1m
resolver:
  static: true
store:
  backend: "memory"
control:
  enabled: true
  addr: "127.0.0.1:9000"
  tokens:
    - name: "ops"
      token: "secret"
      roles: ["admin"]
bots:
  - name: "music"
    token: "bot-token"
    intents: ["guilds", "guild_voice_states"]
  - name: "mod"
    token: "mod-token"
    intents: ["513"]
    owner: "moderation"
    manual: true
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.Driver != "gorilla" {
		t.Errorf("Driver = %q", cfg.Gateway.Driver)
	}
	if cfg.Gateway.Send.Limit != 60 || cfg.Gateway.Send.Window != 30*time.Second {
		t.Errorf("Send = %+v", cfg.Gateway.Send)
	}
	// Unset fields keep their defaults.
	if cfg.Gateway.Send.Burst != 120 {
		t.Errorf("Send.Burst = %d, want default 120", cfg.Gateway.Send.Burst)
	}
	if cfg.Gateway.Retry.Initial != 2*time.Second {
		t.Errorf("Retry.Initial = %v", cfg.Gateway.Retry.Initial)
	}
	if !cfg.Resolver.Static {
		t.Error("Resolver.Static should be true")
	}
	if len(cfg.Control.Tokens) != 1 || cfg.Control.Tokens[0].Roles[0] != "admin" {
		t.Errorf("Control.Tokens = %+v", cfg.Control.Tokens)
	}
	if len(cfg.Bots) != 2 {
		t.Fatalf("Bots = %+v", cfg.Bots)
	}
	if cfg.Bots[0].Owner != "music" || cfg.Bots[1].Owner != "moderation" {
		t.Errorf("owners = %q, %q", cfg.Bots[0].Owner, cfg.Bots[1].Owner)
	}
	if !cfg.Bots[1].Manual {
		t.Error("mod should be manual")
	}
}

func TestLoadValidationFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
gateway:
  driver: "curl"
bots:
  - name: "x"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	if len(ve.Errors) != 2 {
		t.Errorf("errors = %v, want driver and token problems", ve.Errors)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BOTGATE_LOGGER_LEVEL", "debug")
	t.Setenv("BOTGATE_GATEWAY_DRIVER", "gorilla")
	t.Setenv("BOTGATE_GATEWAY_ZOMBIE_DETECTION", "false")
	t.Setenv("BOTGATE_GATEWAY_SEND_LIMIT", "10")
	t.Setenv("BOTGATE_RESOLVER_TIMEOUT", "3s")
	t.Setenv("BOTGATE_STORE_BACKEND", "memory")
	t.Setenv("BOTGATE_NATS_URL", "nats://127.0.0.1:4222")
	t.Setenv("BOTGATE_CONTROL_ENABLED", "true")
	t.Setenv("BOTGATE_CONTROL_ORIGINS", "example.com, *.example.org ,")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Logger.Level != "debug" {
		t.Errorf("Logger.Level = %q, want %q", cfg.Logger.Level, "debug")
	}
	if cfg.Gateway.Driver != "gorilla" {
		t.Errorf("Driver = %q", cfg.Gateway.Driver)
	}
	if cfg.Gateway.Heartbeat.ZombieDetection {
		t.Error("ZombieDetection should be off")
	}
	if cfg.Gateway.Send.Limit != 10 {
		t.Errorf("Send.Limit = %d", cfg.Gateway.Send.Limit)
	}
	if cfg.Resolver.Timeout != 3*time.Second {
		t.Errorf("Resolver.Timeout = %v", cfg.Resolver.Timeout)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("Store.Backend = %q", cfg.Store.Backend)
	}
	if cfg.Forward.NATS.URL != "nats://127.0.0.1:4222" {
		t.Errorf("NATS.URL = %q", cfg.Forward.NATS.URL)
	}
	if !cfg.Control.Enabled {
		t.Error("Control.Enabled should be true")
	}
	if got := strings.Join(cfg.Control.Origins, "|"); got != "example.com|*.example.org" {
		t.Errorf("Origins = %q", got)
	}
}

func TestEnvOverridesIgnoresBadNumbers(t *testing.T) {
	t.Setenv("BOTGATE_GATEWAY_SEND_LIMIT", "lots")
	t.Setenv("BOTGATE_RESOLVER_TIMEOUT", "soon")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)
	if cfg.Gateway.Send.Limit != 120 || cfg.Resolver.Timeout != 10*time.Second {
		t.Errorf("defaults changed: send %d, timeout %v", cfg.Gateway.Send.Limit, cfg.Resolver.Timeout)
	}
}

func TestEnvControlToken(t *testing.T) {
	t.Setenv("BOTGATE_CONTROL_TOKEN", "from-env")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)
	if len(cfg.Control.Tokens) != 1 || cfg.Control.Tokens[0].Name != "env" || cfg.Control.Tokens[0].Roles[0] != "admin" {
		t.Fatalf("Tokens = %+v", cfg.Control.Tokens)
	}

	// Applying again must not duplicate the entry.
	ApplyEnvOverrides(cfg)
	if len(cfg.Control.Tokens) != 1 {
		t.Errorf("Tokens = %+v, want a single entry", cfg.Control.Tokens)
	}
}

func TestEnvBotToken(t *testing.T) {
	t.Setenv("BOTGATE_BOT_MUSIC_BOT_TOKEN", "env-token")
	t.Setenv("BOTGATE_BOT_MOD_TOKEN", "ignored")

	cfg := Defaults()
	cfg.Bots = []BotConfig{
		{Name: "music-bot"},
		{Name: "mod", Token: "file-token"},
	}
	ApplyEnvOverrides(cfg)

	if cfg.Bots[0].Token != "env-token" {
		t.Errorf("music-bot token = %q, want env-token", cfg.Bots[0].Token)
	}
	if cfg.Bots[1].Token != "file-token" {
		t.Errorf("mod token = %q, file value should win", cfg.Bots[1].Token)
	}
}

func TestBotTokenEnv(t *testing.T) {
	tests := map[string]string{
		"music":     "BOTGATE_BOT_MUSIC_TOKEN",
		"music-bot": "BOTGATE_BOT_MUSIC_BOT_TOKEN",
		"Mod 2":     "BOTGATE_BOT_MOD_2_TOKEN",
	}
	for name, want := range tests {
		if got := BotTokenEnv(name); got != want {
			t.Errorf("BotTokenEnv(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	passphrase := "test-passphrase-123"
	plaintext := "MTA1.bot.token"

	encrypted, err := EncryptValue(plaintext, passphrase)
	if err != nil {
		t.Fatalf("EncryptValue: %v", err)
	}

	decrypted, err := DecryptValue(encrypted, passphrase)
	if err != nil {
		t.Fatalf("DecryptValue: %v", err)
	}
	if decrypted != plaintext {
		t.Errorf("got %q, want %q", decrypted, plaintext)
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	encrypted, err := EncryptValue("secret", "correct-pass")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := DecryptValue(encrypted, "wrong-pass"); err == nil {
		t.Error("expected error with wrong passphrase")
	}
}

func TestDecryptValueMalformed(t *testing.T) {
	tests := map[string]string{
		"no separator":   "deadbeef",
		"bad salt":       "zz:aabb",
		"bad ciphertext": "aabb:zz",
		"too short":      "aabbccddee112233aabbccddee112233:aabb",
	}
	for name, in := range tests {
		if _, err := DecryptValue(in, "passphrase"); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestDecryptSecrets(t *testing.T) {
	passphrase := "test-config-key"
	enc := func(s string) string {
		v, err := EncryptValue(s, passphrase)
		if err != nil {
			t.Fatalf("EncryptValue: %v", err)
		}
		return "enc:" + v
	}

	cfg := Defaults()
	cfg.Bots = []BotConfig{
		{Name: "music", Token: enc("bot-secret")},
		{Name: "plain", Token: "plain-token"},
	}
	cfg.Control.Tokens = []TokenConfig{{Name: "ops", Token: enc("ops-secret")}}
	cfg.Forward.NATS.Token = enc("nats-secret")

	if err := decryptSecrets(cfg, passphrase); err != nil {
		t.Fatalf("decryptSecrets: %v", err)
	}
	if cfg.Bots[0].Token != "bot-secret" {
		t.Errorf("bot token = %q", cfg.Bots[0].Token)
	}
	if cfg.Bots[1].Token != "plain-token" {
		t.Errorf("plain token changed to %q", cfg.Bots[1].Token)
	}
	if cfg.Control.Tokens[0].Token != "ops-secret" {
		t.Errorf("control token = %q", cfg.Control.Tokens[0].Token)
	}
	if cfg.Forward.NATS.Token != "nats-secret" {
		t.Errorf("nats token = %q", cfg.Forward.NATS.Token)
	}
}

func TestDecryptSecretsInvalidCiphertext(t *testing.T) {
	cfg := Defaults()
	cfg.Bots = []BotConfig{{Name: "music", Token: "enc:notvalidhex"}}

	err := decryptSecrets(cfg, "passphrase")
	if err == nil || !strings.Contains(err.Error(), "bot music token") {
		t.Errorf("err = %v, want bot music token error", err)
	}
}

func TestLoadWithMasterKey(t *testing.T) {
	passphrase := "test-load-key"
	encrypted, err := EncryptValue("real-bot-token", passphrase)
	if err != nil {
		t.Fatalf("EncryptValue: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
bots:
  - name: "music"
    token: "enc:` + encrypted + `"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(MasterKeyEnv, passphrase)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Bots[0].Token != "real-bot-token" {
		t.Errorf("Token = %q", cfg.Bots[0].Token)
	}
}

func TestLoadEncryptedWithoutMasterKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
bots:
  - name: "music"
    token: "enc:aabb:ccdd"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(MasterKeyEnv, "")
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), MasterKeyEnv) {
		t.Errorf("err = %v, want hint about %s", err, MasterKeyEnv)
	}
}

func TestLoadDecryptSecretsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
bots:
  - name: "music"
    token: "enc:invalid-not-hex"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(MasterKeyEnv, "some-passphrase")
	if _, err := Load(path); err == nil {
		t.Error("expected error from decrypt secrets")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("invalid: [yaml: bad"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestValidatePermissions(t *testing.T) {
	dir := t.TempDir()

	for _, tt := range []struct {
		mode os.FileMode
		ok   bool
	}{
		{0600, true},
		{0644, true},
		{0666, false},
		{0620, false},
	} {
		path := filepath.Join(dir, tt.mode.String()+".yaml")
		if err := os.WriteFile(path, []byte("test"), 0600); err != nil {
			t.Fatal(err)
		}
		if err := os.Chmod(path, tt.mode); err != nil {
			t.Fatal(err)
		}
		err := validatePermissions(path)
		if tt.ok && err != nil {
			t.Errorf("%o should pass: %v", tt.mode, err)
		}
		if !tt.ok && err == nil {
			t.Errorf("%o should fail", tt.mode)
		}
	}

	if err := validatePermissions(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for non-existent file")
	}
}
