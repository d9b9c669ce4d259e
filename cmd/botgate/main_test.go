package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"botgate/internal/adapter/control"
	"botgate/internal/domain"
	"botgate/internal/infra/config"
	"botgate/internal/usecase/eventbus"
)

func writeTestFile(t *testing.T, path, content string) error {
	t.Helper()
	return os.WriteFile(path, []byte(content), 0o600)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestBuildBots(t *testing.T) {
	bots, auto, err := buildBots([]config.BotConfig{
		{Name: "music", Token: "t1", Intents: []string{"guilds", "guild_messages"}, Owner: "alpha"},
		{Name: "mod", Token: "t2", Intents: []string{"1"}, Manual: true},
	})
	if err != nil {
		t.Fatalf("buildBots: %v", err)
	}
	if len(bots) != 2 {
		t.Fatalf("expected 2 bots, got %d", len(bots))
	}
	music := bots["music"]
	if music.ID.Token != "t1" || music.ID.Intents != 513 || music.Owner != "alpha" {
		t.Errorf("unexpected music bot: %+v", music)
	}
	if bots["mod"].Owner != "mod" {
		t.Errorf("owner should default to the bot name, got %q", bots["mod"].Owner)
	}
	if len(auto) != 1 || auto[0] != "music" {
		t.Errorf("only non-manual bots connect at startup, got %v", auto)
	}
}

func TestBuildBots_BadIntent(t *testing.T) {
	_, _, err := buildBots([]config.BotConfig{{Name: "x", Token: "t", Intents: []string{"nope"}}})
	if err == nil || !strings.Contains(err.Error(), "bot x") {
		t.Fatalf("expected intent error naming the bot, got %v", err)
	}
}

func TestInitStore(t *testing.T) {
	s, closeFn, err := initStore(config.StoreConfig{Backend: "none"})
	if err != nil || s != nil {
		t.Fatalf("none backend: store=%v err=%v", s, err)
	}
	if err := closeFn(); err != nil {
		t.Errorf("close: %v", err)
	}

	s, _, err = initStore(config.StoreConfig{Backend: "memory"})
	if err != nil || s == nil {
		t.Fatalf("memory backend: store=%v err=%v", s, err)
	}

	path := filepath.Join(t.TempDir(), "nested", "snapshots.db")
	s, closeFn, err = initStore(config.StoreConfig{Backend: "sqlite", Path: path})
	if err != nil {
		t.Fatalf("sqlite backend: %v", err)
	}
	defer closeFn()

	snap := domain.ResumeSnapshot{Key: "k", ResumeURL: "wss://resume", SessionToken: "s"}
	if err := s.Save(context.Background(), snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Load(context.Background(), "k")
	if err != nil || got == nil || got.ResumeURL != "wss://resume" {
		t.Fatalf("load: %+v %v", got, err)
	}
}

func TestLogConsumer(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	seq := uint64(42)

	err := logConsumer(log, "alpha").Forward(context.Background(), domain.Delivery{
		Session:  domain.SessionID{Token: "secret-token", Intents: 1},
		Owner:    "alpha",
		Event:    "MESSAGE_CREATE",
		Sequence: &seq,
	})
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"owner=alpha", "event=MESSAGE_CREATE", "seq=42"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %q", out, want)
		}
	}
	if strings.Contains(out, "secret-token") {
		t.Error("log output leaked the bot token")
	}
}

func TestInitRuntime(t *testing.T) {
	cfg := config.Defaults()
	cfg.Store.Backend = "memory"
	cfg.Resolver.Static = true
	cfg.Forward.LogEvents = true
	cfg.Bots = []config.BotConfig{
		{Name: "music", Token: "t1", Intents: []string{"guilds"}, Owner: "alpha"},
		{Name: "radio", Token: "t2", Intents: []string{"guilds"}, Owner: "alpha"},
		{Name: "mod", Token: "t3", Manual: true},
	}

	log := quietLogger()
	bus := eventbus.New(log)
	defer bus.Close()

	rt, cleanup, err := initRuntime(cfg, bus, log)
	if err != nil {
		t.Fatalf("initRuntime: %v", err)
	}
	if rt.Control != nil {
		t.Error("control server should be nil when disabled")
	}
	if rt.Directory == nil {
		t.Fatal("expected a directory when log_events is set")
	}
	if owners := rt.Directory.Owners(); len(owners) != 2 || owners[0] != "alpha" || owners[1] != "mod" {
		t.Errorf("unexpected owners: %v", owners)
	}
	if len(rt.AutoConnect) != 2 {
		t.Errorf("expected 2 startup bots, got %v", rt.AutoConnect)
	}
	if n := len(rt.Manager.Sessions()); n != 0 {
		t.Errorf("no session should exist before connect, got %d", n)
	}
	if err := cleanup(context.Background()); err != nil {
		t.Errorf("cleanup: %v", err)
	}
}

func TestInitRuntime_WithControl(t *testing.T) {
	cfg := config.Defaults()
	cfg.Store.Backend = "none"
	cfg.Resolver.Static = true
	cfg.Control.Enabled = true
	cfg.Control.Addr = "127.0.0.1:0"
	cfg.Control.Tokens = []config.TokenConfig{{Name: "ops", Token: "tok", Roles: []string{"admin"}}}

	log := quietLogger()
	bus := eventbus.New(log)
	defer bus.Close()

	rt, cleanup, err := initRuntime(cfg, bus, log)
	if err != nil {
		t.Fatalf("initRuntime: %v", err)
	}
	defer cleanup(context.Background())

	if rt.Control == nil {
		t.Fatal("expected a control server")
	}
	if rt.Directory != nil {
		t.Error("directory should be nil without log_events")
	}
}

type recordingSessions struct {
	control.SessionService
	connected []domain.SessionID
	failFor   string
}

func (r *recordingSessions) Connect(_ context.Context, id domain.SessionID, _ string) error {
	if id.Token == r.failFor {
		return errors.New("boom")
	}
	r.connected = append(r.connected, id)
	return nil
}

func TestConnectBots(t *testing.T) {
	bots := map[string]control.Bot{
		"a": {ID: domain.SessionID{Token: "ta", Intents: 1}, Owner: "a"},
		"b": {ID: domain.SessionID{Token: "tb", Intents: 1}, Owner: "b"},
	}
	rec := &recordingSessions{failFor: "tb"}

	n := connectBots(context.Background(), rec, bots, []string{"a", "b", "missing"}, quietLogger())
	if n != 1 {
		t.Errorf("expected 1 successful connect, got %d", n)
	}
	if len(rec.connected) != 1 || rec.connected[0].Token != "ta" {
		t.Errorf("unexpected connects: %v", rec.connected)
	}
}

func TestRunValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "botgate.yaml")
	err := writeTestFile(t, path, `
store:
  backend: memory
bots:
  - name: music
    token: t1
    intents: [guilds, guild_messages]
  - name: mod
    token: t2
    manual: true
`)
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := runValidate(&out, path); err != nil {
		t.Fatalf("runValidate: %v", err)
	}
	s := out.String()
	for _, want := range []string{"config OK", "bots:     2 (1 connect at startup)", "- music owner=music", "control:  disabled"} {
		if !strings.Contains(s, want) {
			t.Errorf("output missing %q:\n%s", want, s)
		}
	}
	if strings.Contains(s, "t1") {
		t.Error("validate output leaked a bot token")
	}
}

func TestRunValidate_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "botgate.yaml")
	if err := writeTestFile(t, path, "bots:\n  - name: x\n"); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	err := runValidate(&out, path)
	var ve *config.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestRunEncrypt(t *testing.T) {
	t.Setenv(config.MasterKeyEnv, "passphrase")

	var out bytes.Buffer
	if err := runEncrypt(&out, []string{"bot-token"}); err != nil {
		t.Fatalf("runEncrypt: %v", err)
	}
	enc := strings.TrimSpace(out.String())
	if !strings.HasPrefix(enc, "enc:") {
		t.Fatalf("expected enc: prefix, got %q", enc)
	}
	plain, err := config.DecryptValue(enc, "passphrase")
	if err != nil || plain != "bot-token" {
		t.Errorf("round trip: %q %v", plain, err)
	}
}

func TestRunEncrypt_NoMasterKey(t *testing.T) {
	t.Setenv(config.MasterKeyEnv, "")
	if err := runEncrypt(&bytes.Buffer{}, []string{"x"}); err == nil {
		t.Fatal("expected error without master key")
	}
}

func TestSortedBotNames(t *testing.T) {
	names := sortedBotNames(map[string]control.Bot{"c": {}, "a": {}, "b": {}})
	if strings.Join(names, ",") != "a,b,c" {
		t.Errorf("unexpected order: %v", names)
	}
}

func TestConfigPath(t *testing.T) {
	orig := os.Args
	defer func() { os.Args = orig }()

	os.Args = []string{"botgate", "serve", "--config", "/etc/bg.yaml"}
	if got := configPath(); got != "/etc/bg.yaml" {
		t.Errorf("got %q", got)
	}
	os.Args = []string{"botgate", "--config=/tmp/x.yaml"}
	if got := configPath(); got != "/tmp/x.yaml" {
		t.Errorf("got %q", got)
	}
	os.Args = []string{"botgate"}
	t.Setenv("BOTGATE_CONFIG", "")
	if got := configPath(); got != "botgate.yaml" {
		t.Errorf("got %q", got)
	}
}
