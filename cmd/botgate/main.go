package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"botgate/internal/adapter/control"
	"botgate/internal/infra/config"
	"botgate/internal/infra/logger"
	"botgate/internal/infra/tracer"
	"botgate/internal/usecase/eventbus"
)

func main() {
	// Handle help flag first
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		}
	}

	if len(os.Args) < 2 || strings.HasPrefix(os.Args[1], "-") {
		if err := runServe(); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
		return
	}

	switch os.Args[1] {
	case "serve":
		if err := runServe(); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
	case "validate":
		if err := runValidate(os.Stdout, configPath()); err != nil {
			fmt.Fprintf(os.Stderr, "validate: %v\n", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("botgate %s\n", control.Version)
	case "encrypt":
		if err := runEncrypt(os.Stdout, os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "encrypt: %v\n", err)
			os.Exit(1)
		}
	case "doctor":
		if err := runDoctor(); err != nil {
			fmt.Fprintf(os.Stderr, "doctor: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'botgate --help' for usage information.\n", os.Args[1])
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`botgate - Discord Gateway session manager for many bots

USAGE:
    botgate [COMMAND] [FLAGS]

COMMANDS:
    serve       Connect configured bots and serve the control API (default)
    validate    Load and validate the config, then print a summary
    encrypt     Encrypt a secret for use as an enc: config value
                Reads the value from stdin unless given as an argument
    doctor      Run health checks on your setup
    version     Print the version

FLAGS:
    -h, --help         Show this help message
    --config PATH      Specify config file path (default: ./botgate.yaml)

CONFIGURATION:
    Config file: ./botgate.yaml
    Environment: BOTGATE_* variables override config
    Bot tokens:  BOTGATE_BOT_<NAME>_TOKEN
    Secrets:     BOTGATE_MASTER_KEY decrypts enc: values

EXAMPLES:
    botgate                                # Serve with botgate.yaml
    botgate --config /etc/botgate.yaml     # Serve with a custom config
    botgate validate                       # Check the config
    BOTGATE_MASTER_KEY=... botgate encrypt # Encrypt a bot token`)
}

func runServe() error {
	// 1. Config
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// 2. Logger & Tracer
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx := context.Background()
	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer, control.Version)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(ctx)

	// 3. Event bus
	bus := eventbus.New(log)
	defer bus.Close()

	// 4. Runtime (transport, store, forwarders, manager, control API)
	rt, runtimeCleanup, err := initRuntime(cfg, bus, log)
	if err != nil {
		return fmt.Errorf("runtime: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := runtimeCleanup(shutdownCtx); err != nil {
			log.Error("runtime cleanup error", "error", err)
		}
	}()

	// 5. Graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 2)

	// 6. Route transport events
	go func() {
		if err := rt.Manager.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("session manager: %w", err)
		}
	}()

	// 7. Start control API
	if rt.Control != nil {
		go func() {
			if err := rt.Control.Start(ctx); err != nil {
				errCh <- fmt.Errorf("control server: %w", err)
			}
		}()
		select {
		case <-rt.Control.Ready():
		case err := <-errCh:
			return err
		}
	}

	// 8. Start scheduler
	if err := rt.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	// 9. Connect bots
	connected := connectBots(ctx, rt.Manager, rt.Bots, rt.AutoConnect, log)

	controlAddr := ""
	if rt.Control != nil {
		controlAddr = rt.Control.BoundAddr()
	}
	log.Info("botgate started",
		"version", control.Version,
		"bots", len(rt.Bots),
		"connecting", connected,
		"store", cfg.Store.Backend,
		"control", controlAddr,
		"nats", cfg.Forward.NATS.URL != "",
	)

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		return nil
	case err := <-errCh:
		return err
	}
}

// runValidate loads the config and prints what serve would start.
func runValidate(w io.Writer, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	bots, auto, err := buildBots(cfg.Bots)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "config OK: %s\n", path)
	fmt.Fprintf(w, "  bots:     %d (%d connect at startup)\n", len(bots), len(auto))
	for _, name := range sortedBotNames(bots) {
		b := bots[name]
		fmt.Fprintf(w, "    - %s owner=%s session=%s\n", name, b.Owner, b.ID.Fingerprint())
	}
	fmt.Fprintf(w, "  store:    %s\n", cfg.Store.Backend)
	if cfg.Control.Enabled {
		fmt.Fprintf(w, "  control:  %s (%d tokens)\n", cfg.Control.Addr, len(cfg.Control.Tokens))
	} else {
		fmt.Fprintln(w, "  control:  disabled")
	}
	if cfg.Forward.NATS.URL != "" {
		fmt.Fprintf(w, "  nats:     %s\n", cfg.Forward.NATS.SubjectPrefix)
	}
	return nil
}

// runEncrypt prints an enc: value for args[0], or for stdin when no
// argument is given.
func runEncrypt(w io.Writer, args []string) error {
	passphrase := os.Getenv(config.MasterKeyEnv)
	if passphrase == "" {
		return fmt.Errorf("%s is not set", config.MasterKeyEnv)
	}
	var plaintext string
	if len(args) > 0 && !strings.HasPrefix(args[0], "--") {
		plaintext = args[0]
	} else {
		data, err := io.ReadAll(io.LimitReader(os.Stdin, 64<<10))
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		plaintext = strings.TrimSpace(string(data))
	}
	if plaintext == "" {
		return errors.New("nothing to encrypt")
	}
	enc, err := config.EncryptValue(plaintext, passphrase)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, enc)
	return nil
}

func sortedBotNames(bots map[string]control.Bot) []string {
	names := make([]string, 0, len(bots))
	for name := range bots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func configPath() string {
	// Check --config flag in os.Args.
	for i, arg := range os.Args {
		if arg == "--config" && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
		if strings.HasPrefix(arg, "--config=") {
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	if p := os.Getenv("BOTGATE_CONFIG"); p != "" {
		return p
	}
	return "botgate.yaml"
}
