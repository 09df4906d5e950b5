// Command jigna-serve serves a demo model graph to browsers and keeps every
// open page in sync with it.
//
// This command demonstrates a complete jigna server with:
//   - CLI argument parsing
//   - Configuration file support
//   - A websocket channel plus an optional Redis relay
//   - mDNS discovery advertising
//   - Protocol logging to a .jlog file
//   - An interactive console
//
// Usage:
//
//	jigna-serve [flags]
//
// Flags:
//
//	-config string        Configuration file path
//	-listen string        Listen address (overrides config)
//	-log-level string     Log level: debug, info, warn, error (overrides config)
//	-protocol-log string  Write protocol events to this .jlog file
//	-redis string         Redis address for the relay (overrides config)
//	-advertise            Advertise the server via mDNS
//	-simulate             Change the demo model periodically
//	-interactive          Run the interactive console (default true)
//
// Examples:
//
//	# Serve on the default address with the console
//	jigna-serve
//
//	# Serve on all interfaces, advertise, and mirror to Redis
//	jigna-serve -listen :8888 -advertise -redis localhost:6379
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jigna-sync/jigna-go/cmd/jigna-serve/interactive"
	"github.com/jigna-sync/jigna-go/internal/config"
	"github.com/jigna-sync/jigna-go/pkg/discovery"
	jlog "github.com/jigna-sync/jigna-go/pkg/log"
	"github.com/jigna-sync/jigna-go/pkg/relay"
	"github.com/jigna-sync/jigna-go/pkg/server"
)

const version = "0.1.0"

// Flags holds the command-line overrides.
type Flags struct {
	ConfigFile  string
	Listen      string
	LogLevel    string
	ProtocolLog string
	Redis       string
	Advertise   bool
	Simulate    bool
	SimInterval time.Duration
	Interactive bool
}

var flags Flags

func init() {
	flag.StringVar(&flags.ConfigFile, "config", "", "Configuration file path")
	flag.StringVar(&flags.Listen, "listen", "", "Listen address (overrides config)")
	flag.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	flag.StringVar(&flags.ProtocolLog, "protocol-log", "", "Write protocol events to this .jlog file")
	flag.StringVar(&flags.Redis, "redis", "", "Redis address for the relay (overrides config)")
	flag.BoolVar(&flags.Advertise, "advertise", false, "Advertise the server via mDNS")
	flag.BoolVar(&flags.Simulate, "simulate", false, "Change the demo model periodically")
	flag.DurationVar(&flags.SimInterval, "sim-interval", 2*time.Second, "Simulation tick interval")
	flag.BoolVar(&flags.Interactive, "interactive", true, "Run the interactive console")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("jigna-serve: %v", err)
	}
	log.Println("Goodbye!")
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if flags.ConfigFile != "" {
		loaded, err := config.Load(flags.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if flags.Listen != "" {
		cfg.Server.ListenAddress = flags.Listen
	}
	if flags.LogLevel != "" {
		cfg.Log.Level = flags.LogLevel
	}
	if flags.ProtocolLog != "" {
		cfg.Log.ProtocolLog = flags.ProtocolLog
	}
	if flags.Redis != "" {
		cfg.Redis.Addr = flags.Redis
	}
	if flags.Advertise {
		cfg.Discovery.Advertise = true
	}
	if flags.SimInterval <= 0 {
		return nil, fmt.Errorf("%w: sim-interval must be positive", config.ErrInvalidConfig)
	}
	return cfg, cfg.Validate()
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The console owns the terminal; logs go through it so they do not
	// garble the prompt.
	var console *interactive.Console
	var out io.Writer = os.Stderr
	if flags.Interactive {
		c, err := interactive.New(interactive.Config{})
		if err != nil {
			return err
		}
		console = c
		out = console.Stdout()
		log.SetOutput(out)
	}

	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))

	protocolLogger, closeLog, err := protocolLogger(cfg, logger)
	if err != nil {
		return err
	}
	defer closeLog()

	appCfg := server.DefaultAppConfig()
	appCfg.Server.Address = cfg.Server.ListenAddress
	appCfg.Server.WSPath = cfg.Server.WSPath
	appCfg.Server.Title = "jigna demo"
	appCfg.Server.Version = version
	appCfg.Server.ShutdownGrace = cfg.Server.ShutdownGrace
	appCfg.Server.Logger = logger
	appCfg.Channel = cfg.ChannelConfig()
	appCfg.Channel.Logger = logger
	appCfg.Channel.ProtocolLogger = protocolLogger
	appCfg.Session.Logger = logger
	appCfg.Session.ProtocolLogger = protocolLogger
	appCfg.Dispatch.Logger = logger

	var rl *relay.Relay
	if cfg.Redis.Addr != "" {
		rdb, err := relay.Dial(ctx, cfg.Redis.Addr)
		if err != nil {
			return err
		}
		defer rdb.Close()

		relayCfg := cfg.RelayConfig()
		relayCfg.Logger = logger
		rl, err = relay.New(rdb, rdb, relayCfg)
		if err != nil {
			return err
		}
		appCfg.Transports = append(appCfg.Transports, rl)
		log.Printf("Relaying to redis %s channel %q", cfg.Redis.Addr, relayCfg.Channel)
	}

	fred, err := newFamily()
	if err != nil {
		return fmt.Errorf("build demo model: %w", err)
	}
	app, err := server.Build(appCfg, server.Bind(fred))
	if err != nil {
		return err
	}

	l, err := net.Listen("tcp", cfg.Server.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Server.ListenAddress, err)
	}

	log.Println("jigna demo server")
	log.Println("=================")
	log.Printf("Open http://%s/ in a browser", l.Addr())
	log.Printf("Models: %d", app.Registry.Len())

	runDone := make(chan error, 1)
	go func() { runDone <- app.Run(ctx, l) }()

	select {
	case <-app.Ready():
	case err := <-runDone:
		return err
	}

	if rl != nil {
		go func() {
			if err := rl.Run(ctx); err != nil {
				logger.Error("relay stopped", slog.Any("error", err))
			}
		}()
	}

	if cfg.Discovery.Advertise {
		adv, err := advertise(ctx, cfg, l.Addr())
		if err != nil {
			log.Printf("Warning: mDNS advertising failed: %v", err)
		} else {
			defer adv.Stop()
			log.Printf("Advertising %q as %s", cfg.Discovery.Instance, discovery.ServiceType)
		}
	}

	sim := newSimulation(app.Session, fred, flags.SimInterval)
	defer sim.Stop()
	if flags.Simulate {
		sim.Start()
	}

	if console != nil {
		browser, _ := discovery.NewMDNSBrowser(discovery.BrowserConfig{
			BrowseTimeout: 3 * time.Second,
			Interface:     cfg.Discovery.Interface,
		})
		console.Configure(interactive.Config{
			Session: app.Session,
			Sim:     sim,
			Finder:  browser,
			Extra:   extraStats(rl),
		})
		go console.Run(ctx, cancel)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received signal: %v", sig)
	case <-ctx.Done():
	case err := <-runDone:
		return err
	}

	log.Println("Shutting down...")
	cancel()
	if err := <-runDone; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// protocolLogger returns the protocol event sink: the .jlog file when
// configured, plus debug-level slog output.
func protocolLogger(cfg *config.Config, logger *slog.Logger) (jlog.Logger, func(), error) {
	adapter := jlog.NewSlogAdapter(logger)
	if cfg.Log.ProtocolLog == "" {
		return adapter, func() {}, nil
	}

	file, err := jlog.NewFileLogger(cfg.Log.ProtocolLog)
	if err != nil {
		return nil, nil, fmt.Errorf("open protocol log: %w", err)
	}
	log.Printf("Protocol log: %s", file.Path())
	return jlog.NewMultiLogger(file, adapter), func() {
		if err := file.Close(); err != nil {
			log.Printf("Error closing protocol log: %v", err)
		}
	}, nil
}

func advertise(ctx context.Context, cfg *config.Config, addr net.Addr) (*discovery.MDNSAdvertiser, error) {
	_, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return nil, err
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, err
	}

	adv, err := discovery.NewMDNSAdvertiser(cfg.AdvertiserConfig())
	if err != nil {
		return nil, err
	}
	err = adv.Advertise(ctx, &discovery.Info{
		Instance: cfg.Discovery.Instance,
		Port:     uint16(port),
		Path:     cfg.Server.WSPath,
		Version:  version,
	})
	if err != nil {
		return nil, err
	}
	return adv, nil
}

func extraStats(rl *relay.Relay) func() map[string]uint64 {
	if rl == nil {
		return nil
	}
	return func() map[string]uint64 {
		return map[string]uint64{
			"relay published": rl.Published(),
			"relay dropped":   rl.Dropped(),
		}
	}
}
