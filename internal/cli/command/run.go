package command

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/meshnode-go/internal/config"
	"github.com/yndnr/meshnode-go/internal/core/service"
	"github.com/yndnr/meshnode-go/internal/infra/confloader"
	"github.com/yndnr/meshnode-go/internal/infra/shutdown"
	"github.com/yndnr/meshnode-go/internal/meshd"
	"github.com/yndnr/meshnode-go/internal/server/busserver"
	"github.com/yndnr/meshnode-go/internal/server/httpserver"
	"github.com/yndnr/meshnode-go/internal/storage"
	"github.com/yndnr/meshnode-go/internal/telemetry/logger"
	"github.com/yndnr/meshnode-go/internal/telemetry/metric"
)

const (
	shutdownTimeout        = 10 * time.Second
	defaultAttentionTimer  = 3
	watcherReloadQuietTime = 100 * time.Millisecond
)

// RunCommand attaches the configured node and keeps it attached.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Attach the node to bluetooth-meshd and stay attached",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "uuid",
				Usage: "Override node.uuid",
			},
			&cli.StringFlag{
				Name:  "recovery",
				Usage: "Override node.recovery (import, join)",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Override metrics.addr, e.g. 127.0.0.1:9464",
			},
			&cli.BoolFlag{
				Name:  "composition",
				Usage: "Send Config Composition Data Get to the local node after attaching",
			},
			&cli.StringFlag{
				Name:  "attention",
				Usage: "Unicast address to send Health Attention Set to (e.g. 0x0438)",
			},
			&cli.UintFlag{
				Name:  "attention-timer",
				Usage: "Attention timer in seconds",
				Value: defaultAttentionTimer,
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Repeat the attention message at this interval; 0 sends it once",
			},
		},
		Action: runNode,
	}
}

// runOverrides maps run flags onto config keys.
func runOverrides(c *cli.Context) map[string]any {
	m := make(map[string]any)
	setOverride(m, "node.uuid", c.IsSet("uuid"), c.String("uuid"))
	setOverride(m, "node.recovery", c.IsSet("recovery"), c.String("recovery"))
	setOverride(m, "metrics.addr", c.IsSet("metrics-addr"), c.String("metrics-addr"))
	setOverride(m, "log.level", c.IsSet("log-level"), c.String("log-level"))
	return m
}

// attentionOptions is the parsed --attention group.
type attentionOptions struct {
	enabled     bool
	destination uint16
	timer       uint8
	interval    time.Duration
}

func parseAttention(c *cli.Context) (attentionOptions, error) {
	var opts attentionOptions
	if !c.IsSet("attention") {
		return opts, nil
	}
	dest, err := parseAddress(c.String("attention"))
	if err != nil {
		return opts, err
	}
	timer := c.Uint("attention-timer")
	if timer > 0xff {
		return opts, fmt.Errorf("--attention-timer %d out of range", timer)
	}
	if c.Duration("interval") < 0 {
		return opts, errors.New("--interval must not be negative")
	}
	return attentionOptions{
		enabled:     true,
		destination: dest,
		timer:       uint8(timer),
		interval:    c.Duration("interval"),
	}, nil
}

// parseAddress accepts a 16-bit mesh address in decimal or 0x-prefixed hex.
func parseAddress(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid mesh address %q: %w", s, err)
	}
	if v == 0 {
		return 0, fmt.Errorf("invalid mesh address %q: unassigned", s)
	}
	return uint16(v), nil
}

func runNode(c *cli.Context) error {
	flags := ParseGlobalFlags(c)
	attention, err := parseAttention(c)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(flags.Config, runOverrides(c), config.Verify)
	if err != nil {
		return err
	}
	log, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	identity, _ := cfg.Node.Identity()
	policy, _ := cfg.Node.Policy()
	elements, _ := cfg.Node.DomainElements()
	log.Info("starting meshnode",
		"node", identity.String(),
		"recovery", policy.String(),
		"storage", cfg.Storage.Engine,
		"config", flags.Config)

	sd := shutdown.NewHandler(shutdownTimeout, log)
	metrics := metric.NewRegistry()

	store, err := storage.Open(ctx, storage.Config{
		Engine:  cfg.Storage.Engine,
		Dir:     cfg.Storage.TokenDir,
		Badger:  cfg.Storage.Badger,
		Logger:  log,
		Metrics: metrics,
	})
	if err != nil {
		return fmt.Errorf("open token store: %w", err)
	}
	sd.OnShutdown("token store", func(context.Context) error { return store.Close() })

	conn, err := meshd.Connect(ctx, cfg.Bus.Address)
	if err != nil {
		_ = sd.Shutdown()
		return err
	}
	sd.OnShutdown("bus connection", func(context.Context) error { return conn.Close() })

	client := meshd.NewClient(conn, cfg.Bus.CallTimeout, log)
	attacher, err := service.NewAttacher(service.AttacherConfig{
		Identity:    identity,
		AppPath:     cfg.Node.AppPath(identity),
		Elements:    elements,
		Policy:      policy,
		JoinTimeout: cfg.Node.JoinTimeout,
		SendRate:    cfg.Node.SendRate,
		SendBurst:   cfg.Node.SendBurst,
		LastToken:   storage.NewLastTokenRecord(cfg.Storage.LastTokenDir),
		Logger:      log,
		Metrics:     metrics,
	}, client, client, store)
	if err != nil {
		_ = sd.Shutdown()
		return err
	}

	objects, err := busserver.New(conn, busserver.Config{
		AppPath:  attacher.AppPath(),
		Elements: attacher.Elements(),
		Logger:   log,
		Metrics:  metrics,
	}, attacher.Callback())
	if err != nil {
		_ = sd.Shutdown()
		return err
	}
	if err := objects.Export(); err != nil {
		_ = sd.Shutdown()
		return err
	}
	sd.OnShutdown("bus objects", func(context.Context) error { return objects.Unexport() })
	sd.OnShutdown("token", func(ctx context.Context) error {
		return persistToken(ctx, attacher, store)
	})

	if cfg.Metrics.Addr != "" {
		if err := startStatusServer(cfg.Metrics.Addr, attacher, client, metrics, log, sd); err != nil {
			_ = sd.Shutdown()
			return err
		}
	}

	if flags.Config != "" {
		if err := watchLogLevel(flags.Config, runOverrides(c), log, sd); err != nil {
			log.Warn("config watcher disabled", "error", err)
		}
	}

	result, err := attacher.Connect(ctx)
	if err != nil {
		log.Error("attach failed", "error", err)
		_ = sd.Shutdown()
		return err
	}
	log.Info("node attached",
		"node_path", result.NodePath,
		"token", attacher.Token().String(),
		"elements", len(result.Configuration))

	if c.Bool("composition") {
		if err := attacher.CompositionDataGet(ctx); err != nil {
			log.Warn("composition data get failed", "error", err)
		}
	}
	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()
	if attention.enabled {
		go attentionLoop(loopCtx, attacher, attention, log)
	}
	sd.OnShutdown("idle loop", func(context.Context) error {
		stopLoop()
		return nil
	})

	err = sd.Wait(ctx)
	attacher.Detach()
	if err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}
	log.Info("meshnode stopped")
	return nil
}

// persistToken writes the node's current token back to the store so the
// record survives even if it was edited while the node ran.
func persistToken(ctx context.Context, attacher *service.Attacher, store storage.TokenStore) error {
	token := attacher.Token()
	if token.IsZero() {
		return nil
	}
	return store.Set(ctx, attacher.Identity(), token)
}

func startStatusServer(addr string, attacher *service.Attacher, probe httpserver.DaemonProbe, metrics *metric.Registry, log logger.Logger, sd *shutdown.Handler) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("status listener: %w", err)
	}

	srv := httpserver.New(addr, httpserver.NewRouter(httpserver.RouterConfig{
		Status:  attacher,
		Probe:   probe,
		Metrics: metrics.Handler(),
		Logger:  log,
	}))
	go func() {
		log.Info("status server listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("status server error", "error", err)
		}
	}()
	sd.OnShutdown("status server", srv.Shutdown)
	return nil
}

// watchLogLevel re-reads the config file on change and applies a new
// log.level. Other keys need a restart.
func watchLogLevel(path string, overrides map[string]any, log logger.Logger, sd *shutdown.Handler) error {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return err
	}
	if err := w.Watch(path); err != nil {
		_ = w.Stop()
		return err
	}
	w.OnChange(func(string) {
		reloadLogLevel(path, overrides, log)
	})
	w.StartAsync()
	sd.OnShutdown("config watcher", func(context.Context) error { return w.Stop() })
	return nil
}

func reloadLogLevel(path string, overrides map[string]any, log logger.Logger) {
	// Editors often write in several steps.
	time.Sleep(watcherReloadQuietTime)

	cfg, err := loadConfig(path, overrides, config.VerifyStorage)
	if err != nil {
		log.Warn("config reload rejected", "error", err)
		return
	}
	if cfg.Log.Level == logger.GetLevel() {
		return
	}
	logger.SetLevel(cfg.Log.Level)
	log.Info("log level changed", "level", cfg.Log.Level)
}

// attentionSender is the part of the Attacher used by attentionLoop.
type attentionSender interface {
	AttentionSet(ctx context.Context, destination uint16, timer uint8) error
}

// attentionLoop sends Health Attention Set once, then at every interval
// until ctx ends. A zero interval sends once.
func attentionLoop(ctx context.Context, sender attentionSender, opts attentionOptions, log logger.Logger) {
	send := func() {
		if err := sender.AttentionSet(ctx, opts.destination, opts.timer); err != nil {
			if ctx.Err() == nil {
				log.Warn("attention set failed",
					"destination", fmt.Sprintf("0x%04x", opts.destination),
					"error", err)
			}
			return
		}
		log.Debug("attention set sent",
			"destination", fmt.Sprintf("0x%04x", opts.destination),
			"timer", opts.timer)
	}

	send()
	if opts.interval <= 0 {
		return
	}

	ticker := time.NewTicker(opts.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			send()
		}
	}
}
