package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/skobkin/joylink/internal/bus"
	"github.com/skobkin/joylink/internal/config"
	"github.com/skobkin/joylink/internal/connectors"
	"github.com/skobkin/joylink/internal/device"
	"github.com/skobkin/joylink/internal/domain"
	"github.com/skobkin/joylink/internal/linejson"
	"github.com/skobkin/joylink/internal/logging"
	"github.com/skobkin/joylink/internal/metrics"
	"github.com/skobkin/joylink/internal/notifications"
	"github.com/skobkin/joylink/internal/persistence"
	"github.com/skobkin/joylink/internal/platform"
	"github.com/skobkin/joylink/internal/server"
)

// Options select the config source for a runtime.
type Options struct {
	// ConfigFile overrides the default config location.
	ConfigFile string
	// Override is applied to the loaded config before validation.
	Override func(cfg *config.AppConfig)
}

type Runtime struct {
	Ctx    context.Context
	cancel context.CancelFunc

	// The writer outlives Ctx so the projection can flush into it on close.
	writerCancel   context.CancelFunc
	projectionDone <-chan struct{}

	Paths  Paths
	Config config.AppConfig

	LogManager *logging.Manager
	Bus        *bus.PubSubBus
	DB         *sql.DB

	ReadingRepo *persistence.ReadingRepo
	CommandRepo *persistence.CommandRepo
	WriterQueue *persistence.WriterQueue

	Telemetry *domain.TelemetryStore
	Status    *ConnectionStatusTracker
	Metrics   *metrics.Collector

	Link   *device.Link
	Device *device.Service

	lockMu    sync.Mutex
	portLock  platform.PortLock
	closeOnce sync.Once
}

// LoadConfig resolves paths and reads the config with overrides applied. It
// does not validate, so commands that never open the link can still run.
func LoadConfig(opts Options) (Paths, config.AppConfig, error) {
	paths, err := ResolvePaths()
	if err != nil {
		return Paths{}, config.AppConfig{}, err
	}
	paths = paths.WithConfigFile(opts.ConfigFile)

	cfg, err := config.Load(paths.ConfigFile)
	if err != nil {
		return Paths{}, config.AppConfig{}, err
	}
	if opts.Override != nil {
		opts.Override(&cfg)
	}
	cfg.FillMissingDefaults()

	return paths, cfg, nil
}

func Initialize(parent context.Context, opts Options) (*Runtime, error) {
	paths, cfg, err := LoadConfig(opts)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return initialize(parent, paths, cfg)
}

func initialize(parent context.Context, paths Paths, cfg config.AppConfig) (*Runtime, error) {
	policy, err := linejson.ParsePolicy(cfg.Telemetry.OnMalformed)
	if err != nil {
		return nil, err
	}
	reaction, err := reactionFromConfig(cfg.Reaction)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(parent)
	rt := &Runtime{
		Ctx:    ctx,
		cancel: cancel,
		Paths:  paths,
		Config: cfg,
	}

	logMgr := logging.NewManager()
	if err := logMgr.Configure(cfg.Logging, paths.LogFile); err != nil {
		_ = logMgr.Close()
		cancel()

		return nil, fmt.Errorf("configure logging: %w", err)
	}
	rt.LogManager = logMgr
	slog.Info("starting joylink runtime", "version", BuildVersion(), "build_date", BuildDateYMD())

	db, err := persistence.Open(ctx, paths.DBFile)
	if err != nil {
		_ = rt.Close()

		return nil, err
	}
	rt.DB = db
	rt.ReadingRepo = persistence.NewReadingRepo(db)
	rt.CommandRepo = persistence.NewCommandRepo(db)

	b := bus.New(logMgr.Logger("bus"), busCapacity)
	rt.Bus = b

	rt.Status = NewConnectionStatusTracker(ConnectionStatusFromConfig(cfg.Connection))
	rt.Status.Start(ctx, b)
	rt.Telemetry = domain.NewTelemetryStore()
	rt.Telemetry.Start(ctx, b)

	writerCtx, writerCancel := context.WithCancel(context.WithoutCancel(parent))
	rt.writerCancel = writerCancel
	rt.WriterQueue = persistence.NewWriterQueue(logMgr.Logger("persistence"), writerQueueSize)
	rt.WriterQueue.Start(writerCtx)
	if cfg.Telemetry.PersistReadings {
		if pruned, err := persistence.PruneReadings(ctx, db, ReadingsRetention); err != nil {
			slog.Warn("prune readings", "error", err)
		} else if pruned > 0 {
			slog.Info("pruned old readings", "count", pruned)
		}
		rt.projectionDone = domain.StartPersistenceProjection(ctx, b, rt.WriterQueue, rt.ReadingRepo, rt.CommandRepo)
	}

	rt.Metrics = metrics.NewCollector()

	tr, err := NewTransportForConnection(cfg.Connection)
	if err != nil {
		_ = rt.Close()

		return nil, fmt.Errorf("initialize transport: %w", err)
	}
	rt.Link = device.NewLink(tr, nil, device.LinkOptions{
		Policy:       policy,
		MaxLineBytes: cfg.Telemetry.MaxLineBytes,
		Terminator:   cfg.Telemetry.LineTerminator,
		Logger:       logMgr.Logger("link"),
	})
	rt.Device = device.NewService(logMgr.Logger("device"), b, rt.Link, device.ServiceOptions{
		Reaction: reaction,
		Observer: rt.Metrics,
	})

	if cfg.Notifications.ConnectionStatus {
		logger := logMgr.Logger("notifications")
		notifications.NewConnectionNotifier(b, notifications.NewDesktopSender(logger), nil, logger).Start(ctx)
	}

	return rt, nil
}

func reactionFromConfig(cfg config.ReactionConfig) (*device.Reaction, error) {
	mode, err := device.ParseReactionMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	if mode == device.ReactionNone {
		return nil, nil
	}

	return &device.Reaction{
		Mode:  mode,
		Color: domain.RGB(cfg.Color.Red, cfg.Color.Green, cfg.Color.Blue),
	}, nil
}

// Connect takes the serial port lock and opens the link.
func (r *Runtime) Connect() error {
	if err := r.acquirePortLock(); err != nil {
		return err
	}

	return r.Device.Connect(r.Ctx)
}

func (r *Runtime) acquirePortLock() error {
	if r.Config.Connection.Connector != config.ConnectorSerial {
		return nil
	}

	r.lockMu.Lock()
	defer r.lockMu.Unlock()
	if r.portLock != nil {
		return nil
	}

	lock, err := platform.AcquirePortLock(Name, r.Config.Connection.SerialPort)
	switch {
	case err == nil:
		r.portLock = lock
	case errors.Is(err, platform.ErrPortLockUnsupported):
		slog.Debug("serial port lock is not supported on this platform")
	default:
		return fmt.Errorf("lock serial port %s: %w", r.Config.Connection.SerialPort, err)
	}

	return nil
}

// Monitor opens the link and serves it until the stream ends, the read loop
// fails, or the runtime context is cancelled. The HTTP API runs alongside
// when a listen address is configured.
func (r *Runtime) Monitor() error {
	if err := r.Connect(); err != nil {
		return err
	}

	logger := r.LogManager.Logger("monitor")
	bus.Consume(r.Ctx, r.Bus, connectors.TopicReading, func(reading domain.JoystickReading) {
		logger.Info("reading", "x", reading.X, "y", reading.Y, "pressed", reading.Pressed)
	})
	bus.Consume(r.Ctx, r.Bus, connectors.TopicCommandSent, func(cmd domain.SentCommand) {
		logger.Info("led command sent", "payload", cmd.Payload)
	})

	serveCtx, stop := context.WithCancel(r.Ctx)
	defer stop()

	var serverErr chan error
	if addr := strings.TrimSpace(r.Config.Server.Listen); addr != "" {
		serverErr = make(chan error, 1)
		go func() {
			err := server.Serve(serveCtx, addr, r.Handler(), r.LogManager.Logger("server"))
			if err != nil {
				logger.Error("http api stopped", "error", err)
				stop()
			}
			serverErr <- err
		}()
	}

	err := r.Device.Serve(serveCtx)
	stop()
	if serverErr != nil {
		if sErr := <-serverErr; sErr != nil {
			return sErr
		}
	}
	if errors.Is(err, context.Canceled) && r.Ctx.Err() != nil {
		return nil
	}

	return err
}

// SendOnce opens the link, waits for a serial peripheral to settle, writes
// one LED command, and closes the link.
func (r *Runtime) SendOnce(cmd domain.LEDCommand) (domain.SentCommand, error) {
	if err := r.Connect(); err != nil {
		return domain.SentCommand{}, err
	}
	defer func() {
		if err := r.Link.Close(); err != nil {
			slog.Warn("close link", "error", err)
		}
	}()

	if delay := r.settleDelay(); delay > 0 {
		slog.Debug("waiting for peripheral to settle", "delay", delay)
		timer := time.NewTimer(delay)
		select {
		case <-r.Ctx.Done():
			timer.Stop()

			return domain.SentCommand{}, r.Ctx.Err()
		case <-timer.C:
		}
	}

	res := <-r.Device.SendCommand(r.Ctx, cmd)

	return res.Command, res.Err
}

func (r *Runtime) settleDelay() time.Duration {
	if r.Config.Connection.Connector != config.ConnectorSerial {
		return 0
	}

	return time.Duration(r.Config.Connection.SettleMS) * time.Millisecond
}

// Handler builds the HTTP API over this runtime.
func (r *Runtime) Handler() http.Handler {
	deps := server.Deps{
		Status:   r.Status,
		Readings: r.Telemetry,
		Sender:   r.Device,
		Metrics:  r.Metrics.Handler(),
		Recorder: r.Metrics,
		Logger:   r.LogManager.Logger("server"),
	}
	if r.Config.Telemetry.PersistReadings {
		deps.History = r.ReadingRepo
	}

	return server.NewRouter(deps)
}

func (r *Runtime) Close() error {
	r.closeOnce.Do(func() {
		if r.cancel != nil {
			r.cancel()
		}
		if r.Link != nil {
			_ = r.Link.Close()
		}
		r.lockMu.Lock()
		if r.portLock != nil {
			if err := r.portLock.Release(); err != nil {
				slog.Warn("release serial port lock", "error", err)
			}
			r.portLock = nil
		}
		r.lockMu.Unlock()
		if r.projectionDone != nil {
			<-r.projectionDone
		}
		if r.writerCancel != nil {
			r.writerCancel()
		}
		if r.WriterQueue != nil {
			r.WriterQueue.Wait()
		}
		if r.Bus != nil {
			r.Bus.Close()
		}
		if r.DB != nil {
			_ = r.DB.Close()
		}
		if r.LogManager != nil {
			_ = r.LogManager.Close()
		}
	})

	return nil
}
