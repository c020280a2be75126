package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/crowdeval/crowdeval/internal/alert"
	"github.com/crowdeval/crowdeval/internal/api"
	"github.com/crowdeval/crowdeval/internal/config"
	"github.com/crowdeval/crowdeval/internal/dispatcher"
	"github.com/crowdeval/crowdeval/internal/handlers"
	"github.com/crowdeval/crowdeval/internal/influx"
	"github.com/crowdeval/crowdeval/internal/logging"
	"github.com/crowdeval/crowdeval/internal/metrics"
	"github.com/crowdeval/crowdeval/internal/monitor"
	intOtel "github.com/crowdeval/crowdeval/internal/otel"
	"github.com/crowdeval/crowdeval/internal/parser"
	"github.com/crowdeval/crowdeval/internal/pipeline"
	"github.com/crowdeval/crowdeval/internal/session"
	"github.com/crowdeval/crowdeval/pkg/streaming"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// AppName names the log files and the OTel service default.
const AppName = "crowdeval"

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

var (
	configDir = flag.String("config", ".", "directory containing "+config.FileName)
	inputPath = flag.String("input", "-", "JSON lines input, - for stdin")
)

var (
	SessionStartTime = time.Now()

	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// ZLogger is handed to the database and influx managers
	ZLogger zerolog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	LogFilePath string
	LogFile     *os.File
	gelfWriter  *gelf.Writer

	// sessionCtx is shared by the handlers, the monitor and the log context
	sessionCtx = session.NewContext()
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [run|sessions|migratebackups]\n", AppName)
		flag.PrintDefaults()
	}
	flag.Parse()

	setupLogging()
	defer shutdownLogging()

	command := "run"
	if flag.NArg() > 0 {
		command = strings.ToLower(flag.Arg(0))
	}

	var err error
	switch command {
	case "run":
		err = run()
	case "sessions":
		err = listSessions(os.Stdout)
	case "migratebackups":
		err = migrateBackups()
	default:
		flag.Usage()
		err = fmt.Errorf("unknown command %q", command)
	}
	if err != nil {
		Logger.Error("Command failed", "command", command, "error", err)
		return 1
	}
	return 0
}

// setupLogging loads the config and builds the slog and zerolog loggers.
// Failures degrade to console logging.
func setupLogging() {
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(logging.Config{Level: "info"})
	Logger = SlogManager.Logger()

	if err := config.Load(*configDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config", "file", viper.ConfigFileUsed())
	}

	var err error
	var out io.Writer = os.Stderr
	LogFile, err = logging.OpenLogFile(viper.GetString("logsDir"), AppName, SessionStartTime)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err)
	} else {
		LogFilePath = LogFile.Name()
		out = io.MultiWriter(os.Stderr, LogFile)
	}

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		var logWriter io.Writer
		if LogFile != nil {
			logWriter = LogFile
		}
		OTelProvider, err = intOtel.New(intOtel.Config{
			Enabled:        otelCfg.Enabled,
			ServiceName:    otelCfg.ServiceName,
			ServiceVersion: Version,
			BatchTimeout:   otelCfg.BatchTimeout,
			LogWriter:      logWriter,
			Endpoint:       otelCfg.Endpoint,
			Insecure:       otelCfg.Insecure,
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
			OTelProvider = nil
		}
	}

	if viper.GetBool("graylog.enabled") {
		gelfWriter, err = logging.NewGELFWriter(viper.GetString("graylog.address"))
		if err != nil {
			Logger.Error("Failed to connect to Graylog", "error", err)
		}
	}

	cfg := logging.Config{
		File:    out,
		Level:   viper.GetString("logLevel"),
		Context: sessionCtx.LogAttrs,
	}
	if OTelProvider.Enabled() {
		cfg.Provider = OTelProvider.LoggerProvider()
	}
	if gelfWriter != nil {
		cfg.GELF = gelfWriter
	}
	SlogManager.Setup(cfg)
	Logger = SlogManager.Logger()
	if LogFilePath != "" {
		Logger.Info("Logging to file", "path", LogFilePath)
	}

	ZLogger = newZeroLogger(out)
}

func newZeroLogger(out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(viper.GetString("logLevel")))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}

	return zerolog.New(zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    true,
	}).Level(level).With().Timestamp().Logger().
		Hook(zerolog.HookFunc(func(e *zerolog.Event, _ zerolog.Level, _ string) {
			if s := sessionCtx.Current(); s != nil {
				e.Str("session", s.ID)
			}
		}))
}

func shutdownLogging() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := SlogManager.Flush(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to flush logs: %v\n", err)
	}
	if err := OTelProvider.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to shut down OTel provider: %v\n", err)
	}
	if gelfWriter != nil {
		_ = gelfWriter.Close()
	}
	if LogFile != nil {
		_ = LogFile.Close()
	}
}

// run processes the input stream until EOF or a signal, then ends the open
// session and shuts every service down.
func run() error {
	layout, err := config.GetLayout()
	if err != nil {
		return fmt.Errorf("invalid layout: %w", err)
	}
	procCfg, err := config.GetProcessingConfig()
	if err != nil {
		return err
	}
	Logger.Info("Layout loaded", "zones", len(layout.Zones), "exits", len(layout.Exits))

	backend, err := initStorage()
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			Logger.Error("Failed to close storage backend", "error", err)
		}
	}()

	var frameWriter handlers.FrameWriter
	if viper.GetBool("influx.enabled") {
		im := influx.NewManager(ZLogger, filepath.Join(viper.GetString("logsDir"), "influx_backup.log.gz"))
		if err := im.Connect(); err != nil {
			Logger.Error("Failed to set up InfluxDB", "error", err)
		} else {
			frameWriter = im
			defer func() {
				if err := im.Close(); err != nil {
					Logger.Error("Failed to close InfluxDB", "error", err)
				}
			}()
		}
	}

	var uploader handlers.Uploader
	if viper.GetBool("api.enabled") {
		client := api.New(viper.GetString("api.serverUrl"), viper.GetString("api.apiKey"))
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := client.Healthcheck(ctx); err != nil {
			Logger.Warn("Session archive is offline", "url", viper.GetString("api.serverUrl"), "error", err)
		} else {
			Logger.Info("Session archive is online", "url", viper.GetString("api.serverUrl"))
		}
		cancel()
		uploader = client
	}

	m := metrics.New()
	if viper.GetBool("metrics.enabled") {
		srv := m.NewServer(viper.GetString("metrics.address"))
		errc := srv.Start()
		go func() {
			if err := <-errc; err != nil {
				Logger.Error("Metrics server failed", "error", err)
			}
		}()
		Logger.Info("Serving metrics", "address", viper.GetString("metrics.address"))
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	p := parser.NewParser(Logger, nil)
	eventDispatcher, err := dispatcher.New(Logger.With("component", "dispatcher"))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}

	handlerService := handlers.NewService(handlers.Dependencies{
		Logger:    Logger,
		Parser:    p,
		Processor: pipeline.New(layout, procCfg),
		Escalator: alert.NewEscalator(alert.LogSink{Logger: Logger}),
		Metrics:   m,
		Session:   sessionCtx,
		Backend:   backend,
		Influx:    frameWriter,
		Uploader:  uploader,
		UploadTag: viper.GetString("api.tag"),
	})
	handlerService.Register(eventDispatcher)

	if viper.GetBool("monitor.enabled") {
		monCfg := config.GetMonitorConfig()
		db := databaseOf(backend)
		monitorService := monitor.NewService(monitor.Dependencies{
			DB:              db,
			Logger:          Logger,
			Session:         sessionCtx,
			StatusFile:      monCfg.StatusFile,
			Interval:        monCfg.Interval,
			IsDatabaseValid: func() bool { return db != nil },
			PendingWrites:   pendingWritesOf(backend),
		})
		if err := monitorService.Start(); err != nil {
			Logger.Error("Failed to start status monitor", "error", err)
		}
		defer monitorService.Stop()
	}

	input, err := openInput(*inputPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		// unblocks a pending read
		_ = input.Close()
	}()

	Logger.Info("Reading input", "input", *inputPath)
	stats, err := ingest(ctx, input, p, eventDispatcher, Logger)
	Logger.Info("Input finished", "lines", stats.Lines, "dispatched", stats.Dispatched, "rejected", stats.Rejected, "failed", stats.Failed)
	if err != nil && ctx.Err() == nil && !errors.Is(err, os.ErrClosed) {
		Logger.Error("Error reading input", "error", err)
	}

	if sessionCtx.Active() {
		if _, err := eventDispatcher.Dispatch(dispatcher.Event{Command: streaming.TypeSessionEnd}); err != nil {
			Logger.Error("Failed to end session", "error", err)
		}
	}
	eventDispatcher.Close()
	return nil
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return os.Stdin, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, nil
}
