package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/labengine/internal/config"
	"github.com/roach88/labengine/internal/engine"
	"github.com/roach88/labengine/internal/hardware"
	"github.com/roach88/labengine/internal/harness"
	"github.com/roach88/labengine/internal/logging"
	"github.com/roach88/labengine/internal/notify"
	"github.com/roach88/labengine/internal/protocol"
	"github.com/roach88/labengine/internal/store"
	"github.com/roach88/labengine/internal/transport"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	DBPath   string
	Simulate bool
	RunID    string
	NoMQTT   bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <protocol>",
		Short: "Run a protocol",
		Long: `Run a protocol file (.yaml, .json or .cue) to completion.

Commands execute one at a time in enqueue order. The first failing command
fails the run and the remaining commands stay queued. SIGINT stops the run
after the current command.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "", "run journal path (overrides database.path)")
	cmd.Flags().BoolVar(&opts.Simulate, "simulate", false, "use the simulator regardless of hardware.mode")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "run identifier (default: a new UUIDv7)")
	cmd.Flags().BoolVar(&opts.NoMQTT, "no-mqtt", false, "do not publish run status over MQTT")

	return cmd
}

func runRun(cmd *cobra.Command, opts *RunOptions, path string) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions, formatter)
	if err != nil {
		return err
	}
	if opts.DBPath != "" {
		cfg.Database.Path = opts.DBPath
	}
	if opts.Simulate {
		cfg.Hardware.Mode = config.HardwareSimulate
	}
	if opts.NoMQTT {
		cfg.MQTT.Enabled = false
	}

	logger, err := newLogger(opts.RootOptions, cfg, formatter)
	if err != nil {
		return err
	}
	defer logger.Close()

	proto, err := loadProtocol(path, formatter)
	if err != nil {
		return err
	}
	formatter.VerboseLog("Loaded %s: %d commands", proto.Name, len(proto.Commands))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hw, closeHW, err := openHardware(ctx, cfg, logger)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeHardware, "failed to open hardware", err)
	}
	defer closeHW()

	var reactors []harness.ReactorFactory
	if cfg.Database.Path != "" {
		journal, err := store.Open(cfg.Database.Path)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeJournal, "failed to open journal", err)
		}
		defer journal.Close()
		reactors = append(reactors, journalReactor(ctx, journal, proto.Name, logger))
	}
	if cfg.MQTT.Enabled {
		client, err := notify.Connect(cfg.MQTT, logger)
		if err != nil {
			logger.Warn("mqtt unavailable, run continues without status publishing", "error", err)
		} else {
			defer client.Close()
			reactors = append(reactors, statusReactor(client, cfg.MQTT, logger))
		}
	}

	result, err := harness.Run(ctx, proto, hw, harness.Options{
		Config: engine.Config{
			IgnorePause: cfg.Engine.IgnorePause,
			StartPaused: cfg.Engine.StartPaused,
		},
		RunID:    opts.RunID,
		Logger:   logger.Logger,
		Reactors: reactors,
	})
	if err != nil && result == nil {
		return formatter.Fail(ExitCommandError, ErrCodeRun, "run failed to start", err)
	}
	if err != nil {
		logger.Warn("run teardown failed", "error", err)
	}

	summary := summaryFromResult(result)
	if formatter.IsJSON() {
		if err := formatter.Success(summary); err != nil {
			return err
		}
	} else {
		renderSummary(formatter.Writer, summary)
	}

	if result.Failed() {
		return NewExitError(ExitFailure, fmt.Sprintf("run %s failed", result.RunID))
	}
	return nil
}

// loadProtocol loads path and reports load errors with their own code.
func loadProtocol(path string, formatter *OutputFormatter) (*protocol.Protocol, error) {
	proto, err := protocol.Load(path)
	if err == nil {
		return proto, nil
	}
	var loadErr *protocol.LoadError
	if errors.As(err, &loadErr) {
		_ = formatter.Error(loadErr.Code, loadErr.Error(), nil)
	} else {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
	}
	return nil, WrapExitError(ExitCommandError, "failed to load protocol", err)
}

// openHardware builds the backend selected by hardware.mode. The returned
// close function is always non-nil.
func openHardware(ctx context.Context, cfg *config.Config, logger *logging.Logger) (hardware.API, func(), error) {
	if cfg.Hardware.Mode != config.HardwareSerial {
		logger.Debug("using simulated hardware")
		return hardware.NewSimulator(), func() {}, nil
	}

	conn, err := transport.NewConnection(transport.NewNetPort(cfg.Hardware.Address, cfg.HardwareTimeout()), transport.Options{
		Name:         cfg.Hardware.Address,
		Ack:          cfg.Hardware.Ack,
		Timeout:      cfg.HardwareTimeout(),
		RetryWait:    cfg.HardwareRetryWait(),
		ErrorKeyword: cfg.Hardware.ErrorKeyword,
		AlarmKeyword: cfg.Hardware.AlarmKeyword,
		Logger:       logger.With("component", "transport").Logger,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := conn.Open(ctx); err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", cfg.Hardware.Address, err)
	}
	logger.Info("hardware connected", "address", cfg.Hardware.Address)
	closeConn := func() {
		if err := conn.Close(); err != nil {
			logger.Warn("closing hardware connection failed", "error", err)
		}
	}
	return hardware.NewGCodeDriver(conn, cfg.Hardware.Retries), closeConn, nil
}

// journalReactor records the run into journal.
func journalReactor(ctx context.Context, journal *store.Store, protocolName string, logger *logging.Logger) harness.ReactorFactory {
	return func(runID string, status harness.StatusFunc) (harness.Reactor, error) {
		ctx := context.WithoutCancel(ctx)
		if _, err := journal.ReadRun(ctx, runID); err == nil {
			return nil, fmt.Errorf("run %s is already journaled", runID)
		} else if !errors.Is(err, store.ErrRunNotFound) {
			return nil, err
		}
		err := journal.CreateRun(ctx, store.Run{
			ID:           runID,
			ProtocolName: protocolName,
			Status:       status(),
			CreatedAt:    time.Now().UTC(),
		})
		if err != nil {
			return nil, err
		}
		return store.NewRecorder(journal, runID,
			store.WithRecorderLogger(logger.With("component", "journal").Logger),
			store.WithStatusSource(status),
		), nil
	}
}

// statusReactor publishes run and command status over MQTT.
func statusReactor(client *notify.Client, cfg config.MQTTConfig, logger *logging.Logger) harness.ReactorFactory {
	return func(runID string, status harness.StatusFunc) (harness.Reactor, error) {
		return notify.NewStatusPublisher(client, notify.Topics{Prefix: cfg.TopicPrefix}, runID, status,
			notify.WithQoS(client.QoS()),
			notify.WithPublisherLogger(logger.With("component", "mqtt").Logger),
		), nil
	}
}
