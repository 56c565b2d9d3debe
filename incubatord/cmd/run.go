package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/itohio/goincubator/pkg/config"
	"github.com/itohio/goincubator/pkg/device"
	"github.com/itohio/goincubator/pkg/incubator"
	"github.com/itohio/goincubator/pkg/logging"
	"github.com/itohio/goincubator/pkg/meter"
	"github.com/itohio/goincubator/pkg/sample"
	"github.com/itohio/goincubator/pkg/server"
	"github.com/itohio/goincubator/pkg/store"
	"github.com/itohio/goincubator/pkg/telemetry"
)

// statusBuffer bounds the backlog between the loop and the history meter.
const statusBuffer = 100

type runOptions struct {
	*rootOptions
	port    string
	mock    bool
	console bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the control loop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if opts.port != "" {
				cfg.Serial.Port = opts.port
			}

			closer, err := logging.Setup(logging.Options{
				Level:   cfg.Log.Level,
				File:    cfg.Log.File,
				Service: "incubatord",
			})
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.port, "port", "p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
	cmd.Flags().BoolVar(&opts.mock, "mock", false, "Use a simulated incubator instead of the serial port")
	cmd.Flags().BoolVar(&opts.console, "console", true, "Read protocol commands from stdin")
	return cmd
}

func openDevice(cfg *config.Config, mock bool) device.Device {
	if mock {
		slog.Info("Using simulated incubator")
		return device.NewMock(&cfg.Mock)
	}
	return device.New(cfg.Serial.Port, cfg.Serial.BaudRate, device.DefaultBufferSize)
}

func run(ctx context.Context, cfg *config.Config, opts *runOptions) error {
	dev := openDevice(cfg, opts.mock)
	if err := dev.Connect(); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", cfg.Serial.Port, err)
	}
	defer dev.Close()

	settings := store.New(cfg.Store.ReadOnlyFile, cfg.Store.ReadWriteFile)
	runner := incubator.New(cfg, settings, dev, nil)

	metrics := telemetry.New()
	runner.OnUpdate(metrics.Observe)

	// Status fan-out into the history meter. The loop never blocks on it.
	history := meter.New(&cfg.History)
	statusCh := make(chan incubator.Status, statusBuffer)
	runner.OnUpdate(func(st incubator.Status) {
		select {
		case statusCh <- st:
		default:
			slog.Debug("History backlog full, dropping status")
		}
	})
	samples := sample.NewConverter(statusBuffer)(statusCh)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// Callbacks only fire from the loop, so closing here is safe.
		defer close(statusCh)
		return runner.Run(ctx)
	})

	g.Go(func() error {
		history.ProcessSamples(samples)
		return nil
	})

	if cfg.HTTP.Listen != "" {
		srv := server.New(cfg.HTTP.Listen, runner, history, metrics.Handler(), cfg.History.MaxPoints)
		g.Go(func() error {
			return srv.Run(ctx)
		})
	}

	if opts.console {
		g.Go(func() error {
			return console(ctx, os.Stdin, os.Stdout, runner.Submit)
		})
	}

	slog.Info("Incubator running",
		slog.String("port", cfg.Serial.Port),
		slog.Bool("mock", opts.mock),
		slog.String("http", cfg.HTTP.Listen))

	err := g.Wait()
	slog.Info("Incubator stopped")
	return err
}
