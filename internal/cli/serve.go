package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cimillas/stockledger/internal/app"
	"github.com/cimillas/stockledger/internal/catalog"
	"github.com/cimillas/stockledger/internal/clock"
	"github.com/cimillas/stockledger/internal/config"
	"github.com/cimillas/stockledger/internal/events"
	transporthttp "github.com/cimillas/stockledger/internal/transport/http"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 5 * time.Second
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Port string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ledger HTTP API",
		Long: `Run the ledger HTTP API until SIGINT or SIGTERM.

Example:
  stockledger serve --port 8080
  stockledger serve --store sqlite`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Port, "port", "", "listen port, overrides PORT")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer rt.close(context.Background())
	logger := rt.logger
	cfg := rt.cfg
	if opts.Port != "" {
		cfg.Port = opts.Port
	}

	startupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	store, closeStore, err := rt.openStore(startupCtx)
	if err != nil {
		return err
	}
	defer closeStore()

	svcOpts := []app.Option{app.WithLogger(logger)}
	if cfg.CatalogPath != "" {
		cat, err := catalog.Load(cfg.CatalogPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "load catalog", err)
		}
		products, variants, locations := cat.Len()
		logger.Info("catalog loaded",
			zap.String("path", cfg.CatalogPath),
			zap.Int("products", products),
			zap.Int("variants", variants),
			zap.Int("locations", locations),
		)
		svcOpts = append(svcOpts, app.WithCatalog(cat))
	}
	if cfg.KafkaBroker != "" {
		writer, err := events.NewWriter(cfg.KafkaBroker, cfg.KafkaTopic, config.ServiceName, otel.GetTracerProvider())
		if err != nil {
			return WrapExitError(ExitCommandError, "kafka writer", err)
		}
		publisher := events.NewPublisher(writer)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("close kafka writer", zap.Error(err))
			}
		}()
		logger.Info("publishing ledger events",
			zap.String("broker", cfg.KafkaBroker),
			zap.String("topic", cfg.KafkaTopic),
		)
		svcOpts = append(svcOpts, app.WithPublisher(publisher))
	}

	clk := clock.NewSystem()
	mux := transporthttp.NewMux(transporthttp.Services{
		Reservations: app.NewReservationService(store, clk, svcOpts...),
		Orders:       app.NewOrderService(store, store, clk, svcOpts...),
		Inventory:    app.NewInventoryService(store),
		Store:        store,
	})

	var handler http.Handler = transporthttp.CORS(cfg.CORSOrigins, mux)
	handler = transporthttp.RequestLogger(handler, logger)
	handler = otelhttp.NewHandler(handler, config.ServiceName)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	logger.Info("api listening",
		zap.String("addr", server.Addr),
		zap.String("store", cfg.StoreDriver),
	)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitFailure, "server error", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("server stopped")
	return nil
}
