// Entry point for the attendance service: scan dispatcher plus REST API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
	"rfid.attendance/internal/api"
	"rfid.attendance/internal/app"
	"rfid.attendance/internal/config"
	"rfid.attendance/internal/worker"
	"rfid.attendance/pkg/logger"
	"rfid.attendance/pkg/telemetry"
)

func main() {
	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Could not load configuration")
	}

	// Configure structured logging
	logger.Setup(cfg.IsLocalDev)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Configure OpenTelemetry Tracing
	shutdownTracer, err := telemetry.InitTracer(ctx, "rfid-attendance", cfg.TraceExporter, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to init tracer")
	}
	defer func() {
		_ = shutdownTracer(context.Background())
	}()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer application.Close()

	transport, err := application.NewTransport()
	if err != nil {
		// The API stays useful without a reader.
		log.Error().Err(err).Str("transport", cfg.ReaderTransport).Msg("Card reader unavailable, scans are disabled")
	}

	// Setup router and server
	router := api.NewRouter(application.Service, application.Feed)

	// Middleware to inject logger with trace ID
	loggerMiddleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ctx = logger.EnrichContextWithLogger(ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}

	// Wrap the router with OpenTelemetry middleware to create spans for each request
	handler := otelhttp.NewHandler(loggerMiddleware(router), "api")

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("port", cfg.ServerPort).Msg("API Service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")

		// The server has 5 seconds to finish the requests it is currently handling
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if transport != nil {
		dispatcher := worker.NewDispatcher(transport, application.Service, application.Notifier)
		g.Go(func() error {
			// A dead reader ends the dispatcher only; the API keeps serving.
			if err := dispatcher.Run(gctx); err != nil {
				log.Error().Err(err).Msg("Scan dispatcher exited")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Service stopped with error")
		return
	}
	log.Info().Msg("Service exiting")
}
