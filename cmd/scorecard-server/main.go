package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/scorecard/scorecard/internal/config"
	"github.com/scorecard/scorecard/internal/domain/completeness"
	"github.com/scorecard/scorecard/internal/domain/launch"
	"github.com/scorecard/scorecard/internal/domain/record"
	"github.com/scorecard/scorecard/internal/platform/middleware"
	"github.com/scorecard/scorecard/internal/platform/scorecard"
	"github.com/scorecard/scorecard/internal/platform/web"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "scorecard-server",
		Short: "SMART-on-FHIR patient record completeness scorecard",
	}

	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the scorecard server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	clients, err := config.LoadClients(cfg.ClientsFile)
	if err != nil {
		logger.Fatal().Err(err).Str("file", cfg.ClientsFile).Msg("failed to load client registrations")
	}
	logger.Info().Int("registrations", len(clients)).Msg("loaded client registrations")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "Accept", "Cache-Control"},
	}))

	// Shared components
	sessions := launch.NewStore(cfg.SessionTTL())
	done := make(chan struct{})
	sessions.StartCleanup(done)
	defer close(done)

	engine := scorecard.NewEngine()
	negotiator := launch.NewNegotiator(clients, cfg.HTTPTimeout())

	// Handlers
	launchHandler := launch.NewHandler(negotiator, sessions, cfg.RedirectURI(), logger)
	launchHandler.RegisterRoutes(e)

	appHandler := record.NewHandler(sessions, record.NewTokenClient(cfg.HTTPTimeout()),
		record.NewAssembler(cfg.HTTPTimeout()), engine, cfg.RedirectURI(), logger)
	appHandler.RegisterRoutes(e)

	fhirHandler := completeness.NewHandler(engine, logger)
	fhirHandler.RegisterRoutes(e)

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})

	// Index
	e.GET("/", func(c echo.Context) error {
		return c.Redirect(http.StatusFound, "/index")
	})
	e.GET("/index", indexHandler)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func indexHandler(c echo.Context) error {
	endpoints := []web.Row{
		{Key: "/index", Value: "this page"},
		{Key: "/app", Value: "the app (also the redirect_uri after authz)"},
		{Key: "/launch", Value: "the launch url"},
		{Key: "/fhir", Value: "FHIR API"},
		{Key: "/fhir/metadata", Value: "FHIR CapabilityStatement"},
		{Key: "/fhir/OperationDefinition", Value: "FHIR OperationDefinitions"},
		{Key: "/fhir/OperationDefinition/Patient-completeness", Value: "FHIR Completeness Service OperationDefinition"},
		{Key: "/fhir/$completeness", Value: "FHIR Completeness Service Endpoint"},
	}
	return c.HTML(http.StatusOK, web.NewPage("Scorecard").
		Section("End Points", endpoints).Close())
}
