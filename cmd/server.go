package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/Abraxas-365/applyflow/pkg/config"
	"github.com/Abraxas-365/applyflow/pkg/logx"
	"github.com/Abraxas-365/applyflow/recruitment/candidate/candidateapi"
	"github.com/Abraxas-365/applyflow/recruitment/candidate/migration"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve [store-url]",
	Short: "Start the read-only query API",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	applyStoreArgs(cfg, args)
	if err := cfg.Validate(config.ModeServe); err != nil {
		return &exitError{code: migration.ExitFailures, err: err}
	}
	logx.Info("Starting applyflow query API...")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, err := NewContainer(ctx, cfg)
	if err != nil {
		return &exitError{code: migration.ExitFailures, err: err}
	}
	defer container.Close()

	app := fiber.New(fiber.Config{
		AppName:               "applyflow query API",
		DisableStartupMessage: true,
		ErrorHandler:          candidateapi.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-API-Key",
		AllowMethods: "GET, HEAD",
	}))
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	auth := candidateapi.AuthMiddleware(candidateapi.AuthConfig{
		APIKeyHash: cfg.API.APIKeyHash,
		JWTSecret:  cfg.API.JWTSecret,
	})
	if auth == nil {
		logx.Warn("API_KEY_HASH and API_JWT_SECRET are not set, record routes are unauthenticated")
	}
	candidateapi.RegisterRoutes(app, container.QueryHandlers(), auth)

	errCh := make(chan error, 1)
	go func() {
		logx.Infof("Server listening on port %s", cfg.API.Port)
		errCh <- app.Listen(":" + cfg.API.Port)
	}()

	select {
	case err := <-errCh:
		return &exitError{code: migration.ExitFailures, err: err}
	case <-ctx.Done():
	}

	logx.Info("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		logx.Errorf("Server forced to shutdown: %v", err)
	}
	logx.Info("Server exited")
	return nil
}
