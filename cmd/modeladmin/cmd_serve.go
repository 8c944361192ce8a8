package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"

	"modeladmin/internal/admin"
	"modeladmin/internal/auth"
	"modeladmin/internal/engine"
)

// serveCmd starts the HTTP API.
func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if port == 0 {
				port = a.cfg.Server.Port
			}

			srv := newServer(a)
			go func() {
				<-ctx.Done()
				a.log.Info("shutting down")
				_ = srv.Shutdown()
			}()

			addr := fmt.Sprintf(":%d", port)
			a.log.Info("starting server", "addr", addr, "atomic_upserts", a.cfg.Upsert.Atomic, "auth", a.cfg.Auth.JWTSecret != "")
			return srv.Listen(addr)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default: server.port)")
	return cmd
}

func newServer(a *app) *fiber.App {
	srv := fiber.New(fiber.Config{
		ErrorHandler:          engine.ErrorHandler(a.log),
		DisableStartupMessage: true,
	})
	srv.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	srv.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))

	srv.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	secret := a.cfg.Auth.JWTSecret
	authMW := auth.Middleware(secret)
	adminMW := auth.RequireAdmin(secret)

	// Meta and admin routes go first so /api/:entity does not shadow them.
	adminHandler := admin.NewHandler(a.engine, a.store, a.migrator, a.log.With("component", "admin"))
	admin.RegisterMetaRoutes(srv, adminHandler, authMW)
	admin.RegisterAdminRoutes(srv, adminHandler, authMW, adminMW)

	engineHandler := engine.NewHandler(a.engine, a.store, a.cfg.List)
	engine.RegisterDynamicRoutes(srv, engineHandler, authMW)

	return srv
}
