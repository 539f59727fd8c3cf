package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/walletworks/concierge/internal/activity"
	"github.com/walletworks/concierge/internal/agent"
	"github.com/walletworks/concierge/internal/api"
	"github.com/walletworks/concierge/internal/config"
	"github.com/walletworks/concierge/internal/factory"
	"github.com/walletworks/concierge/internal/gateway"
	"github.com/walletworks/concierge/internal/intent"
	"github.com/walletworks/concierge/internal/paycrypt"
	"github.com/walletworks/concierge/internal/payments"
	"github.com/walletworks/concierge/internal/pending"
	"github.com/walletworks/concierge/internal/platform/logger"
	"github.com/walletworks/concierge/internal/seed"
)

func main() {
	dbDriver := flag.String("db-driver", "", "Override CONCIERGE_DB_DRIVER (sqlite, postgres)")
	flag.Parse()

	log := logger.New("concierge-service")

	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *dbDriver != "" {
		cfg.DBDriver = *dbDriver
		if err := cfg.Validate(); err != nil {
			log.Fatal().Err(err).Msg("Invalid db-driver override")
		}
	}

	ctx := context.Background()

	// -------- Storage layer -----------------
	st, err := factory.NewStore(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Store unavailable")
	}
	defer func() { _ = st.Close() }()

	if cfg.SeedDemoData {
		if err := seed.Load(ctx, st, log); err != nil {
			log.Fatal().Err(err).Msg("Demo data seeding failed")
		}
	}

	// -------- Gateway & executor ------------
	priv, err := paycrypt.EnsureKeys(cfg.KeyDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Gateway key provisioning failed")
	}
	gw := gateway.NewService(st, priv, log)

	var gwClient payments.Gateway
	switch cfg.GatewayMode {
	case "remote":
		gwClient = payments.NewRemoteGateway(cfg.GatewayURL, gw.PublicKey(), cfg.GatewayTimeout)
	default:
		gwClient = payments.NewInProcessGateway(gw)
	}

	shop, err := st.Users().GetByPhone(ctx, seed.ShopPhone)
	if err != nil {
		log.Fatal().Err(err).Msg("Shop account missing; seed demo data or provision one")
	}

	sink := activity.NewSink(st, cfg.ActivityBuffer, log)
	defer sink.Close()

	executor := payments.NewExecutor(st, gwClient, sink, shop.UserID, cfg.GatewayTimeout, log)

	// -------- Dialog agent ------------------
	parser := intent.NewParser(st.Users())
	register := pending.NewRegister()
	ag := agent.New(st, parser, register, executor, log)

	// -------- Router & Server ---------------
	sessions := api.NewSessions()
	handlers := api.NewHandlers(st, ag, gw, sessions, log)
	router := api.NewRouter(handlers, log)

	server := &http.Server{
		Addr:         cfg.GetHTTPAddr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}
