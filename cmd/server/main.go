package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/stheno/internal/cast"
	"github.com/Nixie-Tech-LLC/stheno/internal/cast/go2tvcast"
	"github.com/Nixie-Tech-LLC/stheno/internal/config"
	"github.com/Nixie-Tech-LLC/stheno/internal/db"
	"github.com/Nixie-Tech-LLC/stheno/internal/device"
	"github.com/Nixie-Tech-LLC/stheno/internal/discovery"
	"github.com/Nixie-Tech-LLC/stheno/internal/engine"
	"github.com/Nixie-Tech-LLC/stheno/internal/livestatus"
	"github.com/Nixie-Tech-LLC/stheno/internal/rotation"
	"github.com/Nixie-Tech-LLC/stheno/internal/schedule"
	"github.com/Nixie-Tech-LLC/stheno/internal/telemetry"
)

func main() {
	// .env is optional outside of local development
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db init")
	}
	defer conn.Close()
	store := db.NewStore(conn)

	// castdns first: its TXT records carry friendly names, which win
	// the first-seen merge over SSDP's server strings.
	directory := discovery.New(cfg.DiscoveryTimeout,
		discovery.CastDNSScanner{},
		discovery.SSDPScanner{},
	)

	devices := device.NewManager(directory, go2tvcast.Connector{}, store,
		cfg.ConnectTimeout, cfg.BreakerFailures, cfg.BreakerCooldown)
	defer devices.Close()

	dispatcher := cast.NewDispatcher(cfg.DebounceWindow)

	events := initTelemetry(cfg)
	defer events.Close()

	notifier := livestatus.New(cfg.RedisAddress, cfg.RedisUsername, cfg.RedisPassword)
	defer notifier.Close()

	eng := engine.New(store,
		schedule.Evaluator{Grace: cfg.GracePeriod},
		rotation.NewTracker(),
		devices, dispatcher, events, notifier,
		cfg.TickInterval, cfg.Workers)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go eng.Run(ctx)

	srv := &http.Server{
		Addr:    cfg.ServerAddress,
		Handler: router(eng, directory),
	}
	go func() {
		log.Info().Str("address", cfg.ServerAddress).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
}

func initTelemetry(cfg *config.Config) telemetry.Publisher {
	if cfg.MQTTBrokerURL == "" {
		log.Info().Msg("no MQTT broker configured, telemetry disabled")
		return telemetry.Nop{}
	}
	pub, err := telemetry.NewMQTTPublisher(cfg.MQTTBrokerURL, fmt.Sprintf("stheno-%d", os.Getpid()))
	if err != nil {
		log.Error().Err(err).Msg("telemetry broker unavailable, continuing without")
		return telemetry.Nop{}
	}
	return pub
}
