package main

import (
	"flag"

	"github.com/danmuck/tspsctl/internal/admin"
	"github.com/danmuck/tspsctl/internal/config"
	"github.com/danmuck/tspsctl/internal/observability"
	"github.com/danmuck/tspsctl/internal/stream"
	"github.com/danmuck/tspsctl/internal/tsps"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "cmd/tspsctl/config.toml", "listener config path")
	flag.Parse()

	observability.InitLogger("tspsctl")
	observability.RegisterMetrics()

	cfg, err := config.LoadListenerConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load listener config")
	}
	log.Info().Str("path", *configPath).Int("port", cfg.Port).Msg("loaded listener config")

	svcCfg, err := cfg.ServiceConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid listener config")
	}
	svc, err := tsps.NewService(svcCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create service")
	}

	hub := stream.NewHub(cfg.StreamBuffer)
	defer hub.Close()
	svc.AddObserver(hub.Observer())

	api := admin.New(admin.Config{
		Name:           svcCfg.Name,
		Addr:           cfg.AdminAddr,
		CORSOrigins:    cfg.CorsOrigins,
		Token:          cfg.AdminToken,
		TrustedProxies: cfg.TrustedProxies,
	}, svc, hub)

	if err := svc.Run(api.Serve); err != nil {
		log.Error().Err(err).Msg("tspsctl stopped")
		hub.Close()
		log.Fatal().Msg("exiting")
	}
	log.Info().Msg("tspsctl stopped")
}
