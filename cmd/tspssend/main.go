package main

import (
	"context"
	"errors"
	"flag"
	"os/signal"
	"syscall"

	"github.com/danmuck/tspsctl/internal/observability"
	"github.com/hypebeast/go-osc/osc"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "sender config path (defaults apply when empty)")
	target := flag.String("target", "", "override target host:port")
	flag.Parse()

	observability.InitLogger("tspssend")

	cfg := defaultSenderConfig()
	if *configPath != "" {
		loaded, err := loadSenderConfig(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load sender config")
		}
		cfg = loaded
	}
	if *target != "" {
		host, port, err := splitTarget(*target)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid target")
		}
		cfg.Host, cfg.Port = host, port
	}
	if err := cfg.validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid sender config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Int("people", cfg.People).
		Int("frames", cfg.Frames).
		Bool("bundle", cfg.Bundle).
		Msg("tspssend starting")

	sent, err := play(ctx, newScene(cfg), osc.NewClient(cfg.Host, cfg.Port))
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Int("sent", sent).Msg("tspssend failed")
	}
	log.Info().Int("sent", sent).Msg("tspssend done")
}
