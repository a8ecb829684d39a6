package main

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type fileConfig struct {
	Target string  `toml:"target"`
	People int     `toml:"people"`
	Frames int     `toml:"frames"`
	Rate   string  `toml:"rate"`
	Bundle bool    `toml:"bundle"`
	Speed  float64 `toml:"speed"`
	Seed   int64   `toml:"seed"`
}

// senderConfig drives one simulated TSPS session.
type senderConfig struct {
	Host   string
	Port   int
	People int
	Frames int
	Rate   time.Duration
	Bundle bool
	Speed  float64
	Seed   int64
}

func defaultSenderConfig() senderConfig {
	return senderConfig{
		Host:   "127.0.0.1",
		Port:   12000,
		People: 3,
		Frames: 120,
		Rate:   33 * time.Millisecond,
		Bundle: true,
		Speed:  0.01,
		Seed:   1,
	}
}

func loadSenderConfig(path string) (senderConfig, error) {
	cfg := defaultSenderConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return senderConfig{}, fmt.Errorf("load sender config: %w", err)
	}

	if meta.IsDefined("target") {
		host, port, err := splitTarget(raw.Target)
		if err != nil {
			return senderConfig{}, err
		}
		cfg.Host, cfg.Port = host, port
	}
	if meta.IsDefined("people") {
		cfg.People = raw.People
	}
	if meta.IsDefined("frames") {
		cfg.Frames = raw.Frames
	}
	if meta.IsDefined("rate") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Rate))
		if err != nil {
			return senderConfig{}, fmt.Errorf("parse rate: %w", err)
		}
		cfg.Rate = d
	}
	if meta.IsDefined("bundle") {
		cfg.Bundle = raw.Bundle
	}
	if meta.IsDefined("speed") {
		cfg.Speed = raw.Speed
	}
	if meta.IsDefined("seed") {
		cfg.Seed = raw.Seed
	}

	if err := cfg.validate(); err != nil {
		return senderConfig{}, err
	}
	return cfg, nil
}

func (c senderConfig) validate() error {
	if c.People < 0 {
		return fmt.Errorf("people must be >= 0, got %d", c.People)
	}
	if c.Frames < 0 {
		return fmt.Errorf("frames must be >= 0, got %d", c.Frames)
	}
	if c.Rate < 0 {
		return fmt.Errorf("rate must be >= 0, got %s", c.Rate)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("target port out of range: %d", c.Port)
	}
	return nil
}

func splitTarget(target string) (string, int, error) {
	host, rawPort, err := net.SplitHostPort(strings.TrimSpace(target))
	if err != nil {
		return "", 0, fmt.Errorf("parse target: %w", err)
	}
	port, err := strconv.Atoi(rawPort)
	if err != nil {
		return "", 0, fmt.Errorf("parse target port: %w", err)
	}
	if host == "" {
		host = "127.0.0.1"
	}
	return host, port, nil
}
