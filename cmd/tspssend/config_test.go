package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadSenderConfigDefaultsAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
target = "10.0.0.7:3333"
people = 5
rate = "5ms"
bundle = false
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadSenderConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	def := defaultSenderConfig()
	if cfg.Host != "10.0.0.7" || cfg.Port != 3333 {
		t.Fatalf("unexpected target: %s:%d", cfg.Host, cfg.Port)
	}
	if cfg.People != 5 {
		t.Fatalf("unexpected people: %d", cfg.People)
	}
	if cfg.Rate != 5*time.Millisecond {
		t.Fatalf("unexpected rate: %v", cfg.Rate)
	}
	if cfg.Bundle {
		t.Fatalf("expected bundle disabled")
	}
	if cfg.Frames != def.Frames || cfg.Speed != def.Speed || cfg.Seed != def.Seed {
		t.Fatalf("unset fields should keep defaults: %+v", cfg)
	}
}

func TestLoadSenderConfigRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"bad rate":     `rate = "fast"`,
		"bad target":   `target = "nowhere"`,
		"bad port":     `target = "127.0.0.1:0"`,
		"neg people":   `people = -1`,
		"neg frames":   `frames = -2`,
		"syntax error": `people = `,
	}
	for name, body := range cases {
		path := filepath.Join(dir, name+".toml")
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		if _, err := loadSenderConfig(path); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestShippedSenderConfigLoads(t *testing.T) {
	cfg, err := loadSenderConfig("config.toml")
	if err != nil {
		t.Fatalf("load shipped config: %v", err)
	}
	if cfg.Port != 12000 || !cfg.Bundle {
		t.Fatalf("unexpected shipped config: %+v", cfg)
	}
}
