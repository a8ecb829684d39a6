package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "listener", "tspsctl":
		return listenerTemplate, nil
	case "sender", "tspssend":
		return senderTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const listenerTemplate = `name = "tspsctl"
host = "0.0.0.0"
port = 12000
admin_addr = "127.0.0.1:9400"
cors_origins = ["http://localhost:3000"]
# trusted_proxies = ["127.0.0.1", "::1"]
tick = "16ms"
heartbeat = "10s"
reconnect_delay = "100ms"
supervisor_interval = "1s"
log_events = true
stream_buffer = 256

[backoff]
initial = "250ms"
multiplier = 2.0
max = "5s"
jitter = true
`

const senderTemplate = `target = "127.0.0.1:12000"
people = 3
frames = 120
rate = "33ms"
bundle = true
speed = 0.01
seed = 1
`
