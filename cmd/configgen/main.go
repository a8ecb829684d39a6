package main

import (
	"flag"
	"log"

	"github.com/danmuck/tspsctl/internal/config"
)

func main() {
	kind := flag.String("kind", "listener", "config kind: listener|sender")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing listener config file")
	input := flag.String("input", "", "config path for validation (defaults to cmd/tspsctl/config.toml)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		if *kind != "listener" {
			log.Fatalf("validation supports kind=listener only, got %s", *kind)
		}
		path := *input
		if path == "" {
			path = "cmd/tspsctl/config.toml"
		}
		if _, err := config.LoadListenerConfig(path); err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated %s config at %s", *kind, path)
		return
	}

	target := *output
	if target == "" {
		switch *kind {
		case "listener":
			target = "cmd/tspsctl/config.toml"
		case "sender":
			target = "cmd/tspssend/config.toml"
		default:
			log.Fatalf("unknown kind: %s", *kind)
		}
	}

	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *kind, target)
}
