package main

import (
	"flag"
	"log"

	"github.com/danmuck/lwctl/internal/config"
)

const defaultPath = "lwctl.toml"

func main() {
	output := flag.String("output", defaultPath, "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", defaultPath, "config path for validation")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		settings, err := config.Load(*input)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated config at %s (framing=%s endpoint=%s)", *input, settings.Session.Framing, settings.Session.Endpoint)
		return
	}

	if err := config.WriteTemplate(*output, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote config template to %s", *output)
}
