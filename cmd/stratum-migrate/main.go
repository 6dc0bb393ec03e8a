package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/platinummonkey/stratum"
	"github.com/platinummonkey/stratum/pkg/config"
)

func main() {
	// Parse command line flags
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall migration timeout")
	check := flag.Bool("check", false, "Only verify connectivity, do not apply the schema")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	engine, err := stratum.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to open stratum: %v", err)
	}
	defer engine.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *check {
		if err := engine.HealthCheck(ctx); err != nil {
			log.Fatalf("Health check failed: %v", err)
		}
		log.Println("Database healthy, schema not touched")
		return
	}

	log.Println("Applying stratum schema...")
	if err := engine.Migrate(ctx); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Migration complete")
}
