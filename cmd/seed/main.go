package main

import (
	"flag"
	"os"

	"github.com/oggyb/companion/internal/config"
	"github.com/oggyb/companion/internal/db"
	"github.com/oggyb/companion/internal/logger"
)

func main() {
	mode := flag.String("mode", "full", "Seed mode: full|companions|minimal")
	flag.Parse()

	// Load configuration
	cfg := config.New()
	logger.InitFromConfig(cfg)
	log := logger.L().With("cmd", "seed", "mode", *mode)

	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		os.Exit(1)
	}

	switch *mode {
	case "full":
		err = db.SeedTestData(database)
	case "companions":
		err = db.SeedCompanions(database)
	case "minimal":
		err = db.SeedMinimalTestData(database)
	default:
		log.Error("unknown seed mode")
		os.Exit(2)
	}
	if err != nil {
		log.Error("failed to seed", "err", err)
		os.Exit(1)
	}

	log.Info("seeding completed")
}
