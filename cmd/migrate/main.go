package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"clinic-booking/internal/config"
	"clinic-booking/internal/store"
	"clinic-booking/pkg/logging"
)

// usage: migrate [up|down|version|force <version>]
func main() {
	flag.Parse()
	cfg := config.Load()
	log := logging.New(cfg.LogLevel)

	mg, err := store.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("migrator")
	}
	defer func() { _ = mg.Close() }()

	cmd := flag.Arg(0)
	switch cmd {
	case "", "up":
		err = mg.Up()
	case "down":
		err = mg.Down()
	case "version":
		v, dirty, verr := mg.Version()
		if verr != nil {
			log.WithError(verr).Fatal("version")
		}
		fmt.Printf("version %d dirty=%v\n", v, dirty)
		return
	case "force":
		v, perr := strconv.Atoi(flag.Arg(1))
		if perr != nil {
			log.WithError(perr).Fatal("invalid version")
		}
		err = mg.Force(v)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		os.Exit(2)
	}
	if err != nil {
		log.WithError(err).Fatal("migrate " + cmd)
	}
	log.WithField("cmd", cmd).Info("migrations complete")
}
