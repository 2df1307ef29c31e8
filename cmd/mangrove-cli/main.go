// A small operator CLI: hash an admin token for config.yml, or run the
// database migrations without starting the server.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/corvida/mangrove/internal/assets"
	"github.com/corvida/mangrove/internal/auth"
	"github.com/corvida/mangrove/internal/config"
	"github.com/corvida/mangrove/internal/db"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
  mangrove-cli hash-token <token>   Print the bcrypt hash for admin.token_hash
  mangrove-cli migrate              Apply database migrations and exit
`)
	os.Exit(2)
}

func main() {
	log.SetFlags(log.LstdFlags)

	if len(os.Args) < 2 {
		usage()
	}

	switch os.Args[1] {
	case "hash-token":
		if len(os.Args) != 3 {
			usage()
		}
		hash, err := auth.HashToken(os.Args[2])
		if err != nil {
			log.Fatalf("Could not hash token: %v", err)
		}
		fmt.Println(hash)

	case "migrate":
		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		database, err := db.InitDB(cfg.Database.Path)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer database.Close()
		if err := db.RunMigrations(database, assets.MigrationsFS); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}

	default:
		usage()
	}
}
