// Command main runs the database seeder for Haven.
package main

import (
	"flag"
	"log"
	"time"

	"haven/internal/config"
	"haven/internal/database"
	"haven/internal/middleware"
	"haven/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 50, "Number of users to create")
	numChannels := flag.Int("channels", 12, "Number of channels to create")
	numMessages := flag.Int("messages", 500, "Number of messages to create")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	mintFor := flag.Uint("token-for", 0, "Print a signed token for the given user ID and exit")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *mintFor > 0 {
		token, err := middleware.MintToken(cfg.JWTSecret, uint(*mintFor), 24*time.Hour)
		if err != nil {
			log.Fatalf("Failed to mint token: %v", err)
		}
		log.Printf("token for user %d:\n%s", *mintFor, token)
		return
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := seed.Seed(db, seed.Options{
		NumUsers:    *numUsers,
		NumChannels: *numChannels,
		NumMessages: *numMessages,
		ShouldClean: *shouldClean,
	}); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Println("Seeding complete")
}
