// Command main fills the database with demo users, rooms and chat.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"blueroom/internal/bootstrap"
	"blueroom/internal/config"
	"blueroom/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 40, "Number of users to create")
	numRooms := flag.Int("rooms", 8, "Number of rooms to open")
	messages := flag.Int("messages", 20, "Chat messages per room")
	closedPct := flag.Int("closed", 25, "Percentage of rooms closed after seeding")
	shouldClean := flag.Bool("clean", true, "Clean rooms, chat and non-admin users before seeding")
	catalogPath := flag.String("catalog", "", "Subject/background catalog YAML (built-in when empty)")
	seedValue := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	flag.Parse()

	log.Println("Blueroom seeder")
	log.Printf("Target: %d users, %d rooms, %d messages/room, clean=%v", *numUsers, *numRooms, *messages, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, _, err := bootstrap.InitRuntime(cfg, bootstrap.Options{SeedCatalog: true, CatalogPath: *catalogPath})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	s := seed.NewSeeder(db)
	if *shouldClean {
		if err := s.ClearAll(); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	if _, err := s.Run(context.Background(), seed.Options{
		Users:           *numUsers,
		Rooms:           *numRooms,
		MessagesPerRoom: *messages,
		ClosedPct:       *closedPct,
		Seed:            *seedValue,
	}); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Done. All demo users have the password: %s", seed.DemoPassword)
}
