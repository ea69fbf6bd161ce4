package main

import (
	"context"
	"log"
	"time"

	"github.com/emworks/ux-agent/internal/app"
	"github.com/emworks/ux-agent/internal/config"
)

// Seeds the configured store with a facilitator, three participants and one
// research-mode room they have all joined.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Startup failed: %v", err)
	}
	defer a.Close()

	owner, err := a.Users.CreateUser(ctx, "Facilitator")
	if err != nil {
		log.Fatalf("Failed to create owner: %v", err)
	}

	room, err := a.Rooms.CreateRoom(ctx, "Sprint planning demo", owner.ID, true)
	if err != nil {
		log.Fatalf("Failed to create room: %v", err)
	}

	for _, name := range []string{"Alice", "Bob", "Carol"} {
		u, err := a.Users.CreateUser(ctx, name)
		if err != nil {
			log.Fatalf("Failed to create user %s: %v", name, err)
		}
		if _, err := a.Rooms.JoinRoom(ctx, room.ID, u.ID); err != nil {
			log.Fatalf("Failed to join %s: %v", name, err)
		}
		log.Printf("Participant %s: %s", name, u.ID)
	}

	log.Printf("Owner: %s", owner.ID)
	log.Printf("Room:  %s (ws /rooms/%s?userId=%s)", room.ID, room.ID, owner.ID)
}
