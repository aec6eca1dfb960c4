package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"municipal/internal/bookings"
	"municipal/internal/events"
	"municipal/internal/shared/config"
	"municipal/internal/shared/database"
	"municipal/internal/shared/validation"
	"municipal/internal/users"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

var admin = users.Principal{Username: "admin", Role: users.RoleAdmin}

type Seeder struct {
	db       *database.DB
	events   events.Service
	bookings bookings.Service
}

func main() {
	_ = godotenv.Load()
	fmt.Println("Starting municipal database seeder...")

	cfg := config.Load()
	validation.Register()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.InitDB(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	eventService := events.NewService(events.NewRepository(db.SQL))
	bookingService := bookings.NewService(bookings.NewRepository(db.SQL), events.NewRepository(db.SQL), cfg.Booking)
	eventService.SetBookingKeeper(bookingService)

	seeder := &Seeder{db: db, events: eventService, bookings: bookingService}

	fmt.Println("\nCleaning database...")
	if err := seeder.CleanDatabase(); err != nil {
		log.Fatalf("Failed to clean database: %v", err)
	}

	fmt.Println("\nSeeding database...")
	if err := seeder.SeedAll(ctx); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}

	fmt.Println("\nSeeding completed.")
}

// CleanDatabase empties all tables, children first
func (s *Seeder) CleanDatabase() error {
	tables := []string{
		"notification_records",
		"bookings",
		"event_zones",
		"events",
	}

	return s.db.SQL.Transaction(func(tx *gorm.DB) error {
		for _, table := range tables {
			fmt.Printf("  Clearing table: %s\n", table)
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("failed to clear table %s: %w", table, err)
			}
		}
		return nil
	})
}

// SeedAll creates a general-mode event, a zoned event and a few bookings
// against each through the regular services
func (s *Seeder) SeedAll(ctx context.Context) error {
	start := time.Now().AddDate(0, 0, 14)

	concert, err := s.events.CreateEvent(ctx, admin, events.CreateEventRequest{
		Title:        "Summer Concert in the Park",
		Date:         start.Format(validation.DateLayout),
		Time:         "19:30",
		Venue:        "Central Park Bandstand",
		Status:       string(events.StatusOpenCall),
		CapacityMode: string(events.ModeGeneral),
		TotalQuota:   120,
	})
	if err != nil {
		return fmt.Errorf("failed to seed concert: %w", err)
	}
	fmt.Printf("  Created event: %s\n", concert.Title)

	fair, err := s.events.CreateEvent(ctx, admin, events.CreateEventRequest{
		Title:        "Neighbourhood Craft Fair",
		Date:         start.AddDate(0, 0, 7).Format(validation.DateLayout),
		Time:         "10:00",
		Venue:        "Town Hall Square",
		Status:       string(events.StatusConfirmed),
		CapacityMode: string(events.ModeZones),
	})
	if err != nil {
		return fmt.Errorf("failed to seed fair: %w", err)
	}
	fmt.Printf("  Created event: %s\n", fair.Title)

	fairID := uuid.MustParse(fair.ID)
	zoneIDs := make(map[string]uuid.UUID)
	for _, z := range []events.CreateZoneRequest{
		{Name: "North Arcade", Quota: 20},
		{Name: "South Arcade", Quota: 15},
		{Name: "Food Court", Quota: 0},
	} {
		zone, err := s.events.CreateZone(ctx, fairID, z)
		if err != nil {
			return fmt.Errorf("failed to seed zone %s: %w", z.Name, err)
		}
		zoneIDs[z.Name] = uuid.MustParse(zone.ID)
		fmt.Printf("    Created zone: %s (quota %d)\n", zone.Name, zone.Quota)
	}

	concertID := uuid.MustParse(concert.ID)
	seeds := []bookings.PrivilegedRequest{
		{EventID: &concertID, Requester: "Riverside Choir", RequestedUnits: intPtr(30), Status: bookings.StatusConfirmed},
		{EventID: &concertID, Requester: "Senior Centre", RequestedUnits: intPtr(12)},
		{EventID: &fairID, ZoneID: ptr(zoneIDs["North Arcade"]), Space: "Stand 4", Requester: "Pottery Guild", RequestedUnits: intPtr(3), Status: bookings.StatusConfirmed},
		{EventID: &fairID, ZoneID: ptr(zoneIDs["South Arcade"]), Space: "Stand 9", Requester: "Knitting Circle", RequestedUnits: intPtr(2)},
		{EventID: &fairID, ZoneID: ptr(zoneIDs["Food Court"]), Space: "Truck 1", Requester: "Street Bites", RequestedUnits: intPtr(1), Status: bookings.StatusConfirmed},
	}
	for _, req := range seeds {
		req.Caller = admin
		booking, err := s.bookings.CreatePrivileged(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to seed booking for %s: %w", req.Requester, err)
		}
		fmt.Printf("    Created booking %s for %s (%s)\n", booking.Code, booking.Requester, booking.Status)
	}

	if s.db.Redis != nil {
		if err := s.db.Redis.FlushDB(ctx).Err(); err != nil {
			log.Printf("Warning: failed to clear Redis cache: %v", err)
		}
	}

	return nil
}

func intPtr(v int) *int { return &v }

func ptr(id uuid.UUID) *uuid.UUID { return &id }
