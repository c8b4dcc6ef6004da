package main

import (
	"fmt"
	"log"

	"github.com/loanwell/lectern-go/internal/assets"
	"github.com/loanwell/lectern-go/internal/bookdb"
	"github.com/loanwell/lectern-go/internal/config"
	"github.com/loanwell/lectern-go/internal/db"
	"github.com/loanwell/lectern-go/internal/models"
)

// A small inspection tool: prints every locally held book with its
// availability. Useful for checking a library without starting the server.
func main() {
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
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	store := bookdb.New(database, cfg.Library.Path)
	books, err := store.List()
	if err != nil {
		log.Fatalf("Failed to list books: %v", err)
	}

	if len(books) == 0 {
		fmt.Println("No books in the library.")
		return
	}
	for _, book := range books {
		state := models.AvailabilityState(book.Entry.Availability)
		fmt.Printf("%s  %-12s  %s\n", book.ID, state, book.Entry.Title)
		for _, format := range book.Formats {
			fmt.Printf("    %s\n", format.ContentType)
		}
	}
}
