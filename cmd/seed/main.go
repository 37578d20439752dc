package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"

	"gorm.io/gorm"

	"civicwatch/internal/auth"
	"civicwatch/internal/config"
	"civicwatch/internal/db"
	"civicwatch/internal/model"
	"civicwatch/internal/repository"
	"civicwatch/internal/service"
)

// SeedAdminData is one administrator in a seed file.
type SeedAdminData struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func main() {
	log.Println("Starting admin seed...")

	cfg := config.Load()

	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Connected to database")

	if err := db.Migrate(gormDB); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	admins, err := loadAdmins()
	if err != nil {
		log.Fatalf("Failed to load admins: %v", err)
	}
	if len(admins) == 0 {
		log.Fatalf("No admins to seed: set ADMIN_SEED_FILE, ADMIN_SEED_URL or ADMIN_EMAIL and ADMIN_PASSWORD")
	}
	log.Printf("Loaded %d admins", len(admins))

	adminRepo := repository.NewAdminRepository(gormDB)
	seeded, updated, err := seedAdmins(context.Background(), adminRepo, admins)
	if err != nil {
		log.Fatalf("Failed to seed admins: %v", err)
	}

	log.Printf("Seed completed successfully!")
	log.Printf("  - New admins created: %d", seeded)
	log.Printf("  - Existing admins updated: %d", updated)
	log.Printf("  - Total admins processed: %d", seeded+updated)
}

// loadAdmins reads admins from a JSON file, a JSON URL or the ADMIN_* variables, in that order.
func loadAdmins() ([]SeedAdminData, error) {
	if path := os.Getenv("ADMIN_SEED_FILE"); path != "" {
		log.Printf("Reading admins from: %s", path)
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open seed file: %w", err)
		}
		defer f.Close()
		return decodeAdmins(f)
	}

	if url := os.Getenv("ADMIN_SEED_URL"); url != "" {
		log.Printf("Fetching admins from: %s", url)
		return fetchAdminsFromAPI(url)
	}

	if email := os.Getenv("ADMIN_EMAIL"); email != "" {
		return []SeedAdminData{{
			Email:    email,
			Password: os.Getenv("ADMIN_PASSWORD"),
			Name:     os.Getenv("ADMIN_NAME"),
		}}, nil
	}
	return nil, nil
}

// fetchAdminsFromAPI fetches admin data from a remote JSON document.
func fetchAdminsFromAPI(url string) ([]SeedAdminData, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch from API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status code: %d", resp.StatusCode)
	}
	return decodeAdmins(resp.Body)
}

func decodeAdmins(r io.Reader) ([]SeedAdminData, error) {
	var admins []SeedAdminData
	if err := json.NewDecoder(r).Decode(&admins); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return admins, nil
}

// seedAdmins creates new admins or resets the name and password of existing ones.
func seedAdmins(ctx context.Context, repo repository.AdminRepository, admins []SeedAdminData) (seeded int, updated int, err error) {
	for _, item := range admins {
		email := service.NormalizeEmail(item.Email)
		if email == "" || len(item.Password) < 8 || len(item.Password) > auth.MaxPasswordBytes {
			return seeded, updated, fmt.Errorf("admin %q needs an email and a password of 8 to %d bytes", item.Email, auth.MaxPasswordBytes)
		}
		name := strings.TrimSpace(item.Name)
		if name == "" {
			name = "Administrator"
		}

		hashed, err := auth.HashPassword(item.Password)
		if err != nil {
			return seeded, updated, fmt.Errorf("error hashing password for %s: %w", email, err)
		}

		existing, err := repo.FindByEmail(ctx, email)
		if err != nil && !stderrors.Is(err, gorm.ErrRecordNotFound) {
			return seeded, updated, fmt.Errorf("error checking admin %s: %w", email, err)
		}

		if existing != nil {
			existing.Name = name
			existing.PasswordHash = hashed
			if err := repo.Update(ctx, existing); err != nil {
				return seeded, updated, fmt.Errorf("error updating admin %s: %w", email, err)
			}
			updated++
			continue
		}

		admin := &model.Admin{Email: email, Name: name, PasswordHash: hashed}
		if err := repo.Create(ctx, admin); err != nil {
			return seeded, updated, fmt.Errorf("error creating admin %s: %w", email, err)
		}
		seeded++
	}

	return seeded, updated, nil
}
