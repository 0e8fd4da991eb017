package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"botscan/adapters/postgres"
	"botscan/internal/migration"
	"botscan/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: migrate <database_url> [scan_export_dir]")
	}

	databaseURL := os.Args[1]
	ctx := context.Background()

	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	runner := migration.NewRunner()
	if err := runner.Run(ctx, db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Printf("Schema at version %s", runner.Version())

	if len(os.Args) < 3 {
		return
	}

	exportDir := os.Args[2]
	files, err := findScanFiles(exportDir)
	if err != nil {
		log.Fatalf("Failed to find scan files: %v", err)
	}
	log.Printf("Found %d scan files to import", len(files))

	repo := postgres.NewScanRecordRepository(db)
	imported := 0
	skipped := 0
	for _, file := range files {
		records, err := loadScanRecords(file)
		if err != nil {
			log.Printf("Failed to load scans from %s: %v", file, err)
			skipped++
			continue
		}
		for _, record := range records {
			if err := repo.SaveScan(ctx, record); err != nil {
				log.Printf("Failed to save scan %s: %v", record.ID, err)
				skipped++
				continue
			}
			imported++
		}
		log.Printf("Imported %d scans from %s", len(records), filepath.Base(file))
	}

	log.Printf("Import complete: %d imported, %d skipped", imported, skipped)
}

func findScanFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(info.Name(), ".json") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// loadScanRecords reads either a single record or an array of records, as
// written by the history endpoint.
func loadScanRecords(path string) ([]*models.ScanRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var records []*models.ScanRecord
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		err = json.Unmarshal(data, &records)
	} else {
		var record models.ScanRecord
		err = json.Unmarshal(data, &record)
		records = append(records, &record)
	}
	if err != nil {
		return nil, err
	}

	out := records[:0]
	for _, r := range records {
		if r == nil || r.Username == "" {
			continue
		}
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		if r.ScannedAt.IsZero() {
			r.ScannedAt = time.Now().UTC()
		}
		out = append(out, r)
	}
	return out, nil
}
