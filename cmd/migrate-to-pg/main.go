// migrate-to-pg pushes a device's local verification state (sqlite probe
// history plus the badger duration cache) into a central PostgreSQL database
// so other devices can pull the same detected durations instead of re-probing.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/shapedtime/hoarderwatch/internal/cache"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS probe_attempts (
    id BIGINT PRIMARY KEY,
    recording_id TEXT NOT NULL,
    container TEXT NOT NULL,
    expected_seconds BIGINT NOT NULL,
    detected_seconds BIGINT,
    outcome TEXT NOT NULL,
    error TEXT,
    probed_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS duration_cache (
    recording_id TEXT PRIMARY KEY,
    detected_seconds BIGINT NOT NULL
);
`

func main() {
	sqlitePath := flag.String("sqlite-path", "", "Path to the probe history SQLite file")
	cachePath := flag.String("cache-path", "", "Path to the duration cache directory")
	pgURL := flag.String("pg-url", "", "PostgreSQL connection URL")
	flag.Parse()

	if *sqlitePath == "" || *cachePath == "" || *pgURL == "" {
		fmt.Fprintf(os.Stderr, "Usage: migrate-to-pg --sqlite-path ./data/hoarderwatch.db --cache-path ./data/durations --pg-url postgres://...\n")
		os.Exit(1)
	}

	// Open SQLite
	sqliteDB, err := sql.Open("sqlite", *sqlitePath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer sqliteDB.Close()

	if err := sqliteDB.Ping(); err != nil {
		log.Fatalf("Failed to ping SQLite: %v", err)
	}
	log.Println("Connected to SQLite")

	// Open the duration cache
	store, err := cache.NewBadgerStore(*cachePath)
	if err != nil {
		log.Fatalf("Failed to open duration cache: %v", err)
	}
	defer store.Close()
	log.Println("Opened duration cache")

	// Open PostgreSQL
	pgDB, err := sql.Open("pgx", *pgURL)
	if err != nil {
		log.Fatalf("Failed to open PostgreSQL: %v", err)
	}
	defer pgDB.Close()

	if err := pgDB.Ping(); err != nil {
		log.Fatalf("Failed to ping PostgreSQL: %v", err)
	}
	log.Println("Connected to PostgreSQL")

	if _, err := pgDB.Exec(pgSchema); err != nil {
		log.Fatalf("Failed to create target schema: %v", err)
	}

	// Start transaction
	tx, err := pgDB.Begin()
	if err != nil {
		log.Fatalf("Failed to start transaction: %v", err)
	}
	defer tx.Rollback()

	// Truncate target tables for idempotent re-runs
	for _, table := range []string{"probe_attempts", "duration_cache"} {
		if _, err := tx.Exec(fmt.Sprintf("TRUNCATE TABLE %s", table)); err != nil {
			log.Fatalf("Failed to truncate %s: %v", table, err)
		}
	}
	log.Println("Truncated target tables")

	count, err := migrateHistory(sqliteDB, tx)
	if err != nil {
		log.Fatalf("Failed to migrate probe history: %v", err)
	}
	log.Printf("Migrated probe_attempts: %d rows", count)

	count, err = migrateCache(store, tx)
	if err != nil {
		log.Fatalf("Failed to migrate duration cache: %v", err)
	}
	log.Printf("Migrated duration_cache: %d entries", count)

	// Verify row counts
	var sqliteCount, pgCount int64
	if err := sqliteDB.QueryRow("SELECT COUNT(*) FROM probe_attempts").Scan(&sqliteCount); err != nil {
		log.Fatalf("Failed to count SQLite rows: %v", err)
	}
	if err := tx.QueryRow("SELECT COUNT(*) FROM probe_attempts").Scan(&pgCount); err != nil {
		log.Fatalf("Failed to count PG rows: %v", err)
	}
	if sqliteCount != pgCount {
		log.Fatalf("Row count mismatch for probe_attempts: SQLite=%d, PG=%d", sqliteCount, pgCount)
	}
	log.Printf("Verified probe_attempts: %d rows match", sqliteCount)

	// Commit
	if err := tx.Commit(); err != nil {
		log.Fatalf("Failed to commit transaction: %v", err)
	}

	log.Println("Migration completed successfully!")
}

func migrateHistory(sqliteDB *sql.DB, tx *sql.Tx) (int64, error) {
	columns := "id, recording_id, container, expected_seconds, detected_seconds, outcome, error, probed_at"

	rows, err := sqliteDB.Query(fmt.Sprintf("SELECT %s FROM probe_attempts", columns))
	if err != nil {
		return 0, fmt.Errorf("failed to query SQLite: %w", err)
	}
	defer rows.Close()

	colNames, err := rows.Columns()
	if err != nil {
		return 0, fmt.Errorf("failed to get columns: %w", err)
	}

	placeholders := make([]string, len(colNames))
	for i := range colNames {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	stmt, err := tx.Prepare(fmt.Sprintf(
		"INSERT INTO probe_attempts (%s) VALUES (%s)",
		columns, strings.Join(placeholders, ", "),
	))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	var count int64
	for rows.Next() {
		values := make([]interface{}, len(colNames))
		valuePtrs := make([]interface{}, len(colNames))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return 0, fmt.Errorf("failed to scan row: %w", err)
		}

		if _, err := stmt.Exec(values...); err != nil {
			return 0, fmt.Errorf("failed to insert row: %w", err)
		}
		count++
	}

	return count, rows.Err()
}

func migrateCache(store cache.Store, tx *sql.Tx) (int64, error) {
	entries, err := store.All()
	if err != nil {
		return 0, fmt.Errorf("failed to snapshot cache: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO duration_cache (recording_id, detected_seconds) VALUES ($1, $2)")
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	var count int64
	for id, seconds := range entries {
		if _, err := stmt.Exec(id, seconds); err != nil {
			return 0, fmt.Errorf("failed to insert entry: %w", err)
		}
		count++
	}

	return count, nil
}
