// Package database opens the sqlite inventory database and manages its
// schema through embedded migrations.
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Open opens (creating if necessary) the sqlite database at dbPath.
func Open(dbPath string) (*sql.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection keeps sqlite's own locking out of the picture;
	// serialization is the store's job.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return db, nil
}

// Migrate applies all pending schema migrations.
func Migrate(db *sql.DB) error {
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create migrate driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// seedItem is one row of the starter inventory.
type seedItem struct {
	name        string
	quantity    int
	price       float64
	description string
	aisle       string
}

var seedItems = []seedItem{
	{"Apple", 50, 0.75, "Crisp red apples, sold per piece", "Produce 1"},
	{"Banana", 120, 0.25, "Ripe yellow bananas, sold per piece", "Produce 1"},
	{"Potato", 80, 0.40, "Russet potatoes, sold per piece", "Produce 2"},
	{"Milk", 30, 3.20, "Whole milk, 1 gallon", "Dairy 4"},
	{"Egg", 200, 0.35, "Free-range eggs, sold per piece", "Dairy 4"},
	{"Bread", 25, 2.50, "Sourdough loaf, baked daily", "Bakery 6"},
	{"Coffee", 18, 8.90, "Whole-bean medium roast, 12 oz", "Pantry 9"},
}

// Seed inserts the starter inventory when the table is empty. Running it
// against a populated database is a no-op.
func Seed(ctx context.Context, db *sql.DB) error {
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM inventory").Scan(&count); err != nil {
		return fmt.Errorf("count inventory: %w", err)
	}
	if count > 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const insert = `INSERT INTO inventory (ProductName, QuantityInStock, Price, Description, Aisle)
		VALUES (?, ?, ?, ?, ?)`
	for _, it := range seedItems {
		if _, err := tx.ExecContext(ctx, insert, it.name, it.quantity, it.price, it.description, it.aisle); err != nil {
			return fmt.Errorf("seed %s: %w", it.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}
