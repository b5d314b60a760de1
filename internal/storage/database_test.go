package storage

import (
	"testing"
	"time"

	"mentora/internal/config"
)

func TestMigrateIsIdempotent(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("open memory db: %v", err)
	}
	defer db.Close()
	if err := Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	for _, table := range []string{"users", "companies", "products", "sales", "chat_histories", "refresh_tokens"} {
		var n int
		if err := db.Get(&n, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table); err != nil {
			t.Fatalf("lookup %s: %v", table, err)
		}
		if n != 1 {
			t.Fatalf("table %s missing", table)
		}
	}
}

func TestCascadeDeleteFromUser(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("open memory db: %v", err)
	}
	defer db.Close()
	now := time.Now().UTC()
	db.MustExec(`INSERT INTO users (id, username, password_hash, created_at) VALUES (1, 'owner', 'x', ?)`, now)
	db.MustExec(`INSERT INTO companies (id, name, owner_id, created_at) VALUES (1, 'Toko', 1, ?)`, now)
	db.MustExec(`INSERT INTO products (id, company_id, name, price, created_at) VALUES (1, 1, 'Kopi', 18000, ?)`, now)
	db.MustExec(`INSERT INTO sales (company_id, product_id, quantity, sale_date) VALUES (1, 1, 2, ?)`, now)
	db.MustExec(`INSERT INTO chat_histories (company_id, prompt, response, created_at) VALUES (1, 'p', 'r', ?)`, now)

	db.MustExec(`DELETE FROM users WHERE id = 1`)
	for _, table := range []string{"companies", "products", "sales", "chat_histories"} {
		var n int
		if err := db.Get(&n, `SELECT COUNT(*) FROM `+table); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if n != 0 {
			t.Fatalf("expected %s to be emptied by cascade, got %d rows", table, n)
		}
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	cfg := &config.Config{Databases: map[string]config.DatabaseConfig{"oracle": {DSN: "x"}}}
	if _, err := Open("oracle", cfg); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
	if _, err := Open("sqlite3", cfg); err == nil {
		t.Fatalf("expected error for missing sqlite config")
	}
}
