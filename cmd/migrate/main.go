package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/config"
	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/db"
)

func main() {
	dir := flag.String("dir", "migrations", "directory of .sql migration files")
	flag.Parse()

	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		log.Fatalf("ensure schema table failed: %v", err)
	}

	files, err := listSQLFiles(*dir)
	if err != nil {
		log.Fatalf("list migrations failed: %v", err)
	}

	for _, file := range files {
		if err := apply(ctx, pool, file); err != nil {
			log.Fatalf("migration %s failed: %v", file, err)
		}
	}
}

func apply(ctx context.Context, pool *db.Pool, file string) error {
	var done bool
	row := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE filename=$1)`, file)
	if err := row.Scan(&done); err != nil {
		return err
	}
	if done {
		return nil
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	if sql := strings.TrimSpace(string(data)); sql != "" {
		if _, err := pool.Exec(ctx, sql); err != nil {
			return err
		}
	}
	if _, err := pool.Exec(ctx, `INSERT INTO schema_migrations (filename) VALUES ($1)`, file); err != nil {
		return err
	}
	log.Printf("applied %s", file)
	return nil
}

func listSQLFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
