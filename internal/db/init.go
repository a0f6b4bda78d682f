package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/RezaEskandarii/cronfire/internal/constants"
	"github.com/RezaEskandarii/cronfire/internal/lock"
)

const Schema = "cronfire_schema"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Open opens a Postgres pool and verifies it with a ping.
func Open(ctx context.Context, postgresURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", postgresURL)
	if err != nil {
		return nil, err
	}
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Init creates the schema and applies the embedded migration scripts in name
// order. The migration lock keeps concurrent scheduler processes from running
// them at the same time; every script is idempotent.
func Init(ctx context.Context, db *sql.DB, distributedLock lock.DistributedLockManager, log zerolog.Logger) error {
	migrationLock := constants.MigrationLock

	if err := distributedLock.Acquire(ctx, migrationLock); err != nil {
		return err
	}
	defer func() {
		if err := distributedLock.Release(ctx, migrationLock); err != nil {
			log.Warn().Err(err).Msg("release migration lock")
		}
	}()

	if _, err := db.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", Schema)); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	scripts, err := readSQLScripts()
	if err != nil {
		return err
	}
	for _, s := range scripts {
		log.Debug().Str("migration", s.name).Msg("applying migration")
		if _, err := db.ExecContext(ctx, s.sql); err != nil {
			return fmt.Errorf("migration %s: %w", s.name, err)
		}
	}
	log.Info().Int("migrations", len(scripts)).Msg("database schema up to date")
	return nil
}

type script struct {
	name string
	sql  string
}

func readSQLScripts() ([]script, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, err
	}

	var scripts []script
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, script{name: entry.Name(), sql: string(content)})
	}
	sort.Slice(scripts, func(i, j int) bool { return scripts[i].name < scripts[j].name })
	return scripts, nil
}
