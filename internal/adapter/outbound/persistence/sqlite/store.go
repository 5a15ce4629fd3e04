package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jonny/switchyard/internal/adapter/outbound/persistence/sqlite/migration"
)

var validJournalModes = map[string]bool{
	"wal": true, "delete": true, "truncate": true,
	"persist": true, "memory": true, "off": true,
}

type Config struct {
	Path              string
	MaxOpenConns      int
	PragmaJournalMode string
	PragmaBusyTimeout int
}

// Store owns the database handle shared by the repositories.
type Store struct {
	DB *sql.DB
}

// NewStore opens the database at cfg.Path and brings the schema up to date.
// ":memory:" databases need MaxOpenConns 1 so every query sees the same schema.
func NewStore(cfg Config) (*Store, error) {
	mode := strings.ToLower(cfg.PragmaJournalMode)
	if mode == "" {
		mode = "wal"
	}
	if !validJournalModes[mode] {
		return nil, fmt.Errorf("invalid pragma journal mode: %q", cfg.PragmaJournalMode)
	}
	dsn := fmt.Sprintf("%s?_journal_mode=%s&_busy_timeout=%d&_foreign_keys=on",
		cfg.Path, mode, cfg.PragmaBusyTimeout)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to sqlite: %w", err)
	}
	if err := migration.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return &Store{DB: db}, nil
}

// Ping matches health.CheckFunc for the readiness endpoint.
func (s *Store) Ping(ctx context.Context) error { return s.DB.PingContext(ctx) }

func (s *Store) Close() error { return s.DB.Close() }
