// Package settings persists the per-provider configuration in SQLite. Each
// provider is one row holding its config as JSON, overlaid on the defaults
// when loaded so fields added later pick up their default value.
package settings

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/manash/nogologo/pkg/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

const table = "provider_settings"

type Store struct {
	db       *sql.DB
	sql      sq.StatementBuilderType
	registry *models.ModelRegistry
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(ctx context.Context, path string, registry *models.ModelRegistry) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		db:       db,
		sql:      sq.StatementBuilder.PlaceholderFormat(sq.Question),
		registry: registry,
	}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load returns the stored settings overlaid on the defaults.
func (s *Store) Load(ctx context.Context) (models.Settings, error) {
	settings := models.DefaultSettings()

	query, args, err := s.sql.Select("provider", "config_json").From(table).ToSql()
	if err != nil {
		return settings, fmt.Errorf("build load query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return settings, fmt.Errorf("load settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var provider, configJSON string
		if err := rows.Scan(&provider, &configJSON); err != nil {
			return settings, fmt.Errorf("scan settings: %w", err)
		}

		target, ok := section(&settings, models.ProviderID(provider))
		if !ok {
			continue
		}
		if err := json.Unmarshal([]byte(configJSON), target); err != nil {
			return models.DefaultSettings(), fmt.Errorf("decode %s settings: %w", provider, err)
		}
	}
	if err := rows.Err(); err != nil {
		return settings, fmt.Errorf("iterate settings: %w", err)
	}

	if err := settings.Validate(s.registry); err != nil {
		return models.DefaultSettings(), fmt.Errorf("stored settings are invalid: %w", err)
	}
	return settings, nil
}

// Save validates and writes every provider section in one transaction.
func (s *Store) Save(ctx context.Context, settings models.Settings) error {
	if err := settings.Validate(s.registry); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, id := range models.AllProviders() {
		section, _ := section(&settings, id)
		data, err := json.Marshal(section)
		if err != nil {
			return fmt.Errorf("encode %s settings: %w", id, err)
		}

		query, args, err := s.sql.Insert(table).
			Columns("provider", "config_json", "updated_at").
			Values(string(id), string(data), now).
			Suffix("ON CONFLICT(provider) DO UPDATE SET config_json=excluded.config_json, updated_at=excluded.updated_at").
			ToSql()
		if err != nil {
			return fmt.Errorf("build upsert query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("save %s settings: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settings: %w", err)
	}
	return nil
}

// Update applies one key=value change and saves the result.
func (s *Store) Update(ctx context.Context, key, value string) (models.Settings, error) {
	settings, err := s.Load(ctx)
	if err != nil {
		return settings, err
	}
	if err := settings.Set(key, value); err != nil {
		return settings, err
	}
	if err := s.Save(ctx, settings); err != nil {
		return settings, err
	}
	return settings, nil
}

// Reset restores the given providers to their defaults, or all of them when
// none are given.
func (s *Store) Reset(ctx context.Context, providers ...models.ProviderID) error {
	q := s.sql.Delete(table)
	if len(providers) > 0 {
		names := make([]string, len(providers))
		for i, p := range providers {
			if !p.IsValid() {
				return fmt.Errorf("%w: %q", models.ErrUnknownProvider, p)
			}
			names[i] = string(p)
		}
		q = q.Where(sq.Eq{"provider": names})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build reset query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("reset settings: %w", err)
	}
	return nil
}

// UpdatedAt reports when a provider's settings were last saved.
func (s *Store) UpdatedAt(ctx context.Context, provider models.ProviderID) (time.Time, bool, error) {
	query, args, err := s.sql.Select("updated_at").From(table).Where(sq.Eq{"provider": string(provider)}).ToSql()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("build updated_at query: %w", err)
	}

	var ts time.Time
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("get updated_at: %w", err)
	}
	return ts, true, nil
}

func section(s *models.Settings, id models.ProviderID) (any, bool) {
	switch id {
	case models.ProviderXAI:
		return &s.XAI, true
	case models.ProviderOpenAI:
		return &s.OpenAI, true
	case models.ProviderGemini:
		return &s.Gemini, true
	default:
		return nil, false
	}
}
