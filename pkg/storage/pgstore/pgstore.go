/*
2026 © Postgres.ai
*/

// Package pgstore provides the Postgres store shared by service instances.
package pgstore

import (
	"context"
	"embed"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"
	"gitlab.com/postgres-ai/database-lab/v2/pkg/log"

	"gitlab.com/postgres-ai/hostlink/pkg/models"
	"gitlab.com/postgres-ai/hostlink/pkg/storage"
)

//go:embed migrations/*.sql
var migrations embed.FS

var _ storage.Store = (*Store)(nil)

// Store implements storage.Store on Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to the database and applies pending migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to the store")
	}

	s := New(pool)

	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// New creates a store on an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool returns the connection pool.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Close closes the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Migrate applies embedded migrations which have not been applied yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx,
		`create table if not exists schema_migrations (version text primary key, applied_at timestamptz not null)`); err != nil {
		return errors.Wrap(err, "failed to create the migrations table")
	}

	files, err := migrationFiles(migrations)
	if err != nil {
		return err
	}

	for _, file := range files {
		if err := s.applyMigration(ctx, file); err != nil {
			return errors.Wrapf(err, "failed to apply migration %s", file)
		}
	}

	return nil
}

func (s *Store) applyMigration(ctx context.Context, file string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() { _ = tx.Rollback(ctx) }()

	var applied bool
	if err := tx.QueryRow(ctx, `select exists(select 1 from schema_migrations where version = $1)`, file).Scan(&applied); err != nil {
		return err
	}

	if applied {
		return nil
	}

	body, err := migrations.ReadFile("migrations/" + file)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, string(body)); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `insert into schema_migrations (version, applied_at) values ($1, $2)`, file, time.Now().UTC()); err != nil {
		return err
	}

	log.Msg("Store migration applied: ", file)

	return tx.Commit(ctx)
}

func migrationFiles(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, "migrations")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list migrations")
	}

	files := make([]string, 0, len(entries))

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}

		files = append(files, e.Name())
	}

	sort.Strings(files)

	return files, nil
}

// requireAffected converts an update of zero rows to models.ErrNotFound.
func requireAffected(tag pgconn.CommandTag, err error, format string, args ...interface{}) error {
	if err != nil {
		return errors.Wrapf(err, format, args...)
	}

	if tag.RowsAffected() == 0 {
		return errors.Wrapf(models.ErrNotFound, format, args...)
	}

	return nil
}

func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return errors.Wrapf(models.ErrNotFound, format, args...)
	}

	return errors.Wrapf(err, format, args...)
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if ts.Status != pgtype.Present {
		return nil
	}

	t := ts.Time

	return &t
}

func textValue(text pgtype.Text) string {
	if text.Status != pgtype.Present {
		return ""
	}

	return text.String
}

func nullableText(value string) pgtype.Text {
	if value == "" {
		return pgtype.Text{Status: pgtype.Null}
	}

	return pgtype.Text{String: value, Status: pgtype.Present}
}
