package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/transitlab/transitmart/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it too,
// which keeps the Postgres store unit-testable without a live server.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore implements Store over a pgx connection pool. Rows live in a
// single jsonb column per table.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Replace(ctx context.Context, table string, rows []model.Row) error {
	if err := checkIdent(table); err != nil {
		return err
	}
	ident := pgx.Identifier{table}.Sanitize()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrapf(err, "postgres: begin replace %s", table)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, ident)); err != nil {
		return eris.Wrapf(err, "postgres: drop %s", table)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf(`CREATE TABLE %s (doc jsonb NOT NULL)`, ident)); err != nil {
		return eris.Wrapf(err, "postgres: create %s", table)
	}
	if err := pgInsertDocs(ctx, tx, table, rows); err != nil {
		return err
	}

	return eris.Wrapf(tx.Commit(ctx), "postgres: commit replace %s", table)
}

func (s *PostgresStore) Append(ctx context.Context, table string, rows []model.Row) error {
	if err := checkIdent(table); err != nil {
		return err
	}
	ident := pgx.Identifier{table}.Sanitize()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrapf(err, "postgres: begin append %s", table)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (doc jsonb NOT NULL)`, ident)); err != nil {
		return eris.Wrapf(err, "postgres: create %s", table)
	}
	if err := pgInsertDocs(ctx, tx, table, rows); err != nil {
		return err
	}

	return eris.Wrapf(tx.Commit(ctx), "postgres: commit append %s", table)
}

func pgInsertDocs(ctx context.Context, tx pgx.Tx, table string, rows []model.Row) error {
	if len(rows) == 0 {
		return nil
	}

	// COPY is the fast path for bulk document loads.
	docs := make([][]any, 0, len(rows))
	for _, row := range rows {
		doc, err := json.Marshal(row)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal row for %s", table)
		}
		docs = append(docs, []any{string(doc)})
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{table}, []string{"doc"}, pgx.CopyFromRows(docs)); err != nil {
		return eris.Wrapf(err, "postgres: COPY INTO %s", table)
	}
	return nil
}

func (s *PostgresStore) Read(ctx context.Context, table string) ([]model.Row, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	exists, err := s.Exists(ctx, table)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, eris.Wrapf(ErrTableNotFound, "postgres: read %s", table)
	}

	ident := pgx.Identifier{table}.Sanitize()
	dbRows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT doc FROM %s`, ident))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: read %s", table)
	}
	defer dbRows.Close()

	var out []model.Row
	for dbRows.Next() {
		var doc []byte
		if err := dbRows.Scan(&doc); err != nil {
			return nil, eris.Wrapf(err, "postgres: scan %s", table)
		}
		var row model.Row
		if err := json.Unmarshal(doc, &row); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal row from %s", table)
		}
		out = append(out, row)
	}
	return out, eris.Wrapf(dbRows.Err(), "postgres: iterate %s", table)
}

func (s *PostgresStore) MaxString(ctx context.Context, table, column string) (string, bool, error) {
	if err := checkIdent(table); err != nil {
		return "", false, err
	}
	if err := checkIdent(column); err != nil {
		return "", false, err
	}
	exists, err := s.Exists(ctx, table)
	if err != nil {
		return "", false, err
	}
	if !exists {
		return "", false, nil
	}

	ident := pgx.Identifier{table}.Sanitize()
	var max *string
	query := fmt.Sprintf(`SELECT max(doc->>$1) FROM %s`, ident)
	if err := s.pool.QueryRow(ctx, query, column).Scan(&max); err != nil {
		return "", false, eris.Wrapf(err, "postgres: max %s.%s", table, column)
	}
	if max == nil || strings.TrimSpace(*max) == "" {
		return "", false, nil
	}
	return *max, true, nil
}

func (s *PostgresStore) Exists(ctx context.Context, table string) (bool, error) {
	if err := checkIdent(table); err != nil {
		return false, err
	}
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT to_regclass($1) IS NOT NULL`, table,
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: check table %s", table)
	}
	return exists, nil
}
