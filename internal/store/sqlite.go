package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/transitlab/transitmart/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. This is the default
// backend: a single-file analytical store good for one writer per run.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Replace(ctx context.Context, table string, rows []model.Row) error {
	if err := checkIdent(table); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrapf(err, "sqlite: begin replace %s", table)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, table)); err != nil {
		return eris.Wrapf(err, "sqlite: drop %s", table)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE %s (doc TEXT NOT NULL)`, table)); err != nil {
		return eris.Wrapf(err, "sqlite: create %s", table)
	}
	if err := insertDocs(ctx, tx, table, rows); err != nil {
		return err
	}

	return eris.Wrapf(tx.Commit(), "sqlite: commit replace %s", table)
}

func (s *SQLiteStore) Append(ctx context.Context, table string, rows []model.Row) error {
	if err := checkIdent(table); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrapf(err, "sqlite: begin append %s", table)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (doc TEXT NOT NULL)`, table)); err != nil {
		return eris.Wrapf(err, "sqlite: create %s", table)
	}
	if err := insertDocs(ctx, tx, table, rows); err != nil {
		return err
	}

	return eris.Wrapf(tx.Commit(), "sqlite: commit append %s", table)
}

func insertDocs(ctx context.Context, tx *sql.Tx, table string, rows []model.Row) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s (doc) VALUES (?)`, table))
	if err != nil {
		return eris.Wrapf(err, "sqlite: prepare insert %s", table)
	}
	defer stmt.Close()

	for _, row := range rows {
		doc, err := json.Marshal(row)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal row for %s", table)
		}
		if _, err := stmt.ExecContext(ctx, string(doc)); err != nil {
			return eris.Wrapf(err, "sqlite: insert into %s", table)
		}
	}
	return nil
}

func (s *SQLiteStore) Read(ctx context.Context, table string) ([]model.Row, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	exists, err := s.Exists(ctx, table)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, eris.Wrapf(ErrTableNotFound, "sqlite: read %s", table)
	}

	dbRows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT doc FROM %s`, table))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: read %s", table)
	}
	defer dbRows.Close()

	var out []model.Row
	for dbRows.Next() {
		var doc string
		if err := dbRows.Scan(&doc); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan %s", table)
		}
		var row model.Row
		if err := json.Unmarshal([]byte(doc), &row); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal row from %s", table)
		}
		out = append(out, row)
	}
	return out, eris.Wrapf(dbRows.Err(), "sqlite: iterate %s", table)
}

func (s *SQLiteStore) MaxString(ctx context.Context, table, column string) (string, bool, error) {
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

	var max sql.NullString
	query := fmt.Sprintf(`SELECT max(json_extract(doc, ?)) FROM %s`, table)
	if err := s.db.QueryRowContext(ctx, query, "$."+column).Scan(&max); err != nil {
		return "", false, eris.Wrapf(err, "sqlite: max %s.%s", table, column)
	}
	if !max.Valid || strings.TrimSpace(max.String) == "" {
		return "", false, nil
	}
	return max.String, true, nil
}

func (s *SQLiteStore) Exists(ctx context.Context, table string) (bool, error) {
	if err := checkIdent(table); err != nil {
		return false, err
	}
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
	).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: check table %s", table)
	}
	return true, nil
}
