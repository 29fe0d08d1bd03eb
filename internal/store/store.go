package store

import (
	"context"
	"regexp"

	"github.com/rotisserie/eris"

	"github.com/transitlab/transitmart/internal/model"
)

// ErrTableNotFound is returned by Read and MaxString when the target table has
// not been materialized yet.
var ErrTableNotFound = eris.New("store: table not found")

// Store is the physical warehouse interface. The engine issues exactly four
// kinds of operations: full table replace, partition append, watermark read
// (max of a column), and full read of current contents. Implementations own
// durability and atomicity: a Replace or Append is either fully visible to a
// subsequent Read or not at all.
//
// Rows are stored as one JSON document each; tables carry no declared schema.
// Column values therefore compare as JSON text, which is sufficient for the
// engine's watermark columns (ISO dates and YYYY-MM months sort correctly as
// strings).
type Store interface {
	// Replace atomically swaps the full contents of a table, creating it if
	// needed.
	Replace(ctx context.Context, table string, rows []model.Row) error

	// Append adds rows to a table, creating it if needed. Existing rows are
	// never touched.
	Append(ctx context.Context, table string, rows []model.Row) error

	// Read returns the current contents of a table. Returns ErrTableNotFound
	// if the table does not exist.
	Read(ctx context.Context, table string) ([]model.Row, error)

	// MaxString returns the maximum value of a column as text. ok is false if
	// the table does not exist, is empty, or the column is null everywhere.
	MaxString(ctx context.Context, table, column string) (value string, ok bool, err error)

	// Exists reports whether the table has been materialized.
	Exists(ctx context.Context, table string) (bool, error)

	Close() error
}

// Table and column names are interpolated into SQL, so they are restricted to
// identifier characters.
var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func checkIdent(name string) error {
	if !identPattern.MatchString(name) {
		return eris.Errorf("store: invalid identifier %q", name)
	}
	return nil
}

// Open creates a Store for the given driver ("sqlite" or "postgres").
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
