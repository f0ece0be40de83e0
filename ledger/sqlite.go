package ledger

import (
	"context"

	"github.com/carbocation/pfx"
	"github.com/jmoiron/sqlx"

	// Pure Go driver, registered as "sqlite"
	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS sorted_outputs (
	run_id      TEXT NOT NULL,
	sorted_at   TIMESTAMP NOT NULL,
	source_file TEXT NOT NULL,
	subject     TEXT NOT NULL,
	session     TEXT NOT NULL,
	rule_index  INTEGER NOT NULL,
	rule_name   TEXT NOT NULL,
	data_type   TEXT NOT NULL,
	kind        TEXT NOT NULL,
	src         TEXT NOT NULL,
	dst         TEXT NOT NULL,
	files       INTEGER NOT NULL,
	bytes       INTEGER NOT NULL,
	build       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS sorted_outputs_session ON sorted_outputs (subject, session);`

const insert = `INSERT INTO sorted_outputs
	(run_id, sorted_at, source_file, subject, session, rule_index, rule_name, data_type, kind, src, dst, files, bytes, build)
VALUES
	(:run_id, :sorted_at, :source_file, :subject, :session, :rule_index, :rule_name, :data_type, :kind, :src, :dst, :files, :bytes, :build)`

// SQLite is a ledger in a local SQLite file.
type SQLite struct {
	db *sqlx.DB
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	// One writer at a time; SQLite would otherwise return SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, pfx.Err(err)
	}

	return &SQLite{db: db}, nil
}

// Record inserts all entries in one transaction.
func (s *SQLite) Record(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return pfx.Err(err)
	}

	for _, e := range entries {
		if _, err := tx.NamedExecContext(ctx, insert, e); err != nil {
			tx.Rollback()
			return pfx.Err(err)
		}
	}

	return pfx.Err(tx.Commit())
}

// ForSession returns every entry for one subject and session, oldest first.
func (s *SQLite) ForSession(ctx context.Context, subject, session string) ([]Entry, error) {
	var out []Entry
	err := s.db.SelectContext(ctx, &out, `SELECT * FROM sorted_outputs
WHERE subject = ? AND session = ?
ORDER BY sorted_at, run_id, rule_index`, subject, session)
	if err != nil {
		return nil, pfx.Err(err)
	}

	return out, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
