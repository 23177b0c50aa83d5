package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schemaSQL = `CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	remote_id TEXT NOT NULL,
	class TEXT NOT NULL,
	state TEXT NOT NULL,
	message TEXT,
	peptides INTEGER,
	alleles TEXT,
	result_path TEXT,
	submitted_at TEXT,
	updated_at TEXT
)`

const indexSQL = `CREATE INDEX IF NOT EXISTS jobs_remote_id ON jobs(remote_id)`

// fixed-width so that text ordering matches time ordering
const tsLayout = "2006-01-02T15:04:05.000000000Z"

// SQLite stores jobs in a sqlite database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (and creates if needed) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	for _, stmt := range []string{schemaSQL, indexSQL} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init job store %s: %w", path, err)
		}
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Put(ctx context.Context, j Job) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO jobs
		(id, remote_id, class, state, message, peptides, alleles, result_path, submitted_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			remote_id = excluded.remote_id,
			class = excluded.class,
			state = excluded.state,
			message = excluded.message,
			peptides = excluded.peptides,
			alleles = excluded.alleles,
			result_path = excluded.result_path,
			updated_at = excluded.updated_at`,
		j.ID, j.RemoteID, j.Class, j.State, j.Message, j.Peptides, j.Alleles, j.ResultPath,
		j.SubmittedAt.UTC().Format(tsLayout), j.UpdatedAt.UTC().Format(tsLayout))
	return err
}

func (s *SQLite) Get(ctx context.Context, id string) (Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, remote_id, class, state, message, peptides, alleles, result_path, submitted_at, updated_at
		FROM jobs WHERE id = ? OR remote_id = ? ORDER BY submitted_at DESC LIMIT 1`, id, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return j, err
}

func (s *SQLite) List(ctx context.Context) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, remote_id, class, state, message, peptides, alleles, result_path, submitted_at, updated_at
		FROM jobs ORDER BY submitted_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error { return s.db.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(sc scanner) (Job, error) {
	var (
		j                  Job
		msg, alleles, path sql.NullString
		peps               sql.NullInt64
		submitted, updated sql.NullString
	)
	if err := sc.Scan(&j.ID, &j.RemoteID, &j.Class, &j.State, &msg, &peps, &alleles, &path, &submitted, &updated); err != nil {
		return Job{}, err
	}
	j.Message, j.Alleles, j.ResultPath = msg.String, alleles.String, path.String
	j.Peptides = int(peps.Int64)
	j.SubmittedAt, _ = time.Parse(tsLayout, submitted.String)
	j.UpdatedAt, _ = time.Parse(tsLayout, updated.String)
	return j, nil
}
