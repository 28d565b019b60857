package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the database-backed Store.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	const schema = `CREATE TABLE IF NOT EXISTS people (
        id         TEXT PRIMARY KEY,
        owner_id   TEXT NOT NULL,
        name       TEXT NOT NULL,
        age        INTEGER,
        image_path TEXT NOT NULL,
        encoding   TEXT
    );
    CREATE INDEX IF NOT EXISTS idx_people_owner ON people(owner_id);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) ListByOwner(ctx context.Context, ownerID string) ([]Person, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, owner_id, name, age, image_path, encoding
         FROM people WHERE owner_id = ? ORDER BY id`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}
	defer rows.Close()

	var people []Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		people = append(people, p)
	}
	return people, rows.Err()
}

func (s *SQLiteStore) Create(ctx context.Context, p Person) error {
	encoding, err := encodeVector(p.Encoding)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO people (id, owner_id, name, age, image_path, encoding)
         VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.OwnerID, p.Name, nullableInt(p.Age), p.ImagePath, encoding,
	)
	if err != nil {
		return fmt.Errorf("insert person: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Update(ctx context.Context, id string, fields Fields) (Person, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Person{}, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(
		ctx,
		`SELECT id, owner_id, name, age, image_path, encoding FROM people WHERE id = ?`,
		id,
	)
	p, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Person{}, ErrNotFound
	}
	if err != nil {
		return Person{}, err
	}

	if fields.Name != nil {
		p.Name = *fields.Name
	}
	if fields.Age != nil {
		p.Age = fields.Age
	}
	_, err = tx.ExecContext(
		ctx,
		`UPDATE people SET name = ?, age = ? WHERE id = ?`,
		p.Name, nullableInt(p.Age), id,
	)
	if err != nil {
		return Person{}, fmt.Errorf("update person: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Person{}, fmt.Errorf("commit update: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanPerson(row scannable) (Person, error) {
	var (
		p        Person
		age      sql.NullInt64
		encoding sql.NullString
	)
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &age, &p.ImagePath, &encoding); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Person{}, err
		}
		return Person{}, fmt.Errorf("scan person: %w", err)
	}
	if age.Valid {
		v := int(age.Int64)
		p.Age = &v
	}
	if encoding.Valid && encoding.String != "" {
		if err := json.Unmarshal([]byte(encoding.String), &p.Encoding); err != nil {
			return Person{}, fmt.Errorf("decode encoding for %s: %w", p.ID, err)
		}
	}
	return p, nil
}

func encodeVector(v []float64) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode vector: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullableInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
