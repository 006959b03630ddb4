package assets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"episode-studio/internal/clip"
)

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS studio_assets (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		kind           TEXT NOT NULL,
		name           TEXT NOT NULL,
		name_key       TEXT NOT NULL,
		description    TEXT NOT NULL DEFAULT '',
		negatives      TEXT NOT NULL DEFAULT '',
		image_url      TEXT NOT NULL DEFAULT '',
		reference_url  TEXT NOT NULL DEFAULT '',
		UNIQUE(kind, name_key)
	);

	CREATE INDEX IF NOT EXISTS idx_studio_assets_lookup ON studio_assets(kind, name_key);
`

// SQLiteLibrary reads assets from the studio_assets table.
type SQLiteLibrary struct {
	db *sql.DB
}

// OpenSQLite opens the database at path, creating the directory and the
// table when missing.
func OpenSQLite(path string) (*SQLiteLibrary, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create asset db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open asset db: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	lib := &SQLiteLibrary{db: db}
	if err := lib.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return lib, nil
}

// NewSQLiteLibrary wraps an already open database. Call Migrate before use
// if the table may not exist.
func NewSQLiteLibrary(db *sql.DB) *SQLiteLibrary {
	return &SQLiteLibrary{db: db}
}

func (l *SQLiteLibrary) Migrate(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate asset db: %w", err)
	}
	return nil
}

func (l *SQLiteLibrary) Close() error {
	return l.db.Close()
}

// Put inserts or replaces the record with the same kind and name.
func (l *SQLiteLibrary) Put(ctx context.Context, r clip.AssetRecord) error {
	if !r.Kind.Valid() {
		return fmt.Errorf("asset %q: invalid kind %q", r.Name, r.Kind)
	}
	key := Key(r.Name)
	if key == "" {
		return errors.New("asset name is empty")
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO studio_assets (kind, name, name_key, description, negatives, image_url, reference_url)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(kind, name_key) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			negatives = excluded.negatives,
			image_url = excluded.image_url,
			reference_url = excluded.reference_url
	`, string(r.Kind), r.Name, key, r.Description, r.Negatives, r.ImageURL, r.ReferenceURL)
	if err != nil {
		return fmt.Errorf("put asset %s %q: %w", r.Kind, r.Name, err)
	}
	return nil
}

func (l *SQLiteLibrary) Find(ctx context.Context, kind clip.Kind, name string) (*clip.AssetRecord, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT kind, name, description, negatives, image_url, reference_url
		FROM studio_assets
		WHERE kind = ? AND name_key = ?
	`, string(kind), Key(name))

	var (
		r        clip.AssetRecord
		kindText string
	)
	err := row.Scan(&kindText, &r.Name, &r.Description, &r.Negatives, &r.ImageURL, &r.ReferenceURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %q", ErrNotFound, kind, name)
	}
	if err != nil {
		return nil, fmt.Errorf("find asset %s %q: %w", kind, name, err)
	}
	r.Kind = clip.Kind(kindText)
	return &r, nil
}

// List returns every asset of a kind ordered by name.
func (l *SQLiteLibrary) List(ctx context.Context, kind clip.Kind) ([]clip.AssetRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT name, description, negatives, image_url, reference_url
		FROM studio_assets
		WHERE kind = ?
		ORDER BY name_key
	`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list %s assets: %w", kind, err)
	}
	defer rows.Close()

	var out []clip.AssetRecord
	for rows.Next() {
		r := clip.AssetRecord{Kind: kind}
		if err := rows.Scan(&r.Name, &r.Description, &r.Negatives, &r.ImageURL, &r.ReferenceURL); err != nil {
			return nil, fmt.Errorf("scan %s asset: %w", kind, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
