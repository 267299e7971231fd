package snapshot

import (
	"bytes"
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/edwinsyarief/kura"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	name        TEXT PRIMARY KEY,
	id          TEXT NOT NULL,
	format      INTEGER NOT NULL,
	compression INTEGER NOT NULL,
	raw_size    INTEGER NOT NULL,
	size        INTEGER NOT NULL,
	created_at  INTEGER NOT NULL,
	data        BLOB NOT NULL
);`

// ErrNotFound reports a snapshot name with no stored snapshot.
var ErrNotFound = errors.New("snapshot: not found")

// Entry describes a stored snapshot.
type Entry struct {
	CreatedAt   time.Time
	Name        string
	ID          string
	RawSize     int64
	Size        int64
	Format      Format
	Compression Compression
}

// Store keeps named snapshots in a SQLite database. Saving under an existing
// name replaces the previous snapshot.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// OpenStore creates or opens the database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "snapshot: open store")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "snapshot: connect store")
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		schema,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "snapshot: execute %q", stmt)
		}
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save serializes world and stores it under name.
func (s *Store) Save(ctx context.Context, name string, world *kura.World, opts ...Option) (Header, error) {
	var buf bytes.Buffer
	if _, err := Write(&buf, world, opts...); err != nil {
		return Header{}, err
	}
	return s.Put(ctx, name, buf.Bytes())
}

// Put stores an encoded snapshot under name after checking its header and
// checksum.
func (s *Store) Put(ctx context.Context, name string, data []byte) (Header, error) {
	h, _, err := Unpack(bytes.NewReader(data))
	if err != nil {
		return Header{}, err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO snapshots (name, id, format, compression, raw_size, size, created_at, data)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
	id = excluded.id,
	format = excluded.format,
	compression = excluded.compression,
	raw_size = excluded.raw_size,
	size = excluded.size,
	created_at = excluded.created_at,
	data = excluded.data`,
		name, h.ID.String(), int(h.Format), int(h.Compression), int64(h.RawSize), int64(h.Size),
		s.now().UnixNano(), data)
	if err != nil {
		return Header{}, errors.Wrapf(err, "snapshot: save %q", name)
	}
	return h, nil
}

// Get returns the encoded snapshot stored under name.
func (s *Store) Get(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM snapshots WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "%q", name)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "snapshot: load %q", name)
	}
	return data, nil
}

// Load reconstructs the snapshot stored under name into world.
func (s *Store) Load(ctx context.Context, name string, world *kura.World) (Header, error) {
	data, err := s.Get(ctx, name)
	if err != nil {
		return Header{}, err
	}
	return Read(bytes.NewReader(data), world)
}

// List returns the stored snapshots ordered by name.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT name, id, format, compression, raw_size, size, created_at
FROM snapshots ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "snapshot: list")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			format  int
			comp    int
			created int64
		)
		if err := rows.Scan(&e.Name, &e.ID, &format, &comp, &e.RawSize, &e.Size, &created); err != nil {
			return nil, errors.Wrap(err, "snapshot: list")
		}
		e.Format = Format(format)
		e.Compression = Compression(comp)
		e.CreatedAt = time.Unix(0, created)
		out = append(out, e)
	}
	return out, errors.Wrap(rows.Err(), "snapshot: list")
}

// Delete removes the snapshot stored under name.
func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE name = ?`, name)
	if err != nil {
		return errors.Wrapf(err, "snapshot: delete %q", name)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(ErrNotFound, "%q", name)
	}
	return nil
}
