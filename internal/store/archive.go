// Package store persists recorded replays in a SQLite archive. Traces are
// kept in their streamed wire form, so archived replays stay byte-identical
// to what the recorder exported.
package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/codec"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/replay"
)

// ErrNotFound is returned when the archive holds no replay with the given id.
var ErrNotFound = errors.New("replay not found")

const schema = `
CREATE TABLE IF NOT EXISTS replays (
	id TEXT PRIMARY KEY,
	pack_id TEXT NOT NULL,
	pack_version TEXT NOT NULL,
	schema_version INTEGER NOT NULL,
	start_step INTEGER NOT NULL,
	end_step INTEGER NOT NULL,
	command_count INTEGER NOT NULL,
	end_checksum TEXT NOT NULL,
	recorded_at INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	stream BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS replays_pack_id ON replays (pack_id, recorded_at);
`

// Entry summarizes one archived replay.
type Entry struct {
	ID            string
	PackID        string
	PackVersion   string
	SchemaVersion int
	StartStep     int64
	EndStep       int64
	CommandCount  int
	EndChecksum   string
	RecordedAt    time.Time
	CreatedAt     time.Time
}

// Archive is a SQLite-backed replay store.
type Archive struct {
	sqlDB *sql.DB
}

// Open opens (or creates) the archive at path and ensures its schema.
func Open(path string) (*Archive, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("archive path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open archive db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping archive db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ensure archive schema: %w", err)
	}
	return &Archive{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (a *Archive) Close() error {
	if a == nil || a.sqlDB == nil {
		return nil
	}
	return a.sqlDB.Close()
}

// Save encodes the replay and inserts it under a fresh id.
func (a *Archive) Save(ctx context.Context, rep replay.Replay) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if a == nil || a.sqlDB == nil {
		return "", fmt.Errorf("archive is not configured")
	}

	var stream bytes.Buffer
	if err := codec.Encode(&stream, rep, codec.EncodeOptions{}); err != nil {
		return "", fmt.Errorf("encode replay: %w", err)
	}

	id := uuid.NewString()
	_, err := a.sqlDB.ExecContext(ctx, `
		INSERT INTO replays (
			id, pack_id, pack_version, schema_version,
			start_step, end_step, command_count, end_checksum,
			recorded_at, created_at, stream
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		rep.Content.PackID,
		rep.Content.PackVersion,
		rep.Header.SchemaVersion,
		rep.Sim.StartStep,
		rep.Sim.EndStep,
		len(rep.Sim.Commands),
		rep.Sim.EndStateChecksum,
		rep.Header.RecordedAt,
		time.Now().UTC().UnixMilli(),
		stream.Bytes(),
	)
	if err != nil {
		return "", fmt.Errorf("insert replay: %w", err)
	}
	return id, nil
}

// Get reloads and fully re-validates one archived replay.
func (a *Archive) Get(ctx context.Context, id string) (replay.Replay, error) {
	if err := ctx.Err(); err != nil {
		return replay.Replay{}, err
	}
	if a == nil || a.sqlDB == nil {
		return replay.Replay{}, fmt.Errorf("archive is not configured")
	}

	var stream []byte
	err := a.sqlDB.QueryRowContext(ctx, `SELECT stream FROM replays WHERE id = ?`, id).Scan(&stream)
	if errors.Is(err, sql.ErrNoRows) {
		return replay.Replay{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return replay.Replay{}, fmt.Errorf("select replay: %w", err)
	}

	dec := &codec.Decoder{}
	rep, err := dec.Decode(ctx, bytes.NewReader(stream))
	if err != nil {
		return replay.Replay{}, fmt.Errorf("decode archived replay %s: %w", id, err)
	}
	return rep, nil
}

// List returns archive entries newest-first, optionally filtered by pack id.
func (a *Archive) List(ctx context.Context, packID string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if a == nil || a.sqlDB == nil {
		return nil, fmt.Errorf("archive is not configured")
	}

	query := `
		SELECT id, pack_id, pack_version, schema_version,
		       start_step, end_step, command_count, end_checksum,
		       recorded_at, created_at
		FROM replays`
	args := []any{}
	if packID != "" {
		query += ` WHERE pack_id = ?`
		args = append(args, packID)
	}
	query += ` ORDER BY recorded_at DESC`

	rows, err := a.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list replays: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var recordedAt, createdAt int64
		err := rows.Scan(
			&entry.ID, &entry.PackID, &entry.PackVersion, &entry.SchemaVersion,
			&entry.StartStep, &entry.EndStep, &entry.CommandCount, &entry.EndChecksum,
			&recordedAt, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan replay row: %w", err)
		}
		entry.RecordedAt = time.UnixMilli(recordedAt).UTC()
		entry.CreatedAt = time.UnixMilli(createdAt).UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate replay rows: %w", err)
	}
	return entries, nil
}

// Delete removes one archived replay.
func (a *Archive) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if a == nil || a.sqlDB == nil {
		return fmt.Errorf("archive is not configured")
	}
	result, err := a.sqlDB.ExecContext(ctx, `DELETE FROM replays WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete replay: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete replay: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
