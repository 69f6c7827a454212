// Package journal persists the registry event log in SQLite. The registry
// appends every committed batch before applying it, so the journal is the
// durable source of truth a registry can be restored from.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/ruteri/utility-registry/interfaces"
	"github.com/ruteri/utility-registry/journal/migrations"
)

var (
	// ErrSequenceGap is returned when an appended batch does not continue the stored sequence.
	ErrSequenceGap = errors.New("event sequence gap")

	// ErrBaseConflict is returned when a checkpoint base would not line up with stored events.
	ErrBaseConflict = errors.New("checkpoint base conflicts with journal")
)

// Base records the checkpoint a journal continues from. A journal with a
// base holds only the events after Seq; the state up to Seq lives in the
// checkpoint ContentID.
type Base struct {
	Seq       uint64
	ContentID string
	CreatedAt time.Time
}

// Journal is a SQLite-backed interfaces.EventJournal.
type Journal struct {
	db  *sql.DB
	log *slog.Logger
}

var _ interfaces.EventJournal = (*Journal)(nil)

// Open opens or creates the journal database at path and applies the
// embedded schema migrations. ":memory:" opens a private in-memory journal.
func Open(path string, log *slog.Logger) (*Journal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("journal path is required")
	}
	if log == nil {
		log = slog.Default()
	}

	dsn := path
	if path != ":memory:" {
		cleanPath := filepath.Clean(path)
		if err := os.MkdirAll(filepath.Dir(cleanPath), 0o700); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
		dsn = cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	log.Info("Event journal opened", "path", path)
	return &Journal{db: db, log: log}, nil
}

func applyMigrations(db *sql.DB) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	// m.Close would close db as well; only the source needs releasing.
	defer src.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Close closes the database handle.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Append stores events in a single transaction. The first event must follow
// the last stored sequence number, or the checkpoint base when no event
// follows it yet.
func (j *Journal) Append(events []interfaces.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var last sql.NullInt64
	if err := tx.QueryRow(`SELECT MAX(seq) FROM (SELECT seq FROM events UNION ALL SELECT seq FROM checkpoint_base)`).Scan(&last); err != nil {
		return fmt.Errorf("read last sequence: %w", err)
	}
	expected := uint64(last.Int64) + 1

	stmt, err := tx.Prepare(`INSERT INTO events (seq, kind, token_id, payload, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().UnixMilli()
	for _, ev := range events {
		if ev.Seq != expected {
			return fmt.Errorf("%w: expected %d, got %d", ErrSequenceGap, expected, ev.Seq)
		}
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode event %d: %w", ev.Seq, err)
		}
		if _, err := stmt.Exec(int64(ev.Seq), string(ev.Kind), tokenColumn(ev), string(payload), now); err != nil {
			return fmt.Errorf("insert event %d: %w", ev.Seq, err)
		}
		expected++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	j.log.Debug("Events journaled", "first", events[0].Seq, "count", len(events))
	return nil
}

func tokenColumn(ev interfaces.Event) string {
	switch ev.Kind {
	case interfaces.EventTransfer, interfaces.EventMint, interfaces.EventMintWithUtilityBinding,
		interfaces.EventApproval, interfaces.EventUtilityBindingChanged:
		return ev.TokenID.String()
	default:
		return ""
	}
}

// Load returns all stored events with a sequence number of at least fromSeq.
func (j *Journal) Load(ctx context.Context, fromSeq uint64) ([]interfaces.Event, error) {
	return j.query(ctx, `SELECT payload FROM events WHERE seq >= ? ORDER BY seq`, int64(fromSeq))
}

// TokenHistory returns the events that touched id, in commit order.
func (j *Journal) TokenHistory(ctx context.Context, id interfaces.TokenID) ([]interfaces.Event, error) {
	return j.query(ctx, `SELECT payload FROM events WHERE token_id = ? ORDER BY seq`, id.String())
}

// LastSeq returns the highest stored sequence number, 0 for an empty journal.
func (j *Journal) LastSeq(ctx context.Context) (uint64, error) {
	var last sql.NullInt64
	if err := j.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM events`).Scan(&last); err != nil {
		return 0, fmt.Errorf("read last sequence: %w", err)
	}
	return uint64(last.Int64), nil
}

// SetBase makes the journal continue from checkpoint contentID covering
// events up to seq. It fails with ErrBaseConflict once the journal holds any
// event, since those could not line up with the checkpoint.
func (j *Journal) SetBase(ctx context.Context, seq uint64, contentID string) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var count int64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&count); err != nil {
		return fmt.Errorf("count events: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: journal already holds %d events", ErrBaseConflict, count)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO checkpoint_base (id, seq, content_id, created_at) VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET seq = excluded.seq, content_id = excluded.content_id, created_at = excluded.created_at`,
		int64(seq), contentID, time.Now().UTC().UnixMilli()); err != nil {
		return fmt.Errorf("store checkpoint base: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	j.log.Info("Journal rebased on checkpoint", "seq", seq, "contentID", contentID)
	return nil
}

// Base returns the checkpoint the journal continues from, if any.
func (j *Journal) Base(ctx context.Context) (*Base, bool, error) {
	var (
		seq       int64
		contentID string
		createdAt int64
	)
	err := j.db.QueryRowContext(ctx, `SELECT seq, content_id, created_at FROM checkpoint_base WHERE id = 1`).
		Scan(&seq, &contentID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read checkpoint base: %w", err)
	}
	return &Base{Seq: uint64(seq), ContentID: contentID, CreatedAt: time.UnixMilli(createdAt).UTC()}, true, nil
}

func (j *Journal) query(ctx context.Context, query string, arg any) ([]interfaces.Event, error) {
	rows, err := j.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []interfaces.Event
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var ev interfaces.Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
