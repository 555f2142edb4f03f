// Package ledger keeps run history and a per-window transcription cache in sqlite.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"audio-digest/internal/domain"
)

// schemaVersion is stored in PRAGMA user_version. Older segment caches are
// dropped on open since their keys cannot be trusted.
const schemaVersion = 2

const pragmas = `
	PRAGMA busy_timeout       = 10000;
	PRAGMA journal_mode       = WAL;
	PRAGMA synchronous        = NORMAL;
	PRAGMA foreign_keys       = ON;
	PRAGMA temp_store         = MEMORY;`

const schema = `
	create table if not exists runs (
		id text primary key not null,
		started_at text not null,
		finished_at text,
		status text not null,
		files integer default 0,
		segments integer default 0,
		failed_segments integer default 0,
		message text default ''
	);

	create table if not exists segments (
		audio_hash text not null,
		start_ms integer not null,
		end_ms integer not null,
		backend text not null,
		model text not null,
		options text not null,
		run_id text not null,
		file_name text not null,
		status text not null,
		text text not null,
		reason text default '',
		created_at text not null,
		primary key (audio_hash, start_ms, end_ms, backend, model, options)
	);`

// Run is one recorded CLI job.
type Run struct {
	ID             string
	StartedAt      time.Time
	FinishedAt     time.Time
	Status         domain.JobStatus
	Files          int
	Segments       int
	FailedSegments int
	Message        string
}

// Key identifies a cached window transcription.
type Key struct {
	AudioHash string
	Start     float64
	End       float64
	Backend   string
	Model     string
	// Options fingerprints language and decoding settings.
	Options string
}

// SQLiteLedger persists runs and window results.
type SQLiteLedger struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates the database file and schema when missing.
func Open(path string) (*SQLiteLedger, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init ledger schema: %w", err)
	}
	return &SQLiteLedger{db: db, now: time.Now}, nil
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec(pragmas); err != nil {
		return err
	}
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return err
	}
	if version < schemaVersion {
		if _, err := db.Exec("drop table if exists segments"); err != nil {
			return err
		}
	}
	if _, err := db.Exec(schema); err != nil {
		return err
	}
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion))
	return err
}

// Close releases the database handle.
func (l *SQLiteLedger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// StartRun records a new running job in its first stage.
func (l *SQLiteLedger) StartRun(ctx context.Context, id string, status domain.JobStatus) error {
	_, err := l.db.ExecContext(ctx,
		"insert into runs (id, started_at, status) values ($1, $2, $3)",
		id, l.now().UTC().Format(time.RFC3339), string(status),
	)
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	return nil
}

// FinishRun stores the terminal status and counters of a job.
func (l *SQLiteLedger) FinishRun(ctx context.Context, run Run) error {
	_, err := l.db.ExecContext(ctx, `
		update runs
		set finished_at = $1, status = $2, files = $3, segments = $4, failed_segments = $5, message = $6
		where id = $7`,
		l.now().UTC().Format(time.RFC3339),
		string(run.Status),
		run.Files,
		run.Segments,
		run.FailedSegments,
		run.Message,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// Runs returns the most recent runs first.
func (l *SQLiteLedger) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `
		select id, started_at, coalesce(finished_at, ''), status, files, segments, failed_segments, message
		from runs
		order by started_at desc, rowid desc
		limit $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r                 Run
			started, finished string
			status            string
		)
		if err := rows.Scan(&r.ID, &started, &finished, &status, &r.Files, &r.Segments, &r.FailedSegments, &r.Message); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Status = domain.JobStatus(status)
		r.StartedAt, _ = time.Parse(time.RFC3339, started)
		if finished != "" {
			r.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out, nil
}

// RecordSegment stores one window result. Successful results replace older entries
// for the same key; a failure never overwrites a cached success.
func (l *SQLiteLedger) RecordSegment(ctx context.Context, runID, fileName string, key Key, res domain.SegmentResult) error {
	query := `
		insert into segments (audio_hash, start_ms, end_ms, backend, model, options, run_id, file_name, status, text, reason, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		on conflict (audio_hash, start_ms, end_ms, backend, model, options) do update set
			run_id = excluded.run_id,
			file_name = excluded.file_name,
			status = excluded.status,
			text = excluded.text,
			reason = excluded.reason,
			created_at = excluded.created_at
		where segments.status != 'ok' or excluded.status = 'ok'`

	_, err := l.db.ExecContext(ctx, query,
		key.AudioHash,
		toMillis(key.Start),
		toMillis(key.End),
		key.Backend,
		key.Model,
		key.Options,
		runID,
		fileName,
		string(res.Status),
		res.Text,
		res.Reason,
		l.now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record segment %d: %w", res.Segment.Index, err)
	}
	return nil
}

// CachedSegment returns a previously successful text for key.
func (l *SQLiteLedger) CachedSegment(ctx context.Context, key Key) (string, bool, error) {
	var text string
	err := l.db.QueryRowContext(ctx, `
		select text from segments
		where audio_hash = $1 and start_ms = $2 and end_ms = $3 and backend = $4 and model = $5
			and options = $6 and status = 'ok'`,
		key.AudioHash, toMillis(key.Start), toMillis(key.End), key.Backend, key.Model, key.Options,
	).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup cached segment: %w", err)
	}
	return text, true, nil
}

func toMillis(sec float64) int64 {
	return int64(math.Round(sec * 1000))
}
