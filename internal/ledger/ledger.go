// internal/ledger/ledger.go
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"treespace/internal/dispatch"
)

// FileName is the ledger database name inside the output directory.
const FileName = "treespace.db"

// Run and unit states.
const (
	StatusRunning = "running"
	StatusOK      = "ok"
	StatusFailed  = "failed"
	// StatusPartial is a finished run with per-family failures.
	StatusPartial = "partial"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	config_path TEXT NOT NULL,
	outdir TEXT NOT NULL,
	status TEXT NOT NULL,
	started_unix_nanos INTEGER NOT NULL,
	finished_unix_nanos INTEGER
);
CREATE TABLE IF NOT EXISTS units (
	run_id TEXT NOT NULL REFERENCES runs(run_id),
	stage TEXT NOT NULL,
	family TEXT NOT NULL,
	status TEXT NOT NULL,
	artifact TEXT NOT NULL DEFAULT '',
	exit_code INTEGER NOT NULL DEFAULT 0,
	message TEXT NOT NULL DEFAULT '',
	started_unix_nanos INTEGER,
	finished_unix_nanos INTEGER,
	PRIMARY KEY (run_id, stage, family)
);
`

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
}

// Run identifies one pipeline invocation.
type Run struct {
	ID         string
	ConfigPath string
	Outdir     string
	Status     string
	Started    time.Time
	Finished   time.Time
}

// Unit is the recorded state of one family in one stage.
type Unit struct {
	Stage    string
	Family   string
	Status   string
	Artifact string
	ExitCode int
	Message  string
	Started  time.Time
	Finished time.Time
}

// Ledger records runs and per-family unit outcomes. It implements
// dispatch.Observer for one active run at a time.
type Ledger struct {
	db  *sql.DB
	log *slog.Logger

	mu    sync.Mutex
	runID string
	err   error // first observer write error
}

var _ dispatch.Observer = (*Ledger)(nil)

// Open opens or creates the database at path and applies the schema.
func Open(path string, log *slog.Logger) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("ledger %s: %s: %w", path, p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger %s: schema: %w", path, err)
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Ledger{db: db, log: log}, nil
}

// BeginRun inserts r as running and makes it the target of observer calls.
func (l *Ledger) BeginRun(ctx context.Context, r Run) error {
	if r.ID == "" {
		return errors.New("ledger: empty run id")
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, config_path, outdir, status, started_unix_nanos) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.ConfigPath, r.Outdir, StatusRunning, r.Started.UnixNano())
	if err != nil {
		return fmt.Errorf("ledger: begin run: %w", err)
	}
	l.mu.Lock()
	l.runID = r.ID
	l.mu.Unlock()
	return nil
}

// FinishRun stamps the active run with status and the finish time.
func (l *Ledger) FinishRun(ctx context.Context, status string, finished time.Time) error {
	id := l.active()
	if id == "" {
		return errors.New("ledger: no active run")
	}
	_, err := l.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_unix_nanos = ? WHERE run_id = ?`,
		status, finished.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("ledger: finish run: %w", err)
	}
	return nil
}

// UnitStarted records family as running in stage.
func (l *Ledger) UnitStarted(ctx context.Context, stage, family string) {
	id := l.active()
	if id == "" {
		return
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO units (run_id, stage, family, status, started_unix_nanos)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, stage, family) DO UPDATE SET
			status = excluded.status,
			started_unix_nanos = excluded.started_unix_nanos`,
		id, stage, family, StatusRunning, time.Now().UnixNano())
	l.record(err)
}

// UnitFinished records the final state of a unit.
func (l *Ledger) UnitFinished(ctx context.Context, oc dispatch.Outcome) {
	id := l.active()
	if id == "" {
		return
	}
	status, msg := StatusOK, ""
	if oc.Failure != nil {
		status, msg = StatusFailed, oc.Failure.Error()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO units (run_id, stage, family, status, artifact, exit_code, message, started_unix_nanos, finished_unix_nanos)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, stage, family) DO UPDATE SET
			status = excluded.status,
			artifact = excluded.artifact,
			exit_code = excluded.exit_code,
			message = excluded.message,
			started_unix_nanos = COALESCE(units.started_unix_nanos, excluded.started_unix_nanos),
			finished_unix_nanos = excluded.finished_unix_nanos`,
		id, oc.Stage, oc.Family, status, oc.Artifact, oc.ExitCode, msg,
		nanos(oc.Started), nanos(oc.Finished))
	l.record(err)
}

// Units returns every unit of runID ordered by stage then family.
func (l *Ledger) Units(ctx context.Context, runID string) ([]Unit, error) {
	return l.units(ctx, `WHERE run_id = ?`, runID)
}

// Failures returns the failed units of runID ordered by stage then family.
func (l *Ledger) Failures(ctx context.Context, runID string) ([]Unit, error) {
	return l.units(ctx, `WHERE run_id = ? AND status = '`+StatusFailed+`'`, runID)
}

// GetRun loads one run row.
func (l *Ledger) GetRun(ctx context.Context, runID string) (Run, error) {
	var (
		r        = Run{ID: runID}
		started  int64
		finished sql.NullInt64
	)
	err := l.db.QueryRowContext(ctx,
		`SELECT config_path, outdir, status, started_unix_nanos, finished_unix_nanos FROM runs WHERE run_id = ?`, runID).
		Scan(&r.ConfigPath, &r.Outdir, &r.Status, &started, &finished)
	if err != nil {
		return Run{}, fmt.Errorf("ledger: run %s: %w", runID, err)
	}
	r.Started = time.Unix(0, started)
	if finished.Valid {
		r.Finished = time.Unix(0, finished.Int64)
	}
	return r, nil
}

func (l *Ledger) units(ctx context.Context, where string, args ...any) ([]Unit, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT stage, family, status, artifact, exit_code, message, started_unix_nanos, finished_unix_nanos
		FROM units `+where+` ORDER BY stage, family`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Unit
	for rows.Next() {
		var (
			u                 Unit
			started, finished sql.NullInt64
		)
		if err := rows.Scan(&u.Stage, &u.Family, &u.Status, &u.Artifact, &u.ExitCode, &u.Message, &started, &finished); err != nil {
			return nil, err
		}
		if started.Valid {
			u.Started = time.Unix(0, started.Int64)
		}
		if finished.Valid {
			u.Finished = time.Unix(0, finished.Int64)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Err returns the first error hit while recording observer calls.
func (l *Ledger) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Close closes the database.
func (l *Ledger) Close() error { return l.db.Close() }

func (l *Ledger) active() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.runID
}

func (l *Ledger) record(err error) {
	if err == nil {
		return
	}
	l.mu.Lock()
	first := l.err == nil
	if first {
		l.err = err
	}
	l.mu.Unlock()
	if first {
		l.log.Warn("ledger write failed", "err", err)
	}
}

func nanos(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixNano()
}
