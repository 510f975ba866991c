// Package history keeps a journal of what every update run did to every venue.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"courtprices/internal/venue"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

var tracer = otel.Tracer("courtprices/internal/history")

type Status string

const (
	StatusSucceeded     Status = "succeeded"
	StatusAcquireFailed Status = "acquire_failed"
	StatusExtractFailed Status = "extract_failed"
)

// Entry is the outcome of one venue in one run.
type Entry struct {
	RunID  uuid.UUID
	Time   time.Time
	Venue  string
	Status Status
	// Proposal is nil unless extraction succeeded.
	Proposal *venue.Proposal
	// Detail holds the error of a failed venue.
	Detail  string
	Changed bool
	DryRun  bool
}

// Config locates the journal, a local sqlite file or a libsql server when Url is set.
type Config struct {
	File      string `json:"file"`
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

func (c Config) OpenDB() (*sql.DB, error) {
	if c.Url != "" {
		link, err := url.Parse(c.Url)
		if err != nil {
			return nil, err
		}
		if c.AuthToken != "" {
			query := link.Query()
			query.Set("authToken", c.AuthToken)
			link.RawQuery = query.Encode()
		}
		return sql.Open("libsql", link.String())
	}

	if c.File == "" {
		return nil, fmt.Errorf("a path was not specified")
	}
	if c.File == ":memory:" {
		db, err := sql.Open("sqlite", c.File)
		if err != nil {
			return nil, err
		}
		// every connection would get its own database otherwise
		db.SetMaxOpenConns(1)
		return db, nil
	}

	err := os.MkdirAll(filepath.Dir(c.File), 0755)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", c.File)
	if err != nil {
		return nil, err
	}
	// sqlite serializes writers anyway, a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

type Store struct {
	db *sql.DB
}

// NewStore creates the journal's tables if they do not exist yet.
func NewStore(ctx context.Context, db *sql.DB) (Store, error) {
	_, err := db.ExecContext(ctx, Schema)
	if err != nil {
		return Store{}, fmt.Errorf("create history schema: %w", err)
	}
	return Store{db: db}, nil
}

// Open opens the journal described by config.
func Open(ctx context.Context, config Config) (Store, error) {
	db, err := config.OpenDB()
	if err != nil {
		return Store{}, err
	}
	store, err := NewStore(ctx, db)
	if err != nil {
		db.Close()
		return Store{}, err
	}
	return store, nil
}

func (s Store) Close() error {
	return s.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Append records entries in one transaction.
func (s Store) Append(ctx context.Context, entries ...Entry) error {
	ctx, span := tracer.Start(ctx, "Append")
	defer span.End()

	if len(entries) == 0 {
		return nil
	}

	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertInto("run_entry")
	ib.Cols("run_id", "time", "venue", "status", "proposal", "detail", "changed", "dry_run")
	for _, e := range entries {
		var proposal sql.NullString
		if e.Proposal != nil {
			serialized, err := json.Marshal(e.Proposal)
			if err != nil {
				return err
			}
			proposal = sql.NullString{String: string(serialized), Valid: true}
		}
		ib.Values(
			e.RunID.String(),
			e.Time.Unix(),
			e.Venue,
			string(e.Status),
			proposal,
			e.Detail,
			boolInt(e.Changed),
			boolInt(e.DryRun),
		)
	}
	query, args := ib.Build()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert entries")
		return err
	}
	return tx.Commit()
}

type ListOptions struct {
	// Venue filters by exact venue name when set.
	Venue string
	// Limit caps the number of entries, 0 means no limit.
	Limit int
}

// List returns recorded entries, newest first.
func (s Store) List(ctx context.Context, opts ListOptions) ([]Entry, error) {
	ctx, span := tracer.Start(ctx, "List")
	defer span.End()

	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("run_id", "time", "venue", "status", "proposal", "detail", "changed", "dry_run")
	sb.From("run_entry")
	if opts.Venue != "" {
		sb.Where(sb.Equal("venue", opts.Venue))
	}
	sb.OrderBy("time DESC", "id DESC")
	if opts.Limit > 0 {
		sb.Limit(opts.Limit)
	}
	query, args := sb.Build()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query entries")
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			runID    string
			unix     int64
			status   string
			proposal sql.NullString
			changed  int
			dryRun   int
			e        Entry
		)
		err := rows.Scan(&runID, &unix, &e.Venue, &status, &proposal, &e.Detail, &changed, &dryRun)
		if err != nil {
			return nil, err
		}

		e.RunID, err = uuid.Parse(runID)
		if err != nil {
			return nil, fmt.Errorf("entry of %s: %w", e.Venue, err)
		}
		e.Time = time.Unix(unix, 0)
		e.Status = Status(status)
		e.Changed = changed != 0
		e.DryRun = dryRun != 0
		if proposal.Valid {
			var p venue.Proposal
			err = json.Unmarshal([]byte(proposal.String), &p)
			if err != nil {
				return nil, fmt.Errorf("proposal of %s: %w", e.Venue, err)
			}
			e.Proposal = &p
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
