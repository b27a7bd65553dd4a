package workers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/jrepp/syncstart/pkg/supervisor"
	"github.com/jrepp/syncstart/pkg/syncstart"
)

// Put stores a key/value pair in a Store worker.
type Put struct {
	Key   string
	Value string
}

// Close asks a Store worker to close its database and stop cleanly.
type Close struct{}

// Store is a worker whose phase-2 initialization opens a SQLite database and
// prepares its schema before acknowledging readiness. After readiness it
// accepts Put messages.
type Store struct {
	path string

	mu sync.Mutex
	db *sql.DB
}

// NewStore builds a Store from manifest args.
//
// Args:
//
//	path: SQLite database path (required; ":memory:" for an in-memory store)
func NewStore(args map[string]any) (supervisor.Worker, error) {
	path, err := argString(args, "path", "")
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, errors.New(`store worker requires arg "path"`)
	}
	return &Store{path: path}, nil
}

// Init is phase-1: only validation, the database is opened during phase-2.
func (s *Store) Init(ctx context.Context) error {
	return nil
}

// HandleMessage opens the database on the acknowledgment request and serves
// Put messages afterwards.
func (s *Store) HandleMessage(ctx context.Context, msg any) error {
	switch m := msg.(type) {
	case syncstart.AckRequest:
		if err := s.open(ctx); err != nil {
			return &supervisor.Failure{Kind: "store_init_failed", Details: err.Error()}
		}
		syncstart.Acknowledge(m.Token)
		return nil

	case Put:
		db := s.DB()
		if db == nil {
			return &supervisor.Failure{Kind: "store_not_ready", Details: m.Key}
		}
		_, err := db.ExecContext(ctx,
			`INSERT INTO kv (k, v) VALUES (?, ?)
			 ON CONFLICT(k) DO UPDATE SET v = excluded.v`,
			m.Key, m.Value)
		if err != nil {
			return fmt.Errorf("put %q: %w", m.Key, err)
		}
		return nil

	case Close:
		s.closeDB()
		return supervisor.ErrNormal

	default:
		return nil
	}
}

// DB returns the open database, or nil before phase-2 has completed.
func (s *Store) DB() *sql.DB {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db
}

func (s *Store) open(ctx context.Context) error {
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.path, err)
	}

	// Single writer; also keeps ":memory:" databases on one connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping %s: %w", s.path, err)
	}

	if _, err := db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS kv (k TEXT PRIMARY KEY, v TEXT NOT NULL)`); err != nil {
		db.Close()
		return fmt.Errorf("prepare schema: %w", err)
	}

	s.mu.Lock()
	s.db = db
	s.mu.Unlock()

	return nil
}

func (s *Store) closeDB() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		s.db.Close()
		s.db = nil
	}
}
