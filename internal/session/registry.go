// Package session owns the per-session sandbox databases.
//
// Every session id maps to one in-memory DuckDB database, created and seeded
// on first use and reused afterwards. Work on a session runs under an
// exclusive lease, so two submissions for the same id never interleave.
// Idle sessions are evicted by a cron-scheduled sweep.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // register "duckdb" driver
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"sql-sandbox/internal/domain"
	"sql-sandbox/internal/seed"
)

// ErrClosed is returned for sessions requested after the registry was closed.
var ErrClosed = errors.New("session registry closed")

const previewLength = 120

// lockdownStatements run after seeding when lockdown is enabled.
var lockdownStatements = []string{
	"SET enable_external_access = false",
	"SET lock_configuration = true",
}

// Session is one live sandbox database.
type Session struct {
	ID        string
	CreatedAt time.Time

	db    *sql.DB
	lease chan struct{}

	// guarded by Registry.mu
	lastUsed time.Time
	refs     int
}

// DB returns the session's database handle. It is capped at one connection.
func (s *Session) DB() *sql.DB { return s.db }

// Registry maps session ids to seeded databases.
type Registry struct {
	script   *seed.Script
	lockdown bool
	logger   *slog.Logger
	now      func() time.Time

	group singleflight.Group

	mu       sync.Mutex
	sessions map[string]*Session
	onEvict  []func(id string)
	closed   bool

	cron *cron.Cron
}

// Option configures a Registry.
type Option func(*Registry)

// WithLockdown disables external access and locks the configuration of every
// session database after it is seeded.
func WithLockdown(enabled bool) Option {
	return func(r *Registry) { r.lockdown = enabled }
}

// WithClock overrides the time source used for idle tracking.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates an empty registry that seeds new sessions from script.
// A nil script creates empty databases.
func NewRegistry(script *seed.Script, logger *slog.Logger, opts ...Option) *Registry {
	if script == nil {
		script = &seed.Script{Source: "empty"}
	}
	r := &Registry{
		script:   script,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnEvict registers fn to be called with the id of every session removed by
// a sweep, Drop or Close.
func (r *Registry) OnEvict(fn func(id string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onEvict = append(r.onEvict, fn)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// GetOrCreate returns the session for id, creating and seeding it on first
// use. Concurrent first calls for the same id seed exactly one database.
// The returned session is not leased; use With to run work on it.
func (r *Registry) GetOrCreate(ctx context.Context, id string) (*Session, error) {
	s, err := r.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	r.release(s)
	return s, nil
}

// With runs fn while holding the exclusive lease of session id. The lease is
// released when fn returns. Waiting for the lease honours ctx.
func (r *Registry) With(ctx context.Context, id string, fn func(*Session) error) error {
	s, err := r.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer r.release(s)

	select {
	case s.lease <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.lease }()

	return fn(s)
}

// acquire returns the session for id with its reference count raised, so
// sweeps leave it alone until release.
func (r *Registry) acquire(ctx context.Context, id string) (*Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrValidation("session id is required")
	}
	for {
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return nil, ErrClosed
		}
		if s, ok := r.sessions[id]; ok {
			s.refs++
			s.lastUsed = r.now()
			r.mu.Unlock()
			return s, nil
		}
		r.mu.Unlock()

		_, err, _ := r.group.Do(id, func() (interface{}, error) {
			return nil, r.create(context.WithoutCancel(ctx), id)
		})
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

func (r *Registry) release(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.refs--
	s.lastUsed = r.now()
}

// create opens, seeds and registers a new database for id.
func (r *Registry) create(ctx context.Context, id string) error {
	r.mu.Lock()
	_, exists := r.sessions[id]
	r.mu.Unlock()
	if exists {
		return nil
	}

	start := time.Now()
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return fmt.Errorf("open session database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := r.seed(ctx, id, db); err != nil {
		_ = db.Close()
		return err
	}

	now := r.now()
	s := &Session{
		ID:        id,
		CreatedAt: now,
		db:        db,
		lease:     make(chan struct{}, 1),
		lastUsed:  now,
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		_ = db.Close()
		return ErrClosed
	}
	r.sessions[id] = s
	r.mu.Unlock()

	r.logger.Info("session created",
		"session_id", id,
		"seed", r.script.Source,
		"statements", r.script.Len(),
		"duration", time.Since(start),
	)
	return nil
}

func (r *Registry) seed(ctx context.Context, id string, db *sql.DB) error {
	for i, stmt := range r.script.Statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			preview := statementPreview(stmt)
			r.logger.Error("seed statement failed",
				"session_id", id,
				"seed", r.script.Source,
				"statement_index", i,
				"statement", preview,
				"error", err,
			)
			return &domain.SeedError{Index: i, Statement: preview, Err: err}
		}
	}
	if !r.lockdown {
		return nil
	}
	for _, stmt := range lockdownStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("lock down session %q: %w", id, err)
		}
	}
	return nil
}

func statementPreview(stmt string) string {
	preview := strings.Join(strings.Fields(stmt), " ")
	if len(preview) > previewLength {
		preview = preview[:previewLength]
	}
	return preview
}

// Drop closes and removes session id unless it is in use. It reports whether
// a session was removed.
func (r *Registry) Drop(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok || s.refs > 0 {
		r.mu.Unlock()
		return false
	}
	delete(r.sessions, id)
	hooks := r.onEvict
	r.mu.Unlock()

	r.closeSession(s, hooks, "dropped")
	return true
}

// Sweep evicts sessions that are not in use and have been idle for at least
// ttl. It returns the number of evicted sessions.
func (r *Registry) Sweep(ttl time.Duration) int {
	now := r.now()
	r.mu.Lock()
	var idle []*Session
	for id, s := range r.sessions {
		if s.refs == 0 && now.Sub(s.lastUsed) >= ttl {
			idle = append(idle, s)
			delete(r.sessions, id)
		}
	}
	hooks := r.onEvict
	r.mu.Unlock()

	for _, s := range idle {
		r.closeSession(s, hooks, "idle")
	}
	return len(idle)
}

func (r *Registry) closeSession(s *Session, hooks []func(string), reason string) {
	if err := s.db.Close(); err != nil {
		r.logger.Warn("close session database", "session_id", s.ID, "error", err)
	}
	for _, fn := range hooks {
		fn(s.ID)
	}
	r.logger.Debug("session evicted", "session_id", s.ID, "reason", reason)
}

// StartSweeper schedules Sweep(ttl) on the cron schedule. A non-positive
// ttl disables eviction.
func (r *Registry) StartSweeper(schedule string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return fmt.Errorf("session sweeper already started")
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if n := r.Sweep(ttl); n > 0 {
			r.logger.Info("evicted idle sessions", "count", n, "ttl", ttl)
		}
	}); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	c.Start()
	r.cron = c
	r.logger.Info("session sweeper started", "schedule", schedule, "ttl", ttl)
	return nil
}

// Close stops the sweeper and closes every session. Leased sessions are
// closed as well; their in-flight statements fail.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	c := r.cron
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	hooks := r.onEvict
	r.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}

	var errs []error
	for _, s := range sessions {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close session %q: %w", s.ID, err))
		}
		for _, fn := range hooks {
			fn(s.ID)
		}
	}
	return errors.Join(errs...)
}
