// Package sandbox is the entry point for callers: it runs learner queries and
// grades submissions on per-session databases, throttles each session and
// audits rejected SQL.
package sandbox

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"sql-sandbox/internal/domain"
	"sql-sandbox/internal/engine"
	"sql-sandbox/internal/gatekeeper"
	"sql-sandbox/internal/session"
	"sql-sandbox/internal/validator"
)

// Service wires the gatekeeper, executor, validator and session registry.
type Service struct {
	registry  *session.Registry
	exec      *engine.Executor
	validator *validator.Validator
	limiters  *limiterSet
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*options)

type options struct {
	rps     float64
	burst   int
	idleTTL time.Duration
}

// WithRateLimit throttles every session to rps queries per second with the
// given burst. Limiters unused for longer than idleTTL are discarded. A
// non-positive rps disables throttling.
func WithRateLimit(rps float64, burst int, idleTTL time.Duration) Option {
	return func(o *options) {
		o.rps = rps
		o.burst = burst
		o.idleTTL = idleTTL
	}
}

// New creates a Service. The service takes ownership of registry and closes it
// in Close.
func New(registry *session.Registry, exec *engine.Executor, logger *slog.Logger, opts ...Option) *Service {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	s := &Service{
		registry: registry,
		exec:     exec,
		logger:   logger,
	}
	s.validator = validator.New(registry, exec, logger, validator.WithRejectionHook(s.auditRejection))

	if o.rps > 0 {
		s.limiters = newLimiterSet(o.rps, o.burst, o.idleTTL)
		registry.OnEvict(s.limiters.forget)
	}
	return s
}

// OpenSession creates and seeds the session database for sessionID if it does
// not exist yet. Interactive callers use it to surface seed failures before
// the first query.
func (s *Service) OpenSession(ctx context.Context, sessionID string) error {
	sess, err := s.registry.GetOrCreate(ctx, sessionID)
	if err != nil {
		return err
	}
	s.logger.Debug("session opened", "session_id", sess.ID, "created_at", sess.CreatedAt)
	return nil
}

// Check classifies query without running it.
func (s *Service) Check(query string) (gatekeeper.Verified, error) {
	return s.exec.Prepare(query)
}

// ExecuteQuery runs query on the session's database and returns its rows.
// Rejected queries return a *domain.RejectionError and engine failures a
// *domain.ExecutionError.
func (s *Service) ExecuteQuery(ctx context.Context, sessionID, query string) (*domain.ResultSet, error) {
	if err := s.admit(sessionID); err != nil {
		return nil, err
	}
	verified, err := s.exec.Prepare(query)
	if err != nil {
		var rej *domain.RejectionError
		if errors.As(err, &rej) {
			s.auditRejection(sessionID, query, rej)
		}
		return nil, err
	}

	var rs *domain.ResultSet
	err = s.registry.With(ctx, sessionID, func(sess *session.Session) error {
		var err error
		rs, err = s.exec.Run(ctx, sess.DB(), verified)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rs, nil
}

// Validate grades query against exercise ex.
func (s *Service) Validate(ctx context.Context, sessionID string, ex *domain.Exercise, query string) (domain.Verdict, error) {
	if err := s.admit(sessionID); err != nil {
		return domain.Verdict{}, err
	}
	return s.validator.Validate(ctx, sessionID, ex, query)
}

// ValidatePlayground grades query against a playground challenge.
func (s *Service) ValidatePlayground(ctx context.Context, sessionID string, ch *domain.PlaygroundChallenge, query string) (domain.Verdict, error) {
	if err := s.admit(sessionID); err != nil {
		return domain.Verdict{}, err
	}
	return s.validator.ValidatePlayground(ctx, sessionID, ch, query)
}

// DescribeSchema lists the tables and columns of schema in the session's
// database. An empty schema means the default one.
func (s *Service) DescribeSchema(ctx context.Context, sessionID, schema string) ([]domain.TableSchema, error) {
	var tables []domain.TableSchema
	err := s.registry.With(ctx, sessionID, func(sess *session.Session) error {
		var err error
		tables, err = engine.DescribeSchema(ctx, sess.DB(), schema)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tables, nil
}

// Close releases every session database.
func (s *Service) Close() error {
	return s.registry.Close()
}

// admit validates the session id and takes a rate-limit token.
func (s *Service) admit(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return domain.ErrValidation("session id is required")
	}
	if s.limiters == nil {
		return nil
	}
	if err := s.limiters.allow(sessionID); err != nil {
		s.logger.Warn("session rate limited", "session_id", sessionID, "error", err)
		return err
	}
	return nil
}

func (s *Service) auditRejection(sessionID, query string, rej *domain.RejectionError) {
	s.logger.Warn("query rejected",
		"session_id", sessionID,
		"reason", rej.Reason,
		"fingerprint", gatekeeper.Fingerprint(query),
		"length", utf8.RuneCountInString(query),
	)
}
