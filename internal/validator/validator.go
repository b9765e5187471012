// Package validator grades learner queries against exercise references.
package validator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"sql-sandbox/internal/domain"
	"sql-sandbox/internal/engine"
	"sql-sandbox/internal/normalize"
	"sql-sandbox/internal/session"
)

// Validator runs a learner query and the exercise's reference on the same
// session, under one session lease, and compares the two.
type Validator struct {
	registry *session.Registry
	exec     *engine.Executor
	logger   *slog.Logger
	onReject func(sessionID, query string, rej *domain.RejectionError)
}

// Option configures a Validator.
type Option func(*Validator)

// WithRejectionHook registers fn to be called for every submission the
// gatekeeper rejects.
func WithRejectionHook(fn func(sessionID, query string, rej *domain.RejectionError)) Option {
	return func(v *Validator) { v.onReject = fn }
}

// New creates a Validator.
func New(registry *session.Registry, exec *engine.Executor, logger *slog.Logger, opts ...Option) *Validator {
	v := &Validator{registry: registry, exec: exec, logger: logger}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate grades query for exercise ex on session sessionID.
//
// Learner-facing failures (rejections, engine errors, mismatches) are
// returned as an incorrect Verdict with a nil error. System failures such
// as a broken seed script or cancellation are returned as errors.
func (v *Validator) Validate(ctx context.Context, sessionID string, ex *domain.Exercise, query string) (domain.Verdict, error) {
	if ex == nil {
		return domain.Verdict{}, domain.ErrValidation("exercise is required")
	}
	return v.grade(ctx, sessionID, ex.ID, ex.Strategy(), query)
}

// ValidatePlayground grades query for a playground challenge. The challenge's
// solution always runs live and row order never matters.
func (v *Validator) ValidatePlayground(ctx context.Context, sessionID string, ch *domain.PlaygroundChallenge, query string) (domain.Verdict, error) {
	if ch == nil {
		return domain.Verdict{}, domain.ErrValidation("challenge is required")
	}
	return v.grade(ctx, sessionID, ch.ID, ch.Strategy(), query)
}

func (v *Validator) grade(ctx context.Context, sessionID, exerciseID string, strategy domain.Strategy, query string) (domain.Verdict, error) {
	// A rejected query never needs a session.
	verified, err := v.exec.Prepare(query)
	if err != nil {
		var rej *domain.RejectionError
		if v.onReject != nil && errors.As(err, &rej) {
			v.onReject(sessionID, query, rej)
		}
		return learnerFailure(err)
	}

	var verdict domain.Verdict
	err = v.registry.With(ctx, sessionID, func(s *session.Session) error {
		user, err := v.exec.Run(ctx, s.DB(), verified)
		if err != nil {
			verdict, err = learnerFailure(err)
			return err
		}

		switch st := strategy.(type) {
		case domain.PrecomputedRows:
			verdict = compare(user, st.Reference, st.OrderMatters)
		case domain.LiveSolutionQuery:
			verdict, err = v.gradeLive(ctx, s, exerciseID, user, st)
		case domain.ColumnNamesOnly:
			verdict = compareColumns(user, st.Columns)
		default:
			verdict = domain.Incorrect(domain.MsgNotConfigured)
		}
		return err
	})
	if err != nil {
		return domain.Verdict{}, err
	}

	v.logger.Debug("submission graded",
		"session_id", sessionID,
		"exercise", exerciseID,
		"strategy", domain.StrategyName(strategy),
		"ctes", len(verified.CTEs()),
		"recursive", verified.Recursive(),
		"correct", verdict.Correct,
	)
	return verdict, nil
}

// gradeLive runs the solution query on the learner's session and compares.
// A failing solution is an authoring defect, so the learner is graded on
// column names only, or passed when there are none to check.
func (v *Validator) gradeLive(ctx context.Context, s *session.Session, exerciseID string, user *domain.ResultSet, st domain.LiveSolutionQuery) (domain.Verdict, error) {
	ref, err := v.exec.Execute(ctx, s.DB(), st.Query)
	if err != nil {
		if !isLearnerFailure(err) {
			return domain.Verdict{}, err
		}
		v.logger.Warn("solution query failed",
			"session_id", s.ID,
			"exercise", exerciseID,
			"error", err,
		)
		if len(st.ExpectedColumns) > 0 {
			return compareColumns(user, st.ExpectedColumns), nil
		}
		return domain.Correct(), nil
	}
	return compare(user, ref, st.OrderMatters), nil
}

// compare checks column sets, then rows in reference column order.
func compare(user, ref *domain.ResultSet, orderMatters bool) domain.Verdict {
	if !sameColumnSet(user.Columns, ref.Columns) {
		return domain.Incorrect(domain.MsgColumnsMismatch)
	}

	refTuples, err := normalize.Tuples(ref, ref.Columns)
	if err != nil {
		return domain.Incorrect(domain.MsgOutputMismatch)
	}
	userTuples, err := normalize.Tuples(user, ref.Columns)
	if err != nil {
		return domain.Incorrect(domain.MsgColumnsMismatch)
	}

	if !orderMatters {
		normalize.Sort(refTuples)
		normalize.Sort(userTuples)
	}
	if len(userTuples) != len(refTuples) {
		return domain.Incorrect(fmt.Sprintf(domain.MsgRowCountTemplate, len(refTuples), len(userTuples)))
	}
	if !normalize.EqualTuples(userTuples, refTuples) {
		return domain.Incorrect(domain.MsgOutputMismatch)
	}
	return domain.Correct()
}

func compareColumns(user *domain.ResultSet, expected []string) domain.Verdict {
	if !sameColumnSet(user.Columns, expected) {
		return domain.Incorrect(domain.MsgColumnsMismatch)
	}
	return domain.Correct()
}

// sameColumnSet compares column names as sets, case-sensitively.
func sameColumnSet(a, b []string) bool {
	return equalStrings(uniqueSorted(a), uniqueSorted(b))
}

func uniqueSorted(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	n := 0
	for i, s := range out {
		if i == 0 || s != out[n-1] {
			out[n] = s
			n++
		}
	}
	return out[:n]
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func isLearnerFailure(err error) bool {
	var rej *domain.RejectionError
	var exe *domain.ExecutionError
	return errors.As(err, &rej) || errors.As(err, &exe)
}

// learnerFailure turns rejection and execution errors into an incorrect
// verdict and passes every other error through.
func learnerFailure(err error) (domain.Verdict, error) {
	var rej *domain.RejectionError
	if errors.As(err, &rej) {
		return domain.Incorrect(rej.Reason), nil
	}
	var exe *domain.ExecutionError
	if errors.As(err, &exe) {
		msg := exe.Message
		if msg == "" {
			msg = domain.MsgExecutionFailed
		}
		return domain.Incorrect(msg), nil
	}
	return domain.Verdict{}, err
}
