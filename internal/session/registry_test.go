package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sql-sandbox/internal/domain"
	"sql-sandbox/internal/seed"
)

const testSeed = `
CREATE TABLE orders (id INTEGER, total INTEGER);
INSERT INTO orders VALUES (1, 150), (2, 90);
`

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRegistry(t *testing.T, opts ...Option) *Registry {
	t.Helper()
	r := NewRegistry(seed.Parse("test", testSeed), slog.New(slog.DiscardHandler), opts...)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func countOrders(t *testing.T, s *Session) int {
	t.Helper()
	var n int
	require.NoError(t, s.DB().QueryRow("SELECT count(*) FROM orders").Scan(&n))
	return n
}

func TestGetOrCreate_SeedsOnceAndReuses(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t)
	ctx := context.Background()

	s1, err := r.GetOrCreate(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, countOrders(t, s1))

	s2, err := r.GetOrCreate(ctx, "alice")
	require.NoError(t, err)
	assert.Same(t, s1, s2)
	assert.Equal(t, 1, r.Len())

	other, err := r.GetOrCreate(ctx, "bob")
	require.NoError(t, err)
	assert.NotSame(t, s1, other)
	assert.Equal(t, 2, r.Len())
}

func TestGetOrCreate_SessionsAreIsolated(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t)
	ctx := context.Background()

	a, err := r.GetOrCreate(ctx, "a")
	require.NoError(t, err)
	b, err := r.GetOrCreate(ctx, "b")
	require.NoError(t, err)

	_, err = a.DB().Exec("DELETE FROM orders")
	require.NoError(t, err)
	assert.Equal(t, 0, countOrders(t, a))
	assert.Equal(t, 2, countOrders(t, b))
}

func TestGetOrCreate_ConcurrentFirstUse(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t)

	const n = 8
	sessions := make([]*Session, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := r.GetOrCreate(context.Background(), "shared")
			assert.NoError(t, err)
			sessions[i] = s
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, r.Len())
	for _, s := range sessions[1:] {
		assert.Same(t, sessions[0], s)
	}
}

func TestGetOrCreate_EmptyID(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t)

	_, err := r.GetOrCreate(context.Background(), "  ")
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Zero(t, r.Len())
}

func TestGetOrCreate_SeedFailure(t *testing.T) {
	t.Parallel()
	script := seed.Parse("broken", "CREATE TABLE t (x INTEGER);\nINSERT INTO missing VALUES (1);\nSELECT 1;")
	r := NewRegistry(script, slog.New(slog.DiscardHandler))
	t.Cleanup(func() { _ = r.Close() })

	_, err := r.GetOrCreate(context.Background(), "s1")
	require.Error(t, err)

	var se *domain.SeedError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, se.Index)
	assert.Equal(t, "INSERT INTO missing VALUES (1)", se.Statement)
	assert.Contains(t, err.Error(), "statement 2")
	assert.Zero(t, r.Len())
}

func TestStatementPreview(t *testing.T) {
	long := "SELECT\n  a,\n  b FROM t WHERE " + strings.Repeat("x", 200)
	p := statementPreview(long)
	assert.Len(t, p, previewLength)
	assert.NotContains(t, p, "\n")
	assert.Equal(t, "SELECT 1", statementPreview("SELECT\n\t1"))
}

func TestWith_SerializesPerSession(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t)

	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := r.With(context.Background(), "same", func(s *Session) error {
				cur := atomic.AddInt32(&active, 1)
				for {
					prev := atomic.LoadInt32(&maxActive)
					if cur <= prev || atomic.CompareAndSwapInt32(&maxActive, prev, cur) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxActive))
}

func TestWith_HonoursContextWhileWaiting(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t)

	held := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = r.With(context.Background(), "busy", func(*Session) error {
			close(held)
			<-done
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := r.With(ctx, "busy", func(*Session) error {
		t.Error("fn must not run without the lease")
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(done)
}

func TestWith_ReturnsFnError(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t)
	boom := errors.New("boom")

	err := r.With(context.Background(), "x", func(*Session) error { return boom })
	assert.ErrorIs(t, err, boom)

	// The lease is released after an error.
	err = r.With(context.Background(), "x", func(*Session) error { return nil })
	assert.NoError(t, err)
}

func TestSweep_EvictsIdleSessions(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	r := newTestRegistry(t, WithClock(clock.Now))
	ctx := context.Background()

	var evicted []string
	var mu sync.Mutex
	r.OnEvict(func(id string) {
		mu.Lock()
		defer mu.Unlock()
		evicted = append(evicted, id)
	})

	_, err := r.GetOrCreate(ctx, "old")
	require.NoError(t, err)
	clock.Advance(20 * time.Minute)
	_, err = r.GetOrCreate(ctx, "fresh")
	require.NoError(t, err)
	clock.Advance(15 * time.Minute)

	assert.Equal(t, 1, r.Sweep(30*time.Minute))
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, []string{"old"}, evicted)

	// An evicted id is re-created and re-seeded on next use.
	s, err := r.GetOrCreate(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, 2, countOrders(t, s))
}

func TestSweep_SkipsLeasedSessions(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	r := newTestRegistry(t, WithClock(clock.Now))

	err := r.With(context.Background(), "busy", func(*Session) error {
		clock.Advance(time.Hour)
		assert.Zero(t, r.Sweep(time.Minute))
		assert.False(t, r.Drop("busy"))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())
}

func TestDrop(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t)

	_, err := r.GetOrCreate(context.Background(), "x")
	require.NoError(t, err)
	assert.True(t, r.Drop("x"))
	assert.False(t, r.Drop("x"))
	assert.Zero(t, r.Len())
}

func TestStartSweeper(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t)

	assert.NoError(t, r.StartSweeper("not a schedule", 0), "zero ttl disables the sweeper")
	assert.Error(t, r.StartSweeper("not a schedule", time.Minute))
	require.NoError(t, r.StartSweeper("@every 1m", time.Minute))
	assert.Error(t, r.StartSweeper("@every 1m", time.Minute))
}

func TestLockdown(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t, WithLockdown(true))

	s, err := r.GetOrCreate(context.Background(), "locked")
	require.NoError(t, err)
	assert.Equal(t, 2, countOrders(t, s))

	_, err = s.DB().Exec("SET enable_external_access = true")
	assert.Error(t, err)
}

func TestClose(t *testing.T) {
	t.Parallel()
	r := NewRegistry(seed.Parse("test", testSeed), slog.New(slog.DiscardHandler))

	var evicted int32
	r.OnEvict(func(string) { atomic.AddInt32(&evicted, 1) })

	_, err := r.GetOrCreate(context.Background(), "a")
	require.NoError(t, err)
	require.NoError(t, r.StartSweeper("@every 1h", time.Hour))

	require.NoError(t, r.Close())
	assert.Zero(t, r.Len())
	assert.Equal(t, int32(1), atomic.LoadInt32(&evicted))
	assert.NoError(t, r.Close(), "second close is a no-op")

	_, err = r.GetOrCreate(context.Background(), "a")
	assert.ErrorIs(t, err, ErrClosed)
}
