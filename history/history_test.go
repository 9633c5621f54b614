package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/orchestra/core"
	"github.com/hupe1980/orchestra/internal/testutil"
	"github.com/hupe1980/orchestra/orchestrator"
)

func setupSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleRecord(id string, started time.Time) Record {
	return Record{
		RunID:       id,
		RequestID:   "req-" + id,
		State:       core.RunAborted,
		StartedAt:   started,
		Duration:    1500 * time.Millisecond,
		FailureKind: core.KindTimeout,
		Error:       "run aborted: timeout",
		Invocations: []InvocationRecord{
			{Key: "research", Role: "research", Status: core.StatusSucceeded, Attempts: 1, Duration: time.Second},
			{Key: "analysis", Role: "analysis", Status: core.StatusFailed, Attempts: 4, FailureKind: core.KindTimeout, Message: "invocation timeout", Duration: 400 * time.Millisecond},
		},
	}
}

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewInMemoryStore(),
		"sqlite": setupSQLite(t),
	}
}

func TestStore_SaveGet(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rec := sampleRecord("r1", time.Date(2025, 1, 2, 3, 4, 5, 6, time.UTC))

			require.NoError(t, s.Save(ctx, rec))

			got, err := s.Get(ctx, "r1")
			require.NoError(t, err)
			assert.Equal(t, rec, got)
			assert.Equal(t, 1, got.Failed())
			assert.False(t, got.Succeeded())

			_, err = s.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_SaveReplaces(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rec := sampleRecord("r1", time.Now().UTC())
			require.NoError(t, s.Save(ctx, rec))

			rec.State = core.RunCompleted
			rec.Invocations = rec.Invocations[:1]
			require.NoError(t, s.Save(ctx, rec))

			n, err := s.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			got, err := s.Get(ctx, "r1")
			require.NoError(t, err)
			assert.Equal(t, core.RunCompleted, got.State)
			assert.Len(t, got.Invocations, 1)
		})
	}
}

func TestStore_ListNewestFirst(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
			for i := range 5 {
				require.NoError(t, s.Save(ctx, sampleRecord(fmt.Sprintf("r%d", i), base.Add(time.Duration(i)*time.Minute))))
			}

			recs, err := s.List(ctx, 2)
			require.NoError(t, err)
			require.Len(t, recs, 2)
			assert.Equal(t, "r4", recs[0].RunID)
			assert.Equal(t, "r3", recs[1].RunID)
			assert.Len(t, recs[0].Invocations, 2)

			all, err := s.List(ctx, 0)
			require.NoError(t, err)
			assert.Len(t, all, 5)

			n, err := s.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 5, n)
		})
	}
}

func TestInMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	rec := sampleRecord("r1", time.Now())
	require.NoError(t, s.Save(ctx, rec))

	rec.Invocations[0].Status = core.StatusFailed

	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusSucceeded, got.Invocations[0].Status)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), sampleRecord("r1", time.Now())))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	v, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(migrations), v)

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, path, s.Path())
}

func TestSQLiteStore_PragmasOnEveryConnection(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	// hold several connections open at once so the pool has to grow
	conns := make([]*sql.Conn, 3)
	for i := range conns {
		c, err := s.conn.Conn(ctx)
		require.NoError(t, err)
		conns[i] = c
	}

	for _, c := range conns {
		var fk, timeout int
		require.NoError(t, c.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk))
		require.NoError(t, c.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout))
		assert.Equal(t, 1, fk)
		assert.Equal(t, 5000, timeout)
		require.NoError(t, c.Close())
	}
}

func TestSQLiteStore_ResaveAcrossConnections(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()
	s.conn.SetMaxIdleConns(4)

	rec := sampleRecord("r1", time.Now())
	for range 5 {
		require.NoError(t, s.Save(ctx, rec))
	}

	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, got.Invocations, 2)
}

func TestRecorder(t *testing.T) {
	store := NewInMemoryStore()
	orch := orchestrator.New(testutil.Roles{
		"research": testutil.Succeed("R"),
		"analysis": testutil.AlwaysFail(core.ErrContractViolation),
	}, func(o *orchestrator.Options) {
		o.Hooks = []core.Hook{NewRecorder(store)}
	})

	ctx := core.WithRequestID(context.Background(), "req-1")

	res, err := orch.Submit(ctx, core.Sequence(core.Invoke("research", nil)))
	require.NoError(t, err)

	_, err = orch.Submit(ctx, core.Sequence(core.Invoke("research", nil), core.Invoke("analysis", nil)))
	var rf *orchestrator.RunFailure
	require.True(t, errors.As(err, &rf))

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ok, err := store.Get(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.True(t, ok.Succeeded())
	assert.Equal(t, "req-1", ok.RequestID)
	assert.False(t, ok.StartedAt.IsZero())

	failed, err := store.Get(context.Background(), rf.RunID)
	require.NoError(t, err)
	assert.Equal(t, core.RunAborted, failed.State)
	assert.Equal(t, core.KindContractViolation, failed.FailureKind)
	assert.Equal(t, 1, failed.Failed())
	assert.NotEmpty(t, failed.Error)
}

type failingStore struct{ Store }

func (failingStore) Save(context.Context, Record) error { return errors.New("disk full") }

func TestRecorder_SaveErrorIsLogged(t *testing.T) {
	logged := 0
	rec := NewRecorder(failingStore{}, func(o *RecorderOptions) {
		o.Logger = loggerFunc(func(string, ...any) { logged++ })
	})

	rec.OnEvent(core.NewEvent(core.EventRunStarted, "r1", "r1"))
	end := core.NewEvent(core.EventRunCompleted, "r1", "r1")
	end.State = core.RunCompleted
	rec.OnEvent(end)

	assert.Equal(t, 1, logged)
}

type loggerFunc func(msg string, args ...any)

func (f loggerFunc) Debug(string, ...any)          {}
func (f loggerFunc) Info(string, ...any)           {}
func (f loggerFunc) Warn(string, ...any)           {}
func (f loggerFunc) Error(msg string, args ...any) { f(msg, args...) }
