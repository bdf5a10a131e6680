package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stmt struct {
	op   string
	sql  string
	args []any
}

// txRecorder logs every statement that reaches the connection or its transaction.
type txRecorder struct {
	stmts   []stmt
	execErr error
}

func (r *txRecorder) ops() []string {
	out := make([]string, len(r.stmts))
	for i, s := range r.stmts {
		out[i] = s.op
	}
	return out
}

type recordingConn struct {
	Querier
	rec *txRecorder
}

func (c *recordingConn) Begin(context.Context) (pgx.Tx, error) {
	c.rec.stmts = append(c.rec.stmts, stmt{op: "begin"})
	return &recordingTx{rec: c.rec}, nil
}

type recordingTx struct {
	pgx.Tx
	rec  *txRecorder
	done bool
}

func (t *recordingTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.rec.stmts = append(t.rec.stmts, stmt{op: "exec", sql: strings.TrimSpace(sql), args: args})
	return pgconn.CommandTag{}, t.rec.execErr
}

func (t *recordingTx) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	t.rec.stmts = append(t.rec.stmts, stmt{op: "query", sql: strings.TrimSpace(sql), args: args})
	return emptyRows{}, nil
}

func (t *recordingTx) Commit(context.Context) error {
	t.done = true
	t.rec.stmts = append(t.rec.stmts, stmt{op: "commit"})
	return nil
}

func (t *recordingTx) Rollback(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.rec.stmts = append(t.rec.stmts, stmt{op: "rollback"})
	return nil
}

type emptyRows struct{ pgx.Rows }

func (emptyRows) Next() bool { return false }
func (emptyRows) Err() error { return nil }
func (emptyRows) Close()     {}

func newRecordingStore() (*Postgres, *txRecorder) {
	rec := &txRecorder{}
	return NewPostgres(NewDBFromConn(&recordingConn{rec: rec})), rec
}

func TestWithRecallSetsLocalEfSearchInsideTransaction(t *testing.T) {
	store, rec := newRecordingStore()

	err := store.WithRecall(context.Background(), 1000, func(tx VectorTx) error {
		hits, err := tx.NearestEmbeddings(context.Background(), make([]float32, 3072), 5)
		require.NoError(t, err)
		assert.Empty(t, hits)
		return nil
	})
	require.NoError(t, err)

	require.Equal(t, []string{"begin", "exec", "query", "commit"}, rec.ops())
	set := rec.stmts[1]
	assert.Equal(t, `SELECT set_config('hnsw.ef_search', $1, true)`, set.sql)
	assert.Equal(t, []any{"1000"}, set.args)
	assert.Contains(t, rec.stmts[2].sql, "paper_abstract_embeddings")
}

func TestWithRecallRollsBackWhenCallbackFails(t *testing.T) {
	store, rec := newRecordingStore()
	boom := errors.New("ann index unavailable")

	err := store.WithRecall(context.Background(), 1000, func(VectorTx) error { return boom })
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"begin", "exec", "rollback"}, rec.ops())
}

func TestWithRecallRollsBackOnPanic(t *testing.T) {
	store, rec := newRecordingStore()

	require.Panics(t, func() {
		_ = store.WithRecall(context.Background(), 1000, func(VectorTx) error { panic("boom") })
	})
	assert.Equal(t, []string{"begin", "exec", "rollback"}, rec.ops())
}

func TestWithRecallSkipsCallbackWhenOverrideFails(t *testing.T) {
	store, rec := newRecordingStore()
	rec.execErr = errors.New("unrecognized configuration parameter")

	called := false
	err := store.WithRecall(context.Background(), 1000, func(VectorTx) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, rec.execErr)
	assert.False(t, called)
	assert.Equal(t, []string{"begin", "exec", "rollback"}, rec.ops())
}

func TestWithRecallWithoutOverride(t *testing.T) {
	store, rec := newRecordingStore()

	require.NoError(t, store.WithRecall(context.Background(), 0, func(VectorTx) error { return nil }))
	assert.Equal(t, []string{"begin", "commit"}, rec.ops())
}
