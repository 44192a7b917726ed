package trace

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/jqbridge/internal/protocol"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.db")
	db, err := Open(context.Background(), path)
	require.NoError(t, err)
	s := NewStore(db, "sess-test")
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open(context.Background(), "")
	require.Error(t, err)
}

func TestOpenCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "trace.db")
	db, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestRecordOneRowPerEffect(t *testing.T) {
	s := openTestStore(t)

	s.Record("println", `{"op":"println","text":"hi"}`, protocol.Ok(nil), 10*time.Microsecond)
	s.Record("read_file", `{"op":"read_file","path":"missing"}`,
		protocol.Fail(protocol.KindIo, "no such file"), 25*time.Microsecond)

	var count int
	require.NoError(t, s.db.QueryRow(
		`SELECT COUNT(*) FROM effect_log WHERE session_id = ?`, "sess-test").Scan(&count))
	assert.Equal(t, 2, count)

	var status, errKind, errMessage string
	require.NoError(t, s.db.QueryRow(
		`SELECT status, err_kind, err_message FROM effect_log WHERE op = ?`,
		"read_file").Scan(&status, &errKind, &errMessage))
	assert.Equal(t, "err", status)
	assert.Equal(t, "io_error", errKind)
	assert.Equal(t, "no such file", errMessage)
}

func TestRecordSequencesAdvance(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 3; i++ {
		s.Record("random_float", `{"op":"random_float"}`, protocol.Ok(0.5), time.Microsecond)
	}

	rows, err := s.db.Query(
		`SELECT seq FROM effect_log WHERE session_id = ? ORDER BY seq`, "sess-test")
	require.NoError(t, err)
	defer rows.Close()

	var seqs []int64
	for rows.Next() {
		var seq int64
		require.NoError(t, rows.Scan(&seq))
		seqs = append(seqs, seq)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []int64{1, 2, 3}, seqs)
}

func TestReopenPreservesRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.db")
	db, err := Open(context.Background(), path)
	require.NoError(t, err)
	s := NewStore(db, "run-1")
	s.Record("println", `{"op":"println","text":"hi"}`, protocol.Ok(nil), time.Microsecond)
	require.NoError(t, s.Close())

	db, err = Open(context.Background(), path)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM effect_log`).Scan(&count))
	assert.Equal(t, 1, count)
}
