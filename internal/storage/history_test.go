package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xhsrelay/internal/ctxkeys"
)

func openTestHistory(t *testing.T) *History {
	t.Helper()
	h, err := OpenHistory(filepath.Join(t.TempDir(), "history.sqlite3"), "test_", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestRecordAndListCalls(t *testing.T) {
	h := openTestHistory(t)
	ctx, traceID := ctxkeys.WithTraceID(context.Background())

	base := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	h.RecordCall(ctx, ToolCall{Tool: "search_notes", Status: "ok", Items: 25, CreatedAt: base})
	h.RecordCall(ctx, ToolCall{Tool: "follow_user", Status: "ok", CreatedAt: base.Add(time.Minute)})
	h.RecordCall(ctx, ToolCall{Tool: "search_notes", Status: "partial", Items: 7, CreatedAt: base.Add(2 * time.Minute)})

	all, err := h.RecentCalls(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "partial", all[0].Status)
	assert.Equal(t, traceID, all[0].TraceID)
	assert.NotEmpty(t, all[0].ID)

	notes, err := h.RecentCalls(ctx, "search_notes", 1)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, 7, notes[0].Items)
}

func TestRecordExport(t *testing.T) {
	h := openTestHistory(t)
	ctx := context.Background()

	h.RecordExport(ctx, Export{Tool: "note_comments", Path: "/tmp/x.csv", Rows: 12})

	exports, err := h.RecentExports(ctx, 5)
	require.NoError(t, err)
	require.Len(t, exports, 1)
	assert.Equal(t, 12, exports[0].Rows)
	assert.Equal(t, "/tmp/x.csv", exports[0].Path)
}
