package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/zira/internal/llm"
)

func TestSQLiteCheckpointer(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "sessions.db")

	cp, err := OpenSQLiteCheckpointer(path)
	require.NoError(t, err)

	older := &Snapshot{ID: "a", Messages: []llm.Message{llm.UserMessage("hi")}, UpdatedAt: time.Now().Add(-time.Hour).UTC()}
	newer := &Snapshot{ID: "b", Messages: toolTurn(1), LastOutcome: OutcomeFinalAnswer, UpdatedAt: time.Now().UTC()}
	require.NoError(t, cp.Save(ctx, older))
	require.NoError(t, cp.Save(ctx, newer))

	// Upsert replaces the row.
	older.Messages = append(older.Messages, llm.AssistantMessage("Final Answer: hello"))
	older.UpdatedAt = time.Now().Add(-30 * time.Minute).UTC()
	require.NoError(t, cp.Save(ctx, older))

	summaries, err := cp.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "b", summaries[0].ID)
	assert.Equal(t, 4, summaries[0].MessageCount)
	assert.Equal(t, OutcomeFinalAnswer, summaries[0].LastOutcome)
	assert.Equal(t, 2, summaries[1].MessageCount)

	loaded, err := cp.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, older.Messages, loaded.Messages)

	require.NoError(t, cp.Close())

	// Data survives reopening.
	reopened, err := OpenSQLiteCheckpointer(path)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err = reopened.Load(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, newer.Messages, loaded.Messages)

	require.NoError(t, reopened.Delete(ctx, "b"))
	require.NoError(t, reopened.Delete(ctx, "b"))
	_, err = reopened.Load(ctx, "b")
	assert.ErrorIs(t, err, ErrNotFound)
}
