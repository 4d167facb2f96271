package databasesql

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaidee-care/jaidee/history"
)

func setupStore(t *testing.T) *Store {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	db, err := sql.Open("postgres", dbURL)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, db.PingContext(ctx))

	store := New(db)
	require.NoError(t, store.Migrate(ctx))
	return store
}

func TestAppendAndQueryRoundTrip(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	userID := "U" + uuid.NewString()

	for i := 0; i < 3; i++ {
		rec := &history.Record{
			UserID:      userID,
			UserMessage: fmt.Sprintf("message %d", i),
			BotResponse: fmt.Sprintf("reply %d", i),
			TokenCount:  10 + i,
			Important:   i == 1,
		}
		require.NoError(t, store.Append(ctx, rec))
		assert.Positive(t, rec.ID)
	}

	recs, err := store.QueryRecent(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "message 0", recs[0].UserMessage)
	assert.True(t, recs[1].Important)
	assert.Equal(t, 12, recs[2].TokenCount)
}

func TestQueryBefore(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	userID := "U" + uuid.NewString()

	var lastID int64
	for i := 0; i < 5; i++ {
		rec := &history.Record{
			UserID:      userID,
			UserMessage: fmt.Sprintf("message %d", i),
			BotResponse: fmt.Sprintf("reply %d", i),
		}
		require.NoError(t, store.Append(ctx, rec))
		lastID = rec.ID
	}

	older, err := store.QueryBefore(ctx, userID, lastID, 10)
	require.NoError(t, err)
	require.Len(t, older, 4)
	assert.Equal(t, "message 0", older[0].UserMessage)
	for _, rec := range older {
		assert.Less(t, rec.ID, lastID)
	}
}
