package compaction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaidee-care/jaidee/history"
	"github.com/jaidee-care/jaidee/kv/memory"
	"github.com/jaidee-care/jaidee/llm"
	"github.com/jaidee-care/jaidee/session"
	"github.com/jaidee-care/jaidee/tokens"
	"github.com/jaidee-care/jaidee/types"
)

// fakeArchive is an in-memory history.Store for restore tests.
type fakeArchive struct {
	recs   []history.Record
	nextID int64
}

func (f *fakeArchive) Append(_ context.Context, rec *history.Record) error {
	f.nextID++
	rec.ID = f.nextID
	f.recs = append(f.recs, *rec)
	return nil
}

func (f *fakeArchive) QueryRecent(_ context.Context, userID string, maxPairs int) ([]history.Record, error) {
	var matched []history.Record
	for _, r := range f.recs {
		if r.UserID == userID {
			matched = append(matched, r)
		}
	}
	if len(matched) > maxPairs {
		matched = matched[len(matched)-maxPairs:]
	}
	return matched, nil
}

func (f *fakeArchive) QueryBefore(_ context.Context, userID string, beforeID int64, maxPairs int) ([]history.Record, error) {
	var matched []history.Record
	for _, r := range f.recs {
		if r.UserID == userID && r.ID < beforeID {
			matched = append(matched, r)
		}
	}
	if len(matched) > maxPairs {
		matched = matched[len(matched)-maxPairs:]
	}
	return matched, nil
}

func newTestManager(t *testing.T, oracle llm.Oracle, cfg Config, opts ...Option) (*Manager, *session.Store) {
	t.Helper()
	counter := tokens.NewHeuristicCounter()
	sessions := session.NewStore(memory.New(), counter, nil)
	m, err := NewManager(sessions, NewSummarizer(oracle, "", cfg.ChunkSize), counter, cfg, opts...)
	require.NoError(t, err)
	return m, sessions
}

func TestNewManagerRejectsBadConfig(t *testing.T) {
	counter := tokens.NewHeuristicCounter()
	sessions := session.NewStore(memory.New(), counter, nil)
	_, err := NewManager(sessions, NewSummarizer(&fakeOracle{}, "", 0), counter, Config{Trigger: 1.5})
	require.Error(t, err)
}

func TestPrepareEmptySession(t *testing.T) {
	oracle := &fakeOracle{}
	m, _ := newTestManager(t, oracle, Config{})

	msgs, err := m.Prepare(context.Background(), "U1")
	require.NoError(t, err)
	assert.Nil(t, msgs)
	assert.Zero(t, oracle.callCount())
}

func TestPrepareUnderBudgetUntouched(t *testing.T) {
	oracle := &fakeOracle{}
	m, sessions := newTestManager(t, oracle, Config{})

	saved := chatPairs(10)
	require.NoError(t, sessions.Save(context.Background(), "U1", saved))

	got, err := m.Prepare(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, saved, got)
	assert.Zero(t, oracle.callCount(), "no summarization under the threshold")

	again, err := m.Prepare(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, got, again, "repeated preparation is stable")
}

func TestPrepareTriggersCompaction(t *testing.T) {
	oracle := &fakeOracle{reply: "they talked about daily routines"}
	m, sessions := newTestManager(t, oracle, Config{
		HardLimit:       60,
		Trigger:         0.5,
		KeepRecentPairs: 3,
		ChunkSize:       10,
	})

	full := chatPairs(12)
	require.NoError(t, sessions.Save(context.Background(), "U1", full))

	got, err := m.Prepare(context.Background(), "U1")
	require.NoError(t, err)
	require.NotEmpty(t, got)

	assert.True(t, got[0].IsSummary(), "compacted session leads with the summary")
	assert.True(t, strings.HasPrefix(got[0].Content, SummaryPrefix))
	assert.Contains(t, got[0].Content, "daily routines")

	// The recent window survives verbatim at the tail.
	tail := got[len(got)-6:]
	assert.Equal(t, full[len(full)-6:], tail)

	counter := tokens.NewHeuristicCounter()
	assert.Less(t, counter.CountBatch(got), counter.CountBatch(full))

	stored, err := sessions.Load(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, got, stored, "compacted session is persisted")
}

func TestConfigAccessor(t *testing.T) {
	m, _ := newTestManager(t, &fakeOracle{}, Config{HardLimit: 1000, Trigger: 0.9})

	// The returned copy carries the effective configuration and its derived
	// accessors.
	assert.Equal(t, 900, m.Config().TriggerThreshold())
	assert.NoError(t, m.Config().Validate())
	assert.Equal(t, DefaultKeepRecentPairs, m.Config().KeepRecentPairs)
}

func TestPrepareCompactsAtExactThreshold(t *testing.T) {
	counter := tokens.NewHeuristicCounter()
	full := chatPairs(12)
	count := counter.CountBatch(full)

	oracle := &fakeOracle{reply: "recap of earlier chat"}
	m, sessions := newTestManager(t, oracle, Config{
		// Trigger threshold lands exactly on the session's token count.
		HardLimit:       2 * count,
		Trigger:         0.5,
		KeepRecentPairs: 3,
	})
	require.Equal(t, count, m.Config().TriggerThreshold())

	require.NoError(t, sessions.Save(context.Background(), "U1", full))

	got, err := m.Prepare(context.Background(), "U1")
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.True(t, got[0].IsSummary(), "a session at the threshold is compacted")
	assert.Positive(t, oracle.callCount())
}

// captureLogger records Warn messages for assertions.
type captureLogger struct {
	noopLogger
	mu    sync.Mutex
	warns []string
}

func (l *captureLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *captureLogger) warned() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warns...)
}

func TestCompactAllOlderPairsImportant(t *testing.T) {
	oracle := &fakeOracle{}
	logger := &captureLogger{}
	m, _ := newTestManager(t, oracle, Config{KeepRecentPairs: 30}, WithLogger(logger))

	// 31 pairs with keep-30: only the oldest pair is partitioned, and it
	// matches an importance keyword, so nothing can be summarized away.
	msgs := []types.Message{
		types.NewUserMessage("I am scared of a relapse this week"),
		types.NewAssistantMessage("that fear is worth taking seriously"),
	}
	msgs = append(msgs, chatPairs(30)...)

	got, err := m.Compact(context.Background(), "U1", msgs)
	require.NoError(t, err)
	assert.Equal(t, msgs, got, "all 62 messages survive with no summary element")
	assert.Zero(t, oracle.callCount())
	assert.Contains(t, logger.warned(), "compaction achieved no reduction")
}

func TestCompactSummarizationFailureKeepsSession(t *testing.T) {
	oracle := &fakeOracle{err: llm.ErrTimeout}
	m, sessions := newTestManager(t, oracle, Config{
		HardLimit:       60,
		Trigger:         0.5,
		KeepRecentPairs: 3,
	})

	full := chatPairs(12)
	require.NoError(t, sessions.Save(context.Background(), "U1", full))

	got, err := m.Compact(context.Background(), "U1", full)
	require.Error(t, err)
	assert.Equal(t, full, got)

	var cerr *CompactionError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "summarize", cerr.Op)
	assert.Equal(t, "U1", cerr.UserID)

	stored, err := sessions.Load(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, full, stored, "failed compaction leaves the stored session alone")

	// Prepare degrades to the full session instead of failing the turn.
	prepared, err := m.Prepare(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, full, prepared)
}

func TestCompactedSessionStaysStable(t *testing.T) {
	oracle := &fakeOracle{reply: "short recap"}
	m, sessions := newTestManager(t, oracle, Config{
		HardLimit:       60,
		Trigger:         0.5,
		KeepRecentPairs: 3,
	})

	require.NoError(t, sessions.Save(context.Background(), "U1", chatPairs(12)))

	first, err := m.Prepare(context.Background(), "U1")
	require.NoError(t, err)
	callsAfterFirst := oracle.callCount()

	second, err := m.Prepare(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, callsAfterFirst, oracle.callCount(),
		"a compacted session under the threshold is not re-summarized")
}

func TestPrepareRestoresFromArchive(t *testing.T) {
	archive := &fakeArchive{}
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		user := fmt.Sprintf("archived user %d", i)
		if i == 1 {
			user = "I survived an overdose last year"
		}
		require.NoError(t, archive.Append(ctx, &history.Record{
			UserID:      "U1",
			UserMessage: user,
			BotResponse: fmt.Sprintf("archived bot %d", i),
			Important:   i == 1,
		}))
	}

	oracle := &fakeOracle{reply: "early sessions covered introductions"}
	m, sessions := newTestManager(t, oracle, Config{
		MaxRestorePairs: 8,
		KeepRecentPairs: 3,
	}, WithArchive(archive))

	got, err := m.Prepare(ctx, "U1")
	require.NoError(t, err)
	require.NotEmpty(t, got)

	require.True(t, got[0].IsSummary())
	assert.Contains(t, got[0].Content, "introductions")

	assert.Equal(t, "I survived an overdose last year", got[1].Content,
		"important archived pair survives verbatim before the recent window")

	last := got[len(got)-1]
	assert.Equal(t, "archived bot 11", last.Content)

	// 1 summary + 1 important pair + 8 recent pairs.
	assert.Len(t, got, 1+2+16)

	stored, err := sessions.Load(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, got, stored, "restored session is persisted")

	callsAfterRestore := oracle.callCount()
	again, err := m.Prepare(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, got, again)
	assert.Equal(t, callsAfterRestore, oracle.callCount(),
		"second turn loads the stored session, not the archive")
}

func TestPrepareEmptyArchive(t *testing.T) {
	m, _ := newTestManager(t, &fakeOracle{}, Config{}, WithArchive(&fakeArchive{}))

	got, err := m.Prepare(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetStats(t *testing.T) {
	oracle := &fakeOracle{}
	m, sessions := newTestManager(t, oracle, Config{HardLimit: 1000, Trigger: 0.9})

	ctx := context.Background()
	msgs := append([]types.Message{
		types.NewSummaryMessage(SummaryPrefix + "recap"),
	}, chatPairs(4)...)
	require.NoError(t, sessions.Save(ctx, "U1", msgs))

	stats, err := m.GetStats(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, "U1", stats.UserID)
	assert.Equal(t, 9, stats.Messages)
	assert.Equal(t, 4, stats.Pairs)
	assert.Equal(t, 900, stats.Threshold)
	assert.True(t, stats.HasSummary)
	assert.False(t, stats.CompactionDue)
	assert.Positive(t, stats.Tokens)
}
