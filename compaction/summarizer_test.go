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

	"github.com/jaidee-care/jaidee/llm"
	"github.com/jaidee-care/jaidee/types"
)

// fakeOracle scripts Generate responses for tests. failOn marks call
// numbers (1-based) that should error; otherwise each call returns reply,
// or a numbered summary when reply is empty.
type fakeOracle struct {
	mu     sync.Mutex
	calls  int
	inputs []string
	reply  string
	err    error
	failOn map[int]bool
}

func (f *fakeOracle) Generate(_ context.Context, messages []types.Message, _ llm.GenerateConfig) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.inputs = append(f.inputs, messages[len(messages)-1].Content)
	if f.err != nil {
		return "", f.err
	}
	if f.failOn[f.calls] {
		return "", llm.ErrTimeout
	}
	if f.reply != "" {
		return f.reply, nil
	}
	return fmt.Sprintf("summary %d", f.calls), nil
}

func (f *fakeOracle) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func somePairs(n int) []Pair {
	pairs := make([]Pair, n)
	for i := range pairs {
		pairs[i] = Pair{
			User: fmt.Sprintf("user line %d", i),
			Bot:  fmt.Sprintf("bot line %d", i),
		}
	}
	return pairs
}

func TestSummarizeChunking(t *testing.T) {
	oracle := &fakeOracle{}
	s := NewSummarizer(oracle, "claude-3-5-haiku-latest", 10)

	out, err := s.Summarize(context.Background(), "", somePairs(25))
	require.NoError(t, err)
	assert.Equal(t, 3, oracle.callCount(), "25 pairs at chunk size 10 need 3 calls")
	assert.Equal(t, "summary 1\n• summary 2\n• summary 3", out)
}

func TestSummarizeFoldsPriorSummary(t *testing.T) {
	oracle := &fakeOracle{reply: "new part"}
	s := NewSummarizer(oracle, "", 10)

	out, err := s.Summarize(context.Background(), "earlier part", somePairs(3))
	require.NoError(t, err)
	assert.Equal(t, "earlier part\n• new part", out)
}

func TestSummarizeToleratesPartialFailure(t *testing.T) {
	oracle := &fakeOracle{failOn: map[int]bool{2: true}}
	s := NewSummarizer(oracle, "", 5)

	out, err := s.Summarize(context.Background(), "", somePairs(15))
	require.NoError(t, err)
	assert.Equal(t, "summary 1\n• summary 3", out, "failed chunk is dropped, not fatal")
}

func TestSummarizeAllChunksFail(t *testing.T) {
	oracle := &fakeOracle{err: llm.ErrRateLimited}
	s := NewSummarizer(oracle, "", 10)

	_, err := s.Summarize(context.Background(), "had a summary", somePairs(12))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSummarizationFailed))
}

func TestSummarizeNoPairs(t *testing.T) {
	oracle := &fakeOracle{}
	s := NewSummarizer(oracle, "", 10)

	out, err := s.Summarize(context.Background(), "only the prior", nil)
	require.NoError(t, err)
	assert.Equal(t, "only the prior", out)
	assert.Zero(t, oracle.callCount())
}

func TestSummarizeChunkInputFormat(t *testing.T) {
	oracle := &fakeOracle{}
	s := NewSummarizer(oracle, "", 10)

	_, err := s.Summarize(context.Background(), "", []Pair{
		{User: "สวัสดีครับ", Bot: "สวัสดีค่ะ"},
		{User: "dangling"},
	})
	require.NoError(t, err)
	require.Len(t, oracle.inputs, 1)
	input := oracle.inputs[0]
	assert.True(t, strings.Contains(input, "User: สวัสดีครับ"))
	assert.True(t, strings.Contains(input, "Assistant: สวัสดีค่ะ"))
	assert.True(t, strings.Contains(input, "User: dangling"))
	assert.False(t, strings.Contains(input, "Assistant: \n"), "empty bot side is omitted")
}
