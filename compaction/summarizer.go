package compaction

import (
	"context"
	"fmt"
	"strings"

	"github.com/jaidee-care/jaidee/llm"
	"github.com/jaidee-care/jaidee/types"
)

const summarySystemPrompt = `You summarize counseling conversation excerpts for a substance-abuse support chatbot. Write a concise factual summary in the language the conversation uses. Preserve: stated substance use and recovery status, risk signals, commitments or plans the user made, and personal details the user shared. Omit greetings and small talk. Do not add advice or interpretation.`

// Summarizer condenses conversation pairs through the Oracle in fixed-size
// chunks. Chunking bounds each call's input and lets a single failed call
// drop one chunk instead of the whole summary.
type Summarizer struct {
	oracle    llm.Oracle
	model     string
	chunkSize int
	logger    Logger
}

// NewSummarizer returns a Summarizer that calls oracle with the given model
// name and chunk size. A zero chunkSize uses DefaultChunkSize.
func NewSummarizer(oracle llm.Oracle, model string, chunkSize int) *Summarizer {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Summarizer{oracle: oracle, model: model, chunkSize: chunkSize, logger: noopLogger{}}
}

// SetLogger replaces the Summarizer's logger. A nil logger disables logging.
func (s *Summarizer) SetLogger(l Logger) {
	if l == nil {
		l = noopLogger{}
	}
	s.logger = l
}

// Summarize condenses pairs into a single summary string. priorSummary, if
// non-empty, is folded in as the first piece so earlier rounds of
// compaction are not lost. Chunks that fail to summarize are logged and
// dropped; Summarize fails only when every chunk fails.
func (s *Summarizer) Summarize(ctx context.Context, priorSummary string, pairs []Pair) (string, error) {
	var pieces []string
	if priorSummary != "" {
		pieces = append(pieces, priorSummary)
	}

	chunks := chunkPairs(pairs, s.chunkSize)
	var failed int
	for i, chunk := range chunks {
		piece, err := s.summarizeChunk(ctx, chunk)
		if err != nil {
			failed++
			s.logger.Warn("summarization chunk failed",
				"chunk", i, "pairs", len(chunk), "error", err)
			continue
		}
		pieces = append(pieces, piece)
	}

	if len(chunks) > 0 && failed == len(chunks) {
		return "", ErrSummarizationFailed
	}
	if len(pieces) == 0 {
		return "", nil
	}
	return strings.Join(pieces, "\n• "), nil
}

func (s *Summarizer) summarizeChunk(ctx context.Context, pairs []Pair) (string, error) {
	var b strings.Builder
	for _, p := range pairs {
		fmt.Fprintf(&b, "User: %s\n", p.User)
		if p.Bot != "" {
			fmt.Fprintf(&b, "Assistant: %s\n", p.Bot)
		}
	}

	msgs := []types.Message{
		types.NewSystemMessage(summarySystemPrompt),
		types.NewUserMessage(b.String()),
	}
	out, err := s.oracle.Generate(ctx, msgs, llm.SummaryConfig(s.model))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func chunkPairs(pairs []Pair, size int) [][]Pair {
	var chunks [][]Pair
	for len(pairs) > 0 {
		n := size
		if n > len(pairs) {
			n = len(pairs)
		}
		chunks = append(chunks, pairs[:n])
		pairs = pairs[n:]
	}
	return chunks
}
