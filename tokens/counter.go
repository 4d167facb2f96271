// Package tokens estimates model token costs for strings and message lists.
//
// Counting prefers an exact BPE tokenizer when one is available, corrected
// for Thai-heavy text which naive BPE vocabularies undercount. When no
// tokenizer can be constructed it falls back to a script-aware heuristic.
// Results are cached in a bounded LRU keyed by a cheap fingerprint.
package tokens

import (
	"unicode"

	"github.com/tiktoken-go/tokenizer"

	"github.com/jaidee-care/jaidee/types"
)

const (
	// messageOverhead is the fixed per-message cost for role and delimiter
	// tokens added by the chat format.
	messageOverhead = 4

	// batchSafetyMargin is the multiplier applied to batch totals so the
	// budget check errs on the side of compacting early.
	batchSafetyMargin = 1.05

	// thaiCorrectionFactor scales the exact count up for Thai-script text.
	// BPE vocabularies trained mostly on Latin text split Thai into more
	// tokens than a character-proportional estimate suggests.
	thaiCorrectionFactor = 0.2
)

// Heuristic weights for the no-tokenizer fallback.
const (
	thaiCharWeight    = 1.2
	englishWordWeight = 0.6
)

// Counter estimates token counts with an exact-or-heuristic strategy.
//
// A Counter is safe for concurrent use. Count never fails for valid string
// input; it returns 0 only for empty input.
type Counter struct {
	codec tokenizer.Codec // nil means heuristic-only
	cache *Cache
}

// NewCounter creates a Counter backed by the GPT-4 BPE codec (the closest
// public approximation of the target model's tokenizer) and a bounded
// result cache. If the codec cannot be constructed the counter silently
// degrades to the heuristic strategy.
func NewCounter() *Counter {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		codec = nil
	}
	return &Counter{
		codec: codec,
		cache: NewCache(DefaultCacheSize),
	}
}

// NewHeuristicCounter creates a Counter that never uses an exact tokenizer.
func NewHeuristicCounter() *Counter {
	return &Counter{cache: NewCache(DefaultCacheSize)}
}

// Count returns the estimated token cost of text. Empty input costs 0.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}

	key := fingerprint(text)
	if n, ok := c.cache.Get(key); ok {
		return n
	}

	n := c.countUncached(text)
	c.cache.Put(key, n)
	return n
}

// CountBatch returns the estimated token cost of a message list, including
// per-message role/delimiter overhead and a small safety margin.
func (c *Counter) CountBatch(messages []types.Message) int {
	if len(messages) == 0 {
		return 0
	}

	total := 0
	for _, m := range messages {
		total += c.Count(m.Content) + messageOverhead
	}
	return int(float64(total) * batchSafetyMargin)
}

// Cache exposes the counter's result cache for maintenance sweeps.
func (c *Counter) Cache() *Cache {
	return c.cache
}

func (c *Counter) countUncached(text string) int {
	if c.codec != nil {
		if raw, err := c.codec.Count(text); err == nil {
			return correctForThai(raw, text)
		}
	}
	return heuristicCount(text)
}

// correctForThai scales raw up by the proportion of Thai-script runes.
func correctForThai(raw int, text string) int {
	thai, total := 0, 0
	for _, r := range text {
		total++
		if isThai(r) {
			thai++
		}
	}
	if total == 0 || thai == 0 {
		return raw
	}
	corrected := float64(raw) * (1 + thaiCorrectionFactor*float64(thai)/float64(total))
	return int(corrected)
}

// heuristicCount estimates tokens without a tokenizer:
// Thai characters and English words dominate the cost, digit and symbol
// runs each contribute roughly one token.
func heuristicCount(text string) int {
	var (
		thaiChars    int
		englishWords int
		digitRuns    int
		symbolRuns   int

		inWord, inDigits, inSymbols bool
	)

	endRuns := func() {
		inWord, inDigits, inSymbols = false, false, false
	}

	for _, r := range text {
		switch {
		case isThai(r):
			thaiChars++
			endRuns()
		case unicode.IsLetter(r):
			if !inWord {
				englishWords++
			}
			inWord, inDigits, inSymbols = true, false, false
		case unicode.IsDigit(r):
			if !inDigits {
				digitRuns++
			}
			inWord, inDigits, inSymbols = false, true, false
		case unicode.IsSpace(r):
			endRuns()
		default:
			if !inSymbols {
				symbolRuns++
			}
			inWord, inDigits, inSymbols = false, false, true
		}
	}

	estimate := int(float64(thaiChars)*thaiCharWeight +
		float64(englishWords)*englishWordWeight +
		float64(digitRuns) + float64(symbolRuns))

	// Floor at 1 for any non-empty input.
	if estimate < 1 && text != "" {
		return 1
	}
	return estimate
}

// isThai reports whether r falls in the Thai Unicode block.
func isThai(r rune) bool {
	return r >= 0x0E00 && r <= 0x0E7F
}
