package compaction

import "fmt"

const (
	// DefaultHardLimit is the total token budget for a session's context
	// window, covering the system prompt, conversation and response output.
	DefaultHardLimit = 100000

	// DefaultTrigger is the fraction of HardLimit at which compaction
	// activates. Triggering below the hard limit leaves room for the turn
	// that is currently being processed.
	DefaultTrigger = 0.9

	// DefaultKeepRecentPairs is the number of most recent user/assistant
	// pairs kept verbatim regardless of importance.
	DefaultKeepRecentPairs = 30

	// DefaultChunkSize is the number of pairs summarized per model call.
	DefaultChunkSize = 10

	// DefaultMaxRestorePairs caps how many pairs are rebuilt verbatim when
	// a session is restored from durable history.
	DefaultMaxRestorePairs = 40

	// DefaultMaxImportantPairs caps the number of important pairs retained
	// verbatim by one compaction, oldest evicted first into the summary
	// input. Without a cap a long high-risk conversation would compact to
	// nothing smaller than itself.
	DefaultMaxImportantPairs = 20
)

// SummaryPrefix marks a summary message's content so prior summaries can be
// recognized and folded into the next round without nesting prefixes.
const SummaryPrefix = "สรุปการสนทนาก่อนหน้า: "

// Config controls when compaction triggers and how much conversation it
// preserves verbatim.
type Config struct {
	// HardLimit is the session token budget. Must be positive.
	HardLimit int

	// Trigger is the fraction of HardLimit at which compaction runs.
	// Must be in (0, 1].
	Trigger float64

	// KeepRecentPairs is the count of newest pairs always kept verbatim.
	KeepRecentPairs int

	// ChunkSize is the number of pairs per summarization call.
	ChunkSize int

	// MaxRestorePairs bounds verbatim restoration from history.
	MaxRestorePairs int

	// MaxImportantPairs bounds verbatim important pairs per compaction.
	MaxImportantPairs int

	// SummaryModel names the model used for summarization calls. Empty
	// leaves the choice to the Oracle's default.
	SummaryModel string
}

// ApplyDefaults fills zero-valued fields with package defaults.
func (c *Config) ApplyDefaults() {
	if c.HardLimit == 0 {
		c.HardLimit = DefaultHardLimit
	}
	if c.Trigger == 0 {
		c.Trigger = DefaultTrigger
	}
	if c.KeepRecentPairs == 0 {
		c.KeepRecentPairs = DefaultKeepRecentPairs
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.MaxRestorePairs == 0 {
		c.MaxRestorePairs = DefaultMaxRestorePairs
	}
	if c.MaxImportantPairs == 0 {
		c.MaxImportantPairs = DefaultMaxImportantPairs
	}
}

// Validate reports the first invalid field, if any. Call after
// ApplyDefaults.
func (c Config) Validate() error {
	if c.HardLimit <= 0 {
		return fmt.Errorf("compaction: HardLimit must be positive, got %d", c.HardLimit)
	}
	if c.Trigger <= 0 || c.Trigger > 1 {
		return fmt.Errorf("compaction: Trigger must be in (0, 1], got %g", c.Trigger)
	}
	if c.KeepRecentPairs < 0 {
		return fmt.Errorf("compaction: KeepRecentPairs must not be negative, got %d", c.KeepRecentPairs)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("compaction: ChunkSize must be positive, got %d", c.ChunkSize)
	}
	if c.MaxRestorePairs <= 0 {
		return fmt.Errorf("compaction: MaxRestorePairs must be positive, got %d", c.MaxRestorePairs)
	}
	if c.MaxImportantPairs < 0 {
		return fmt.Errorf("compaction: MaxImportantPairs must not be negative, got %d", c.MaxImportantPairs)
	}
	return nil
}

// TriggerThreshold returns the token count at which compaction activates.
func (c Config) TriggerThreshold() int {
	return int(float64(c.HardLimit) * c.Trigger)
}
