// Package risk classifies user messages into counseling risk tiers.
//
// The classifier is keyword-based and deterministic. It exists so the turn
// engine can triage fallback responses and so the importance rules can
// apply the general-tier override; it makes no clinical claims.
package risk

import "strings"

// Level represents a risk tier.
type Level string

const (
	// LevelHigh covers self-harm and acute crisis language.
	LevelHigh Level = "high"

	// LevelMedium covers active substance use and withdrawal distress.
	LevelMedium Level = "medium"

	// LevelLow covers recovery-related but non-acute topics.
	LevelLow Level = "low"

	// LevelGeneral is the default tier for everything else.
	LevelGeneral Level = "general"
)

// String returns the string representation of the level.
func (l Level) String() string {
	return string(l)
}

// Classifier decides the risk tier of a user message.
type Classifier interface {
	// Classify returns the risk tier and the keywords that matched.
	Classify(userMessage string) (Level, []string)
}

// KeywordClassifier is the default Classifier: case-insensitive substring
// matching against fixed per-tier keyword sets, highest tier wins.
type KeywordClassifier struct {
	high   []string
	medium []string
	low    []string
}

// NewKeywordClassifier creates a classifier with the built-in keyword sets.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		high: []string{
			"ฆ่าตัวตาย", "อยากตาย", "ไม่อยากอยู่", "ทำร้ายตัวเอง", "จบชีวิต",
			"suicide", "kill myself", "want to die", "end my life", "hurt myself",
		},
		medium: []string{
			"ยาบ้า", "ยาไอซ์", "เสพยา", "ใช้ยาอีก", "ลงแดง", "อยากเสพ",
			"overdose", "relapse", "withdrawal", "craving", "using again",
		},
		low: []string{
			"เลิกยา", "บำบัด", "อดทน", "กลับไปใช้", "เครียด", "นอนไม่หลับ",
			"quit", "recovery", "rehab", "stressed", "can't sleep",
		},
	}
}

// Classify returns the highest tier whose keywords appear in userMessage,
// along with every keyword of that tier that matched.
func (c *KeywordClassifier) Classify(userMessage string) (Level, []string) {
	lower := strings.ToLower(userMessage)

	for _, tier := range []struct {
		level    Level
		keywords []string
	}{
		{LevelHigh, c.high},
		{LevelMedium, c.medium},
		{LevelLow, c.low},
	} {
		var matched []string
		for _, kw := range tier.keywords {
			if strings.Contains(lower, kw) {
				matched = append(matched, kw)
			}
		}
		if len(matched) > 0 {
			return tier.level, matched
		}
	}

	return LevelGeneral, nil
}
