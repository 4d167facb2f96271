// Package importance decides which user/bot message pairs survive
// compaction verbatim.
package importance

import (
	"strings"
	"unicode/utf8"

	"github.com/jaidee-care/jaidee/risk"
)

// Length thresholds above which a pair is kept regardless of keywords.
const (
	userLengthThreshold = 300
	botLengthThreshold  = 500
)

// defaultKeywords are clinical and risk terms that mark a pair as worth
// keeping verbatim through compaction.
var defaultKeywords = []string{
	"ฆ่าตัวตาย", "อยากตาย", "ทำร้ายตัวเอง", "ยาบ้า", "ยาไอซ์", "เสพยา",
	"เลิกยา", "ลงแดง", "บำบัด", "หมอ", "โรงพยาบาล", "ครอบครัว",
	"suicide", "overdose", "relapse", "withdrawal", "treatment",
	"hospital", "doctor", "medication", "family",
}

// Classifier decides whether a message pair is important.
// It is pure and deterministic.
type Classifier struct {
	keywords []string
}

// NewClassifier creates a Classifier with the built-in keyword set.
func NewClassifier() *Classifier {
	return &Classifier{keywords: defaultKeywords}
}

// IsImportant reports whether the pair should be retained verbatim:
// a keyword match in either side, or an unusually long message.
func (c *Classifier) IsImportant(userMessage, botResponse string) bool {
	if utf8.RuneCountInString(userMessage) > userLengthThreshold ||
		utf8.RuneCountInString(botResponse) > botLengthThreshold {
		return true
	}

	lowerUser := strings.ToLower(userMessage)
	lowerBot := strings.ToLower(botResponse)
	for _, kw := range c.keywords {
		if strings.Contains(lowerUser, kw) || strings.Contains(lowerBot, kw) {
			return true
		}
	}
	return false
}

// IsImportantWithRisk applies the policy override on top of IsImportant:
// a pair classified under the general tier is never important, even when
// a length rule would have kept it.
func (c *Classifier) IsImportantWithRisk(userMessage, botResponse string, level risk.Level) bool {
	if level == risk.LevelGeneral {
		return false
	}
	return c.IsImportant(userMessage, botResponse)
}
