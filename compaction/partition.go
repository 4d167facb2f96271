package compaction

import (
	"strings"

	"github.com/jaidee-care/jaidee/importance"
	"github.com/jaidee-care/jaidee/risk"
	"github.com/jaidee-care/jaidee/types"
)

// Pair is one user turn and the assistant's reply to it. Trailing user
// messages with no reply yet form a Pair with an empty Bot field.
type Pair struct {
	User string
	Bot  string
}

// Messages renders the pair back into message form.
func (p Pair) Messages() []types.Message {
	msgs := []types.Message{types.NewUserMessage(p.User)}
	if p.Bot != "" {
		msgs = append(msgs, types.NewAssistantMessage(p.Bot))
	}
	return msgs
}

// Partition is the result of splitting a session for compaction: an
// existing summary (if any), pairs older than the recent window divided by
// importance, and the recent window itself.
type Partition struct {
	// PriorSummary is the content of an existing summary message with
	// SummaryPrefix stripped, or empty if the session has none.
	PriorSummary string

	// Important are older pairs kept verbatim.
	Important []Pair

	// Normal are older pairs destined for summarization.
	Normal []Pair

	// Recent is the verbatim tail window.
	Recent []Pair
}

// pairUp walks the session in order and groups user/assistant messages into
// pairs, collecting any existing summary content along the way. An
// assistant message with no preceding user message is carried as a pair
// with an empty User field so no content is lost.
func pairUp(messages []types.Message) (priorSummary string, pairs []Pair) {
	var pending *Pair
	for _, m := range messages {
		switch m.Role {
		case types.RoleSystemSummary:
			priorSummary = strings.TrimPrefix(m.Content, SummaryPrefix)
		case types.RoleUser:
			if pending != nil {
				pairs = append(pairs, *pending)
			}
			pending = &Pair{User: m.Content}
		case types.RoleAssistant:
			if pending == nil {
				pending = &Pair{}
			}
			pending.Bot = m.Content
			pairs = append(pairs, *pending)
			pending = nil
		}
	}
	if pending != nil {
		pairs = append(pairs, *pending)
	}
	return priorSummary, pairs
}

// partition splits messages into the compaction Partition using the given
// classifiers. keepRecent pairs stay in the recent window; older pairs are
// classified one by one. At most maxImportant older pairs stay verbatim;
// beyond the cap the oldest important pairs are demoted into Normal so
// compaction always has material to shrink.
func partition(messages []types.Message, keepRecent, maxImportant int, imp *importance.Classifier, rc risk.Classifier) Partition {
	priorSummary, pairs := pairUp(messages)

	cut := len(pairs) - keepRecent
	if cut < 0 {
		cut = 0
	}
	older, recent := pairs[:cut], pairs[cut:]

	flags := make([]bool, len(older))
	important := 0
	for i, pair := range older {
		level, _ := rc.Classify(pair.User)
		if imp.IsImportantWithRisk(pair.User, pair.Bot, level) {
			flags[i] = true
			important++
		}
	}
	// Walking in order demotes the oldest important pairs first and keeps
	// both lists chronological, so the summarization input reads in
	// conversation order.
	demote := important - maxImportant
	p := Partition{PriorSummary: priorSummary, Recent: recent}
	for i, pair := range older {
		if flags[i] && demote > 0 {
			flags[i] = false
			demote--
		}
		if flags[i] {
			p.Important = append(p.Important, pair)
		} else {
			p.Normal = append(p.Normal, pair)
		}
	}
	return p
}
