package importance

import (
	"strings"
	"testing"

	"github.com/jaidee-care/jaidee/risk"
)

func TestIsImportant(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		name string
		user string
		bot  string
		want bool
	}{
		{
			name: "plain smalltalk",
			user: "สวัสดีครับ",
			bot:  "สวัสดีค่ะ มีอะไรให้ช่วยไหมคะ",
			want: false,
		},
		{
			name: "keyword in user message",
			user: "ผมกลัวจะกลับไปเสพยาอีก",
			bot:  "ขอบคุณที่เล่าให้ฟังนะคะ",
			want: true,
		},
		{
			name: "keyword in bot response",
			user: "ช่วงนี้เหนื่อยมาก",
			bot:  "ถ้าอาการหนักขึ้น แนะนำให้ปรึกษาหมอหรือโรงพยาบาลใกล้บ้านนะคะ",
			want: true,
		},
		{
			name: "english keyword mixed case",
			user: "I'm scared of a RELAPSE",
			bot:  "thank you for sharing",
			want: true,
		},
		{
			name: "long user message",
			user: strings.Repeat("ก", 301),
			bot:  "ok",
			want: true,
		},
		{
			name: "long bot response",
			user: "ok",
			bot:  strings.Repeat("a", 501),
			want: true,
		},
		{
			name: "just under length thresholds",
			user: strings.Repeat("ก", 300),
			bot:  strings.Repeat("a", 500),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.IsImportant(tt.user, tt.bot)
			if got != tt.want {
				t.Errorf("IsImportant() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGeneralTierOverride(t *testing.T) {
	c := NewClassifier()

	// Length rule alone would keep this pair.
	longUser := strings.Repeat("x", 400)

	if c.IsImportantWithRisk(longUser, "ok", risk.LevelGeneral) {
		t.Error("general tier must force important=false despite length")
	}
	if !c.IsImportantWithRisk(longUser, "ok", risk.LevelLow) {
		t.Error("non-general tier must keep the length rule")
	}
}
