package jaidee

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOracleTimeoutScalesWithContext(t *testing.T) {
	ic := newInternalConfig(Config{
		Oracle:       &testOracle{},
		Model:        "claude-3-5-sonnet-20241022",
		SystemPrompt: "p",
	})

	tests := []struct {
		name   string
		tokens int
		want   time.Duration
	}{
		{"zero tokens", 0, DefaultBaseTimeout},
		{"under threshold", 1500, DefaultBaseTimeout},
		{"at threshold", 2000, DefaultBaseTimeout},
		{"one over rounds up to a full step", 2001, DefaultBaseTimeout + DefaultTimeoutIncrement},
		{"exactly one step", 2400, DefaultBaseTimeout + DefaultTimeoutIncrement},
		{"one past a step boundary", 2401, DefaultBaseTimeout + 2*DefaultTimeoutIncrement},
		{"several steps", 4000, DefaultBaseTimeout + 5*DefaultTimeoutIncrement},
		{"capped at the maximum", 30000, DefaultMaxTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ic.oracleTimeout(tt.tokens))
		})
	}
}

func TestOracleTimeoutCustomParameters(t *testing.T) {
	ic := newInternalConfig(Config{
		Oracle:       &testOracle{},
		Model:        "claude-3-5-sonnet-20241022",
		SystemPrompt: "p",
	})
	opt := WithOracleTimeout(10*time.Second, 2*time.Second, 20*time.Second, 1000)
	assert.NoError(t, opt(ic))

	assert.Equal(t, 10*time.Second, ic.oracleTimeout(1000))
	assert.Equal(t, 12*time.Second, ic.oracleTimeout(1400))
	assert.Equal(t, 20*time.Second, ic.oracleTimeout(100000))
}
