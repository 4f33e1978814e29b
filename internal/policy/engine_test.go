package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThresholdDecision(t *testing.T) {
	tests := []struct {
		name  string
		facts Facts
		want  Decision
	}{
		{"no limit", Facts{UsedSeconds: 10}, Decision{Reason: ReasonNoLimit}},
		{"under", Facts{UsedSeconds: 3599, LimitSeconds: 3600}, Decision{Reason: ReasonUnderLimit}},
		{"at limit", Facts{UsedSeconds: 3600, LimitSeconds: 3600}, Decision{Block: true, Reason: ReasonLimitReached}},
		{"already blocked", Facts{AlreadyBlocked: true}, Decision{Block: true, Reason: ReasonAlreadyBlocked}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ThresholdDecision(tt.facts))
		})
	}
}

func TestEngineMatchesThresholdWithEmbeddedPolicy(t *testing.T) {
	engine, err := NewEngine("", zerolog.Nop())
	require.NoError(t, err)

	for _, used := range []int64{0, 1, 3599, 3600, 3601, 7200} {
		facts := Facts{Domain: "youtube.com", Date: "2026-03-10", UsedSeconds: used, LimitSeconds: 3600}
		assert.Equal(t, ThresholdDecision(facts), engine.Decide(context.Background(), facts), "used=%d", used)
	}
}

func TestEngineNeverUnblocks(t *testing.T) {
	dir := t.TempDir()
	lenient := `package sitelimit.enforcement

import rego.v1

decision := {"block": false, "reason": "always_allow"}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lenient.rego"), []byte(lenient), 0o600))

	engine, err := NewEngine(dir, zerolog.Nop())
	require.NoError(t, err)

	decision := engine.Decide(context.Background(), Facts{Domain: "x.com", UsedSeconds: 10, LimitSeconds: 60, AlreadyBlocked: true})
	assert.True(t, decision.Block)
	assert.Equal(t, ReasonAlreadyBlocked, decision.Reason)
}

func TestEngineFallsBackOnEvaluationError(t *testing.T) {
	dir := t.TempDir()
	// Two complete rules that both fire produce a conflict error at eval time.
	conflicting := `package sitelimit.enforcement

import rego.v1

decision := {"block": false, "reason": "a"} if input.limit_seconds > 0

decision := {"block": true, "reason": "b"} if input.limit_seconds > 0
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "conflict.rego"), []byte(conflicting), 0o600))

	engine, err := NewEngine(dir, zerolog.Nop())
	require.NoError(t, err)

	decision := engine.Decide(context.Background(), Facts{Domain: "x.com", UsedSeconds: 60, LimitSeconds: 60})
	assert.True(t, decision.Fallback)
	assert.True(t, decision.Block)
	assert.Equal(t, ReasonLimitReached, decision.Reason)
}
