package policy

import (
	"context"
	"fmt"

	"github.com/goodtune/sitelimit/internal/metrics"
	"github.com/goodtune/sitelimit/internal/policy/opa"
	"github.com/rs/zerolog"
)

// Engine gathers facts into OPA input and turns the result into a Decision.
type Engine struct {
	opaEngine *opa.Engine
	logger    zerolog.Logger
}

// NewEngine creates a policy engine. An empty policyDir uses the embedded
// enforcement policy.
func NewEngine(policyDir string, logger zerolog.Logger) (*Engine, error) {
	opaEngine, err := opa.NewEngine(opa.Config{PolicyDir: policyDir}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OPA engine: %w", err)
	}

	return &Engine{
		opaEngine: opaEngine,
		logger:    logger.With().Str("component", "policy").Logger(),
	}, nil
}

// Decide evaluates the enforcement policy. Evaluation errors fall back to
// ThresholdDecision.
func (e *Engine) Decide(ctx context.Context, facts Facts) Decision {
	result, err := e.opaEngine.EvaluateDecision(ctx, facts.input())
	if err != nil {
		metrics.PolicyErrors.Inc()
		e.logger.Error().Err(err).Str("domain", facts.Domain).Msg("OPA evaluation failed, falling back to threshold")
		decision := ThresholdDecision(facts)
		decision.Fallback = true
		return decision
	}

	// A policy may relax its verdict, but a blocked domain stays blocked.
	if facts.AlreadyBlocked && !result.Block {
		e.logger.Warn().Str("domain", facts.Domain).Str("reason", result.Reason).Msg("Policy tried to unblock a blocked domain, ignoring")
		return Decision{Block: true, Reason: ReasonAlreadyBlocked}
	}

	return Decision{Block: result.Block, Reason: result.Reason}
}

// Reload reloads policy modules from their source
func (e *Engine) Reload() error {
	return e.opaEngine.Reload()
}

// Modules returns the loaded policy module names
func (e *Engine) Modules() []string {
	return e.opaEngine.Modules()
}
