package opa

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func input(used, limit int64, alreadyBlocked bool) map[string]interface{} {
	return map[string]interface{}{
		"domain":          "reddit.com",
		"date":            "2026-03-10",
		"used_seconds":    used,
		"limit_seconds":   limit,
		"already_blocked": alreadyBlocked,
	}
}

func TestEmbeddedPolicyDecision(t *testing.T) {
	engine, err := NewEngine(Config{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	tests := []struct {
		name       string
		used       int64
		limit      int64
		blocked    bool
		wantBlock  bool
		wantReason string
	}{
		{"no limit", 99999, 0, false, false, "no_limit"},
		{"one second under", 3599, 3600, false, false, "under_limit"},
		{"exactly at limit", 3600, 3600, false, true, "limit_reached"},
		{"over limit", 4000, 3600, false, true, "limit_reached"},
		{"already blocked stays blocked", 10, 3600, true, true, "already_blocked"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := engine.EvaluateDecision(context.Background(), input(tt.used, tt.limit, tt.blocked))
			if err != nil {
				t.Fatalf("EvaluateDecision failed: %v", err)
			}
			if decision.Block != tt.wantBlock {
				t.Errorf("Expected block=%v, got %v", tt.wantBlock, decision.Block)
			}
			if decision.Reason != tt.wantReason {
				t.Errorf("Expected reason=%s, got %s", tt.wantReason, decision.Reason)
			}
		})
	}
}

func TestPolicyDirOverride(t *testing.T) {
	dir := t.TempDir()
	strict := `package sitelimit.enforcement

import rego.v1

default decision := {"block": false, "reason": "no_limit"}

decision := {"block": true, "reason": "half_limit"} if {
	input.limit_seconds > 0
	input.used_seconds * 2 >= input.limit_seconds
}
`
	if err := os.WriteFile(filepath.Join(dir, "strict.rego"), []byte(strict), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	engine, err := NewEngine(Config{PolicyDir: dir}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	decision, err := engine.EvaluateDecision(context.Background(), input(1800, 3600, false))
	if err != nil {
		t.Fatalf("EvaluateDecision failed: %v", err)
	}
	if !decision.Block || decision.Reason != "half_limit" {
		t.Errorf("Unexpected decision: %+v", decision)
	}

	if got := engine.Modules(); len(got) != 1 || got[0] != "strict.rego" {
		t.Errorf("Unexpected modules: %v", got)
	}
}

func TestReloadKeepsPreviousPolicyOnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "enforcement.rego")
	src, err := embeddedPolicies.ReadFile("policies/enforcement.rego")
	if err != nil {
		t.Fatalf("read embedded policy: %v", err)
	}
	if err := os.WriteFile(path, src, 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	engine, err := NewEngine(Config{PolicyDir: dir}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	if err := os.WriteFile(path, []byte("package sitelimit.enforcement\n\ndecision := {"), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	if err := engine.Reload(); err == nil {
		t.Fatal("Expected reload to fail on a broken policy")
	}

	decision, err := engine.EvaluateDecision(context.Background(), input(3600, 3600, false))
	if err != nil {
		t.Fatalf("EvaluateDecision failed: %v", err)
	}
	if !decision.Block {
		t.Error("Previous policy should still be active")
	}
}

// TestReloadThreadSafety tests that reload is safe with concurrent evaluations
func TestReloadThreadSafety(t *testing.T) {
	engine, err := NewEngine(Config{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	var wg sync.WaitGroup
	ctx := context.Background()
	done := make(chan struct{})

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					_, _ = engine.EvaluateDecision(ctx, input(120, 3600, false))
					time.Sleep(time.Millisecond)
				}
			}
		}()
	}

	for i := 0; i < 5; i++ {
		time.Sleep(10 * time.Millisecond)
		if err := engine.Reload(); err != nil {
			t.Errorf("Reload failed: %v", err)
		}
	}

	close(done)
	wg.Wait()
}

func TestNewEngineWithoutPolicies(t *testing.T) {
	_, err := NewEngine(Config{PolicyDir: "/nonexistent/path"}, zerolog.Nop())
	if err == nil {
		t.Error("Expected error when creating engine with invalid policy dir")
	}
}
