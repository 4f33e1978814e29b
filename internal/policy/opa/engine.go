package opa

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/rs/zerolog"
)

// DecisionQuery is the rule every enforcement policy must define.
const DecisionQuery = "data.sitelimit.enforcement.decision"

//go:embed policies/*.rego
var embeddedPolicies embed.FS

// Config selects where policies are loaded from.
// An empty PolicyDir uses the policies compiled into the binary.
type Config struct {
	PolicyDir string
}

// Engine wraps OPA rego engine for policy evaluation
type Engine struct {
	config Config
	logger zerolog.Logger

	mu            sync.RWMutex
	decisionQuery rego.PreparedEvalQuery
	modules       map[string]string
}

// Decision is the result of the enforcement query
type Decision struct {
	Block  bool   `json:"block"`
	Reason string `json:"reason"`
}

// NewEngine creates a new OPA engine
func NewEngine(config Config, logger zerolog.Logger) (*Engine, error) {
	e := &Engine{
		config: config,
		logger: logger.With().Str("component", "opa").Logger(),
	}

	if err := e.Reload(); err != nil {
		return nil, err
	}

	source := "embedded"
	if config.PolicyDir != "" {
		source = config.PolicyDir
	}
	e.logger.Info().Str("policy_source", source).Msg("OPA engine initialized")

	return e, nil
}

// loadPolicies reads every .rego module from the configured source
func (e *Engine) loadPolicies() (map[string]string, error) {
	var (
		fsys    fs.FS = embeddedPolicies
		pattern       = "policies/*.rego"
	)
	if e.config.PolicyDir != "" {
		fsys = os.DirFS(e.config.PolicyDir)
		pattern = "*.rego"
	}

	files, err := fs.Glob(fsys, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to glob policy files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no policy files found in %s", e.config.PolicyDir)
	}
	sort.Strings(files)

	modules := make(map[string]string, len(files))
	for _, file := range files {
		content, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("failed to read policy file %s: %w", file, err)
		}

		module, err := ast.ParseModule(file, string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse policy file %s: %w", file, err)
		}

		name := filepath.Base(file)
		modules[name] = string(content)
		e.logger.Debug().Str("file", name).Str("package", module.Package.Path.String()).Msg("Loaded policy module")
	}

	return modules, nil
}

// prepareDecisionQuery compiles the enforcement query against modules
func prepareDecisionQuery(modules map[string]string) (rego.PreparedEvalQuery, error) {
	opts := []func(*rego.Rego){rego.Query(DecisionQuery)}
	for name, src := range modules {
		opts = append(opts, rego.Module(name, src))
	}

	query, err := rego.New(opts...).PrepareForEval(context.Background())
	if err != nil {
		return rego.PreparedEvalQuery{}, fmt.Errorf("failed to prepare decision query: %w", err)
	}
	return query, nil
}

// EvaluateDecision evaluates the enforcement decision for the given input
func (e *Engine) EvaluateDecision(ctx context.Context, input map[string]interface{}) (*Decision, error) {
	startTime := time.Now()

	e.mu.RLock()
	query := e.decisionQuery
	e.mu.RUnlock()

	results, err := query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("decision query evaluation failed: %w", err)
	}

	e.logger.Debug().Dur("duration", time.Since(startTime)).Msg("Decision query evaluated")

	if len(results) == 0 {
		return nil, fmt.Errorf("no results from decision query")
	}

	if len(results[0].Expressions) == 0 {
		return nil, fmt.Errorf("no expressions in decision query result")
	}

	resultBytes, err := json.Marshal(results[0].Expressions[0].Value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal decision: %w", err)
	}

	var decision Decision
	if err := json.Unmarshal(resultBytes, &decision); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decision: %w", err)
	}

	return &decision, nil
}

// Reload reloads all policies. On failure the previous policies stay active.
func (e *Engine) Reload() error {
	modules, err := e.loadPolicies()
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}

	query, err := prepareDecisionQuery(modules)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.modules = modules
	e.decisionQuery = query
	e.mu.Unlock()

	e.logger.Info().Int("modules", len(modules)).Msg("OPA policies loaded")
	return nil
}

// Modules returns the names of the loaded policy modules
func (e *Engine) Modules() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.modules))
	for name := range e.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
