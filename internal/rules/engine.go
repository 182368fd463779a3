// Package rules provides the CEL-Go based weighted rule evaluator used by
// the rule-backed classifier.
package rules

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/fraudshield/fraudshield/internal/domain"
)

// Engine compiles and evaluates fraud-scoring rules. Each rule is a CEL
// expression returning bool; a rule that fires adds its weight to the
// transaction's accumulated score, and an override rule forces the score
// to 1.0. The accumulated score is capped at 1.0 and doubles as the fraud
// probability.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.RuleConfig
	Program cel.Program
}

// NewEngine creates a rule engine with the transaction activation schema.
func NewEngine() (*Engine, error) {
	// notes is lowercased before activation so expressions match
	// case-insensitively without string extensions.
	env, err := cel.NewEnv(
		cel.Variable("tx", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("currency", cel.StringType),
		cel.Variable("source", cel.StringType),
		cel.Variable("notes", cel.StringType),
		cel.Variable("card_type", cel.StringType),
		cel.Variable("response_code", cel.DoubleType),
		cel.Variable("mcc", cel.DoubleType),
		cel.Variable("hour", cel.IntType),
		cel.Variable("fraud_flag", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
	}, nil
}

// ValidateRule compiles a rule without loading it.
func (e *Engine) ValidateRule(cfg *domain.RuleConfig) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}
	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(cfg *domain.RuleConfig) error {
	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.compiledRules[cfg.ID] = compiled
	e.mu.Unlock()
	return nil
}

// LoadRules compiles and loads all enabled rules.
func (e *Engine) LoadRules(configs []*domain.RuleConfig) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules atomically replaces the loaded rule set. Enables hot-reload
// from the repository without restarting the server.
func (e *Engine) ReloadRules(configs []*domain.RuleConfig) error {
	newRules := make(map[string]*CompiledRule)
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	e.mu.Lock()
	e.compiledRules = newRules
	e.mu.Unlock()
	return nil
}

// Score evaluates every loaded rule against one transaction and returns the
// capped accumulated score with the per-rule outcomes. Rules evaluate in
// rule-ID order so the result is deterministic run to run. Individual rule
// errors are recorded and skipped; they never abort scoring.
func (e *Engine) Score(ctx context.Context, tx *domain.Transaction) (float64, []domain.RuleResult) {
	rules := e.sortedRules()
	activation := Activation(tx)

	score := 0.0
	override := false
	results := make([]domain.RuleResult, 0, len(rules))

	for _, rule := range rules {
		result := domain.RuleResult{
			RuleID:   rule.Config.ID,
			Weight:   rule.Config.Weight,
			Override: rule.Config.Override,
		}

		out, _, err := rule.Program.ContextEval(ctx, activation)
		if err != nil {
			result.Err = err.Error()
			results = append(results, result)
			continue
		}

		if fired, ok := out.(types.Bool); ok && bool(fired) {
			result.Fired = true
			if rule.Config.Override {
				override = true
			} else {
				score += rule.Config.Weight
			}
		}
		results = append(results, result)
	}

	if override {
		score = 1.0
	}
	if score > 1.0 {
		score = 1.0
	}
	return score, results
}

// Activation builds the CEL activation map for a transaction.
func Activation(tx *domain.Transaction) map[string]any {
	hour := 0
	if ts, ok := tx.Timestamp(); ok {
		hour = ts.Hour()
	}

	raw := make(map[string]any, len(tx.Fields))
	for k, v := range tx.Fields {
		raw[k] = v
	}

	return map[string]any{
		"tx":            raw,
		"amount":        tx.Amount(),
		"currency":      tx.Currency(),
		"source":        tx.Source(),
		"notes":         strings.ToLower(tx.Notes()),
		"card_type":     tx.CardType(),
		"response_code": tx.Float(domain.ColResponseCode),
		"mcc":           tx.Float(domain.ColMCC),
		"hour":          hour,
		"fraud_flag":    tx.FraudFlag(),
	}
}

// Fingerprint hashes the loaded rule set (IDs, versions, expressions,
// weights, override flags, in ID order). Two engines with the same loaded
// rules produce the same fingerprint; any load or reload that changes the
// set changes it.
func (e *Engine) Fingerprint() string {
	h := fnv.New64a()
	for _, rule := range e.sortedRules() {
		cfg := rule.Config
		fmt.Fprintf(h, "%s|%s|%s|%g|%t\n", cfg.ID, cfg.Version, cfg.Expression, cfg.Weight, cfg.Override)
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// GetLoadedRules returns the currently loaded rule configurations.
func (e *Engine) GetLoadedRules() []*domain.RuleConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.RuleConfig, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Config)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules
}

// Close clears the loaded rules.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) sortedRules() []*CompiledRule {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, r := range e.compiledRules {
		rules = append(rules, r)
	}
	e.mu.RUnlock()

	sort.Slice(rules, func(i, j int) bool {
		return rules[i].Config.ID < rules[j].Config.ID
	})
	return rules
}

func (e *Engine) compileRule(cfg *domain.RuleConfig) (*CompiledRule, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{Config: cfg, Program: program}, nil
}
