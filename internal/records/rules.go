package records

import (
	"context"
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"canvas-backend/internal/query"
	"canvas-backend/internal/store"
)

// ValidationRule is an admin-defined boolean expression evaluated against a
// record before it is written. A rule returning false rejects the write with
// the rule's message.
type ValidationRule struct {
	ID         string
	EntityID   string
	Expression string
	Message    string
}

// RuleEngine loads and evaluates validation rules. Compiled programs are
// cached by expression string.
type RuleEngine struct {
	mu    sync.Mutex
	cache map[string]*vm.Program
}

func NewRuleEngine() *RuleEngine {
	return &RuleEngine{cache: make(map[string]*vm.Program)}
}

// LoadRules reads the active validation rules for an entity.
func LoadRules(ctx context.Context, q store.Querier, entityID string) ([]ValidationRule, error) {
	rows, err := q.Query(ctx,
		`SELECT id::text, entity_id::text, expression, message
		 FROM validation_rules WHERE entity_id = $1 AND active = true ORDER BY created_at`, entityID)
	if err != nil {
		return nil, fmt.Errorf("load validation rules: %w", err)
	}
	defer rows.Close()

	var rules []ValidationRule
	for rows.Next() {
		var r ValidationRule
		if err := rows.Scan(&r.ID, &r.EntityID, &r.Expression, &r.Message); err != nil {
			return nil, fmt.Errorf("scan validation rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// Evaluate runs every rule against the record data. Failing rules become
// validation details; a rule that does not compile or run rejects the write
// with its own error rather than silently passing.
func (e *RuleEngine) Evaluate(rules []ValidationRule, data map[string]any) []query.NodeError {
	if len(rules) == 0 {
		return nil
	}
	env := map[string]any{"record": data}

	var errs []query.NodeError
	for _, r := range rules {
		ok, err := e.evalBool(r.Expression, env)
		if err != nil {
			errs = append(errs, query.NodeError{
				NodeID:  r.ID,
				Message: fmt.Sprintf("validation rule failed to evaluate: %v", err),
			})
			continue
		}
		if !ok {
			msg := r.Message
			if msg == "" {
				msg = fmt.Sprintf("record violates validation rule %s", r.ID)
			}
			errs = append(errs, query.NodeError{NodeID: r.ID, Message: msg})
		}
	}
	return errs
}

func (e *RuleEngine) evalBool(expression string, env map[string]any) (bool, error) {
	e.mu.Lock()
	prog, ok := e.cache[expression]
	e.mu.Unlock()
	if !ok {
		var err error
		prog, err = expr.Compile(expression, expr.AsBool())
		if err != nil {
			return false, fmt.Errorf("compile: %w", err)
		}
		e.mu.Lock()
		e.cache[expression] = prog
		e.mu.Unlock()
	}

	result, err := expr.Run(prog, env)
	if err != nil {
		return false, fmt.Errorf("run: %w", err)
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expression did not return bool")
	}
	return b, nil
}
