package core

import (
	"context"

	"solidcore/pkg/model"
)

// View is the read side of an open operation handed to rules.
type View interface {
	Stream() *model.Stream
	Document() *model.Document
	// Touched returns the distinct entities the open board has recorded.
	Touched() []model.Entity
}

// Rule evaluates the bulletins of an open board before it commits.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view View, bulletins []*model.Bulletin) (Result, error)
}

// RulesEngine runs rules in registration order.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine returns an engine with no rules.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// NewDefaultRulesEngine returns an engine with the built-in integrity rules.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewAttributeChainRule())
	engine.Register(NewLostReferenceRule())
	return engine
}

// Register appends a rule. Nil rules are ignored.
func (e *RulesEngine) Register(rule Rule) {
	if rule == nil {
		return
	}
	e.rules = append(e.rules, rule)
}

// Names lists the registered rules.
func (e *RulesEngine) Names() []string {
	out := make([]string, len(e.rules))
	for i, r := range e.rules {
		out[i] = r.Name()
	}
	return out
}

// Evaluate runs every rule and merges their results. The first rule error
// stops evaluation.
func (e *RulesEngine) Evaluate(ctx context.Context, view View, bulletins []*model.Bulletin) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		res, err := rule.Evaluate(ctx, view, bulletins)
		if err != nil {
			return Result{}, err
		}
		combined.Merge(res)
	}
	return combined, nil
}

// live reports whether e can still be reached by callers.
func live(e model.Entity) bool {
	b := e.Core()
	return b.Created() && !b.IsLost() && !b.Deallocated()
}
