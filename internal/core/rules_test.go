package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"solidcore/pkg/model"
)

type ruleFunc struct {
	name string
	fn   func(View, []*model.Bulletin) (Result, error)
}

func (r ruleFunc) Name() string { return r.name }

func (r ruleFunc) Evaluate(_ context.Context, view View, bulletins []*model.Bulletin) (Result, error) {
	return r.fn(view, bulletins)
}

func TestDefaultEngineRules(t *testing.T) {
	names := NewDefaultRulesEngine().Names()
	if len(names) != 2 || names[0] != attributeChainRuleName || names[1] != lostReferenceRuleName {
		t.Fatalf("default rules = %v", names)
	}
	e := NewRulesEngine()
	e.Register(nil)
	if len(e.Names()) != 0 {
		t.Fatalf("nil rule registered")
	}
}

func TestLostReferenceRuleBlocksDanglingLink(t *testing.T) {
	svc := NewService(newDoc(t))
	_, b, l := buildPair(t, svc)

	_, err := svc.Run(context.Background(), "drop-end", func(*Tx) error { return model.Lose(b) })
	var rv RuleViolationError
	if !errors.As(err, &rv) {
		t.Fatalf("expected RuleViolationError, got %v", err)
	}
	blocking := rv.Result.Blocking()
	if len(blocking) != 1 || blocking[0].Rule != lostReferenceRuleName || blocking[0].Kind != "core_link" {
		t.Fatalf("violations = %+v", rv.Result.Violations)
	}
	if blocking[0].Handle != l.Handle() {
		t.Fatalf("violation handle = %v, want %v", blocking[0].Handle, l.Handle())
	}
	if b.IsLost() {
		t.Fatalf("blocked operation was not discarded")
	}

	_, err = svc.Run(context.Background(), "drop-both", func(*Tx) error {
		if err := model.Lose(l); err != nil {
			return err
		}
		return model.Lose(b)
	})
	must(t, err)
	if !b.IsLost() || !l.IsLost() {
		t.Fatalf("expected link and node lost")
	}
}

func TestAttributeChainRuleAcceptsWellFormedLists(t *testing.T) {
	svc := NewService(newDoc(t))
	a, _, _ := buildPair(t, svc)
	out, err := svc.Run(context.Background(), "annotate", func(tx *Tx) error {
		for _, text := range []string{"second", "third"} {
			n, err := model.Create(tx.Stream(), &note{Text: text})
			if err != nil {
				return err
			}
			if err := model.Attach(a, n); err != nil {
				return err
			}
		}
		return nil
	})
	must(t, err)
	if len(out.Result.Violations) != 0 || len(a.Attributes()) != 3 {
		t.Fatalf("violations=%+v attrs=%d", out.Result.Violations, len(a.Attributes()))
	}

	res, err := NewAttributeChainRule().Evaluate(context.Background(), &Tx{stream: svc.Stream(), board: &model.Board{}}, nil)
	if err != nil || len(res.Violations) != 0 {
		t.Fatalf("empty board: %+v %v", res, err)
	}
}

func TestWarningRulesCommit(t *testing.T) {
	log := &captureLogger{}
	engine := NewDefaultRulesEngine()
	engine.Register(ruleFunc{name: "big_values", fn: func(view View, _ []*model.Bulletin) (Result, error) {
		var res Result
		for _, e := range view.Touched() {
			if n, ok := e.(*node); ok && n.Value > 100 {
				res.Violations = append(res.Violations, violationFor("big_values", SeverityWarn, n, "value %d is large", n.Value))
			}
		}
		return res, nil
	}})
	svc := NewService(newDoc(t), WithRulesEngine(engine), WithLogger(log))
	a, _, _ := buildPair(t, svc)
	out, err := svc.Run(context.Background(), "grow", func(*Tx) error { return a.set(500) })
	must(t, err)
	if out.State == nil || len(out.Result.Violations) != 1 || out.Result.HasBlocking() {
		t.Fatalf("outcome = %+v", out)
	}
	if v := out.Result.Violations[0]; v.Message != "value 500 is large" || v.Kind != "core_node" {
		t.Fatalf("violation = %+v", v)
	}
	if !log.has("w:value 500 is large") {
		t.Fatalf("expected warning log, got %v", log.calls)
	}
}

func TestRuleErrorDiscards(t *testing.T) {
	engine := NewRulesEngine()
	errRule := errors.New("rule backend down")
	engine.Register(ruleFunc{name: "broken", fn: func(View, []*model.Bulletin) (Result, error) { return Result{}, errRule }})
	svc := NewService(newDoc(t), WithRulesEngine(engine))
	_, err := svc.Run(context.Background(), "create", func(tx *Tx) error {
		_, err := model.Create(tx.Stream(), &node{})
		return err
	})
	if !errors.Is(err, errRule) || svc.Document().Allocated() != 0 {
		t.Fatalf("err=%v allocated=%d", err, svc.Document().Allocated())
	}
}

func TestRuleViolationErrorMessage(t *testing.T) {
	if msg := (RuleViolationError{}).Error(); msg != "operation blocked by rules" {
		t.Fatalf("empty message = %q", msg)
	}
	err := RuleViolationError{Result: Result{Violations: []Violation{
		{Rule: "a", Severity: SeverityWarn, Message: "ignored"},
		{Rule: "b", Severity: SeverityBlock, Message: "first"},
		{Rule: "c", Severity: SeverityBlock, Message: "second"},
	}}}
	msg := err.Error()
	if !strings.Contains(msg, "b: first") || !strings.Contains(msg, "1 more") || strings.Contains(msg, "ignored") {
		t.Fatalf("message = %q", msg)
	}
}

func TestResultMerge(t *testing.T) {
	var r Result
	r.Merge(Result{Violations: []Violation{{Severity: SeverityLog}}})
	if r.HasBlocking() {
		t.Fatalf("log violation reported as blocking")
	}
	r.Merge(Result{Violations: []Violation{{Severity: SeverityBlock}}})
	if !r.HasBlocking() || len(r.Violations) != 2 || len(r.Blocking()) != 1 {
		t.Fatalf("merged = %+v", r)
	}
}
