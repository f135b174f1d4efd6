package sketch

import (
	"context"
	"fmt"

	"solidcore/internal/core"
	"solidcore/pkg/model"
)

const (
	degenerateSegmentRuleName = "sketch_degenerate_segment"
	openLoopRuleName          = "sketch_open_loop"
)

// MinSegmentLength is the shortest segment the degenerate-segment rule
// accepts.
const MinSegmentLength = 1e-9

type degenerateSegmentRule struct{}

func (degenerateSegmentRule) Name() string { return degenerateSegmentRuleName }

// Evaluate blocks segments touched by the operation that are missing an end
// point or have zero length.
func (r degenerateSegmentRule) Evaluate(ctx context.Context, view core.View, _ []*model.Bulletin) (core.Result, error) {
	var res core.Result
	for _, e := range view.Touched() {
		if err := ctx.Err(); err != nil {
			return core.Result{}, err
		}
		seg, ok := e.(*Segment)
		if !ok || !alive(seg) {
			continue
		}
		switch {
		case seg.A == nil || seg.B == nil:
			res.Violations = append(res.Violations, violation(r.Name(), core.SeverityBlock, seg, "segment is missing an end point"))
		case seg.Length() < MinSegmentLength:
			res.Violations = append(res.Violations, violation(r.Name(), core.SeverityBlock, seg,
				"segment has zero length at (%g, %g)", seg.A.X, seg.A.Y))
		}
	}
	return res, nil
}

type openLoopRule struct{}

func (openLoopRule) Name() string { return openLoopRuleName }

// Evaluate warns about touched loops whose segments do not form a closed
// ring. A loop is touched when it or one of its segments changed.
func (r openLoopRule) Evaluate(ctx context.Context, view core.View, _ []*model.Bulletin) (core.Result, error) {
	touched := make(map[model.Entity]struct{})
	for _, e := range view.Touched() {
		touched[e] = struct{}{}
	}
	var res core.Result
	for _, e := range view.Stream().Entities() {
		if err := ctx.Err(); err != nil {
			return core.Result{}, err
		}
		l, ok := e.(*Loop)
		if !ok || !loopTouched(l, touched) {
			continue
		}
		if gap := firstGap(l); gap >= 0 {
			res.Violations = append(res.Violations, violation(r.Name(), core.SeverityWarn, l,
				"loop is open after segment %d", gap))
		}
	}
	return res, nil
}

func loopTouched(l *Loop, touched map[model.Entity]struct{}) bool {
	if _, ok := touched[l]; ok {
		return true
	}
	for _, s := range l.segs {
		if _, ok := touched[s]; ok {
			return true
		}
	}
	return false
}

// firstGap returns the index of the first segment whose end is not the next
// segment's start, or -1 for a closed loop.
func firstGap(l *Loop) int {
	n := len(l.segs)
	if n == 0 {
		return 0
	}
	for i, s := range l.segs {
		next := l.segs[(i+1)%n]
		if s == nil || next == nil || s.B == nil || s.B != next.A {
			return i
		}
	}
	return -1
}

func alive(e model.Entity) bool {
	b := e.Core()
	return b.Created() && !b.IsLost() && !b.Deallocated()
}

func violation(rule string, sev core.Severity, e model.Entity, format string, args ...any) core.Violation {
	kind, _ := model.Identity(e)
	return core.Violation{
		Rule:     rule,
		Severity: sev,
		Message:  fmt.Sprintf(format, args...),
		Kind:     kind,
		Handle:   e.Core().Handle(),
	}
}
