package core

import (
	"context"

	"solidcore/pkg/model"
)

const lostReferenceRuleName = "lost_reference"

// LostReferenceRule blocks operations after which a live entity still points
// at a lost one. Boards that lose entities are checked against every live
// entity of the stream; other boards only against the entities they touched.
type LostReferenceRule struct{}

// NewLostReferenceRule returns the rule.
func NewLostReferenceRule() LostReferenceRule { return LostReferenceRule{} }

// Name implements Rule.
func (LostReferenceRule) Name() string { return lostReferenceRuleName }

// Evaluate implements Rule.
func (r LostReferenceRule) Evaluate(ctx context.Context, view View, bulletins []*model.Bulletin) (Result, error) {
	candidates := view.Touched()
	for _, bl := range bulletins {
		if bl.Entity().Core().IsLost() {
			candidates = view.Stream().Entities()
			break
		}
	}

	var res Result
	reported := make(map[model.Entity]struct{})
	for _, e := range candidates {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if !live(e) {
			continue
		}
		if _, isAttr := e.(model.Attribute); isAttr {
			continue
		}
		for _, target := range model.Links(e) {
			if !target.Core().IsLost() {
				continue
			}
			if _, ok := reported[target]; ok {
				continue
			}
			reported[target] = struct{}{}
			kind, _ := model.Identity(target)
			res.Violations = append(res.Violations, violationFor(r.Name(), SeverityBlock, e,
				"references lost %s%s", kind, target.Core().Handle()))
		}
	}
	return res, nil
}
