package core

import (
	"context"

	"solidcore/pkg/model"
)

const attributeChainRuleName = "attribute_chain"

type chainLink interface {
	Next() model.Attribute
	Prev() model.Attribute
}

// AttributeChainRule blocks operations that leave a touched entity with a
// broken attribute list: a member owned by someone else, a lost member, a
// prev link out of step or an attribute whose owner is lost.
type AttributeChainRule struct{}

// NewAttributeChainRule returns the rule.
func NewAttributeChainRule() AttributeChainRule { return AttributeChainRule{} }

// Name implements Rule.
func (AttributeChainRule) Name() string { return attributeChainRuleName }

// Evaluate implements Rule.
func (r AttributeChainRule) Evaluate(_ context.Context, view View, _ []*model.Bulletin) (Result, error) {
	var res Result
	for _, e := range view.Touched() {
		if !live(e) {
			continue
		}
		if attr, ok := e.(model.Attribute); ok {
			if owner := model.OwnerOf(attr); owner != nil && !live(owner) {
				res.Violations = append(res.Violations, violationFor(r.Name(), SeverityBlock, attr,
					"attribute is attached to a lost owner"))
			}
		}
		res.Merge(r.checkList(e))
	}
	return res, nil
}

func (r AttributeChainRule) checkList(owner model.Entity) Result {
	var res Result
	var prev model.Attribute
	seen := make(map[model.Attribute]struct{})
	for a := owner.Core().FirstAttribute(); a != nil; {
		if _, dup := seen[a]; dup {
			res.Violations = append(res.Violations, violationFor(r.Name(), SeverityBlock, owner,
				"attribute list contains a cycle"))
			break
		}
		seen[a] = struct{}{}
		if got := model.OwnerOf(a); got != owner {
			res.Violations = append(res.Violations, violationFor(r.Name(), SeverityBlock, a,
				"attribute listed on an entity that does not own it"))
		}
		if a.Core().IsLost() {
			res.Violations = append(res.Violations, violationFor(r.Name(), SeverityBlock, a,
				"lost attribute still listed on its owner"))
		}
		link, ok := a.(chainLink)
		if !ok {
			break
		}
		if link.Prev() != prev {
			res.Violations = append(res.Violations, violationFor(r.Name(), SeverityBlock, a,
				"attribute prev link does not match list order"))
		}
		prev = a
		a = link.Next()
	}
	return res
}
