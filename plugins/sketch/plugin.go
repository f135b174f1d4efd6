// Package sketch is a sample plugin: planar points, segments and loops with a
// shared profile, plus label, colour and debug-mark attributes. It exercises
// every substrate feature a real modeling plugin leans on and backs the
// solidctl demo.
package sketch

import (
	"solidcore/internal/core"
	"solidcore/pkg/model"
)

const (
	pluginName    = "sketch"
	pluginVersion = "0.1.0"
)

// Plugin implements core.Plugin.
type Plugin struct{}

// New returns the sketch plugin.
func New() Plugin { return Plugin{} }

func (Plugin) Name() string    { return pluginName }
func (Plugin) Version() string { return pluginVersion }

// Register contributes the sketch kinds, its two rules and a policy that
// drops debug marks when their owner is replaced or made tolerant.
func (Plugin) Register(r *core.PluginRegistry) error {
	kinds := []struct {
		kind    *model.Kind
		factory model.Factory
	}{
		{PointKind, func() model.Entity { return &Point{} }},
		{SegmentKind, func() model.Entity { return &Segment{} }},
		{LoopKind, func() model.Entity { return &Loop{} }},
		{LabelKind, func() model.Entity { return &Label{} }},
		{ColorKind, func() model.Entity { return &Color{} }},
		{DebugMarkKind, func() model.Entity { return &DebugMark{} }},
	}
	for _, k := range kinds {
		if err := r.RegisterKind(k.kind, k.factory); err != nil {
			return err
		}
	}
	r.RegisterRule(degenerateSegmentRule{})
	r.RegisterRule(openLoopRule{})
	r.RegisterPolicy(DebugMarkKind.Name(), model.Behavior{}.
		With(model.OpReplace, model.ActionLose).
		With(model.OpTolerant, model.ActionLose))
	return nil
}
