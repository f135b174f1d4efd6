package sketch

import "solidcore/pkg/model"

// Attribute kinds contributed by the plugin.
var (
	// LabelKind travels with its owner: split and copy duplicate it, merge
	// keeps the surviving label, and transforms move its anchor.
	LabelKind = model.DefineKind("label", model.AttribKind, model.WithDefaults(model.Behavior{}.
		With(model.OpSplit, model.ActionDuplicate).
		With(model.OpCopy, model.ActionDuplicate).
		With(model.OpMerge, model.ActionKeep).
		With(model.OpTransform, model.ActionCustom)))
	// ColorKind hands itself to an uncoloured merge target.
	ColorKind = model.DefineKind("color", model.AttribKind, model.WithDefaults(model.Behavior{}.
		With(model.OpSplit, model.ActionDuplicate).
		With(model.OpMerge, model.ActionCustom)))
	// DebugMarkKind never survives a structural edit of its owner.
	DebugMarkKind = model.DefineKind("debug_mark", model.AttribKind, model.WithDefaults(model.Behavior{}.
		With(model.OpCopy, model.ActionLose).
		With(model.OpSplit, model.ActionLose).
		With(model.OpMerge, model.ActionLose)))
)

// Label names an entity and pins the name to a point in the plane.
type Label struct {
	model.AttribBase
	Text   string
	Anchor [2]float64
}

func (l *Label) Kind() *model.Kind { return LabelKind }

// TransformOwner moves the anchor with the owner.
func (l *Label) TransformOwner(ev model.Event) error {
	if err := l.Backup(); err != nil {
		return err
	}
	v := ev.Transform.Apply([3]float64{l.Anchor[0], l.Anchor[1], 0})
	l.Anchor = [2]float64{v[0], v[1]}
	return nil
}

type labelFields struct {
	Text   string     `json:"text" cbor:"text"`
	Anchor [2]float64 `json:"anchor" cbor:"anchor"`
}

func (l *Label) SaveFields(w model.FieldWriter) error {
	return w.Put(labelFields{Text: l.Text, Anchor: l.Anchor})
}

func (l *Label) LoadFields(r model.FieldReader) error {
	var f labelFields
	if err := r.Get(&f); err != nil {
		return err
	}
	l.Text, l.Anchor = f.Text, f.Anchor
	return nil
}

// Color is an RGBA display colour.
type Color struct {
	model.AttribBase
	RGBA [4]uint8
}

func (c *Color) Kind() *model.Kind { return ColorKind }

// MergeOwner copies the colour onto the merge target unless it already has
// one.
func (c *Color) MergeOwner(ev model.Event) error {
	if ev.Other == nil || ev.Other.Core().FindAttribute(ColorKind) != nil {
		return nil
	}
	_, err := model.DuplicateAttribute(c, ev.Other)
	return err
}

func (c *Color) SaveFields(w model.FieldWriter) error { return w.Put(c.RGBA) }

func (c *Color) LoadFields(r model.FieldReader) error { return r.Get(&c.RGBA) }

// DebugMark flags an entity for inspection. It outlives its owner: losing the
// owner detaches the mark so tooling can still report on it.
type DebugMark struct {
	model.AttribBase
	Note string
}

func (d *DebugMark) Kind() *model.Kind { return DebugMarkKind }

func (d *DebugMark) Deletable() bool { return false }

func (d *DebugMark) Duplicatable() bool { return false }

func (d *DebugMark) SaveFields(w model.FieldWriter) error { return w.Put(d.Note) }

func (d *DebugMark) LoadFields(r model.FieldReader) error { return r.Get(&d.Note) }
