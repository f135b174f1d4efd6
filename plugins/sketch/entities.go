package sketch

import (
	"math"

	"solidcore/pkg/model"
	"solidcore/pkg/model/sharedref"
)

// Entity kinds contributed by the plugin.
var (
	PointKind   = model.DefineKind("sketch_point", model.EntityKind)
	SegmentKind = model.DefineKind("sketch_segment", model.EntityKind)
	LoopKind    = model.DefineKind("sketch_loop", model.EntityKind)
)

// Point is a position in the sketch plane.
type Point struct {
	model.Base
	X, Y float64
}

func (p *Point) Kind() *model.Kind { return PointKind }

// Move sets the position.
func (p *Point) Move(x, y float64) error {
	if err := p.Backup(); err != nil {
		return err
	}
	p.X, p.Y = x, y
	return nil
}

// ApplyTransform implements model.Transformable.
func (p *Point) ApplyTransform(t model.Transform) error {
	v := t.Apply([3]float64{p.X, p.Y, 0})
	p.X, p.Y = v[0], v[1]
	return nil
}

func (p *Point) SaveFields(w model.FieldWriter) error { return w.Put([2]float64{p.X, p.Y}) }

func (p *Point) LoadFields(r model.FieldReader) error {
	var xy [2]float64
	if err := r.Get(&xy); err != nil {
		return err
	}
	p.X, p.Y = xy[0], xy[1]
	return nil
}

// Segment is a straight edge between two points. Adjacent segments share
// their common point.
type Segment struct {
	model.Base
	A, B *Point
}

func (s *Segment) Kind() *model.Kind { return SegmentKind }

// Length is the Euclidean distance between the end points; 0 when either is
// missing.
func (s *Segment) Length() float64 {
	if s.A == nil || s.B == nil {
		return 0
	}
	return math.Hypot(s.B.X-s.A.X, s.B.Y-s.A.Y)
}

// CopyScan reports the end points as owned, so deleting or moving a segment
// takes its points along.
func (s *Segment) CopyScan(sc *model.Scanner) {
	sc.Add(s.A)
	sc.Add(s.B)
}

func (s *Segment) FixPointers(f *model.Fixer) {
	s.A = model.Ref(f, s.A)
	s.B = model.Ref(f, s.B)
}

func (s *Segment) SaveFields(w model.FieldWriter) error {
	return w.Put([2]int{w.Ref(s.A), w.Ref(s.B)})
}

func (s *Segment) LoadFields(r model.FieldReader) error {
	var ends [2]int
	if err := r.Get(&ends); err != nil {
		return err
	}
	var err error
	if s.A, err = model.RefAs[*Point](r, ends[0]); err != nil {
		return err
	}
	s.B, err = model.RefAs[*Point](r, ends[1])
	return err
}

// Profile is the cross-section swept along a loop. Loops copied from one
// another share a profile until one of them changes it.
type Profile struct {
	sharedref.Count
	Width    float64
	Material string
}

func cloneProfile(p *Profile) *Profile { return &Profile{Width: p.Width, Material: p.Material} }

type profileFields struct {
	Width    float64 `json:"width" cbor:"width"`
	Material string  `json:"material,omitempty" cbor:"material,omitempty"`
}

// Loop is an ordered ring of segments with a shared profile.
type Loop struct {
	model.Base
	segs    []*Segment
	profile sharedref.Handle[*Profile]
}

func (l *Loop) Kind() *model.Kind { return LoopKind }

// Segments returns the segments in ring order.
func (l *Loop) Segments() []*Segment {
	out := make([]*Segment, len(l.segs))
	copy(out, l.segs)
	return out
}

// Profile returns the loop profile, nil when unset.
func (l *Loop) Profile() *Profile {
	p, _ := l.profile.Get()
	return p
}

// SharesProfileWith reports whether l and other point at the same profile.
func (l *Loop) SharesProfileWith(other *Loop) bool {
	return l.profile.Valid() && other.profile.Valid() && l.profile.Ptr() == other.profile.Ptr()
}

// SetWidth changes the profile width of this loop only; a profile shared
// with other loops is cloned first.
func (l *Loop) SetWidth(w float64) error {
	if !l.profile.Valid() {
		return l.SetProfile(&Profile{Width: w})
	}
	if err := l.Backup(); err != nil {
		return err
	}
	if _, err := l.profile.MakeUnique(cloneProfile); err != nil {
		return err
	}
	return l.profile.Mutate(func(p *Profile) { p.Width = w })
}

// SetProfile points the loop at p.
func (l *Loop) SetProfile(p *Profile) error {
	if err := l.Backup(); err != nil {
		return err
	}
	return l.profile.Reset(p)
}

func (l *Loop) Snapshot() model.Entity {
	cp := *l
	cp.segs = append([]*Segment(nil), l.segs...)
	return &cp
}

func (l *Loop) Restore(from model.Entity) {
	src := from.(*Loop)
	*l = *src
	l.segs = append([]*Segment(nil), src.segs...)
}

func (l *Loop) SharedRefs() []sharedref.Counted {
	if t := l.profile.Target(); t != nil {
		return []sharedref.Counted{t}
	}
	return nil
}

func (l *Loop) CopyScan(sc *model.Scanner) {
	for _, s := range l.segs {
		sc.Add(s)
	}
}

func (l *Loop) FixPointers(f *model.Fixer) {
	for i, s := range l.segs {
		l.segs[i] = model.Ref(f, s)
	}
	l.profile = model.Shared(f, l.profile, cloneProfile)
}

func (l *Loop) SaveFields(w model.FieldWriter) error {
	ords := make([]int, len(l.segs))
	for i, s := range l.segs {
		ords[i] = w.Ref(s)
	}
	if err := w.Put(ords); err != nil {
		return err
	}
	ord := -1
	if p, ok := l.profile.Get(); ok {
		var err error
		if ord, err = w.Shared(p, profileFields{Width: p.Width, Material: p.Material}); err != nil {
			return err
		}
	}
	return w.Put(ord)
}

func (l *Loop) LoadFields(r model.FieldReader) error {
	var ords []int
	if err := r.Get(&ords); err != nil {
		return err
	}
	l.segs = make([]*Segment, len(ords))
	for i, o := range ords {
		s, err := model.RefAs[*Segment](r, o)
		if err != nil {
			return err
		}
		l.segs[i] = s
	}
	var ord int
	if err := r.Get(&ord); err != nil {
		return err
	}
	obj, err := r.Shared(ord, func(decode func(any) error) (sharedref.Counted, error) {
		var f profileFields
		if err := decode(&f); err != nil {
			return nil, err
		}
		return &Profile{Width: f.Width, Material: f.Material}, nil
	})
	if err != nil || obj == nil {
		return err
	}
	l.profile = sharedref.New(obj.(*Profile))
	return nil
}
