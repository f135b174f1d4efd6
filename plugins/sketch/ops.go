package sketch

import (
	"errors"
	"fmt"

	"solidcore/pkg/model"
	"solidcore/pkg/model/sharedref"
)

// ErrSegmentIndex is returned when a loop edit names a segment the loop does
// not have.
var ErrSegmentIndex = errors.New("segment index out of range")

// AddPoint creates a point at (x, y).
func AddPoint(s *model.Stream, x, y float64) (*Point, error) {
	return model.Create(s, &Point{X: x, Y: y})
}

// Connect creates a segment from a to b.
func Connect(s *model.Stream, a, b *Point) (*Segment, error) {
	return model.Create(s, &Segment{A: a, B: b})
}

// NewLoop creates a loop over segs. A nil profile leaves the loop without one.
func NewLoop(s *model.Stream, segs []*Segment, p *Profile) (*Loop, error) {
	l := &Loop{segs: append([]*Segment(nil), segs...)}
	if p != nil {
		l.profile = sharedref.New(p)
	}
	return model.Create(s, l)
}

// Polygon builds a closed loop through pts, one point per vertex.
func Polygon(s *model.Stream, pts [][2]float64, p *Profile) (*Loop, error) {
	if len(pts) < 3 {
		return nil, fmt.Errorf("polygon needs at least 3 vertices, got %d", len(pts))
	}
	verts := make([]*Point, len(pts))
	for i, xy := range pts {
		pt, err := AddPoint(s, xy[0], xy[1])
		if err != nil {
			return nil, err
		}
		verts[i] = pt
	}
	segs := make([]*Segment, len(verts))
	for i := range verts {
		seg, err := Connect(s, verts[i], verts[(i+1)%len(verts)])
		if err != nil {
			return nil, err
		}
		segs[i] = seg
	}
	return NewLoop(s, segs, p)
}

// AddLabel attaches a new label anchored at the owner's first point, or the
// origin when the owner has none.
func AddLabel(owner model.Entity, text string) (*Label, error) {
	l := &Label{Text: text, Anchor: anchorOf(owner)}
	return attach(owner, l)
}

// AddColor attaches an RGBA colour.
func AddColor(owner model.Entity, rgba [4]uint8) (*Color, error) {
	return attach(owner, &Color{RGBA: rgba})
}

// AddDebugMark attaches a debug mark.
func AddDebugMark(owner model.Entity, note string) (*DebugMark, error) {
	return attach(owner, &DebugMark{Note: note})
}

func attach[T model.Attribute](owner model.Entity, a T) (T, error) {
	var zero T
	st := owner.Core().Stream()
	if st == nil {
		return zero, fmt.Errorf("attach %s: owner not created", a.Kind().Name())
	}
	if _, err := model.Create(st, a); err != nil {
		return zero, err
	}
	if err := model.Attach(owner, a); err != nil {
		return zero, err
	}
	return a, nil
}

func anchorOf(e model.Entity) [2]float64 {
	switch v := e.(type) {
	case *Point:
		return [2]float64{v.X, v.Y}
	case *Segment:
		if v.A != nil {
			return [2]float64{v.A.X, v.A.Y}
		}
	case *Loop:
		if len(v.segs) > 0 && v.segs[0].A != nil {
			return [2]float64{v.segs[0].A.X, v.segs[0].A.Y}
		}
	}
	return [2]float64{}
}

// SplitSegment cuts segment i of l at parameter t in (0, 1). The original
// keeps the first part; the new segment is inserted after it and receives
// the original's attributes according to their split behavior.
func (l *Loop) SplitSegment(i int, t float64) (*Segment, error) {
	if i < 0 || i >= len(l.segs) {
		return nil, fmt.Errorf("split %d: %w", i, ErrSegmentIndex)
	}
	if t <= 0 || t >= 1 {
		return nil, fmt.Errorf("split parameter %g outside (0, 1)", t)
	}
	st := l.Stream()
	seg := l.segs[i]
	mid, err := AddPoint(st, seg.A.X+t*(seg.B.X-seg.A.X), seg.A.Y+t*(seg.B.Y-seg.A.Y))
	if err != nil {
		return nil, err
	}
	tail, err := Connect(st, mid, seg.B)
	if err != nil {
		return nil, err
	}
	if err := seg.Backup(); err != nil {
		return nil, err
	}
	seg.B = mid
	if err := l.Backup(); err != nil {
		return nil, err
	}
	l.segs = append(l.segs[:i+1], append([]*Segment{tail}, l.segs[i+1:]...)...)
	if err := model.Split(seg, tail); err != nil {
		return nil, err
	}
	return tail, nil
}

// MergeSegments joins segment i+1 into segment i and loses the absorbed
// segment together with the point they shared.
func (l *Loop) MergeSegments(i int) error {
	if i < 0 || i+1 >= len(l.segs) {
		return fmt.Errorf("merge %d: %w", i, ErrSegmentIndex)
	}
	keep, gone := l.segs[i], l.segs[i+1]
	if err := model.Merge(gone, keep, true); err != nil {
		return err
	}
	joint := keep.B
	if err := keep.Backup(); err != nil {
		return err
	}
	keep.B = gone.B
	if err := l.Backup(); err != nil {
		return err
	}
	l.segs = append(l.segs[:i+1], l.segs[i+2:]...)
	if err := model.Lose(gone); err != nil {
		return err
	}
	if joint != nil && joint != keep.A && joint != keep.B {
		return model.Lose(joint)
	}
	return nil
}

// Translate moves roots and everything they reach by (dx, dy).
func Translate(roots []model.Entity, dx, dy float64) error {
	return model.TransformAll(roots, model.Translation(dx, dy, 0))
}

// Rotate turns roots about the origin by angle radians.
func Rotate(roots []model.Entity, angle float64) error {
	return model.TransformAll(roots, model.RotationZ(angle))
}

// CopyLoop deep-copies l into s, including its segments, points and a clone
// of its profile.
func CopyLoop(s *model.Stream, l *Loop) (*Loop, error) {
	return model.CopyOne(s, l, model.CopyDeep)
}

// DeleteLoop loses l together with its segments and points.
func DeleteLoop(l *Loop) error {
	return model.LoseTree(l)
}
