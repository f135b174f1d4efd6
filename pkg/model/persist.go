package model

import "solidcore/pkg/model/sharedref"

// FieldWriter receives an entity's persistent fields in order. Entity pointers
// are written as ordinals assigned by the archive; -1 encodes nil.
type FieldWriter interface {
	// Ref returns the ordinal of e in the archive.
	Ref(e Entity) int
	// Shared writes obj once per archive and returns its ordinal; later
	// holders of the same object get the same ordinal.
	Shared(obj sharedref.Counted, fields any) (int, error)
	// Put appends a scalar or struct field.
	Put(v any) error
}

// FieldReader returns fields in the order they were written. Ref resolves an
// ordinal against placeholders allocated before any fields are read, so
// forward references work.
type FieldReader interface {
	Ref(ordinal int) (Entity, error)
	// Shared returns the object stored at ordinal, building it with build on
	// first request. build decodes the stored fields into its argument.
	Shared(ordinal int, build func(decode func(v any) error) (sharedref.Counted, error)) (sharedref.Counted, error)
	Get(v any) error
}

// Persistent is implemented by entities that can be saved to an archive.
// Attribute owner links, list order, behavior overrides, tags and use counts
// are saved by the archive itself.
type Persistent interface {
	SaveFields(w FieldWriter) error
	LoadFields(r FieldReader) error
}

// RefAs reads an entity pointer of static type T.
func RefAs[T Entity](r FieldReader, ordinal int) (T, error) {
	var zero T
	e, err := r.Ref(ordinal)
	if err != nil || e == nil {
		return zero, err
	}
	t, ok := e.(T)
	if !ok {
		return zero, contractErr("load", e, ErrUnresolvedPointer)
	}
	return t, nil
}

// ArchiveState exposes the base state the archive writes for every entity.
type ArchiveState struct {
	Kind     string
	Tag      int64
	UseCount int
	Lost     bool
	// Attributes lists attribute list members in order.
	Attributes []Attribute
	// Owner is set for attached attributes.
	Owner    Entity
	Behavior Behavior
}

// StateOf reports the base state of e for archiving.
func StateOf(e Entity) ArchiveState {
	b := e.Core()
	st := ArchiveState{
		Kind:       e.Kind().Name(),
		UseCount:   b.useCount,
		Lost:       b.IsLost(),
		Attributes: b.Attributes(),
	}
	if b.HasTag() {
		st.Tag = b.hdr.tag
	}
	if g, ok := e.(*GenericAttrib); ok {
		st.Kind = g.kindName
	}
	if a, ok := e.(Attribute); ok {
		st.Owner = a.attrib().owner
		st.Behavior = a.attrib().behavior
	}
	return st
}

// RestoreState applies archived base state to a freshly created entity. Attribute
// links are appended in the order given; the entity's stream must be
// recording or have logging suspended.
func RestoreState(e Entity, tag int64, useCount int, behavior Behavior, attrs []Attribute) error {
	b := e.Core()
	if b.hdr == nil {
		return contractErr("restore", e, ErrNotCreated)
	}
	if err := b.Backup(); err != nil {
		return err
	}
	if tag > 0 {
		b.hdr.stream.doc.assignTag(b.hdr, tag)
	}
	b.useCount = useCount
	if a, ok := e.(Attribute); ok {
		a.attrib().behavior = behavior
	}
	for _, a := range attrs {
		if err := appendAttrib(e, a); err != nil {
			return err
		}
	}
	return nil
}
