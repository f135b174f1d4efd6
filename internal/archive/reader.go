package archive

import (
	"encoding/json"
	"errors"
	"fmt"

	"solidcore/pkg/model"
	"solidcore/pkg/model/sharedref"
)

// Read recreates the entities of a on stream s and returns them in ordinal
// order. s must have an open board unless its logging is off. Records of
// unregistered attribute kinds come back as generic attributes; an
// unregistered entity kind fails the whole read.
func Read(a *Archive, s *model.Stream, c Codec) ([]model.Entity, error) {
	if a.Encoding != "" && a.Encoding != c.Name() {
		return nil, fmt.Errorf("archive %s is encoded as %s, not %s", a.Name, a.Encoding, c.Name())
	}
	reg := s.Document().Registry()
	entities := make([]model.Entity, len(a.Records))

	for i, rec := range a.Records {
		if rec.Ordinal != i {
			return nil, &FormatError{Ordinal: rec.Ordinal, Kind: rec.Kind, Err: fmt.Errorf("out of order at position %d", i)}
		}
		e, err := placeholder(reg, rec, c)
		if err != nil {
			return nil, &FormatError{Ordinal: i, Kind: rec.Kind, Err: err}
		}
		if _, err := model.Create(s, e); err != nil {
			return nil, &FormatError{Ordinal: i, Kind: rec.Kind, Err: err}
		}
		entities[i] = e
	}

	r := &recordReader{codec: c, archive: a, entities: entities, shared: map[int]sharedref.Counted{}}
	for i, e := range entities {
		p, ok := e.(model.Persistent)
		if !ok {
			continue
		}
		r.fields = a.Records[i].Fields
		if err := p.LoadFields(r); err != nil {
			return nil, &FormatError{Ordinal: i, Kind: a.Records[i].Kind, Err: err}
		}
	}

	for i, e := range entities {
		rec := a.Records[i]
		attrs := make([]model.Attribute, 0, len(rec.Attributes))
		for _, o := range rec.Attributes {
			attr, ok := r.entity(o).(model.Attribute)
			if !ok {
				return nil, &FormatError{Ordinal: i, Kind: rec.Kind, Err: fmt.Errorf("%w: attribute ordinal %d", model.ErrUnresolvedPointer, o)}
			}
			attrs = append(attrs, attr)
		}
		behavior, err := model.BehaviorFromMap(rec.Behavior)
		if err != nil {
			return nil, &FormatError{Ordinal: i, Kind: rec.Kind, Err: err}
		}
		if err := model.RestoreState(e, rec.Tag, rec.UseCount, behavior, attrs); err != nil {
			return nil, &FormatError{Ordinal: i, Kind: rec.Kind, Err: err}
		}
	}
	return entities, nil
}

func placeholder(reg *model.Registry, rec Record, c Codec) (model.Entity, error) {
	e, err := reg.New(rec.Kind)
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, model.ErrUnknownKind) || !rec.Attribute {
		return nil, err
	}
	declared, err := model.BehaviorFromMap(rec.Declared)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(genericPayload{Encoding: c.Name(), Fields: rec.Fields})
	if err != nil {
		return nil, err
	}
	return model.NewGenericAttrib(rec.Kind, declared, raw), nil
}

type recordReader struct {
	codec    Codec
	archive  *Archive
	entities []model.Entity
	shared   map[int]sharedref.Counted
	fields   [][]byte
}

func (r *recordReader) entity(ordinal int) model.Entity {
	if ordinal < 0 || ordinal >= len(r.entities) {
		return nil
	}
	return r.entities[ordinal]
}

func (r *recordReader) Ref(ordinal int) (model.Entity, error) {
	if ordinal == -1 {
		return nil, nil
	}
	e := r.entity(ordinal)
	if e == nil {
		return nil, fmt.Errorf("%w: ordinal %d", model.ErrUnresolvedPointer, ordinal)
	}
	return e, nil
}

func (r *recordReader) Shared(ordinal int, build func(decode func(v any) error) (sharedref.Counted, error)) (sharedref.Counted, error) {
	if ordinal == -1 {
		return nil, nil
	}
	if obj, ok := r.shared[ordinal]; ok {
		return obj, nil
	}
	if ordinal < 0 || ordinal >= len(r.archive.Shared) {
		return nil, fmt.Errorf("shared ordinal %d out of range", ordinal)
	}
	payload := r.archive.Shared[ordinal].Payload
	obj, err := build(func(v any) error { return r.codec.Unmarshal(payload, v) })
	if err != nil {
		return nil, err
	}
	r.shared[ordinal] = obj
	return obj, nil
}

func (r *recordReader) Get(v any) error {
	if len(r.fields) == 0 {
		return errors.New("no more fields")
	}
	data := r.fields[0]
	r.fields = r.fields[1:]
	return r.codec.Unmarshal(data, v)
}
