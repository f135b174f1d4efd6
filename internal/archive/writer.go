package archive

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"solidcore/pkg/model"
	"solidcore/pkg/model/sharedref"
)

// genericPayload is the raw form kept by a generic attribute so it can be
// written back unchanged.
type genericPayload struct {
	Encoding string   `json:"encoding"`
	Fields   [][]byte `json:"fields,omitempty"`
}

// Write captures every live entity of s. Ordinals follow arena slot order.
func Write(s *model.Stream, name string, c Codec) (*Archive, error) {
	entities := s.Entities()
	ordinals := make(map[model.Entity]int, len(entities))
	for i, e := range entities {
		ordinals[e] = i
	}
	a := &Archive{
		ID:       uuid.NewString(),
		Name:     name,
		Version:  FormatVersion,
		Encoding: c.Name(),
		Stream:   s.Name(),
		SavedAt:  time.Now().UTC(),
		Records:  make([]Record, 0, len(entities)),
	}
	w := &recordWriter{codec: c, ordinals: ordinals, archive: a, shared: map[sharedref.Counted]int{}}
	for i, e := range entities {
		rec, err := w.record(i, e)
		if err != nil {
			return nil, err
		}
		a.Records = append(a.Records, rec)
	}
	return a, nil
}

type recordWriter struct {
	codec    Codec
	ordinals map[model.Entity]int
	archive  *Archive
	shared   map[sharedref.Counted]int
	rec      *Record
	err      error
}

func (w *recordWriter) record(ordinal int, e model.Entity) (Record, error) {
	st := model.StateOf(e)
	rec := Record{
		Ordinal:   ordinal,
		Kind:      st.Kind,
		Tag:       st.Tag,
		UseCount:  st.UseCount,
		Attribute: e.Kind().IsAttribute(),
		Owner:     -1,
	}
	fail := func(err error) (Record, error) {
		return Record{}, &FormatError{Ordinal: ordinal, Kind: st.Kind, Err: err}
	}
	if st.Owner != nil {
		o, ok := w.ordinals[st.Owner]
		if !ok {
			return fail(model.ErrUnresolvedPointer)
		}
		rec.Owner = o
	}
	for _, attr := range st.Attributes {
		o, ok := w.ordinals[attr]
		if !ok {
			return fail(model.ErrUnresolvedPointer)
		}
		rec.Attributes = append(rec.Attributes, o)
	}
	if rec.Attribute && !st.Behavior.IsZero() {
		rec.Behavior = st.Behavior.Map()
	}

	switch v := e.(type) {
	case *model.GenericAttrib:
		rec.Declared = v.Declared().Map()
		var raw genericPayload
		if len(v.Raw()) > 0 {
			if err := json.Unmarshal(v.Raw(), &raw); err != nil {
				return fail(err)
			}
		}
		if len(raw.Fields) > 0 && raw.Encoding != w.codec.Name() {
			return fail(fmt.Errorf("fields encoded as %s cannot be written as %s", raw.Encoding, w.codec.Name()))
		}
		rec.Fields = raw.Fields
		return rec, nil
	case model.Persistent:
		if rec.Attribute {
			rec.Declared = e.Kind().Defaults().Map()
		}
		w.rec, w.err = &rec, nil
		err := v.SaveFields(w)
		w.rec = nil
		if err == nil {
			err = w.err
		}
		if err != nil {
			return fail(err)
		}
	default:
		if rec.Attribute {
			rec.Declared = e.Kind().Defaults().Map()
		}
	}
	return rec, nil
}

func (w *recordWriter) Ref(e model.Entity) int {
	if e == nil || isNilEntity(e) {
		return -1
	}
	o, ok := w.ordinals[e]
	if !ok {
		if w.err == nil {
			kind, _ := model.Identity(e)
			w.err = fmt.Errorf("%w: %s %s is not in the archive", model.ErrUnresolvedPointer, kind, e.Core().Handle())
		}
		return -1
	}
	return o
}

func (w *recordWriter) Shared(obj sharedref.Counted, fields any) (int, error) {
	if obj == nil {
		return -1, nil
	}
	if o, ok := w.shared[obj]; ok {
		return o, nil
	}
	payload, err := w.codec.Marshal(fields)
	if err != nil {
		return -1, err
	}
	o := len(w.archive.Shared)
	w.archive.Shared = append(w.archive.Shared, SharedRecord{Ordinal: o, Payload: payload})
	w.shared[obj] = o
	return o, nil
}

func (w *recordWriter) Put(v any) error {
	data, err := w.codec.Marshal(v)
	if err != nil {
		return err
	}
	w.rec.Fields = append(w.rec.Fields, data)
	return nil
}

func isNilEntity(e model.Entity) bool {
	_, level := model.Identity(e)
	return level < 0
}
