package model

import (
	"fmt"
	"sort"
)

// Handle is a generation-checked index into a document's entity arena. The zero
// Handle never resolves.
type Handle struct {
	index uint32
	gen   uint32
}

// Index returns the arena slot.
func (h Handle) Index() uint32 { return h.index }

// Generation returns the slot generation the handle was issued for.
func (h Handle) Generation() uint32 { return h.gen }

// IsZero reports whether h was never issued.
func (h Handle) IsZero() bool { return h.gen == 0 }

func (h Handle) String() string {
	if h.IsZero() {
		return "#-"
	}
	return fmt.Sprintf("#%d.%d", h.index, h.gen)
}

type slot struct {
	hdr *header
	gen uint32
}

// DocumentOption configures a Document.
type DocumentOption func(*Document)

// WithRegistry installs the kind registry used for archive restore and policy
// overrides.
func WithRegistry(r *Registry) DocumentOption {
	return func(d *Document) {
		if r != nil {
			d.registry = r
		}
	}
}

// WithMaxStates bounds every stream's history; zero keeps all states.
func WithMaxStates(n int) DocumentOption {
	return func(d *Document) {
		if n >= 0 {
			d.maxStates = n
		}
	}
}

// Document owns an entity arena, its history streams and its kind registry. A
// document has a single writer; it performs no locking.
type Document struct {
	registry  *Registry
	streams   []*Stream
	slots     []slot
	free      []uint32
	live      int
	nextTag   int64
	tags      map[int64]*header
	maxStates int
}

// NewDocument returns an empty document with a default stream.
func NewDocument(opts ...DocumentOption) *Document {
	d := &Document{
		registry: NewRegistry(),
		tags:     make(map[int64]*header),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.NewStream("default")
	return d
}

// Registry returns the document's kind registry.
func (d *Document) Registry() *Registry { return d.registry }

// Stream returns the default history stream.
func (d *Document) Stream() *Stream { return d.streams[0] }

// NewStream adds an independent history stream.
func (d *Document) NewStream(name string) *Stream {
	s := &Stream{doc: d, name: name, logging: true, maxStates: d.maxStates, nextID: 1}
	d.streams = append(d.streams, s)
	return s
}

// Streams returns every stream in creation order.
func (d *Document) Streams() []*Stream {
	out := make([]*Stream, len(d.streams))
	copy(out, d.streams)
	return out
}

// StreamByName returns the stream called name.
func (d *Document) StreamByName(name string) (*Stream, bool) {
	for _, s := range d.streams {
		if s.name == name {
			return s, true
		}
	}
	return nil, false
}

// Lookup resolves a handle. Handles to freed slots do not resolve.
func (d *Document) Lookup(h Handle) (Entity, bool) {
	if h.IsZero() || int(h.index) >= len(d.slots) {
		return nil, false
	}
	s := d.slots[h.index]
	if s.hdr == nil || s.gen != h.gen {
		return nil, false
	}
	return s.hdr.self, true
}

// FindByTag returns the allocated entity carrying tag.
func (d *Document) FindByTag(tag int64) (Entity, bool) {
	h, ok := d.tags[tag]
	if !ok {
		return nil, false
	}
	return h.self, true
}

// Allocated reports the number of occupied arena slots, lost entities awaiting
// deallocation included.
func (d *Document) Allocated() int { return d.live }

// Entities returns every allocated entity that is not lost, in slot order.
func (d *Document) Entities() []Entity {
	out := make([]Entity, 0, d.live)
	for _, s := range d.slots {
		if s.hdr != nil && !s.hdr.lost {
			out = append(out, s.hdr.self)
		}
	}
	return out
}

func (d *Document) alloc(h *header) {
	var idx uint32
	if n := len(d.free); n > 0 {
		idx = d.free[n-1]
		d.free = d.free[:n-1]
	} else {
		idx = uint32(len(d.slots))
		d.slots = append(d.slots, slot{})
	}
	s := &d.slots[idx]
	s.gen++
	s.hdr = h
	h.handle = Handle{index: idx, gen: s.gen}
	d.live++
}

// maybeFree completes a deferred deallocation once nothing references h.
func (d *Document) maybeFree(h *header) {
	if !h.lost || h.freed || h.bulletinRefs > 0 {
		return
	}
	h.freed = true
	s := &d.slots[h.handle.index]
	s.hdr = nil
	s.gen++
	d.free = append(d.free, h.handle.index)
	d.live--
	if h.tag != 0 {
		delete(d.tags, h.tag)
	}
	_ = releaseAll(sharedRefs(h.self))
}

// assignTag gives h the requested tag when it is free, otherwise the next
// unused one.
func (d *Document) assignTag(h *header, want int64) {
	if h.tag != 0 {
		delete(d.tags, h.tag)
	}
	if want > 0 {
		if _, taken := d.tags[want]; !taken {
			h.tag = want
			d.tags[want] = h
			if want > d.nextTag {
				d.nextTag = want
			}
			return
		}
	}
	d.nextTag++
	h.tag = d.nextTag
	d.tags[h.tag] = h
}

// SetTag assigns a specific tag to e, as archive restore does. A tag already in
// use is replaced by a fresh one; the assigned tag is returned.
func (d *Document) SetTag(e Entity, tag int64) int64 {
	h := e.Core().hdr
	if h == nil || h.stream.doc != d {
		return 0
	}
	d.assignTag(h, tag)
	return h.tag
}

// Tags returns every assigned tag in ascending order.
func (d *Document) Tags() []int64 {
	out := make([]int64, 0, len(d.tags))
	for t := range d.tags {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Create registers a freshly constructed entity with stream s: it is given an
// arena slot and, while a board is recording, a creation bulletin.
func Create[T Entity](s *Stream, e T) (T, error) {
	if err := s.create(e); err != nil {
		var zero T
		return zero, err
	}
	return e, nil
}
