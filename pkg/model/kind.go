package model

import (
	"fmt"
	"sort"
	"strings"
)

// Kind is the runtime identity of an entity type: a stable name plus its
// derivation level below EntityKind. Kinds are immutable once defined.
type Kind struct {
	name       string
	parent     *Kind
	level      int
	useCounted bool
	defaults   Behavior
}

// KindOption customises a kind at definition time.
type KindOption func(*Kind)

// UseCounted marks entities of the kind as shared by reference: plain copies
// share them and dropping the last use loses them.
func UseCounted() KindOption {
	return func(k *Kind) { k.useCounted = true }
}

// WithDefaults declares the default migration actions for an attribute kind.
func WithDefaults(b Behavior) KindOption {
	return func(k *Kind) { k.defaults = b }
}

var (
	// EntityKind is the root of every kind hierarchy.
	EntityKind = &Kind{name: "entity"}
	// AttribKind is the root of all attribute kinds.
	AttribKind = DefineKind("attrib", EntityKind)
)

// DefineKind declares a kind derived from parent.
func DefineKind(name string, parent *Kind, opts ...KindOption) *Kind {
	if parent == nil {
		parent = EntityKind
	}
	k := &Kind{name: name, parent: parent, level: parent.level + 1, useCounted: parent.useCounted}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Name returns the stable type tag.
func (k *Kind) Name() string { return k.name }

// Level returns the derivation depth; EntityKind is level zero.
func (k *Kind) Level() int { return k.level }

// Parent returns the kind this one derives from.
func (k *Kind) Parent() *Kind { return k.parent }

// UseCounted reports whether entities of this kind are shared by use count.
func (k *Kind) UseCounted() bool { return k.useCounted }

// AncestorAt returns the ancestor of k at the given derivation level.
func (k *Kind) AncestorAt(level int) *Kind {
	if k == nil || level < 0 || level > k.level {
		return nil
	}
	a := k
	for a.level > level {
		a = a.parent
	}
	return a
}

// IsA reports whether k is other or derives from it.
func (k *Kind) IsA(other *Kind) bool {
	if k == nil || other == nil {
		return false
	}
	return k.AncestorAt(other.level) == other
}

// IsAttribute reports whether k derives from AttribKind.
func (k *Kind) IsAttribute() bool { return k.IsA(AttribKind) }

// Defaults returns the declared migration defaults, inheriting unset actions
// from ancestor kinds.
func (k *Kind) Defaults() Behavior {
	b := Behavior{}
	for a := k; a != nil; a = a.parent {
		b = b.Fill(a.defaults)
	}
	return b
}

// String renders the derivation path, e.g. "entity/attrib/label".
func (k *Kind) String() string {
	if k == nil {
		return "<nil>"
	}
	parts := make([]string, k.level+1)
	for a := k; a != nil; a = a.parent {
		parts[a.level] = a.name
	}
	return strings.Join(parts, "/")
}

// IsA reports whether e is of kind k or a kind derived from it.
func IsA(e Entity, k *Kind) bool {
	if isNil(e) {
		return false
	}
	return e.Kind().IsA(k)
}

// Factory allocates an empty, uncreated entity of one kind.
type Factory func() Entity

// Registry maps kind names to kinds and factories for one document, together
// with the document's attribute policy overrides.
type Registry struct {
	kinds     map[string]*Kind
	factories map[string]Factory
	overrides map[string]Behavior
}

// NewRegistry returns a registry that already knows the generic attribute kind.
func NewRegistry() *Registry {
	r := &Registry{
		kinds:     make(map[string]*Kind),
		factories: make(map[string]Factory),
		overrides: make(map[string]Behavior),
	}
	r.kinds[GenericAttribKind.name] = GenericAttribKind
	return r
}

// Register adds a kind with the factory used when restoring archives.
func (r *Registry) Register(k *Kind, f Factory) error {
	if k == nil {
		return ErrNilKind
	}
	if prev, ok := r.kinds[k.name]; ok && prev != k {
		return fmt.Errorf("%w: %s", ErrDuplicateKind, k.name)
	}
	for a := k.parent; a != nil && a != EntityKind; a = a.parent {
		if _, ok := r.kinds[a.name]; !ok {
			r.kinds[a.name] = a
		}
	}
	r.kinds[k.name] = k
	if f != nil {
		r.factories[k.name] = f
	}
	return nil
}

// Kind returns the registered kind named name.
func (r *Registry) Kind(name string) (*Kind, bool) {
	k, ok := r.kinds[name]
	return k, ok
}

// New allocates an uncreated entity of the named kind.
func (r *Registry) New(name string) (Entity, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, name)
	}
	return f(), nil
}

// Kinds returns every registered kind ordered by name.
func (r *Registry) Kinds() []*Kind {
	out := make([]*Kind, 0, len(r.kinds))
	for _, k := range r.kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// SetOverrides replaces the policy overrides for an attribute kind name. Set
// actions take precedence over the kind's declared defaults.
func (r *Registry) SetOverrides(kind string, b Behavior) {
	if b.IsZero() {
		delete(r.overrides, kind)
		return
	}
	r.overrides[kind] = b
}

// Overrides returns the policy overrides for a kind name.
func (r *Registry) Overrides(kind string) (Behavior, bool) {
	b, ok := r.overrides[kind]
	return b, ok
}

// Effective returns the action every operation resolves to for attributes of
// kind k that carry no per-instance override.
func (r *Registry) Effective(k *Kind) Behavior {
	var b Behavior
	for _, op := range Operations() {
		b = b.With(op, r.resolve(k, op))
	}
	return b
}

// resolve walks the kind chain, consulting overrides before declared defaults
// at every level.
func (r *Registry) resolve(k *Kind, op Operation) Action {
	for a := k; a != nil; a = a.parent {
		if r != nil {
			if b, ok := r.overrides[a.name]; ok {
				if act := b.Get(op); act != ActionUnset {
					return act
				}
			}
		}
		if act := a.defaults.Get(op); act != ActionUnset {
			return act
		}
	}
	return builtinDefaults.Get(op)
}
