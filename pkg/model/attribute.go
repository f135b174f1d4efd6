package model

// Attribute is an entity that decorates another entity. Concrete attributes
// embed AttribBase, which seals the interface.
type Attribute interface {
	Entity
	attrib() *AttribBase
}

// Deletable is implemented by attributes that must survive their owner being
// lost. Returning false detaches the attribute instead of losing it.
type Deletable interface {
	Deletable() bool
}

// Duplicatable is implemented by attributes that refuse to be cloned.
type Duplicatable interface {
	Duplicatable() bool
}

// Copyable narrows duplication for a single attribute beyond Duplicatable.
type Copyable interface {
	Copyable() bool
}

// AttribBase is embedded by every attribute. It holds the owner link, the list
// neighbours and the per-instance behavior overrides.
type AttribBase struct {
	Base
	owner    Entity
	next     Attribute
	prev     Attribute
	behavior Behavior
}

func (a *AttribBase) attrib() *AttribBase { return a }

// Owner returns the owning entity, or nil when detached.
func (a *AttribBase) Owner() Entity { return a.owner }

// Next returns the following attribute on the owner's list.
func (a *AttribBase) Next() Attribute { return a.next }

// Prev returns the preceding attribute on the owner's list.
func (a *AttribBase) Prev() Attribute { return a.prev }

// Behavior returns the per-instance overrides.
func (a *AttribBase) Behavior() Behavior { return a.behavior }

// SetBehavior replaces every per-instance override.
func (a *AttribBase) SetBehavior(b Behavior) error {
	if a.hdr != nil {
		if err := a.Backup(); err != nil {
			return err
		}
	}
	a.behavior = b
	return nil
}

// SetAction overrides the action for one operation on this instance.
func (a *AttribBase) SetAction(op Operation, act Action) error {
	return a.SetBehavior(a.behavior.With(op, act))
}

// Action resolves the effective action for op: instance override, then the
// document's policy for the kind, then the kind default, then the built-in
// default.
func (a *AttribBase) Action(op Operation) Action {
	if self, ok := a.self().(Attribute); ok {
		return ResolveAction(self, op)
	}
	if act := a.behavior.Get(op); act != ActionUnset {
		return act
	}
	return builtinDefaults.Get(op)
}

// ResolveAction returns the effective action of attr for op: the instance
// override, then the policy override for its kind, then the kind default. A
// generic attribute looks up policy under its original kind name and uses the
// behavior declared in the archive as its kind default.
func ResolveAction(attr Attribute, op Operation) Action {
	ab := attr.attrib()
	if act := ab.behavior.Get(op); act != ActionUnset {
		return act
	}
	var reg *Registry
	if ab.hdr != nil {
		reg = ab.hdr.stream.doc.registry
	}
	if g, ok := attr.(*GenericAttrib); ok {
		if reg != nil {
			if b, ok := reg.Overrides(g.kindName); ok {
				if act := b.Get(op); act != ActionUnset {
					return act
				}
			}
		}
		if act := g.declared.Get(op); act != ActionUnset {
			return act
		}
	}
	return reg.resolve(attr.Kind(), op)
}

// Attach prepends attr to owner's attribute list, backing up owner, attr and
// the previous head.
func Attach(owner Entity, attr Attribute) error {
	if isNil(owner) || isNil(attr) {
		return contractErr("attach", nil, ErrNilEntity)
	}
	ob, ab := owner.Core(), attr.attrib()
	if err := checkLinkable("attach", owner, attr); err != nil {
		return err
	}
	head := ob.attribHead
	if err := ob.Backup(); err != nil {
		return err
	}
	if err := ab.Backup(); err != nil {
		return err
	}
	if head != nil {
		if err := head.Core().Backup(); err != nil {
			return err
		}
		head.attrib().prev = attr
	}
	ab.owner = owner
	ab.prev = nil
	ab.next = head
	ob.attribHead = attr
	return nil
}

// appendAttrib links attr at the tail of owner's list. Used when rebuilding
// lists of freshly created clones.
func appendAttrib(owner Entity, attr Attribute) error {
	if err := checkLinkable("attach", owner, attr); err != nil {
		return err
	}
	ob, ab := owner.Core(), attr.attrib()
	if err := ob.Backup(); err != nil {
		return err
	}
	if err := ab.Backup(); err != nil {
		return err
	}
	var tail Attribute
	for t := ob.attribHead; t != nil; t = t.attrib().next {
		tail = t
	}
	if tail == nil {
		ob.attribHead = attr
	} else {
		if err := tail.Core().Backup(); err != nil {
			return err
		}
		tail.attrib().next = attr
	}
	ab.owner = owner
	ab.prev = tail
	ab.next = nil
	return nil
}

func checkLinkable(op string, owner Entity, attr Attribute) error {
	ob, ab := owner.Core(), attr.attrib()
	switch {
	case ob.hdr == nil:
		return contractErr(op, owner, ErrNotCreated)
	case ab.hdr == nil:
		return contractErr(op, attr, ErrNotCreated)
	case Entity(attr) == owner:
		return contractErr(op, attr, ErrSelfAttach)
	case ob.hdr.lost:
		return contractErr(op, owner, ErrLost)
	case ab.hdr.lost:
		return contractErr(op, attr, ErrLost)
	case ab.owner != nil:
		return contractErr(op, attr, ErrAttached)
	case ob.hdr.stream != ab.hdr.stream:
		return contractErr(op, attr, ErrStreamMismatch)
	}
	return nil
}

// Unhook removes the attribute from its owner's list. The attribute must have
// been backed up in the open board; neighbours and owner are backed up here.
func (a *AttribBase) Unhook() error {
	self := a.self()
	if a.hdr == nil {
		return contractErr("unhook", nil, ErrNotCreated)
	}
	if a.owner == nil {
		return contractErr("unhook", self, ErrNotAttached)
	}
	if err := a.RequireBackup(); err != nil {
		return err
	}
	if err := a.owner.Core().Backup(); err != nil {
		return err
	}
	if a.prev != nil {
		if err := a.prev.Core().Backup(); err != nil {
			return err
		}
	}
	if a.next != nil {
		if err := a.next.Core().Backup(); err != nil {
			return err
		}
	}
	if a.prev != nil {
		a.prev.attrib().next = a.next
	} else {
		a.owner.Core().attribHead = a.next
	}
	if a.next != nil {
		a.next.attrib().prev = a.prev
	}
	a.owner, a.next, a.prev = nil, nil, nil
	return nil
}

// Detach backs up the attribute and unhooks it.
func Detach(attr Attribute) error {
	if err := attr.Core().Backup(); err != nil {
		return err
	}
	return attr.attrib().Unhook()
}

// OwnerOf returns attr's owner.
func OwnerOf(attr Attribute) Entity { return attr.attrib().owner }

func deletable(a Attribute) bool {
	if d, ok := a.(Deletable); ok {
		return d.Deletable()
	}
	return true
}

func duplicatable(a Attribute) bool {
	if d, ok := a.(Duplicatable); ok {
		return d.Duplicatable()
	}
	return true
}

func copyable(a Attribute) bool {
	if c, ok := a.(Copyable); ok {
		return c.Copyable()
	}
	return duplicatable(a)
}

// DuplicateAttribute clones attr, together with any entities only it points to,
// and attaches the clone to newOwner. It returns nil when attr is not
// copyable.
func DuplicateAttribute(attr Attribute, newOwner Entity) (Attribute, error) {
	if isNil(attr) || isNil(newOwner) {
		return nil, contractErr("duplicate attribute", nil, ErrNilEntity)
	}
	if !copyable(attr) {
		return nil, nil
	}
	ob := newOwner.Core()
	if ob.hdr == nil {
		return nil, contractErr("duplicate attribute", newOwner, ErrNotCreated)
	}
	sess, err := duplicate(ob.hdr.stream, []Entity{attr}, ScanDownOnly, scanOptions{keepExternal: true})
	if err != nil {
		return nil, err
	}
	clone := sess.clones[0].(Attribute)
	if err := Attach(newOwner, clone); err != nil {
		return nil, err
	}
	return clone, nil
}

// GenericAttribKind identifies attributes restored from an archive whose kind
// is not registered.
var GenericAttribKind = DefineKind("generic_attrib", AttribKind)

// GenericAttrib stands in for an attribute of unknown kind. It keeps the raw
// archived fields and the declared actions so it still migrates and saves.
type GenericAttrib struct {
	AttribBase
	kindName string
	declared Behavior
	raw      []byte
}

// NewGenericAttrib builds a placeholder for kind with its archived payload.
func NewGenericAttrib(kind string, declared Behavior, raw []byte) *GenericAttrib {
	return &GenericAttrib{kindName: kind, declared: declared, raw: append([]byte(nil), raw...)}
}

func (g *GenericAttrib) Kind() *Kind { return GenericAttribKind }

// OriginalKind returns the archived kind name.
func (g *GenericAttrib) OriginalKind() string { return g.kindName }

// Declared returns the actions archived for the original kind.
func (g *GenericAttrib) Declared() Behavior { return g.declared }

// Raw returns the archived field payload.
func (g *GenericAttrib) Raw() []byte { return append([]byte(nil), g.raw...) }

func (g *GenericAttrib) Snapshot() Entity {
	cp := *g
	cp.raw = append([]byte(nil), g.raw...)
	return &cp
}

func (g *GenericAttrib) Restore(from Entity) {
	src := from.(*GenericAttrib)
	*g = *src
	g.raw = append([]byte(nil), src.raw...)
}
