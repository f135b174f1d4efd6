package core

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"solidcore/pkg/model"
)

var (
	nodeKind = model.DefineKind("core_node", model.EntityKind)
	linkKind = model.DefineKind("core_link", model.EntityKind)
	noteKind = model.DefineKind("core_note", model.AttribKind)
)

type node struct {
	model.Base
	Value int
}

func (n *node) Kind() *model.Kind { return nodeKind }

func (n *node) set(v int) error {
	if err := n.Backup(); err != nil {
		return err
	}
	n.Value = v
	return nil
}

func (n *node) SaveFields(w model.FieldWriter) error { return w.Put(n.Value) }

func (n *node) LoadFields(r model.FieldReader) error { return r.Get(&n.Value) }

type link struct {
	model.Base
	from, to *node
}

func (l *link) Kind() *model.Kind { return linkKind }

func (l *link) CopyScan(s *model.Scanner) {
	s.AddRef(l.from)
	s.AddRef(l.to)
}

func (l *link) FixPointers(f *model.Fixer) {
	l.from = model.Ref(f, l.from)
	l.to = model.Ref(f, l.to)
}

func (l *link) SaveFields(w model.FieldWriter) error {
	return w.Put([2]int{w.Ref(l.from), w.Ref(l.to)})
}

func (l *link) LoadFields(r model.FieldReader) error {
	var ends [2]int
	if err := r.Get(&ends); err != nil {
		return err
	}
	var err error
	if l.from, err = model.RefAs[*node](r, ends[0]); err != nil {
		return err
	}
	l.to, err = model.RefAs[*node](r, ends[1])
	return err
}

type note struct {
	model.AttribBase
	Text string
}

func (n *note) Kind() *model.Kind { return noteKind }

func (n *note) SaveFields(w model.FieldWriter) error { return w.Put(n.Text) }

func (n *note) LoadFields(r model.FieldReader) error { return r.Get(&n.Text) }

func newRegistry(t *testing.T) *model.Registry {
	t.Helper()
	r := model.NewRegistry()
	must(t, r.Register(nodeKind, func() model.Entity { return &node{} }))
	must(t, r.Register(linkKind, func() model.Entity { return &link{} }))
	must(t, r.Register(noteKind, func() model.Entity { return &note{} }))
	return r
}

func newDoc(t *testing.T) *model.Document {
	t.Helper()
	return model.NewDocument(model.WithRegistry(newRegistry(t)))
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// buildPair commits two nodes joined by a link, the first carrying a note.
func buildPair(t *testing.T, svc *Service) (*node, *node, *link) {
	t.Helper()
	var a, b *node
	var l *link
	_, err := svc.Run(context.Background(), "build", func(tx *Tx) error {
		var err error
		if a, err = model.Create(tx.Stream(), &node{Value: 1}); err != nil {
			return err
		}
		if b, err = model.Create(tx.Stream(), &node{Value: 2}); err != nil {
			return err
		}
		if l, err = model.Create(tx.Stream(), &link{from: a, to: b}); err != nil {
			return err
		}
		n, err := model.Create(tx.Stream(), &note{Text: "origin"})
		if err != nil {
			return err
		}
		return model.Attach(a, n)
	})
	must(t, err)
	return a, b, l
}

type captureLogger struct {
	mu    sync.Mutex
	calls []string
}

func (c *captureLogger) add(prefix, msg string) {
	c.mu.Lock()
	c.calls = append(c.calls, prefix+msg)
	c.mu.Unlock()
}

func (c *captureLogger) Debug(msg string, _ ...any) { c.add("d:", msg) }
func (c *captureLogger) Info(msg string, _ ...any)  { c.add("i:", msg) }
func (c *captureLogger) Warn(msg string, _ ...any)  { c.add("w:", msg) }
func (c *captureLogger) Error(msg string, _ ...any) { c.add("e:", msg) }

func (c *captureLogger) has(prefix string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		if strings.HasPrefix(call, prefix) {
			return true
		}
	}
	return false
}

type captureAuditRecorder struct {
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.entries = append(c.entries, entry)
}

func (c *captureAuditRecorder) last(t *testing.T) AuditEntry {
	t.Helper()
	if len(c.entries) == 0 {
		t.Fatalf("no audit entries recorded")
	}
	return c.entries[len(c.entries)-1]
}

type metricsCall struct {
	op       string
	success  bool
	duration time.Duration
}

type captureMetricsRecorder struct {
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, duration time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success, duration: duration})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

// stepClock advances by step on every reading.
type stepClock struct {
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}
