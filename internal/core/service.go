// Package core runs modeling operations as transactions over a document
// stream: each operation opens a bulletin board, is checked by the rules
// engine and then commits as one delta state or is discarded.
package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"solidcore/internal/archive"
	"solidcore/internal/blob"
	"solidcore/pkg/model"
	"solidcore/pkg/model/policy"
)

// Service serializes operations on one stream of a document.
type Service struct {
	mu         sync.Mutex
	doc        *model.Document
	stream     *model.Stream
	streamName string
	engine     *RulesEngine
	archives   archive.Store
	blobs      blob.Store
	codec      archive.Codec
	plugins    map[string]PluginMetadata

	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	audit   AuditRecorder
	clock   Clock
}

// Outcome describes a committed operation.
type Outcome struct {
	OperationID string
	// State is the committed delta state; nil when the operation changed
	// nothing.
	State  *model.DeltaState
	Result Result
}

// NewService returns a service over doc. A nil doc gets a fresh document.
func NewService(doc *model.Document, opts ...ServiceOption) *Service {
	if doc == nil {
		doc = model.NewDocument()
	}
	s := &Service{
		doc:     doc,
		engine:  NewDefaultRulesEngine(),
		codec:   archive.JSONCodec{},
		plugins: make(map[string]PluginMetadata),
		logger:  noopLogger{},
		metrics: noopMetrics{},
		tracer:  noopTracer{},
		audit:   noopAudit{},
		clock:   systemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.stream = doc.Stream()
	if s.streamName != "" {
		st, ok := doc.StreamByName(s.streamName)
		if !ok {
			st = doc.NewStream(s.streamName)
		}
		s.stream = st
	}
	return s
}

// Document returns the document the service operates on.
func (s *Service) Document() *model.Document { return s.doc }

// Stream returns the stream operations record on.
func (s *Service) Stream() *model.Stream { return s.stream }

// Engine returns the rules engine.
func (s *Service) Engine() *RulesEngine { return s.engine }

// Run executes fn as one operation. fn mutates entities through the model
// API; its changes commit as a single delta state unless fn fails, panics,
// ctx ends or a rule blocks, in which case everything fn did is discarded
// and an *OperationError is returned. fn must not call back into the
// service; inner operations go through Tx.Nested.
func (s *Service) Run(ctx context.Context, name string, fn func(*Tx) error) (Outcome, error) {
	if fn == nil {
		return Outcome{}, fmt.Errorf("operation %s: nil func", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runLocked(ctx, name, fn)
}

func (s *Service) runLocked(ctx context.Context, name string, fn func(*Tx) error) (Outcome, error) {
	id := uuid.NewString()
	ctx = WithOperationID(ctx, id)
	start := s.clock.Now()
	ctx, span := s.tracer.Start(ctx, name)

	out := Outcome{OperationID: id}
	bulletins, err := s.execute(ctx, name, id, fn, &out)
	if err != nil {
		err = &OperationError{Operation: name, OperationID: id, Err: err}
	}
	span.End(err)
	stateID := 0
	if out.State != nil {
		stateID = out.State.ID()
	}
	s.finish(ctx, name, id, start, stateID, bulletins, err)
	return out, err
}

func (s *Service) execute(ctx context.Context, name, id string, fn func(*Tx) error, out *Outcome) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	board, err := s.stream.Begin(name)
	if err != nil {
		return 0, err
	}
	tx := &Tx{ctx: ctx, id: id, name: name, stream: s.stream, board: board}
	err = call(tx, fn)
	if err == nil {
		err = ctx.Err()
	}
	if err == nil && board.Aborted() {
		err = fmt.Errorf("%w: an inner operation failed", model.ErrBoardAborted)
	}
	if err == nil {
		res, rerr := s.engine.Evaluate(ctx, tx, board.Bulletins())
		out.Result = res
		s.logViolations(name, id, res)
		switch {
		case rerr != nil:
			err = fmt.Errorf("evaluate rules: %w", rerr)
		case res.HasBlocking():
			err = RuleViolationError{Result: res}
		}
	}
	bulletins := board.Len()
	if err != nil {
		return bulletins, errors.Join(err, s.discard(board))
	}
	state, err := s.stream.Commit()
	out.State = state
	return bulletins, err
}

// call runs fn, turning a panic into an error.
func call(tx *Tx, fn func(*Tx) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrOperationPanicked, r)
		}
	}()
	return fn(tx)
}

// discard closes board at every nesting level it still has open, which a
// panic inside Tx.Nested can leave behind.
func (s *Service) discard(board *model.Board) error {
	var errs []error
	for s.stream.Board() == board {
		errs = append(errs, s.stream.Discard())
	}
	return errors.Join(errs...)
}

func (s *Service) logViolations(name, id string, res Result) {
	for _, v := range res.Violations {
		args := []any{"operation", name, "operation_id", id, "rule", v.Rule, "severity", string(v.Severity), "kind", v.Kind, "handle", v.Handle.String()}
		switch v.Severity {
		case SeverityBlock, SeverityWarn:
			s.logger.Warn(v.Message, args...)
		default:
			s.logger.Info(v.Message, args...)
		}
	}
}

// finish emits the log line, metric and audit entry of an operation.
func (s *Service) finish(ctx context.Context, name, id string, start time.Time, stateID, bulletins int, err error) {
	duration := s.clock.Now().Sub(start)
	s.metrics.Observe(ctx, name, err == nil, duration)
	entry := AuditEntry{
		Operation:   name,
		OperationID: id,
		Stream:      s.stream.Name(),
		StateID:     stateID,
		Bulletins:   bulletins,
		Status:      AuditStatusSuccess,
		Duration:    duration,
		Timestamp:   s.clock.Now(),
	}
	args := []any{"operation", name, "operation_id", id, "stream", s.stream.Name(), "state", stateID, "bulletins", bulletins, "duration_ms", float64(duration) / float64(time.Millisecond)}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
		s.logger.Error("operation failed", append(args, "error", err)...)
	} else {
		s.logger.Info("operation completed", args...)
	}
	s.audit.Record(ctx, entry)
}

// navigate wraps a history move with the same observability as Run.
func (s *Service) navigate(ctx context.Context, name string, move func() (*model.DeltaState, error)) (*model.DeltaState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	ctx = WithOperationID(ctx, id)
	start := s.clock.Now()
	ctx, span := s.tracer.Start(ctx, name)
	var (
		ds  *model.DeltaState
		err = ctx.Err()
	)
	if err == nil {
		ds, err = move()
	}
	if err != nil {
		err = &OperationError{Operation: name, OperationID: id, Err: err}
	}
	span.End(err)
	stateID, bulletins := 0, 0
	if ds != nil {
		stateID, bulletins = ds.ID(), ds.Len()
	}
	s.finish(ctx, name, id, start, stateID, bulletins, err)
	return ds, err
}

// Undo rolls back the last applied delta state.
func (s *Service) Undo(ctx context.Context) (*model.DeltaState, error) {
	return s.navigate(ctx, "undo", s.stream.Undo)
}

// Redo rolls forward the next delta state.
func (s *Service) Redo(ctx context.Context) (*model.DeltaState, error) {
	return s.navigate(ctx, "redo", s.stream.Redo)
}

// RollTo moves the history cursor so stateID is the last applied state; 0
// rolls back everything.
func (s *Service) RollTo(ctx context.Context, stateID int) (*model.DeltaState, error) {
	return s.navigate(ctx, "roll_to", func() (*model.DeltaState, error) {
		if err := s.stream.RollTo(stateID); err != nil {
			return nil, err
		}
		return s.stream.Current(), nil
	})
}

// HistoryEntry summarises one delta state.
type HistoryEntry struct {
	ID        int
	Name      string
	Bulletins int
	Applied   bool
	// Current marks the last applied state.
	Current bool
}

// History lists the stream's delta states oldest first.
func (s *Service) History() []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.stream.Current()
	states := s.stream.States()
	out := make([]HistoryEntry, 0, len(states))
	for _, ds := range states {
		out = append(out, HistoryEntry{
			ID:        ds.ID(),
			Name:      ds.Name(),
			Bulletins: ds.Len(),
			Applied:   ds.Applied(),
			Current:   ds == current,
		})
	}
	return out
}

// Save writes the stream's live entities as archive name.
func (s *Service) Save(ctx context.Context, name string) (archive.Meta, error) {
	if s.archives == nil {
		return archive.Meta{}, ErrNoArchiveStore
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream.Recording() {
		return archive.Meta{}, fmt.Errorf("save %s: %w", name, model.ErrBoardOpen)
	}
	a, err := archive.Write(s.stream, name, s.codec)
	if err != nil {
		return archive.Meta{}, fmt.Errorf("save %s: %w", name, err)
	}
	meta, err := archive.Save(ctx, s.archives, a, s.codec)
	if err != nil {
		s.logger.Error("archive save failed", "archive", name, "error", err)
		return archive.Meta{}, err
	}
	s.logger.Info("archive saved", "archive", name, "id", meta.ID, "entities", meta.Entities, "encoding", meta.Encoding, "bytes", meta.Size, "driver", s.archives.Driver())
	return meta, nil
}

// Load reads archive name onto the stream as one undoable operation named
// "load <name>" and returns the restored entities in archive order.
func (s *Service) Load(ctx context.Context, name string) ([]model.Entity, Outcome, error) {
	if s.archives == nil {
		return nil, Outcome{}, ErrNoArchiveStore
	}
	a, c, err := archive.Fetch(ctx, s.archives, name)
	if err != nil {
		return nil, Outcome{}, fmt.Errorf("load %s: %w", name, err)
	}
	var entities []model.Entity
	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := s.runLocked(ctx, "load "+name, func(tx *Tx) error {
		var rerr error
		entities, rerr = archive.Read(a, tx.Stream(), c)
		return rerr
	})
	if err != nil {
		return nil, out, err
	}
	return entities, out, nil
}

// Archives lists the stored archives.
func (s *Service) Archives(ctx context.Context) ([]archive.Meta, error) {
	if s.archives == nil {
		return nil, ErrNoArchiveStore
	}
	return s.archives.List(ctx)
}

// DeleteArchive removes archive name, reporting whether it existed.
func (s *Service) DeleteArchive(ctx context.Context, name string) (bool, error) {
	if s.archives == nil {
		return false, ErrNoArchiveStore
	}
	return s.archives.Delete(ctx, name)
}

// Export copies the stored archive name to the blob store under key.
func (s *Service) Export(ctx context.Context, name, key string, overwrite bool) (blob.Info, error) {
	if s.archives == nil {
		return blob.Info{}, ErrNoArchiveStore
	}
	if s.blobs == nil {
		return blob.Info{}, ErrNoBlobStore
	}
	meta, payload, err := s.archives.Get(ctx, name)
	if err != nil {
		return blob.Info{}, fmt.Errorf("export %s: %w", name, err)
	}
	info, err := s.blobs.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: contentType(meta.Encoding),
		Metadata: map[string]string{
			"archive":  meta.Name,
			"id":       meta.ID,
			"encoding": meta.Encoding,
		},
		Overwrite: overwrite,
	})
	if err != nil {
		s.logger.Error("archive export failed", "archive", name, "key", key, "error", err)
		return blob.Info{}, fmt.Errorf("export %s: %w", name, err)
	}
	s.logger.Info("archive exported", "archive", name, "key", key, "driver", string(s.blobs.Driver()), "bytes", info.Size)
	return info, nil
}

func contentType(encoding string) string {
	if encoding == archive.EncodingCBOR {
		return "application/cbor"
	}
	return "application/json"
}

// ApplyPolicy installs p's behavior overrides on the document registry.
func (s *Service) ApplyPolicy(p *policy.Policy) {
	if p == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Apply(s.doc.Registry())
	s.logger.Info("attribute policy applied", "kinds", p.Kinds())
}

// InstallPlugin registers p's kinds on the document registry, its rules on
// the engine and its policies as registry overrides. Operations already set
// by an applied policy file keep their action.
func (s *Service) InstallPlugin(p Plugin) (PluginMetadata, error) {
	if p == nil {
		return PluginMetadata{}, fmt.Errorf("plugin cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plugins[p.Name()]; ok {
		return PluginMetadata{}, fmt.Errorf("plugin %s already registered", p.Name())
	}
	registry := NewPluginRegistry()
	if err := p.Register(registry); err != nil {
		return PluginMetadata{}, fmt.Errorf("register plugin %s: %w", p.Name(), err)
	}
	reg := s.doc.Registry()
	for _, k := range registry.kinds {
		if _, exists := reg.Kind(k.kind.Name()); exists {
			return PluginMetadata{}, fmt.Errorf("plugin %s: %w: %s", p.Name(), model.ErrDuplicateKind, k.kind.Name())
		}
	}
	for _, k := range registry.kinds {
		if err := reg.Register(k.kind, k.factory); err != nil {
			return PluginMetadata{}, fmt.Errorf("plugin %s: %w", p.Name(), err)
		}
	}
	for _, rule := range registry.Rules() {
		s.engine.Register(rule)
	}
	for kind, b := range registry.Policies() {
		if existing, ok := reg.Overrides(kind); ok {
			b = existing.Fill(b)
		}
		reg.SetOverrides(kind, b)
	}
	meta := registry.metadata(p)
	s.plugins[p.Name()] = meta
	s.logger.Info("plugin installed", "plugin", meta.Name, "version", meta.Version, "kinds", len(meta.Kinds), "rules", len(meta.Rules))
	return meta, nil
}

// RegisteredPlugins returns installed plugin metadata ordered by name.
func (s *Service) RegisteredPlugins() []PluginMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PluginMetadata, 0, len(s.plugins))
	for _, meta := range s.plugins {
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
