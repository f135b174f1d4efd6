package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"solidcore/pkg/model"
)

var pinKind = model.DefineKind("core_pin", model.AttribKind)

type pin struct {
	model.AttribBase
}

func (p *pin) Kind() *model.Kind { return pinKind }

type testPlugin struct {
	name string
	err  error
}

func (p testPlugin) Name() string    { return p.name }
func (p testPlugin) Version() string { return "1.2.0" }

func (p testPlugin) Register(r *PluginRegistry) error {
	if p.err != nil {
		return p.err
	}
	if err := r.RegisterKind(pinKind, func() model.Entity { return &pin{} }); err != nil {
		return err
	}
	r.RegisterRule(ruleFunc{name: "pins_only_on_nodes", fn: func(View, []*model.Bulletin) (Result, error) { return Result{}, nil }})
	r.RegisterRule(nil)
	r.RegisterPolicy("core_pin", model.Behavior{}.With(model.OpCopy, model.ActionLose))
	r.RegisterPolicy("", model.Behavior{})
	return nil
}

func TestInstallPlugin(t *testing.T) {
	doc := model.NewDocument()
	svc := NewService(doc)
	meta, err := svc.InstallPlugin(testPlugin{name: "pins"})
	must(t, err)
	if meta.Name != "pins" || meta.Version != "1.2.0" {
		t.Fatalf("metadata = %+v", meta)
	}
	if len(meta.Kinds) != 1 || meta.Kinds[0] != "core_pin" || len(meta.Rules) != 1 || len(meta.Policies) != 1 {
		t.Fatalf("contributions = %+v", meta)
	}
	if _, ok := doc.Registry().Kind("core_pin"); !ok {
		t.Fatalf("kind not registered")
	}
	if b, ok := doc.Registry().Overrides("core_pin"); !ok || b.Get(model.OpCopy) != model.ActionLose {
		t.Fatalf("policy override = %v %v", b, ok)
	}
	names := svc.Engine().Names()
	if names[len(names)-1] != "pins_only_on_nodes" {
		t.Fatalf("rules = %v", names)
	}
	e, err := doc.Registry().New("core_pin")
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	if _, ok := e.(*pin); !ok {
		t.Fatalf("factory built %T", e)
	}

	if _, err := svc.InstallPlugin(testPlugin{name: "pins"}); err == nil || !strings.Contains(err.Error(), "already registered") {
		t.Fatalf("expected duplicate plugin error, got %v", err)
	}
	if _, err := svc.InstallPlugin(testPlugin{name: "pins-again"}); !errors.Is(err, model.ErrDuplicateKind) {
		t.Fatalf("expected duplicate kind error, got %v", err)
	}
	if _, err := svc.InstallPlugin(nil); err == nil {
		t.Fatalf("expected nil plugin error")
	}
	errRegister := errors.New("bad manifest")
	if _, err := svc.InstallPlugin(testPlugin{name: "broken", err: errRegister}); !errors.Is(err, errRegister) {
		t.Fatalf("expected register error, got %v", err)
	}
	plugins := svc.RegisteredPlugins()
	if len(plugins) != 1 || plugins[0].Name != "pins" {
		t.Fatalf("registered = %+v", plugins)
	}
}

func TestPluginKindsUsableInOperations(t *testing.T) {
	svc := NewService(model.NewDocument())
	_, err := svc.InstallPlugin(testPlugin{name: "pins"})
	must(t, err)
	_, err = svc.Run(context.Background(), "pin", func(tx *Tx) error {
		_, err := model.Create(tx.Stream(), &pin{})
		return err
	})
	must(t, err)
}

func TestPluginRegistryRejectsDuplicates(t *testing.T) {
	r := NewPluginRegistry()
	must(t, r.RegisterKind(pinKind, func() model.Entity { return &pin{} }))
	if err := r.RegisterKind(pinKind, func() model.Entity { return &pin{} }); !errors.Is(err, model.ErrDuplicateKind) {
		t.Fatalf("expected duplicate kind, got %v", err)
	}
	if err := r.RegisterKind(nil, nil); err == nil {
		t.Fatalf("expected error for nil kind")
	}
	if kinds := r.Kinds(); len(kinds) != 1 || kinds[0] != "core_pin" {
		t.Fatalf("kinds = %v", kinds)
	}
}

func TestInstallPluginKeepsPolicyFileActions(t *testing.T) {
	doc := model.NewDocument()
	svc := NewService(doc)
	doc.Registry().SetOverrides("core_pin", model.Behavior{}.With(model.OpCopy, model.ActionKeep))
	_, err := svc.InstallPlugin(testPlugin{name: "pins"})
	must(t, err)
	if b, _ := doc.Registry().Overrides("core_pin"); b.Get(model.OpCopy) != model.ActionKeep {
		t.Fatalf("plugin policy replaced the configured action: %s", b)
	}
}
