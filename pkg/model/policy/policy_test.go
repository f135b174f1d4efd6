package policy

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"solidcore/pkg/model"
)

const sample = `
name: shop-floor
kinds:
  label:
    split: duplicate
    merge: keep
  debug_mark:
    copy: lose
`

func TestParseAndApply(t *testing.T) {
	p, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Name != "shop-floor" || strings.Join(p.Kinds(), ",") != "debug_mark,label" {
		t.Fatalf("policy = %s %v", p.Name, p.Kinds())
	}
	label, ok := p.Behavior("label")
	if !ok || label.Get(model.OpSplit) != model.ActionDuplicate || label.Get(model.OpCopy) != model.ActionUnset {
		t.Fatalf("label behavior = %s", label)
	}

	r := model.NewRegistry()
	p.Apply(r)
	got, ok := r.Overrides("debug_mark")
	if !ok || got.Get(model.OpCopy) != model.ActionLose {
		t.Fatalf("override not installed: %s", got)
	}
}

func TestParseRejectsUnknownNames(t *testing.T) {
	cases := map[string]string{
		"operation": "kinds:\n  label:\n    explode: keep\n",
		"action":    "kinds:\n  label:\n    split: shred\n",
		"yaml":      "kinds: [",
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadAndMarshal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	p := &Policy{Name: "roundtrip"}
	p.Set("color", model.Behavior{}.With(model.OpTransform, model.ActionCustom))
	data, err := p.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	b, ok := loaded.Behavior("color")
	if !ok || b.Get(model.OpTransform) != model.ActionCustom || loaded.Name != "roundtrip" {
		t.Fatalf("loaded = %+v", loaded)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
