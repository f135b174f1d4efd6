// Package storetest holds the behavior every archive.Store backend must share.
package storetest

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"solidcore/internal/archive"
)

// Run exercises st against the archive.Store contract. st must start empty.
func Run(t *testing.T, st archive.Store) {
	t.Helper()
	ctx := context.Background()
	saved := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if _, _, err := st.Get(ctx, "missing"); !errors.Is(err, archive.ErrNotFound) {
		t.Fatalf("get missing: expected ErrNotFound, got %v", err)
	}
	metas := []archive.Meta{
		{Name: "beta", ID: "id-b", Encoding: archive.EncodingJSON, Entities: 2, Size: 3, SavedAt: saved},
		{Name: "alpha", ID: "id-a", Encoding: archive.EncodingCBOR, Entities: 5, Size: 4, SavedAt: saved},
	}
	payloads := [][]byte{[]byte("b-1"), {0xa1, 0x01, 0x02, 0x03}}
	for i, m := range metas {
		if err := st.Put(ctx, m, payloads[i]); err != nil {
			t.Fatalf("put %s: %v", m.Name, err)
		}
	}

	meta, payload, err := st.Get(ctx, "alpha")
	if err != nil {
		t.Fatalf("get alpha: %v", err)
	}
	if meta.ID != "id-a" || meta.Encoding != archive.EncodingCBOR || meta.Entities != 5 || !meta.SavedAt.Equal(saved) {
		t.Fatalf("alpha meta = %+v", meta)
	}
	if !bytes.Equal(payload, payloads[1]) {
		t.Fatalf("alpha payload = %x", payload)
	}

	list, err := st.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Name != "alpha" || list[1].Name != "beta" {
		t.Fatalf("list = %+v", list)
	}

	replaced := metas[0]
	replaced.ID, replaced.Size = "id-b2", 2
	if err := st.Put(ctx, replaced, []byte("b2")); err != nil {
		t.Fatalf("replace beta: %v", err)
	}
	meta, payload, err = st.Get(ctx, "beta")
	if err != nil || meta.ID != "id-b2" || string(payload) != "b2" {
		t.Fatalf("replaced beta = %+v %q %v", meta, payload, err)
	}

	ok, err := st.Delete(ctx, "beta")
	if err != nil || !ok {
		t.Fatalf("delete beta = %v, %v", ok, err)
	}
	if _, _, err := st.Get(ctx, "beta"); !errors.Is(err, archive.ErrNotFound) {
		t.Fatalf("deleted beta still readable: %v", err)
	}
	if st.Driver() == "" {
		t.Fatalf("driver name empty")
	}
}
