// Package blobtest holds the behavior every blob backend must share.
package blobtest

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"solidcore/internal/blob/core"
)

// Run exercises st against the blob contract. st must start empty.
func Run(t *testing.T, st core.Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := st.Head(ctx, "exports/missing.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("head missing: expected ErrNotFound, got %v", err)
	}
	if _, _, err := st.Get(ctx, "exports/missing.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("get missing: expected ErrNotFound, got %v", err)
	}

	opts := core.PutOptions{ContentType: "application/json", Metadata: map[string]string{"archive": "bracket"}}
	info, err := st.Put(ctx, "exports/bracket/v1.json", strings.NewReader(`{"a":1}`), opts)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "exports/bracket/v1.json" || info.Size != 7 {
		t.Fatalf("put info = %+v", info)
	}
	if _, err := st.Put(ctx, "exports/bracket/v1.json", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("second put: expected ErrExists, got %v", err)
	}
	if _, err := st.Put(ctx, "exports/bracket/v1.json", strings.NewReader(`{"a":2}`), core.PutOptions{ContentType: "application/json", Overwrite: true}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	info, rc, err := st.Get(ctx, "exports/bracket/v1.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil || string(body) != `{"a":2}` {
		t.Fatalf("body = %q, %v", body, err)
	}
	if info.ContentType != "application/json" {
		t.Fatalf("content type = %q", info.ContentType)
	}

	if _, err := st.Put(ctx, "exports/plate/v1.cbor", strings.NewReader("\xa1"), core.PutOptions{Metadata: map[string]string{"archive": "plate"}}); err != nil {
		t.Fatalf("put plate: %v", err)
	}
	head, err := st.Head(ctx, "exports/plate/v1.cbor")
	if err != nil || !hasMeta(head.Metadata, "archive", "plate") {
		t.Fatalf("head plate = %+v, %v", head, err)
	}
	if _, err := st.Put(ctx, "other/x", strings.NewReader("x"), core.PutOptions{}); err != nil {
		t.Fatalf("put other: %v", err)
	}

	list, err := st.List(ctx, "exports/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Key != "exports/bracket/v1.json" || list[1].Key != "exports/plate/v1.cbor" {
		t.Fatalf("list = %+v", list)
	}

	ok, err := st.Delete(ctx, "exports/plate/v1.cbor")
	if err != nil || !ok {
		t.Fatalf("delete = %v, %v", ok, err)
	}
	ok, err = st.Delete(ctx, "exports/plate/v1.cbor")
	if err != nil || ok {
		t.Fatalf("second delete = %v, %v", ok, err)
	}
	if st.Driver() == "" {
		t.Fatalf("driver empty")
	}
}

func hasMeta(md map[string]string, key, want string) bool {
	for k, v := range md {
		if strings.EqualFold(k, key) && v == want {
			return true
		}
	}
	return false
}
