package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"solidcore/internal/archive"
	"solidcore/internal/archive/storetest"
)

func TestStoreContract(t *testing.T) {
	st, err := NewStore(filepath.Join(t.TempDir(), "nested", "archives.db"))
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	storetest.Run(t, st)
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archives.db")
	st, err := NewStore(path)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	ctx := context.Background()
	if err := st.Put(ctx, archive.Meta{Name: "keep", ID: "1", Encoding: archive.EncodingJSON, Entities: 1}, []byte("{}")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	reopened, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })
	meta, payload, err := reopened.Get(ctx, "keep")
	if err != nil || meta.ID != "1" || string(payload) != "{}" {
		t.Fatalf("reopened get = %+v %q %v", meta, payload, err)
	}
	if reopened.Path() != path || reopened.Driver() != "sqlite" {
		t.Fatalf("path=%s driver=%s", reopened.Path(), reopened.Driver())
	}
}
