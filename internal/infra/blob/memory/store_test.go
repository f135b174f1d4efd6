package memory

import (
	"context"
	"io"
	"strings"
	"testing"

	"solidcore/internal/blob/blobtest"
	"solidcore/internal/blob/core"
)

func TestStoreContract(t *testing.T) {
	blobtest.Run(t, New())
}

func TestGetReturnsPrivateCopy(t *testing.T) {
	ctx := context.Background()
	s := New()
	md := map[string]string{"k": "v"}
	if _, err := s.Put(ctx, "a", strings.NewReader("abc"), core.PutOptions{Metadata: md}); err != nil {
		t.Fatalf("put: %v", err)
	}
	md["k"] = "changed"
	info, rc, err := s.Get(ctx, "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	if string(b) != "abc" || info.Metadata["k"] != "v" || info.ETag == "" {
		t.Fatalf("get = %q %+v", b, info)
	}
}
