package s3

import (
	"context"
	"strings"
	"testing"

	"solidcore/internal/blob/blobtest"
	"solidcore/internal/blob/core"
)

func TestStoreContract(t *testing.T) {
	st, err := NewMockForTests(context.Background(), "")
	if err != nil {
		t.Fatalf("mock: %v", err)
	}
	blobtest.Run(t, st)
}

func TestPrefixIsHiddenFromKeys(t *testing.T) {
	ctx := context.Background()
	st, err := NewMockForTests(ctx, "/tenant-a/")
	if err != nil {
		t.Fatalf("mock: %v", err)
	}
	if _, err := st.Put(ctx, "exports/a.json", strings.NewReader("{}"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	list, err := st.List(ctx, "exports/")
	if err != nil || len(list) != 1 || list[0].Key != "exports/a.json" {
		t.Fatalf("list = %+v, %v", list, err)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected bucket error")
	}
}

func TestDecodeChunked(t *testing.T) {
	got, err := decodeChunked([]byte("5;chunk-signature=abc\r\nhello\r\n1\r\n!\r\n0\r\nx-amz-checksum-crc32:AAAA\r\n\r\n"))
	if err != nil || string(got) != "hello!" {
		t.Fatalf("decode = %q, %v", got, err)
	}
	if _, err := decodeChunked([]byte("zz\r\n")); err == nil {
		t.Fatalf("expected hex error")
	}
}
