package archive

import (
	"context"
	"fmt"
)

// Store keeps encoded archives by name. Put replaces an existing archive of
// the same name.
type Store interface {
	Put(ctx context.Context, meta Meta, payload []byte) error
	Get(ctx context.Context, name string) (Meta, []byte, error)
	List(ctx context.Context) ([]Meta, error)
	Delete(ctx context.Context, name string) (bool, error)
	Driver() string
}

// Save encodes a with c and stores it under a.Name.
func Save(ctx context.Context, st Store, a *Archive, c Codec) (Meta, error) {
	if a.Name == "" {
		return Meta{}, fmt.Errorf("archive name required")
	}
	payload, err := Encode(a, c)
	if err != nil {
		return Meta{}, err
	}
	meta := MetaOf(a, len(payload))
	if err := st.Put(ctx, meta, payload); err != nil {
		return Meta{}, fmt.Errorf("store archive %s: %w", a.Name, err)
	}
	return meta, nil
}

// Fetch loads and decodes the archive stored under name, selecting the codec
// from the stored encoding.
func Fetch(ctx context.Context, st Store, name string) (*Archive, Codec, error) {
	meta, payload, err := st.Get(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	c, err := CodecFor(meta.Encoding)
	if err != nil {
		return nil, nil, err
	}
	a, err := Decode(payload, c)
	if err != nil {
		return nil, nil, err
	}
	return a, c, nil
}
