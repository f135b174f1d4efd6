package archive

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// Codec encodes archives and the individual fields inside them.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Encoding names accepted by CodecFor.
const (
	EncodingJSON = "json"
	EncodingCBOR = "cbor"
)

// JSONCodec is the human-readable encoding.
type JSONCodec struct{}

func (JSONCodec) Name() string                       { return EncodingJSON }
func (JSONCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// CBORCodec is the compact binary encoding.
type CBORCodec struct {
	em cbor.EncMode
	dm cbor.DecMode
}

// NewCBORCodec builds a CBOR codec that keeps timestamps at nanosecond
// precision and sorts map keys so equal archives encode identically.
func NewCBORCodec() (*CBORCodec, error) {
	em, err := cbor.EncOptions{
		Time: cbor.TimeRFC3339Nano,
		Sort: cbor.SortCanonical,
	}.EncMode()
	if err != nil {
		return nil, fmt.Errorf("cbor enc mode: %w", err)
	}
	dm, err := cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("cbor dec mode: %w", err)
	}
	return &CBORCodec{em: em, dm: dm}, nil
}

func (c *CBORCodec) Name() string                       { return EncodingCBOR }
func (c *CBORCodec) Marshal(v any) ([]byte, error)      { return c.em.Marshal(v) }
func (c *CBORCodec) Unmarshal(data []byte, v any) error { return c.dm.Unmarshal(data, v) }

// CodecFor returns the codec registered under name; empty selects JSON.
func CodecFor(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", EncodingJSON:
		return JSONCodec{}, nil
	case EncodingCBOR:
		return NewCBORCodec()
	default:
		return nil, fmt.Errorf("unknown archive encoding %q", name)
	}
}

// Encode renders a with c.
func Encode(a *Archive, c Codec) ([]byte, error) {
	a.Encoding = c.Name()
	data, err := c.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode archive %s: %w", a.Name, err)
	}
	return data, nil
}

// Decode parses data produced by Encode with the same codec.
func Decode(data []byte, c Codec) (*Archive, error) {
	var a Archive
	if err := c.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode archive: %w", err)
	}
	if a.Version > FormatVersion {
		return nil, fmt.Errorf("archive version %d newer than supported %d", a.Version, FormatVersion)
	}
	return &a, nil
}
