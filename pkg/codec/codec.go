// Kunhua Huang 2025

package codec

import "fmt"

// Type names a value codec as it appears in configuration.
type Type string

const (
	TypeJSON     Type = "json"
	TypeProtobuf Type = "protobuf"
)

// Types lists the codecs ParseType accepts.
var Types = []Type{TypeJSON, TypeProtobuf}

func ParseType(s string) (Type, error) {
	switch Type(s) {
	case "", TypeJSON:
		return TypeJSON, nil
	case TypeProtobuf:
		return TypeProtobuf, nil
	default:
		return "", fmt.Errorf("codec: unknown type %q, want one of %v", s, Types)
	}
}

type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Name() string
}

// GetOrDefault returns the codec for typ, JSON for anything unknown.
func GetOrDefault(typ Type) Codec {
	if typ == TypeProtobuf {
		return NewProtobufCodec()
	}
	return NewJSONCodec()
}

// ----------------- Compressed Codec -----------------

type CompressedCodec struct {
	codec      Codec
	compressor Compressor
}

func NewCompressedCodec(codec Codec, compressor Compressor) Codec {
	if compressor == nil {
		return codec
	}
	if _, ok := compressor.(*NoneCompressor); ok {
		return codec
	}

	return &CompressedCodec{
		codec:      codec,
		compressor: compressor,
	}
}

func (c *CompressedCodec) Encode(v any) ([]byte, error) {
	data, err := c.codec.Encode(v)
	if err != nil {
		return nil, err
	}

	compressed, err := c.compressor.Compress(data)
	if err != nil {
		return nil, fmt.Errorf("compress failed: %w", err)
	}

	return compressed, nil
}

func (c *CompressedCodec) Decode(data []byte, v any) error {
	decompressed, err := c.compressor.Decompress(data)
	if err != nil {
		return fmt.Errorf("decompress failed: %w", err)
	}

	return c.codec.Decode(decompressed, v)
}

func (c *CompressedCodec) Name() string {
	return fmt.Sprintf("%s+%s", c.codec.Name(), c.compressor.Name())
}
