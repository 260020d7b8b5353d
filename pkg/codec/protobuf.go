package codec

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ProtobufCodec writes values as a google.protobuf.Struct. Anything that is
// not already a proto.Message goes through its JSON form first, so a record
// keeps the same field names under both codecs.
type ProtobufCodec struct{}

var _ Codec = (*ProtobufCodec)(nil)

func NewProtobufCodec() Codec {
	return &ProtobufCodec{}
}

func (c *ProtobufCodec) Encode(v any) ([]byte, error) {
	if msg, ok := v.(proto.Message); ok {
		return proto.Marshal(msg)
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("protobuf codec: encode %T: %w", v, err)
	}

	st := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, st); err != nil {
		return nil, fmt.Errorf("protobuf codec: %T is not an object: %w", v, err)
	}

	return proto.Marshal(st)
}

func (c *ProtobufCodec) Decode(data []byte, v any) error {
	if msg, ok := v.(proto.Message); ok {
		return proto.Unmarshal(data, msg)
	}

	st := &structpb.Struct{}
	if err := proto.Unmarshal(data, st); err != nil {
		return fmt.Errorf("protobuf codec: unmarshal struct: %w", err)
	}

	raw, err := protojson.Marshal(st)
	if err != nil {
		return fmt.Errorf("protobuf codec: %w", err)
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("protobuf codec: decode into %T: %w", v, err)
	}
	return nil
}

func (c *ProtobufCodec) Name() string {
	return string(TypeProtobuf)
}
