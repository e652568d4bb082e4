package codec

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

type Protobuf[T proto.Message] struct {
	new func() T // constructor for a concrete message (e.g., func() *mypb.User { return &mypb.User{} })
}

func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{new: ctor}
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	return proto.Marshal(v)
}

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.new()
	err := proto.Unmarshal(b, m)
	return m, err
}

// ProtoValue carries schemaless documents as a google.protobuf.Value.
// It lets the service answer in protobuf without a compiled certificate
// message: the body is a Value whose struct mirrors the JSON shape.
type ProtoValue struct {
	msg Protobuf[*structpb.Value]
}

var _ Codec[any] = ProtoValue{}

func NewProtoValue() ProtoValue {
	return ProtoValue{msg: NewProtobuf(func() *structpb.Value { return &structpb.Value{} })}
}

func (c ProtoValue) Encode(v any) ([]byte, error) {
	pv, err := structpb.NewValue(v)
	if err != nil {
		return nil, err
	}
	return c.msg.Encode(pv)
}

func (c ProtoValue) Decode(b []byte) (any, error) {
	if c.msg.new == nil {
		c = NewProtoValue()
	}
	pv, err := c.msg.Decode(b)
	if err != nil {
		return nil, err
	}
	return pv.AsInterface(), nil
}
