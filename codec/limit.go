package codec

import "fmt"

// LimitCodec wraps another codec and refuses to decode payloads larger than
// MaxDecode bytes. Encode is forwarded unchanged. MaxDecode <= 0 disables the
// check.
type LimitCodec[V any] struct {
	Inner     Codec[V]
	MaxDecode int
}

func (c LimitCodec[V]) Encode(v V) ([]byte, error) { return c.Inner.Encode(v) }
func (c LimitCodec[V]) Decode(b []byte) (V, error) {
	if err := checkLimit(len(b), c.MaxDecode); err != nil {
		var zero V
		return zero, err
	}
	return c.Inner.Decode(b)
}

func checkLimit(n, max int) error {
	if max > 0 && n > max {
		return fmt.Errorf("payload too large: %d > %d", n, max)
	}
	return nil
}
