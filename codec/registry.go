package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"strings"
)

// Media types understood by DefaultRegistry.
const (
	MediaJSON        = "application/json"
	MediaCBOR        = "application/cbor"
	MediaMsgpack     = "application/msgpack"
	MediaXMsgpack    = "application/x-msgpack"
	MediaProtobuf    = "application/protobuf"
	MediaXProtobuf   = "application/x-protobuf"
	defaultMediaType = MediaJSON
)

var ErrUnsupportedMediaType = errors.New("codec: unsupported media type")

// Registry resolves a response body decoder by media type.
// JSON is always available and used when the content type is missing.
// Other media types decode into a generic document which is then transcoded
// through JSON into the caller's type, so payload types only need JSON tags.
type Registry struct {
	codecs    map[string]Codec[any]
	order     []string
	maxDecode int
}

// NewRegistry returns a registry that only understands JSON.
// maxDecode > 0 caps the accepted body size for every media type.
func NewRegistry(maxDecode int) *Registry {
	return &Registry{
		codecs:    make(map[string]Codec[any]),
		order:     []string{MediaJSON},
		maxDecode: maxDecode,
	}
}

// DefaultRegistry understands JSON, CBOR, msgpack and protobuf Values.
func DefaultRegistry() *Registry {
	r := NewRegistry(0)
	r.Register(MediaCBOR, MustCBOR[any](false))
	r.Register(MediaMsgpack, Msgpack[any]{})
	r.Register(MediaXMsgpack, Msgpack[any]{})
	r.Register(MediaXProtobuf, NewProtoValue())
	r.Register(MediaProtobuf, NewProtoValue())
	return r
}

// Register adds or replaces the codec for mediaType. JSON cannot be replaced.
func (r *Registry) Register(mediaType string, c Codec[any]) {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if mt == "" || mt == MediaJSON || c == nil {
		return
	}
	if r.maxDecode > 0 {
		c = LimitCodec[any]{Inner: c, MaxDecode: r.maxDecode}
	}
	if _, exists := r.codecs[mt]; !exists {
		r.order = append(r.order, mt)
	}
	r.codecs[mt] = c
}

// Accept renders an Accept header listing JSON first, then every registered
// media type with descending quality.
func (r *Registry) Accept() string {
	parts := make([]string, 0, len(r.order))
	for i, mt := range r.order {
		if i == 0 {
			parts = append(parts, mt)
			continue
		}
		q := 0.9 - 0.1*float64(i-1)
		if q < 0.1 {
			q = 0.1
		}
		parts = append(parts, fmt.Sprintf("%s;q=%.1f", mt, q))
	}
	return strings.Join(parts, ", ")
}

// Decode decodes body, labelled with contentType, into a V.
func Decode[V any](r *Registry, contentType string, body []byte) (V, error) {
	var v V
	mt := mediaType(contentType)
	if mt == MediaJSON || strings.HasSuffix(mt, "+json") {
		if r != nil {
			if err := checkLimit(len(body), r.maxDecode); err != nil {
				return v, err
			}
		}
		err := json.Unmarshal(body, &v)
		return v, err
	}

	var c Codec[any]
	if r != nil {
		c = r.codecs[mt]
	}
	if c == nil {
		return v, fmt.Errorf("%w: %q", ErrUnsupportedMediaType, mt)
	}
	doc, err := c.Decode(body)
	if err != nil {
		return v, err
	}
	js, err := json.Marshal(doc)
	if err != nil {
		return v, fmt.Errorf("codec: transcode %s to json: %w", mt, err)
	}
	err = json.Unmarshal(js, &v)
	return v, err
}

func mediaType(contentType string) string {
	if strings.TrimSpace(contentType) == "" {
		return defaultMediaType
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return defaultMediaType
	}
	return strings.ToLower(mt)
}
