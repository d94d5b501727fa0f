// Package wirecodec encodes sync request and response bodies: JSON,
// optionally compressed with zstd.
package wirecodec

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// EncodingZstd is the Content-Encoding of compressed bodies.
const EncodingZstd = "zstd"

// maxDecodedSize bounds the memory a single decompressed body may use.
const maxDecodedSize = 256 << 20

var (
	encoder = mustEncoder()
	decoder = mustDecoder()
)

func mustEncoder() *zstd.Encoder {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic(fmt.Sprintf("create zstd encoder: %v", err))
	}
	return enc
}

func mustDecoder() *zstd.Decoder {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedSize))
	if err != nil {
		panic(fmt.Sprintf("create zstd decoder: %v", err))
	}
	return dec
}

// Marshal encodes v as JSON and compresses it when compress is set.
func Marshal(v any, compress bool) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal body: %w", err)
	}
	if !compress {
		return b, nil
	}
	return encoder.EncodeAll(b, make([]byte, 0, len(b)/2)), nil
}

// Decode undoes the content encoding of body.
func Decode(body []byte, contentEncoding string) ([]byte, error) {
	switch strings.TrimSpace(strings.ToLower(contentEncoding)) {
	case "", "identity":
		return body, nil
	case EncodingZstd:
		out, err := decoder.DecodeAll(body, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress body: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", contentEncoding)
	}
}

// Unmarshal decodes body according to contentEncoding into v.
func Unmarshal(body []byte, contentEncoding string, v any) error {
	raw, err := Decode(body, contentEncoding)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("unmarshal body: %w", err)
	}
	return nil
}

// AcceptsZstd reports whether an Accept-Encoding header allows zstd.
func AcceptsZstd(acceptEncoding string) bool {
	for _, part := range strings.Split(acceptEncoding, ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.EqualFold(name, EncodingZstd) {
			return true
		}
	}
	return false
}
