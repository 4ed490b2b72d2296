// Package json wraps sonic and falls back to encoding/json on architectures
// sonic does not support.
package json

import (
	stdjson "encoding/json"
	"io"
	"runtime"

	"github.com/bytedance/sonic"
)

// RawMessage is a raw encoded JSON value, decoded lazily.
type RawMessage = stdjson.RawMessage

// Encoder writes JSON values to an output stream.
type Encoder interface {
	Encode(v any) error
}

// Decoder reads JSON values from an input stream.
type Decoder interface {
	Decode(v any) error
}

var (
	// Marshal encodes v into JSON.
	Marshal func(v any) ([]byte, error)
	// Unmarshal decodes data into v.
	Unmarshal func(data []byte, v any) error
	// NewEncoder returns an Encoder writing to w.
	NewEncoder func(w io.Writer) Encoder
	// NewDecoder returns a Decoder reading from r.
	NewDecoder func(r io.Reader) Decoder

	usingSonic bool
)

func init() {
	if runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64" {
		api := sonic.ConfigStd
		Marshal = api.Marshal
		Unmarshal = api.Unmarshal
		NewEncoder = func(w io.Writer) Encoder { return api.NewEncoder(w) }
		NewDecoder = func(r io.Reader) Decoder { return api.NewDecoder(r) }
		usingSonic = true
		return
	}

	Marshal = stdjson.Marshal
	Unmarshal = stdjson.Unmarshal
	NewEncoder = func(w io.Writer) Encoder { return stdjson.NewEncoder(w) }
	NewDecoder = func(r io.Reader) Decoder { return stdjson.NewDecoder(r) }
}

// IsUsingSonic reports whether sonic backs the package functions.
func IsUsingSonic() bool {
	return usingSonic
}
