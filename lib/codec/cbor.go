// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding (RFC 8949 §4.2): sorted map keys, smallest integer
// encoding, no indefinite-length items.
var encMode cbor.EncMode

// decMode is the CBOR decoder. Unknown fields are silently ignored so
// older binaries can read artifacts that gained optional fields.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Artifacts never use non-string map keys. When decoding into
		// any, produce map[string]any rather than the CBOR default
		// map[interface{}]interface{} so the result can be handed to
		// encoding/json for --json output.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Decoder is a CBOR stream decoder. Type alias so consumers import
// only lib/codec, not fxamacker/cbor directly.
type Decoder = cbor.Decoder

// NewDecoder returns a CBOR decoder that reads from r using the
// standard decoding configuration.
func NewDecoder(r io.Reader) *Decoder {
	return decMode.NewDecoder(r)
}

// ErrUnsupportedFormat is returned when a persisted document carries
// a format identifier other than the one the reader understands.
var ErrUnsupportedFormat = errors.New("unsupported format")

// CheckFormat returns an error wrapping ErrUnsupportedFormat unless got
// equals want.
func CheckFormat(got, want string) error {
	if got != want {
		return fmt.Errorf("%w %q (want %q)", ErrUnsupportedFormat, got, want)
	}
	return nil
}

// ReadFile decodes the single CBOR document in the file at path into v.
// Bytes after the document are an error.
func ReadFile(path string, v any) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	decoder := NewDecoder(file)
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	var trailing cbor.RawMessage
	if err := decoder.Decode(&trailing); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decoding %s: trailing data after document", path)
	}
	return nil
}
