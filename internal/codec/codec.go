// Copyright 2025 The axfor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package codec turns head keys into file-name-safe strings and back.
//
// The encoding is application/x-www-form-urlencoded with a single field named
// "key", so a key "feature/x" is stored as "key=feature%2Fx". Percent-encoding
// guarantees the result never contains a path separator.
package codec

import (
	"encoding"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
)

// Prefix marks directory entries that belong to the head store
const Prefix = "head:"

const field = "key"

var (
	// ErrUnsupportedKey is returned for key types the codec cannot serialize
	ErrUnsupportedKey = errors.New("codec: unsupported key type")

	// ErrMalformed is returned when the input is not valid form encoding
	ErrMalformed = errors.New("codec: malformed encoding")

	// ErrMissingField is returned when the "key" field is absent
	ErrMissingField = errors.New("codec: missing field `key`")

	// ErrDuplicateField is returned when the "key" field appears more than once
	ErrDuplicateField = errors.New("codec: duplicate field `key`")

	// ErrInvalidValue is returned when the field value does not parse as a key
	ErrInvalidValue = errors.New("codec: invalid key value")
)

// Codec converts keys of type K to and from their string form
//
// Implementations must be injective: Decode(Encode(k)) == k for every k that
// Encode accepts.
type Codec[K any] interface {
	Encode(key K) (string, error)
	Decode(s string) (K, error)
}

// URLCodec is the default Codec
//
// Supported keys: string, integer, unsigned and bool kinds, and any type K
// implementing encoding.TextMarshaler whose pointer *K implements
// encoding.TextUnmarshaler. The text methods take precedence over the kind.
// A type with only one of the two is rejected, since Decode could not rebuild
// what Encode wrote.
type URLCodec[K any] struct{}

// NewURLCodec returns the default codec for K
func NewURLCodec[K any]() URLCodec[K] {
	return URLCodec[K]{}
}

// Encode returns "key=<percent-encoded key>"
func (URLCodec[K]) Encode(key K) (string, error) {
	s, err := marshalKey(key)
	if err != nil {
		return "", err
	}
	return url.Values{field: {s}}.Encode(), nil
}

// Decode parses the output of Encode. Unknown extra fields are ignored.
func (URLCodec[K]) Decode(s string) (K, error) {
	var zero K

	values, err := url.ParseQuery(s)
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	raw, ok := values[field]
	switch {
	case !ok:
		return zero, ErrMissingField
	case len(raw) > 1:
		return zero, ErrDuplicateField
	}

	return unmarshalKey[K](raw[0])
}

// FileName returns the marker file name for key
func FileName[K any](c Codec[K], key K) (string, error) {
	encoded, err := c.Encode(key)
	if err != nil {
		return "", err
	}
	return Prefix + encoded, nil
}

// ParseFileName decodes a directory entry name. ok is false for names that
// do not carry Prefix; those belong to someone else and are not an error.
func ParseFileName[K any](c Codec[K], name string) (key K, ok bool, err error) {
	encoded, ok := strings.CutPrefix(name, Prefix)
	if !ok {
		return key, false, nil
	}
	key, err = c.Decode(encoded)
	return key, true, err
}

var (
	textMarshalerType   = reflect.TypeFor[encoding.TextMarshaler]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
)

// textKey reports whether K is encoded through its text methods
func textKey[K any]() (bool, error) {
	t := reflect.TypeFor[K]()
	marshal := t.Implements(textMarshalerType)
	unmarshal := reflect.PointerTo(t).Implements(textUnmarshalerType)

	switch {
	case marshal && unmarshal:
		return true, nil
	case marshal:
		return false, fmt.Errorf("%w: %v implements encoding.TextMarshaler but *%v is not an encoding.TextUnmarshaler",
			ErrUnsupportedKey, t, t)
	case unmarshal:
		return false, fmt.Errorf("%w: *%v implements encoding.TextUnmarshaler but %v is not an encoding.TextMarshaler",
			ErrUnsupportedKey, t, t)
	}
	return false, nil
}

func marshalKey[K any](key K) (string, error) {
	text, err := textKey[K]()
	if err != nil {
		return "", err
	}
	if text {
		b, err := any(key).(encoding.TextMarshaler).MarshalText()
		if err != nil {
			return "", fmt.Errorf("codec: marshal %T: %w", key, err)
		}
		return string(b), nil
	}

	// static kind, so interface-typed keys are rejected here and in unmarshalKey alike
	rv := reflect.ValueOf(&key).Elem()
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), nil
	}

	return "", fmt.Errorf("%w: %T", ErrUnsupportedKey, key)
}

func unmarshalKey[K any](s string) (K, error) {
	var key K

	text, err := textKey[K]()
	if err != nil {
		return key, err
	}
	if text {
		if err := any(&key).(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
			var zero K
			return zero, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return key, nil
	}

	rv := reflect.ValueOf(&key).Elem()
	switch rv.Kind() {
	case reflect.String:
		rv.SetString(s)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, rv.Type().Bits())
		if err != nil {
			return key, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		rv.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(s, 10, rv.Type().Bits())
		if err != nil {
			return key, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		rv.SetUint(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return key, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		rv.SetBool(b)
	default:
		return key, fmt.Errorf("%w: %T", ErrUnsupportedKey, key)
	}

	return key, nil
}
