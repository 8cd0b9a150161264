// Package wire implements minimal binary format for nested values.
//
// A value is a non-negative integer, a byte string or an array of values.
// Every value starts with a varint header holding (n << 2) | tag:
// for integers n is the integer itself, for byte strings n is the length
// followed by raw bytes, for arrays n is the item count followed by items.
package wire

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	tagUint  = 0
	tagBytes = 1
	tagArray = 2
	tagBits  = 2
	tagMask  = 1<<tagBits - 1
)

// MaxDepth limits array nesting accepted by Unmarshal.
const MaxDepth = 32

const maxHeader = 1<<(64-tagBits) - 1

var (
	ErrType      = errors.New("unsupported value type")
	ErrTruncated = errors.New("truncated data")
	ErrTag       = errors.New("unknown value tag")
	ErrDepth     = errors.New("nesting too deep")
	ErrTrailing  = errors.New("trailing bytes after value")
	ErrRange     = errors.New("value out of range")
)

func appendHeader(b []byte, n uint64, tag uint64) ([]byte, error) {
	if n > maxHeader {
		return b, ErrRange
	}

	return protowire.AppendVarint(b, n<<tagBits|tag), nil
}

// Append encodes v and appends it to b.
// Accepted types are uint64, uint, int (non-negative), []byte, []int, and []any of accepted types.
func Append(b []byte, v any) ([]byte, error) {
	switch x := v.(type) {
	case uint64:
		return appendHeader(b, x, tagUint)
	case uint:
		return appendHeader(b, uint64(x), tagUint)
	case int:
		if x < 0 {
			return b, fmt.Errorf("%w: %d", ErrRange, x)
		}
		return appendHeader(b, uint64(x), tagUint)
	case []byte:
		b, e := appendHeader(b, uint64(len(x)), tagBytes)
		return append(b, x...), e
	case []int:
		b, e := appendHeader(b, uint64(len(x)), tagArray)
		for _, item := range x {
			if e != nil {
				break
			}
			b, e = Append(b, item)
		}
		return b, e
	case []any:
		b, e := appendHeader(b, uint64(len(x)), tagArray)
		for _, item := range x {
			if e != nil {
				break
			}
			b, e = Append(b, item)
		}
		return b, e
	default:
		return b, fmt.Errorf("%w: %T", ErrType, v)
	}
}

// Marshal encodes single value.
func Marshal(v any) ([]byte, error) {
	return Append(nil, v)
}

// Unmarshal decodes single value occupying the whole buffer.
// Integers are returned as uint64, byte strings as []byte (sharing memory with data), arrays as []any.
func Unmarshal(data []byte) (any, error) {
	v, n, e := consume(data, 0)
	if e == nil && n != len(data) {
		e = ErrTrailing
	}
	if e != nil {
		return nil, e
	}

	return v, nil
}

func consume(data []byte, depth int) (any, int, error) {
	header, n := protowire.ConsumeVarint(data)
	if n < 0 {
		return nil, 0, fmt.Errorf("%w: %s", ErrTruncated, protowire.ParseError(n))
	}

	size := header >> tagBits
	switch header & tagMask {
	case tagUint:
		return size, n, nil

	case tagBytes:
		if size > uint64(len(data)-n) {
			return nil, 0, ErrTruncated
		}
		end := n + int(size)
		return data[n:end:end], end, nil

	case tagArray:
		if depth >= MaxDepth {
			return nil, 0, ErrDepth
		}
		// every item takes at least one byte
		if size > uint64(len(data)-n) {
			return nil, 0, ErrTruncated
		}
		items := make([]any, int(size))
		for i := range items {
			item, l, e := consume(data[n:], depth+1)
			if e != nil {
				return nil, 0, e
			}

			items[i] = item
			n += l
		}
		return items, n, nil

	default:
		return nil, 0, fmt.Errorf("%w: %d", ErrTag, header&tagMask)
	}
}

// Uint extracts integer that fits into int.
func Uint(v any) (int, error) {
	x, valid := v.(uint64)
	if !valid {
		return 0, fmt.Errorf("%w: integer expected, got %s", ErrType, kindName(v))
	}
	if x > uint64(int(^uint(0)>>1)) {
		return 0, ErrRange
	}

	return int(x), nil
}

// Array extracts array items.
func Array(v any) ([]any, error) {
	x, valid := v.([]any)
	if !valid {
		return nil, fmt.Errorf("%w: array expected, got %s", ErrType, kindName(v))
	}

	return x, nil
}

// Bytes extracts byte string.
func Bytes(v any) ([]byte, error) {
	x, valid := v.([]byte)
	if !valid {
		return nil, fmt.Errorf("%w: byte string expected, got %s", ErrType, kindName(v))
	}

	return x, nil
}

// Ints extracts array of integers.
func Ints(v any) ([]int, error) {
	items, e := Array(v)
	if e != nil {
		return nil, e
	}

	result := make([]int, len(items))
	for i, item := range items {
		result[i], e = Uint(item)
		if e != nil {
			return nil, e
		}
	}
	return result, nil
}

func kindName(v any) string {
	switch v.(type) {
	case uint64:
		return "integer"
	case []byte:
		return "byte string"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", v)
	}
}
