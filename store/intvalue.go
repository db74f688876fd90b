package store

import (
	"fmt"
	"strconv"
	"strings"
)

// intValueDigits is the fixed width of the canonical integer value schema
// used throughout spec examples and tests (4-char right-aligned decimal).
const intValueDigits = 4

// Int32Codec encodes an int32 as a 4-character right-aligned ASCII
// decimal, matching the canonical timestamp/integer schema's "4-byte
// right-aligned integer" value field.
type Int32Codec struct{}

func (Int32Codec) Size() int { return intValueDigits }

func (Int32Codec) IntoBytes(v int32) ([]byte, error) {
	s := strconv.FormatInt(int64(v), 10)
	if len(s) > intValueDigits {
		return nil, fmt.Errorf("%w: value %d does not fit in %d digits", ErrInvalidInput, v, intValueDigits)
	}
	return []byte(fmt.Sprintf("%*s", intValueDigits, s)), nil
}

func (Int32Codec) FromBytes(b []byte) (int32, error) {
	if len(b) != intValueDigits {
		return 0, fmt.Errorf("%w: value field has wrong length %d", ErrInvalidData, len(b))
	}
	trimmed := strings.TrimSpace(string(b))
	if trimmed == "" {
		trimmed = "0"
	}
	n, err := strconv.ParseInt(trimmed, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return int32(n), nil
}
