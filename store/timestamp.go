package store

import (
	"fmt"
	"strconv"
	"strings"
)

// Timestamp is the canonical primary key for a time-series store: an
// unsigned integer counted in whatever unit the caller chooses (the
// original source used seconds; this port is unit-agnostic).
type Timestamp uint64

// timestampDigits is the fixed width of a Timestamp's zero-padded decimal
// encoding, matching the original's SIGNIFICANT_DIGITS constant.
const timestampDigits = 13

// maxTimestamp is the first value that would not fit in timestampDigits
// decimal digits; Timestamps at or above this are rejected at IntoBytes
// rather than silently truncating the fixed-width on-disk format.
const maxTimestamp = 1e13

// TimestampCodec encodes a Timestamp as a 13-character zero-padded ASCII
// decimal, so that lexicographic byte order matches numeric order.
type TimestampCodec struct{}

func (TimestampCodec) Size() int { return timestampDigits }

func (TimestampCodec) IntoBytes(t Timestamp) ([]byte, error) {
	if uint64(t) >= maxTimestamp {
		return nil, fmt.Errorf("%w: timestamp %d does not fit in %d digits", ErrInvalidInput, t, timestampDigits)
	}
	return []byte(fmt.Sprintf("%0*d", timestampDigits, uint64(t))), nil
}

func (TimestampCodec) FromBytes(b []byte) (Timestamp, error) {
	if len(b) != timestampDigits {
		return 0, fmt.Errorf("%w: timestamp field has wrong length %d", ErrInvalidData, len(b))
	}
	trimmed := strings.TrimSpace(string(b))
	n, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return Timestamp(n), nil
}
