// Package value holds the domain value types carried in the time series:
// fixed-point currency amounts with the rounding and formatting rules the
// rest of the system (codecs, pooling) depends on.
package value

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Priyanshu23/flashseries/store"
)

const (
	btcMajorDigits = 6
	btcMinorDigits = 8
	btcScale       = 100000000 // 10^btcMinorDigits
)

// Btc is a bitcoin amount stored as an integer count of satoshis (1e-8 BTC),
// avoiding floating point for a currency value that is persisted verbatim.
type Btc struct {
	satoshis int64
}

// NewBtc wraps a raw satoshi count.
func NewBtc(satoshis int64) Btc { return Btc{satoshis: satoshis} }

// Satoshis returns the raw underlying integer amount.
func (b Btc) Satoshis() int64 { return b.satoshis }

// Whole returns the integer BTC portion.
func (b Btc) Whole() int64 { return b.satoshis / btcScale }

// Fractional returns the satoshi remainder below one whole BTC.
func (b Btc) Fractional() int64 { return b.satoshis % btcScale }

func (b Btc) String() string {
	return fmt.Sprintf("%d.%0*d", b.Whole(), btcMinorDigits, b.Fractional())
}

// Compare orders two Btc amounts by their underlying satoshi count.
func (b Btc) Compare(other Btc) int {
	switch {
	case b.satoshis < other.satoshis:
		return -1
	case b.satoshis > other.satoshis:
		return 1
	default:
		return 0
	}
}

// Mean computes the (receiver-independent) integer-truncated average
// satoshi count of values; the receiver is unused, matching the source's
// associated (non-self) Btc::mean function.
func (Btc) Mean(values []Btc) Btc {
	if len(values) == 0 {
		return Btc{}
	}
	var sum int64
	for _, v := range values {
		sum += v.satoshis
	}
	return NewBtc(sum / int64(len(values)))
}

// Sum computes the total satoshi count of values.
func (Btc) Sum(values []Btc) Btc {
	var sum int64
	for _, v := range values {
		sum += v.satoshis
	}
	return NewBtc(sum)
}

// btcFieldWidth is the fixed byte width of a Btc field in the record
// schema: major digits, a decimal point, and minor digits.
const btcFieldWidth = btcMajorDigits + 1 + btcMinorDigits

// BtcCodec is the store.Codec[Btc] implementation for the on-disk record
// format: a right-aligned "WWWWWW.ffffffff" field.
type BtcCodec struct{}

func (BtcCodec) Size() int { return btcFieldWidth }

func (BtcCodec) IntoBytes(b Btc) ([]byte, error) {
	s := b.String()
	if len(s) > btcFieldWidth {
		return nil, fmt.Errorf("%w: btc value %s does not fit in %d characters", store.ErrInvalidInput, s, btcFieldWidth)
	}
	return []byte(fmt.Sprintf("%*s", btcFieldWidth, s)), nil
}

func (BtcCodec) FromBytes(buf []byte) (Btc, error) {
	if len(buf) != btcFieldWidth {
		return Btc{}, fmt.Errorf("%w: btc field has wrong length %d", store.ErrInvalidData, len(buf))
	}

	wholePart := strings.TrimSpace(string(buf[:btcFieldWidth-btcMinorDigits-1]))
	whole, err := strconv.ParseInt(wholePart, 10, 64)
	if err != nil {
		return Btc{}, fmt.Errorf("%w: %v", store.ErrInvalidData, err)
	}

	fracPart := string(buf[btcFieldWidth-btcMinorDigits:])
	frac, err := strconv.ParseInt(fracPart, 10, 64)
	if err != nil {
		return Btc{}, fmt.Errorf("%w: %v", store.ErrInvalidData, err)
	}

	return NewBtc(whole*btcScale + frac), nil
}
