package value

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Priyanshu23/flashseries/store"
)

const (
	usdMajorDigits = 6
	usdMinorDigits = 2
	usdScale       = 100 // 10^usdMinorDigits
)

// Usd is a US dollar amount stored as an integer count of cents.
type Usd struct {
	cents int64
}

// NewUsd wraps a raw cent count.
func NewUsd(cents int64) Usd { return Usd{cents: cents} }

// Cents returns the raw underlying integer amount.
func (u Usd) Cents() int64 { return u.cents }

func (u Usd) Whole() int64      { return u.cents / usdScale }
func (u Usd) Fractional() int64 { return u.cents % usdScale }

func (u Usd) String() string {
	return fmt.Sprintf("%d.%0*d", u.Whole(), usdMinorDigits, u.Fractional())
}

// Compare orders two Usd amounts by their underlying cent count.
func (u Usd) Compare(other Usd) int {
	switch {
	case u.cents < other.cents:
		return -1
	case u.cents > other.cents:
		return 1
	default:
		return 0
	}
}

func (Usd) Mean(values []Usd) Usd {
	if len(values) == 0 {
		return Usd{}
	}
	var sum int64
	for _, v := range values {
		sum += v.cents
	}
	return NewUsd(sum / int64(len(values)))
}

func (Usd) Sum(values []Usd) Usd {
	var sum int64
	for _, v := range values {
		sum += v.cents
	}
	return NewUsd(sum)
}

const usdFieldWidth = usdMajorDigits + 1 + usdMinorDigits

// UsdCodec is the store.Codec[Usd] implementation for the on-disk record
// format: a right-aligned "WWWWWW.ff" field.
type UsdCodec struct{}

func (UsdCodec) Size() int { return usdFieldWidth }

func (UsdCodec) IntoBytes(u Usd) ([]byte, error) {
	s := u.String()
	if len(s) > usdFieldWidth {
		return nil, fmt.Errorf("%w: usd value %s does not fit in %d characters", store.ErrInvalidInput, s, usdFieldWidth)
	}
	return []byte(fmt.Sprintf("%*s", usdFieldWidth, s)), nil
}

func (UsdCodec) FromBytes(buf []byte) (Usd, error) {
	if len(buf) != usdFieldWidth {
		return Usd{}, fmt.Errorf("%w: usd field has wrong length %d", store.ErrInvalidData, len(buf))
	}

	wholePart := strings.TrimSpace(string(buf[:usdFieldWidth-usdMinorDigits-1]))
	whole, err := strconv.ParseInt(wholePart, 10, 64)
	if err != nil {
		return Usd{}, fmt.Errorf("%w: %v", store.ErrInvalidData, err)
	}

	fracPart := string(buf[usdFieldWidth-usdMinorDigits:])
	frac, err := strconv.ParseInt(fracPart, 10, 64)
	if err != nil {
		return Usd{}, fmt.Errorf("%w: %v", store.ErrInvalidData, err)
	}

	return NewUsd(whole*usdScale + frac), nil
}
