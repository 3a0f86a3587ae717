package model

import (
	"fmt"
	"math"
	"strings"
)

// Magnitude is the display suffix of an antenna rating, base 1000.
type Magnitude int

const (
	MagnitudeK Magnitude = iota
	MagnitudeM
	MagnitudeG
	MagnitudeT
)

var magnitudeSuffixes = [...]string{"k", "M", "G", "T"}

// String returns the suffix letter.
func (m Magnitude) String() string {
	if m < MagnitudeK || m > MagnitudeT {
		return fmt.Sprintf("Magnitude(%d)", int(m))
	}
	return magnitudeSuffixes[m]
}

// Multiplier returns 1000^m.
func (m Magnitude) Multiplier() int64 {
	mult := int64(1)
	for i := MagnitudeK; i < m; i++ {
		mult *= 1000
	}
	return mult
}

// ParseMagnitude converts a suffix letter into a Magnitude. Suffixes are case
// sensitive, matching how they are displayed.
func ParseMagnitude(s string) (Magnitude, error) {
	for i, suffix := range magnitudeSuffixes {
		if s == suffix {
			return Magnitude(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown suffix %q", ErrMagnitudeOverflow, strings.TrimSpace(s))
}

// Rating is the displayed form of an antenna rating.
type Rating struct {
	Value     int64
	Magnitude Magnitude
}

// String renders the rating as value plus suffix, e.g. "5k" or "12M".
func (r Rating) String() string {
	return fmt.Sprintf("%d%s", r.Value, r.Magnitude)
}

// EncodeRating divides v by 1000 while the quotient still exceeds 1000,
// moving one suffix tier per division. Integer division truncates, so only
// values that survive the truncation round-trip through DecodeRating.
func EncodeRating(v int64) (Rating, error) {
	if v <= 0 {
		return Rating{}, fmt.Errorf("%w: rating must be positive, got %d", ErrOutOfRange, v)
	}
	tier := MagnitudeK
	value := v
	for value > 1000 {
		if tier == MagnitudeT {
			return Rating{}, fmt.Errorf("%w: %d", ErrMagnitudeOverflow, v)
		}
		value /= 1000
		tier++
	}
	return Rating{Value: value, Magnitude: tier}, nil
}

// DecodeRating multiplies the value by the magnitude multiplier.
func DecodeRating(r Rating) (int64, error) {
	if r.Magnitude < MagnitudeK || r.Magnitude > MagnitudeT {
		return 0, fmt.Errorf("%w: magnitude %d", ErrMagnitudeOverflow, int(r.Magnitude))
	}
	if r.Value <= 0 {
		return 0, fmt.Errorf("%w: rating value must be positive, got %d", ErrOutOfRange, r.Value)
	}
	mult := r.Magnitude.Multiplier()
	if r.Value > math.MaxInt64/mult {
		return 0, fmt.Errorf("%w: %s does not fit in 64 bits", ErrMagnitudeOverflow, r)
	}
	return r.Value * mult, nil
}
