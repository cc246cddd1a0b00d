// Package model holds the shared value types passed between the segmenter,
// CMAF writer, DVR buffer, and playlist engine.
package model

import "fmt"

// MediaTimestamp is a rational time value: numerator over denominator
// (the timescale). Rescale rounds to the nearest tick of the new timescale,
// so a conversion is exact only when the value is representable there; it
// does not check for int64 overflow.
type MediaTimestamp struct {
	Numerator   int64
	Denominator uint32
}

// NewMediaTimestamp builds a timestamp, defaulting a zero denominator to 1
// so callers can't accidentally construct a division-by-zero value.
func NewMediaTimestamp(numerator int64, denominator uint32) MediaTimestamp {
	if denominator == 0 {
		denominator = 1
	}
	return MediaTimestamp{Numerator: numerator, Denominator: denominator}
}

// Seconds returns the timestamp as a floating-point duration in seconds.
func (t MediaTimestamp) Seconds() float64 {
	return float64(t.Numerator) / float64(t.Denominator)
}

// Rescale converts the timestamp to an equivalent value in a new timescale,
// rounding to the nearest integer tick.
func (t MediaTimestamp) Rescale(newTimescale uint32) MediaTimestamp {
	if newTimescale == 0 {
		newTimescale = 1
	}
	if t.Denominator == newTimescale {
		return t
	}
	num := t.Numerator * int64(newTimescale)
	den := int64(t.Denominator)
	// round-to-nearest, half away from zero
	if num >= 0 {
		return MediaTimestamp{Numerator: (num + den/2) / den, Denominator: newTimescale}
	}
	return MediaTimestamp{Numerator: (num - den/2) / den, Denominator: newTimescale}
}

// Ticks returns the raw integer value in the timestamp's own timescale, as
// written into fMP4 tfdt/trun fields.
func (t MediaTimestamp) Ticks() int64 {
	return t.Numerator
}

// Add returns t + other, rescaling other into t's timescale first.
func (t MediaTimestamp) Add(other MediaTimestamp) MediaTimestamp {
	r := other.Rescale(t.Denominator)
	return MediaTimestamp{Numerator: t.Numerator + r.Numerator, Denominator: t.Denominator}
}

// Sub returns t - other, rescaling other into t's timescale first.
func (t MediaTimestamp) Sub(other MediaTimestamp) MediaTimestamp {
	r := other.Rescale(t.Denominator)
	return MediaTimestamp{Numerator: t.Numerator - r.Numerator, Denominator: t.Denominator}
}

// Compare returns -1, 0, or 1 comparing t to other after rescaling to a
// common denominator.
func (t MediaTimestamp) Compare(other MediaTimestamp) int {
	den := int64(t.Denominator) * int64(other.Denominator)
	left := t.Numerator * int64(other.Denominator)
	right := other.Numerator * int64(t.Denominator)
	if den < 0 {
		left, right = -left, -right
	}
	switch {
	case left < right:
		return -1
	case left > right:
		return 1
	default:
		return 0
	}
}

func (t MediaTimestamp) String() string {
	return fmt.Sprintf("%d/%d", t.Numerator, t.Denominator)
}
