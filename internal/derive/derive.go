// Package derive computes deterministic catch-up instants from a pair of
// identifiers and a year.
//
// Each instant is seeded by a 256-bit digest over the concatenated
// identifiers and the year, so the same inputs produce the same schedule on
// every device without any stored state.
package derive

import (
	"crypto"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"catchup/internal/model"
)

const (
	HoursInCommonYear = 365 * 24
	HoursInLeapYear   = 366 * 24

	// Years outside this range cannot be written as YYYYMMDDTHHMMSSZ.
	MinYear = 1000
	MaxYear = 9999

	digestSize = 32
)

var (
	ErrHashingUnavailable = errors.New("derive: digest algorithm unavailable")
	ErrUnsupportedDigest  = errors.New("derive: digest is not 256 bits")
	ErrInvalidYear        = errors.New("derive: year out of range")
	ErrInvalidIdentifier  = errors.New("derive: identifier is not valid UTF-8")
	ErrInvalidHorizon     = errors.New("derive: horizon must be at least one year")
)

// Deriver maps identifiers and a year to a YearlyEventPair. The zero value
// uses SHA-256.
type Deriver struct {
	digest crypto.Hash
}

// New returns a Deriver using the given digest. The digest must be linked
// into the binary and produce 32 bytes.
func New(digest crypto.Hash) (Deriver, error) {
	if err := checkDigest(digest); err != nil {
		return Deriver{}, err
	}
	return Deriver{digest: digest}, nil
}

// NewNamed is New with the digest looked up by config name.
func NewNamed(name string) (Deriver, error) {
	h, err := ParseDigest(name)
	if err != nil {
		return Deriver{}, err
	}
	return New(h)
}

// Digest reports the hash in use.
func (d Deriver) Digest() crypto.Hash {
	if d.digest == 0 {
		return crypto.SHA256
	}
	return d.digest
}

// Derive returns the two catch-up instants for year. idA+idB+year seeds one
// instant and idB+idA+year the other; the pair is then sorted, so swapping
// the identifiers yields the same result. Coinciding hours produce equal
// First and Second.
func (d Deriver) Derive(idA, idB string, year int) (model.YearlyEventPair, error) {
	if err := checkYear(year); err != nil {
		return model.YearlyEventPair{}, err
	}
	if !utf8.ValidString(idA) || !utf8.ValidString(idB) {
		return model.YearlyEventPair{}, ErrInvalidIdentifier
	}

	suffix := strconv.Itoa(year)
	n1, err := d.seed(idA + idB + suffix)
	if err != nil {
		return model.YearlyEventPair{}, err
	}
	n2, err := d.seed(idB + idA + suffix)
	if err != nil {
		return model.YearlyEventPair{}, err
	}

	hours := uint32(HoursInYear(year))
	first := HourToTime(year, int(n1%hours))
	second := HourToTime(year, int(n2%hours))
	if second.Before(first) {
		first, second = second, first
	}

	return model.YearlyEventPair{Year: year, First: first, Second: second}, nil
}

// seed digests s and reads the first four bytes as a big-endian uint32.
func (d Deriver) seed(s string) (uint32, error) {
	h := d.Digest()
	if err := checkDigest(h); err != nil {
		return 0, err
	}
	w := h.New()
	w.Write([]byte(s))
	return binary.BigEndian.Uint32(w.Sum(nil)[:4]), nil
}

// IsLeapYear applies the Gregorian rule.
func IsLeapYear(year int) bool {
	return (year%4 == 0 && year%100 != 0) || year%400 == 0
}

// HoursInYear is 8784 for leap years and 8760 otherwise.
func HoursInYear(year int) int {
	if IsLeapYear(year) {
		return HoursInLeapYear
	}
	return HoursInCommonYear
}

// StartOfYear is midnight UTC on January 1.
func StartOfYear(year int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
}

// HourToTime offsets StartOfYear(year) by hour whole hours.
func HourToTime(year, hour int) time.Time {
	return StartOfYear(year).Add(time.Duration(hour) * time.Hour)
}

func checkYear(year int) error {
	if year < MinYear || year > MaxYear {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidYear, year, MinYear, MaxYear)
	}
	return nil
}
