// Package codec serializes posting lists to and from the on-disk record
// format shared by block files and the final corpus index.
//
// Two interchangeable variants exist. Basic writes fixed-width big-endian
// uint32 fields, so a record for n documents is exactly 8+4n bytes.
// VariableByte writes each number as MSB-first base-128 groups terminated by
// a byte with the high bit set, and stores doc ids as gaps.
//
// The variant is picked once per run and passed to every component that
// reads or writes records; an index must be read with the variant that wrote
// it, as records are not self-describing.
package codec

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
)

// Variant enumerates the available record formats.
type Variant int

const (
	Basic Variant = iota + 1
	VariableByte
)

func (v Variant) String() string {
	switch v {
	case Basic:
		return "Basic"
	case VariableByte:
		return "VB"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// ParseVariant resolves a user-supplied codec name. Matching is
// case-insensitive; "VB" and "VariableByte" name the same variant.
func ParseVariant(name string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "basic":
		return Basic, nil
	case "vb", "variablebyte":
		return VariableByte, nil
	default:
		return 0, apperrors.Config("unknown codec %q, must be \"Basic\" or \"VB\"", name)
	}
}

// Reader is what ReadPosting consumes. *bufio.Reader satisfies it.
type Reader interface {
	io.Reader
	io.ByteReader
}

// Codec reads and writes single posting records.
type Codec interface {
	Name() string
	// WritePosting encodes p to w and returns the number of bytes written.
	// p must satisfy index.Posting.Validate.
	WritePosting(w io.Writer, p index.Posting) (int, error)
	// ReadPosting decodes the next record. ok is false with a nil error
	// when r is cleanly exhausted before the first byte of a record; a
	// record cut short anywhere else is reported as ErrCorruptIndex.
	ReadPosting(r Reader) (p index.Posting, ok bool, err error)
}

// New returns the codec for v.
func New(v Variant) (Codec, error) {
	switch v {
	case Basic:
		return basicCodec{}, nil
	case VariableByte:
		return vbCodec{}, nil
	default:
		return nil, apperrors.Config("unsupported codec variant %d", int(v))
	}
}

// ByName combines ParseVariant and New.
func ByName(name string) (Codec, error) {
	v, err := ParseVariant(name)
	if err != nil {
		return nil, err
	}
	return New(v)
}

// Encode returns the wire bytes of a single record.
func Encode(c Codec, p index.Posting) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := c.WritePosting(&buf, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads one record from data. ok is false if data is empty.
func Decode(c Codec, data []byte) (index.Posting, bool, error) {
	return c.ReadPosting(bytes.NewReader(data))
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperrors.ErrCorruptIndex, fmt.Sprintf(format, args...))
}

// initialCap bounds the up-front allocation for a decoded doc id list so a
// corrupt frequency field cannot trigger a huge allocation before the read
// fails.
func initialCap(freq uint32) int {
	const limit = 1 << 16
	if freq > limit {
		return limit
	}
	return int(freq)
}

func checkDecoded(p index.Posting) error {
	if err := p.Validate(); err != nil {
		return corrupt("decoded record: %v", err)
	}
	return nil
}
