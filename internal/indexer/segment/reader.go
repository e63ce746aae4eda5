package segment

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/codec"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
)

// Reader streams the posting records of a block file in order.
type Reader struct {
	codec codec.Codec
	file  *os.File
	buf   *bufio.Reader
	path  string
	read  int
}

func OpenReader(path string, c codec.Codec, bufSize int) (*Reader, error) {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.IO("opening block", path, err)
	}
	return &Reader{
		codec: c,
		file:  f,
		buf:   bufio.NewReaderSize(f, bufSize),
		path:  path,
	}, nil
}

// Next returns the next posting. ok is false once the block is exhausted.
func (r *Reader) Next() (index.Posting, bool, error) {
	p, ok, err := r.codec.ReadPosting(r.buf)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrCorruptIndex) {
			return index.Posting{}, false, fmt.Errorf("%s record %d: %w", r.path, r.read, err)
		}
		return index.Posting{}, false, apperrors.IO("reading block", r.path, err)
	}
	if ok {
		r.read++
	}
	return p, ok, nil
}

func (r *Reader) Path() string {
	return r.path
}

func (r *Reader) Close() error {
	return r.file.Close()
}

// ReadPostingAt decodes the single record starting at offset in an index of
// the given total size.
func ReadPostingAt(ra io.ReaderAt, size, offset int64, c codec.Codec) (index.Posting, bool, error) {
	if offset < 0 || offset >= size {
		return index.Posting{}, false, fmt.Errorf("%w: offset %d outside index of %d bytes",
			apperrors.ErrCorruptIndex, offset, size)
	}
	sr := io.NewSectionReader(ra, offset, size-offset)
	p, ok, err := c.ReadPosting(bufio.NewReaderSize(sr, 4096))
	if err != nil && !errors.Is(err, apperrors.ErrCorruptIndex) {
		return index.Posting{}, false, apperrors.IO("reading index at", fmt.Sprintf("offset %d", offset), err)
	}
	return p, ok, err
}
