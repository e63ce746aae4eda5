package segment

import (
	"bufio"
	"fmt"
	"os"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/codec"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
)

// DefaultBufferSize is used when a zero buffer size is configured.
const DefaultBufferSize = 64 * 1024

// Block is an owned handle to an immutable, term-sorted posting file.
type Block struct {
	Path     string
	Postings int
	Bytes    int64
}

// OffsetRecorder receives the write offset and document frequency of every
// posting record as it is written.
type OffsetRecorder interface {
	RecordPosting(termID uint32, offset int64, docFreq int)
}

// Writer appends posting records to a new block file in strictly increasing
// term id order.
type Writer struct {
	codec    codec.Codec
	file     *os.File
	buf      *bufio.Writer
	path     string
	offset   int64
	postings int
	lastTerm uint32
	recorder OffsetRecorder
}

// Create opens a new block file at path. It fails if the file exists.
func Create(path string, c codec.Codec, bufSize int, rec OffsetRecorder) (*Writer, error) {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, apperrors.IO("creating block", path, err)
	}
	return &Writer{
		codec:    c,
		file:     f,
		buf:      bufio.NewWriterSize(f, bufSize),
		path:     path,
		recorder: rec,
	}, nil
}

// Write appends p. The recorder, if any, sees the offset p starts at.
func (w *Writer) Write(p index.Posting) error {
	if w.postings > 0 && p.TermID <= w.lastTerm {
		return fmt.Errorf("%w: term %d written after term %d in %s",
			apperrors.ErrMalformedPosting, p.TermID, w.lastTerm, w.path)
	}
	start := w.offset
	n, err := w.codec.WritePosting(w.buf, p)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrMalformedPosting) {
			return fmt.Errorf("%s: %w", w.path, err)
		}
		return apperrors.IO("writing posting to", w.path, err)
	}
	if w.recorder != nil {
		w.recorder.RecordPosting(p.TermID, start, len(p.DocIDs))
	}
	w.offset += int64(n)
	w.postings++
	w.lastTerm = p.TermID
	return nil
}

// Offset is the number of bytes written so far.
func (w *Writer) Offset() int64 {
	return w.offset
}

func (w *Writer) Path() string {
	return w.path
}

// Close flushes and syncs the file and returns its handle.
func (w *Writer) Close() (*Block, error) {
	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return nil, apperrors.IO("flushing block", w.path, err)
	}
	if err := w.file.Sync(); err != nil {
		w.file.Close()
		return nil, apperrors.IO("syncing block", w.path, err)
	}
	if err := w.file.Close(); err != nil {
		return nil, apperrors.IO("closing block", w.path, err)
	}
	return &Block{Path: w.path, Postings: w.postings, Bytes: w.offset}, nil
}

// Abort closes and removes a partially written file.
func (w *Writer) Abort() {
	w.file.Close()
	os.Remove(w.path)
}
