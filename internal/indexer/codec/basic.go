package codec

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/index"
)

// basicCodec layout: termId uint32 | docFreq uint32 | docId uint32 * docFreq,
// all big-endian.
type basicCodec struct{}

func (basicCodec) Name() string { return Basic.String() }

func (basicCodec) WritePosting(w io.Writer, p index.Posting) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	buf := make([]byte, 8+4*len(p.DocIDs))
	binary.BigEndian.PutUint32(buf[0:4], p.TermID)
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(p.DocIDs)))
	for i, id := range p.DocIDs {
		binary.BigEndian.PutUint32(buf[8+4*i:], id)
	}
	return w.Write(buf)
}

func (basicCodec) ReadPosting(r Reader) (index.Posting, bool, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return index.Posting{}, false, nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return index.Posting{}, false, corrupt("truncated record header")
		}
		return index.Posting{}, false, err
	}
	termID := binary.BigEndian.Uint32(hdr[0:4])
	freq := binary.BigEndian.Uint32(hdr[4:8])
	if freq == 0 {
		return index.Posting{}, false, corrupt("term %d has zero document frequency", termID)
	}

	docIDs := make([]uint32, 0, initialCap(freq))
	var word [4]byte
	for i := uint32(0); i < freq; i++ {
		if _, err := io.ReadFull(r, word[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return index.Posting{}, false, corrupt("term %d: record truncated after %d of %d doc ids", termID, i, freq)
			}
			return index.Posting{}, false, err
		}
		docIDs = append(docIDs, binary.BigEndian.Uint32(word[:]))
	}
	p := index.Posting{TermID: termID, DocIDs: docIDs}
	if err := checkDecoded(p); err != nil {
		return index.Posting{}, false, err
	}
	return p, true, nil
}
