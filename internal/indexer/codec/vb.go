package codec

import (
	"errors"
	"io"
	"math"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/index"
)

// maxGroups is the longest valid encoding of a uint32 (5 * 7 bits).
const maxGroups = 5

// vbCodec layout: vb(termId) | vb(docFreq) | vb(docId0) | vb(gap1) ... ;
// a number ends on the byte whose high bit is set.
type vbCodec struct{}

func (vbCodec) Name() string { return VariableByte.String() }

func (vbCodec) WritePosting(w io.Writer, p index.Posting) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	buf := make([]byte, 0, 2*maxGroups+2*len(p.DocIDs))
	buf = AppendVB(buf, p.TermID)
	buf = AppendVB(buf, uint32(len(p.DocIDs)))
	prev := uint32(0)
	for _, id := range p.DocIDs {
		buf = AppendVB(buf, id-prev)
		prev = id
	}
	return w.Write(buf)
}

func (vbCodec) ReadPosting(r Reader) (index.Posting, bool, error) {
	termID, err := readVB(r, true)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return index.Posting{}, false, nil
		}
		return index.Posting{}, false, err
	}
	freq, err := readVB(r, false)
	if err != nil {
		return index.Posting{}, false, err
	}
	if freq == 0 {
		return index.Posting{}, false, corrupt("term %d has zero document frequency", termID)
	}

	docIDs := make([]uint32, 0, initialCap(freq))
	prev := uint64(0)
	for i := uint32(0); i < freq; i++ {
		gap, err := readVB(r, false)
		if err != nil {
			return index.Posting{}, false, err
		}
		next := prev + uint64(gap)
		if next > math.MaxUint32 {
			return index.Posting{}, false, corrupt("term %d: doc id overflows uint32", termID)
		}
		docIDs = append(docIDs, uint32(next))
		prev = next
	}
	p := index.Posting{TermID: termID, DocIDs: docIDs}
	if err := checkDecoded(p); err != nil {
		return index.Posting{}, false, err
	}
	return p, true, nil
}

// AppendVB appends the variable-byte encoding of v to buf.
func AppendVB(buf []byte, v uint32) []byte {
	var tmp [maxGroups]byte
	i := len(tmp) - 1
	tmp[i] = byte(v&0x7f) | 0x80
	v >>= 7
	for v > 0 {
		i--
		tmp[i] = byte(v & 0x7f)
		v >>= 7
	}
	return append(buf, tmp[i:]...)
}

// readVB decodes one number. io.EOF is returned only when leading is set and
// the stream ends before the first byte.
func readVB(r io.ByteReader, leading bool) (uint32, error) {
	var n uint64
	for i := 0; i < maxGroups; i++ {
		b, err := r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if i == 0 && leading {
					return 0, io.EOF
				}
				return 0, corrupt("variable-byte number cut short")
			}
			return 0, err
		}
		n = n<<7 | uint64(b&0x7f)
		if b&0x80 != 0 {
			if n > math.MaxUint32 {
				return 0, corrupt("variable-byte number overflows uint32")
			}
			return uint32(n), nil
		}
	}
	return 0, corrupt("variable-byte number longer than %d bytes", maxGroups)
}
