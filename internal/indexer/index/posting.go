package index

import (
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
)

// Posting is one term's posting list: the ids of every document containing
// the term, strictly increasing and unique.
type Posting struct {
	TermID uint32
	DocIDs []uint32
}

// DocFreq is the document frequency of the term, i.e. the list length.
func (p Posting) DocFreq() int {
	return len(p.DocIDs)
}

// Validate reports whether p is well formed: a positive term id and a
// non-empty, strictly increasing doc id list.
func (p Posting) Validate() error {
	if p.TermID == 0 {
		return fmt.Errorf("%w: term id must be positive", apperrors.ErrMalformedPosting)
	}
	if len(p.DocIDs) == 0 {
		return fmt.Errorf("%w: term %d has no documents", apperrors.ErrMalformedPosting, p.TermID)
	}
	if p.DocIDs[0] == 0 {
		return fmt.Errorf("%w: term %d references doc id 0", apperrors.ErrMalformedPosting, p.TermID)
	}
	for i := 1; i < len(p.DocIDs); i++ {
		if p.DocIDs[i] <= p.DocIDs[i-1] {
			return fmt.Errorf("%w: term %d doc ids not strictly increasing at position %d (%d after %d)",
				apperrors.ErrMalformedPosting, p.TermID, i, p.DocIDs[i], p.DocIDs[i-1])
		}
	}
	return nil
}

// Union merges two ascending doc id lists. Ids present on both sides appear
// once in the result.
func Union(a, b []uint32) []uint32 {
	out := make([]uint32, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

// Intersect returns the ids present in both ascending lists, ascending.
func Intersect(a, b []uint32) []uint32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	out := make([]uint32, 0, n)
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}
