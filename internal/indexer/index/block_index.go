package index

import (
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
)

// BlockIndex accumulates the term id -> doc id sets of a single partition.
// Memory is bounded by the partition's distinct (term, document) pairs; the
// engine drains and resets it before moving on to the next partition.
type BlockIndex struct {
	postings map[uint32]*roaring.Bitmap
	docCount int
	pairs    int64
}

func NewBlockIndex() *BlockIndex {
	return &BlockIndex{
		postings: make(map[uint32]*roaring.Bitmap),
	}
}

// Add records that docID contains termID. Repeated occurrences of a term
// within one document collapse to a single entry.
func (b *BlockIndex) Add(termID, docID uint32) {
	bm, ok := b.postings[termID]
	if !ok {
		bm = roaring.New()
		b.postings[termID] = bm
	}
	if bm.CheckedAdd(docID) {
		b.pairs++
	}
}

// MarkDocument counts a processed document, including ones with no tokens.
func (b *BlockIndex) MarkDocument() {
	b.docCount++
}

// Snapshot returns every posting list ordered by term id without releasing
// the accumulated state.
func (b *BlockIndex) Snapshot() []Posting {
	termIDs := b.sortedTermIDs()
	out := make([]Posting, 0, len(termIDs))
	for _, id := range termIDs {
		out = append(out, Posting{TermID: id, DocIDs: b.postings[id].ToArray()})
	}
	return out
}

// Drain hands each posting list to fn in increasing term id order, releasing
// each bitmap once emitted. The index is empty afterwards unless fn fails.
func (b *BlockIndex) Drain(fn func(Posting) error) error {
	for _, id := range b.sortedTermIDs() {
		p := Posting{TermID: id, DocIDs: b.postings[id].ToArray()}
		if err := fn(p); err != nil {
			return err
		}
		delete(b.postings, id)
	}
	return nil
}

func (b *BlockIndex) sortedTermIDs() []uint32 {
	ids := make([]uint32, 0, len(b.postings))
	for id := range b.postings {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (b *BlockIndex) Terms() int {
	return len(b.postings)
}

// Pairs is the number of distinct (term, document) occurrences held.
func (b *BlockIndex) Pairs() int64 {
	return b.pairs
}

func (b *BlockIndex) DocCount() int {
	return b.docCount
}

func (b *BlockIndex) Reset() {
	b.postings = make(map[uint32]*roaring.Bitmap)
	b.docCount = 0
	b.pairs = 0
}
