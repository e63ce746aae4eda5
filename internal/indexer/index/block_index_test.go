package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockIndexCollapsesDuplicates(t *testing.T) {
	b := NewBlockIndex()
	b.Add(2, 1)
	b.Add(2, 1)
	b.Add(1, 1)
	b.MarkDocument()
	b.Add(2, 2)
	b.Add(3, 2)
	b.MarkDocument()

	assert.Equal(t, 3, b.Terms())
	assert.Equal(t, int64(4), b.Pairs())
	assert.Equal(t, 2, b.DocCount())

	assert.Equal(t, []Posting{
		{TermID: 1, DocIDs: []uint32{1}},
		{TermID: 2, DocIDs: []uint32{1, 2}},
		{TermID: 3, DocIDs: []uint32{2}},
	}, b.Snapshot())
}

func TestBlockIndexDrainOrdersAndReleases(t *testing.T) {
	b := NewBlockIndex()
	for _, term := range []uint32{9, 4, 7} {
		b.Add(term, 3)
		b.Add(term, 1)
	}

	var order []uint32
	err := b.Drain(func(p Posting) error {
		require.NoError(t, p.Validate())
		assert.Equal(t, []uint32{1, 3}, p.DocIDs)
		order = append(order, p.TermID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []uint32{4, 7, 9}, order)
	assert.Zero(t, b.Terms())

	b.Reset()
	assert.Zero(t, b.Pairs())
	assert.Zero(t, b.DocCount())
}
