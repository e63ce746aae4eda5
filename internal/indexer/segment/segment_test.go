package segment

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/codec"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/logger"
)

type offsetMap map[uint32][2]int64

func (m offsetMap) RecordPosting(termID uint32, offset int64, docFreq int) {
	m[termID] = [2]int64{offset, int64(docFreq)}
}

func codecs(t *testing.T) []codec.Codec {
	t.Helper()
	basic, err := codec.New(codec.Basic)
	require.NoError(t, err)
	vb, err := codec.New(codec.VariableByte)
	require.NoError(t, err)
	return []codec.Codec{basic, vb}
}

func writeBlock(t *testing.T, q *Queue, c codec.Codec, rec OffsetRecorder, postings []index.Posting) *Block {
	t.Helper()
	w, err := Create(q.NextPath(), c, 0, rec)
	require.NoError(t, err)
	for _, p := range postings {
		require.NoError(t, w.Write(p))
	}
	b, err := w.Close()
	require.NoError(t, err)
	return b
}

func readAll(t *testing.T, path string, c codec.Codec) []index.Posting {
	t.Helper()
	r, err := OpenReader(path, c, 0)
	require.NoError(t, err)
	defer r.Close()
	var out []index.Posting
	for {
		p, ok, err := r.Next()
		require.NoError(t, err)
		if !ok {
			return out
		}
		out = append(out, p)
	}
}

func TestWriterRecordsOffsets(t *testing.T) {
	basic, _ := codec.New(codec.Basic)
	q := NewQueue(t.TempDir(), "")
	rec := offsetMap{}
	b := writeBlock(t, q, basic, rec, []index.Posting{
		{TermID: 1, DocIDs: []uint32{1, 2}},
		{TermID: 4, DocIDs: []uint32{3}},
	})

	assert.Equal(t, 2, b.Postings)
	assert.Equal(t, int64(16+12), b.Bytes)
	assert.Equal(t, [2]int64{0, 2}, rec[1])
	assert.Equal(t, [2]int64{16, 1}, rec[4])

	info, err := os.Stat(b.Path)
	require.NoError(t, err)
	assert.Equal(t, b.Bytes, info.Size())
}

func TestWriterRejectsOutOfOrderTerms(t *testing.T) {
	basic, _ := codec.New(codec.Basic)
	q := NewQueue(t.TempDir(), "")
	w, err := Create(q.NextPath(), basic, 0, nil)
	require.NoError(t, err)
	defer w.Abort()

	require.NoError(t, w.Write(index.Posting{TermID: 5, DocIDs: []uint32{1}}))
	err = w.Write(index.Posting{TermID: 5, DocIDs: []uint32{2}})
	require.ErrorIs(t, err, apperrors.ErrMalformedPosting)
	err = w.Write(index.Posting{TermID: 3, DocIDs: []uint32{2}})
	require.ErrorIs(t, err, apperrors.ErrMalformedPosting)
}

func TestCreateRefusesExistingFile(t *testing.T) {
	basic, _ := codec.New(codec.Basic)
	path := filepath.Join(t.TempDir(), "taken")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	_, err := Create(path, basic, 0, nil)
	require.ErrorIs(t, err, apperrors.ErrIO)
}

func TestQueueFIFO(t *testing.T) {
	q := NewQueue("/tmp/x", "blk")
	assert.Equal(t, filepath.Join("/tmp/x", "blk-000001.tmp"), q.NextPath())
	for i := 0; i < 3; i++ {
		q.Push(&Block{Path: string(rune('a' + i))})
	}
	a, b, ok := q.PopPair()
	require.True(t, ok)
	assert.Equal(t, "a", a.Path)
	assert.Equal(t, "b", b.Path)
	assert.Equal(t, []string{"c"}, q.Paths())
	_, _, ok = q.PopPair()
	assert.False(t, ok)
	last, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "c", last.Path)
	assert.Zero(t, q.Len())
}

func TestMergeRoundUnionsAndDeletesInputs(t *testing.T) {
	for _, c := range codecs(t) {
		t.Run(c.Name(), func(t *testing.T) {
			q := NewQueue(t.TempDir(), "")
			rec := offsetMap{}
			a := writeBlock(t, q, c, rec, []index.Posting{
				{TermID: 1, DocIDs: []uint32{1}},
				{TermID: 2, DocIDs: []uint32{1, 2}},
				{TermID: 3, DocIDs: []uint32{2}},
			})
			b := writeBlock(t, q, c, rec, []index.Posting{
				{TermID: 2, DocIDs: []uint32{2, 3}},
				{TermID: 4, DocIDs: []uint32{3}},
				{TermID: 5, DocIDs: []uint32{3}},
			})

			m := NewMerger(c, rec, 0, nil)
			merged, err := m.MergeRound(a, b, q.NextPath())
			require.NoError(t, err)
			assert.Equal(t, 1, m.Rounds())

			assert.Equal(t, []index.Posting{
				{TermID: 1, DocIDs: []uint32{1}},
				{TermID: 2, DocIDs: []uint32{1, 2, 3}},
				{TermID: 3, DocIDs: []uint32{2}},
				{TermID: 4, DocIDs: []uint32{3}},
				{TermID: 5, DocIDs: []uint32{3}},
			}, readAll(t, merged.Path, c))
			assert.Equal(t, 5, merged.Postings)

			assert.NoFileExists(t, a.Path)
			assert.NoFileExists(t, b.Path)
			assertOffsets(t, merged, c, rec)
		})
	}
}

func TestMergeRoundFailureKeepsInputs(t *testing.T) {
	basic, _ := codec.New(codec.Basic)
	q := NewQueue(t.TempDir(), "")
	a := writeBlock(t, q, basic, nil, []index.Posting{{TermID: 1, DocIDs: []uint32{1}}})
	b := &Block{Path: q.NextPath()}
	require.NoError(t, os.WriteFile(b.Path, []byte{0, 0, 0, 2, 0, 0}, 0o644))

	out := q.NextPath()
	_, err := NewMerger(basic, nil, 0, nil).MergeRound(a, b, out)
	require.ErrorIs(t, err, apperrors.ErrCorruptIndex)
	assert.NoFileExists(t, out)
	assert.FileExists(t, a.Path)
	assert.FileExists(t, b.Path)
}

func TestMergeRoundInputRemovalFailureDropsOutput(t *testing.T) {
	basic, _ := codec.New(codec.Basic)
	q := NewQueue(t.TempDir(), "")
	a := writeBlock(t, q, basic, nil, []index.Posting{{TermID: 1, DocIDs: []uint32{1}}})
	b := writeBlock(t, q, basic, nil, []index.Posting{{TermID: 2, DocIDs: []uint32{2}}})

	removeFile = func(path string) error {
		if path == b.Path {
			return errors.New("device busy")
		}
		return os.Remove(path)
	}
	t.Cleanup(func() { removeFile = os.Remove })

	out := q.NextPath()
	_, err := NewMerger(basic, nil, 0, nil).MergeRound(a, b, out)
	require.ErrorIs(t, err, apperrors.ErrIO)
	assert.NoFileExists(t, out)
	assert.FileExists(t, b.Path)
}

func TestMergeAllLogsRunID(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	var logs bytes.Buffer
	logger.SetupWriter(&logs, "info", "text")

	basic, _ := codec.New(codec.Basic)
	q := NewQueue(t.TempDir(), "")
	q.Push(writeBlock(t, q, basic, nil, []index.Posting{{TermID: 1, DocIDs: []uint32{1}}}))
	q.Push(writeBlock(t, q, basic, nil, []index.Posting{{TermID: 1, DocIDs: []uint32{2}}}))

	m := NewMerger(basic, nil, 0, nil)
	ctx := logger.WithRunID(context.Background(), "run-42")
	_, err := m.MergeAll(ctx, q)
	require.NoError(t, err)

	var line string
	for _, l := range strings.Split(logs.String(), "\n") {
		if strings.Contains(l, "merge round done") {
			line = l
		}
	}
	require.NotEmpty(t, line)
	assert.Contains(t, line, "run_id=run-42")
	assert.Contains(t, line, "component=block-merger")
}

func TestMergeAllSingleBlock(t *testing.T) {
	basic, _ := codec.New(codec.Basic)
	q := NewQueue(t.TempDir(), "")
	only := writeBlock(t, q, basic, nil, []index.Posting{{TermID: 1, DocIDs: []uint32{1}}})
	q.Push(only)

	m := NewMerger(basic, nil, 0, nil)
	final, err := m.MergeAll(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, only, final)
	assert.Zero(t, m.Rounds())
	assert.Zero(t, q.Len())
}

func TestMergeAllEmptyQueue(t *testing.T) {
	basic, _ := codec.New(codec.Basic)
	_, err := NewMerger(basic, nil, 0, nil).MergeAll(context.Background(), NewQueue(t.TempDir(), ""))
	require.Error(t, err)
}

// Every pairing order must produce the same per-term lists, equal to the
// union of all inputs, with offsets that point at the right records.
func TestMergeAllMatchesUnionAcrossPairings(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for _, c := range codecs(t) {
		t.Run(c.Name(), func(t *testing.T) {
			var blocks [][]index.Posting
			nextDoc := uint32(1)
			for i := 0; i < 7; i++ {
				blocks = append(blocks, randomBlock(rng, &nextDoc))
			}
			want := unionAll(blocks)

			var first []index.Posting
			for _, order := range [][]int{{0, 1, 2, 3, 4, 5, 6}, {6, 5, 4, 3, 2, 1, 0}, {3, 0, 6, 1, 5, 2, 4}} {
				dir := t.TempDir()
				q := NewQueue(dir, "")
				rec := offsetMap{}
				for _, i := range order {
					q.Push(writeBlock(t, q, c, rec, blocks[i]))
				}
				m := NewMerger(c, rec, 0, nil)
				final, err := m.MergeAll(context.Background(), q)
				require.NoError(t, err)
				assert.Equal(t, len(order)-1, m.Rounds())

				got := readAll(t, final.Path, c)
				for _, p := range got {
					require.NoError(t, p.Validate())
				}
				require.True(t, slices.IsSortedFunc(got, func(x, y index.Posting) int {
					return int(x.TermID) - int(y.TermID)
				}))
				assert.Equal(t, want, got)
				assertOffsets(t, final, c, rec)

				entries, err := os.ReadDir(dir)
				require.NoError(t, err)
				assert.Len(t, entries, 1, "only the final block should remain")

				if first == nil {
					first = got
				}
				assert.Equal(t, first, got)
			}
		})
	}
}

func assertOffsets(t *testing.T, b *Block, c codec.Codec, rec offsetMap) {
	t.Helper()
	f, err := os.Open(b.Path)
	require.NoError(t, err)
	defer f.Close()
	for termID, e := range rec {
		p, ok, err := ReadPostingAt(f, b.Bytes, e[0], c)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, termID, p.TermID)
		assert.Equal(t, int(e[1]), p.DocFreq())
	}
}

func TestReadPostingAtRejectsBadOffset(t *testing.T) {
	basic, _ := codec.New(codec.Basic)
	q := NewQueue(t.TempDir(), "")
	b := writeBlock(t, q, basic, nil, []index.Posting{{TermID: 1, DocIDs: []uint32{1}}})
	f, err := os.Open(b.Path)
	require.NoError(t, err)
	defer f.Close()
	_, _, err = ReadPostingAt(f, b.Bytes, b.Bytes, basic)
	require.ErrorIs(t, err, apperrors.ErrCorruptIndex)
}

type failingReaderAt struct{}

func (failingReaderAt) ReadAt([]byte, int64) (int, error) {
	return 0, errors.New("disk failure")
}

func TestReadPostingAtClassifiesReadFailures(t *testing.T) {
	for _, c := range codecs(t) {
		_, _, err := ReadPostingAt(failingReaderAt{}, 64, 0, c)
		require.ErrorIs(t, err, apperrors.ErrIO, c.Name())
		assert.NotErrorIs(t, err, apperrors.ErrCorruptIndex)
		assert.Contains(t, err.Error(), "disk failure")
	}
}

// randomBlock builds a well-formed block over a fresh doc id range. Terms are
// drawn from a shared pool so blocks overlap.
func randomBlock(rng *rand.Rand, nextDoc *uint32) []index.Posting {
	docs := rng.Intn(6) + 1
	perTerm := make(map[uint32][]uint32)
	for d := 0; d < docs; d++ {
		doc := *nextDoc
		*nextDoc++
		for k := 0; k < rng.Intn(5)+1; k++ {
			term := uint32(rng.Intn(20)) + 1
			ids := perTerm[term]
			if len(ids) == 0 || ids[len(ids)-1] != doc {
				perTerm[term] = append(ids, doc)
			}
		}
	}
	out := make([]index.Posting, 0, len(perTerm))
	for term, ids := range perTerm {
		out = append(out, index.Posting{TermID: term, DocIDs: ids})
	}
	slices.SortFunc(out, func(x, y index.Posting) int { return int(x.TermID) - int(y.TermID) })
	return out
}

func unionAll(blocks [][]index.Posting) []index.Posting {
	perTerm := make(map[uint32][]uint32)
	for _, b := range blocks {
		for _, p := range b {
			perTerm[p.TermID] = index.Union(perTerm[p.TermID], p.DocIDs)
		}
	}
	out := make([]index.Posting, 0, len(perTerm))
	for term, ids := range perTerm {
		out = append(out, index.Posting{TermID: term, DocIDs: ids})
	}
	slices.SortFunc(out, func(x, y index.Posting) int { return int(x.TermID) - int(y.TermID) })
	return out
}

func BenchmarkMergeRound(b *testing.B) {
	basic, _ := codec.New(codec.Basic)
	left := make([]index.Posting, 0, 2000)
	right := make([]index.Posting, 0, 2000)
	for term := uint32(1); term <= 2000; term++ {
		left = append(left, index.Posting{TermID: term, DocIDs: []uint32{1, 3, 5, 7}})
		right = append(right, index.Posting{TermID: term, DocIDs: []uint32{2, 4, 6, 8}})
	}
	dir := b.TempDir()
	q := NewQueue(dir, "bench")
	m := NewMerger(basic, nil, 0, nil)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		lb := mustWrite(b, q.NextPath(), basic, left)
		rb := mustWrite(b, q.NextPath(), basic, right)
		b.StartTimer()
		merged, err := m.MergeRound(lb, rb, q.NextPath())
		if err != nil {
			b.Fatal(err)
		}
		b.StopTimer()
		os.Remove(merged.Path)
		b.StartTimer()
	}
}

func mustWrite(b *testing.B, path string, c codec.Codec, postings []index.Posting) *Block {
	w, err := Create(path, c, 0, nil)
	if err != nil {
		b.Fatal(err)
	}
	for _, p := range postings {
		if err := w.Write(p); err != nil {
			b.Fatal(err)
		}
	}
	blk, err := w.Close()
	if err != nil {
		b.Fatal(err)
	}
	return blk
}
