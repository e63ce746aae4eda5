package dictionary

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
)

func TestSessionAllocatesInFirstOccurrenceOrder(t *testing.T) {
	s := NewSession()
	assert.Equal(t, uint32(1), s.TermID("b"))
	assert.Equal(t, uint32(2), s.TermID("a"))
	assert.Equal(t, uint32(1), s.TermID("b"))

	id, ok := s.LookupTerm("a")
	assert.True(t, ok)
	assert.Equal(t, uint32(2), id)
	_, ok = s.LookupTerm("z")
	assert.False(t, ok)

	d1, err := s.AddDocument("p1/x")
	require.NoError(t, err)
	d2, err := s.AddDocument("p1/y")
	require.NoError(t, err)
	assert.Equal(t, uint32(1), d1)
	assert.Equal(t, uint32(2), d2)

	_, err = s.AddDocument("p1/x")
	require.Error(t, err)
}

func TestRecordPostingOverwrites(t *testing.T) {
	s := NewSession()
	s.RecordPosting(3, 100, 2)
	s.RecordPosting(3, 16, 5)
	e, ok := s.Posting(3)
	require.True(t, ok)
	assert.Equal(t, PostingEntry{Offset: 16, DocFreq: 5}, e)
	assert.Equal(t, 1, s.Postings())
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	s := NewSession()
	s.TermID("zeta")
	s.TermID("alpha")
	_, _ = s.AddDocument("b/2.txt")
	_, _ = s.AddDocument("a/1.txt")
	s.RecordPosting(2, 0, 1)
	s.RecordPosting(1, 12, 2)
	require.NoError(t, s.Save(dir))

	termDict, err := os.ReadFile(filepath.Join(dir, TermDictFile))
	require.NoError(t, err)
	assert.Equal(t, "alpha\t2\nzeta\t1\n", string(termDict))

	docDict, err := os.ReadFile(filepath.Join(dir, DocDictFile))
	require.NoError(t, err)
	assert.Equal(t, "a/1.txt\t2\nb/2.txt\t1\n", string(docDict))

	postingDict, err := os.ReadFile(filepath.Join(dir, PostingDictFile))
	require.NoError(t, err)
	assert.Equal(t, "1\t12\t2\n2\t0\t1\n", string(postingDict))

	d, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, map[string]uint32{"zeta": 1, "alpha": 2}, d.Terms)
	assert.Equal(t, map[uint32]string{1: "b/2.txt", 2: "a/1.txt"}, d.Docs)
	assert.Equal(t, PostingEntry{Offset: 12, DocFreq: 2}, d.Postings[1])

	matches, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	assert.Empty(t, matches)
}

func savedSession() *Session {
	s := NewSession()
	s.TermID("a")
	_, _ = s.AddDocument("P1/d1")
	s.RecordPosting(1, 0, 1)
	return s
}

func assertNoDictionaries(t *testing.T, dir string) {
	t.Helper()
	for _, name := range []string{TermDictFile, DocDictFile} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.True(t, os.IsNotExist(err), "%s must not be left behind", name)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "*.dict.tmp"))
	for _, m := range matches {
		info, err := os.Stat(m)
		require.NoError(t, err)
		assert.True(t, info.IsDir(), "staged file %s left behind", m)
	}
}

func TestSaveWriteFailureLeavesNoDictionaries(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, PostingDictFile+".tmp"), 0o755))

	err := savedSession().Save(dir)
	require.ErrorIs(t, err, apperrors.ErrIO)
	assertNoDictionaries(t, dir)
}

func TestSaveRenameFailureLeavesNoDictionaries(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, PostingDictFile)
	require.NoError(t, os.MkdirAll(filepath.Join(blocker, "keep"), 0o755))

	err := savedSession().Save(dir)
	require.ErrorIs(t, err, apperrors.ErrIO)
	assertNoDictionaries(t, dir)
}

func TestLoadReadsLongLines(t *testing.T) {
	dir := t.TempDir()
	long := strings.Repeat("x", 2<<20)
	s := NewSession()
	s.TermID(long)
	_, _ = s.AddDocument("P1/d1")
	s.RecordPosting(1, 0, 1)
	require.NoError(t, s.Save(dir))

	d, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, map[string]uint32{long: 1}, d.Terms)
}

func TestLoadRejectsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, TermDictFile), []byte("a\t1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, DocDictFile), []byte("p/x\t1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, PostingDictFile), []byte("1\tnope\t1\n"), 0o644))

	_, err := Load(dir)
	require.ErrorIs(t, err, apperrors.ErrCorruptIndex)
	assert.Contains(t, err.Error(), "posting.dict line 1")
}

func TestLoadMissingDirectory(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent"))
	require.ErrorIs(t, err, apperrors.ErrIO)
}
