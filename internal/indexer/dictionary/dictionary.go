// Package dictionary owns the term, document and posting-offset mappings of
// an indexing run and their tab-separated text artifacts.
package dictionary

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
)

// Artifact file names inside an index directory.
const (
	IndexFile       = "corpus.index"
	TermDictFile    = "term.dict"
	DocDictFile     = "doc.dict"
	PostingDictFile = "posting.dict"
)

// PostingEntry locates a term's posting record in the index file.
type PostingEntry struct {
	Offset  int64
	DocFreq uint32
}

// Session holds the mutable dictionaries of one indexing run. It is created
// at the start of the run and passed to every component that allocates ids
// or records offsets.
type Session struct {
	terms      map[string]uint32
	docs       map[string]uint32
	postings   map[uint32]PostingEntry
	nextTermID uint32
	nextDocID  uint32
}

func NewSession() *Session {
	return &Session{
		terms:    make(map[string]uint32),
		docs:     make(map[string]uint32),
		postings: make(map[uint32]PostingEntry),
	}
}

// TermID resolves term, allocating the next id on first sight. Ids start at
// 1 and follow first-occurrence order across the whole run.
func (s *Session) TermID(term string) uint32 {
	if id, ok := s.terms[term]; ok {
		return id
	}
	s.nextTermID++
	s.terms[term] = s.nextTermID
	return s.nextTermID
}

// LookupTerm returns the id of a term without allocating.
func (s *Session) LookupTerm(term string) (uint32, bool) {
	id, ok := s.terms[term]
	return id, ok
}

// AddDocument allocates the next doc id for path.
func (s *Session) AddDocument(path string) (uint32, error) {
	if id, ok := s.docs[path]; ok {
		return 0, fmt.Errorf("document %q already registered as %d", path, id)
	}
	s.nextDocID++
	s.docs[path] = s.nextDocID
	return s.nextDocID, nil
}

// RecordPosting notes where termID's posting list was just written. Later
// writes for the same term replace earlier ones, so after the last merge the
// map describes the final index.
func (s *Session) RecordPosting(termID uint32, offset int64, docFreq int) {
	s.postings[termID] = PostingEntry{Offset: offset, DocFreq: uint32(docFreq)}
}

func (s *Session) Posting(termID uint32) (PostingEntry, bool) {
	e, ok := s.postings[termID]
	return e, ok
}

func (s *Session) Terms() int    { return len(s.terms) }
func (s *Session) Docs() int     { return len(s.docs) }
func (s *Session) Postings() int { return len(s.postings) }

// Save writes term.dict, doc.dict and posting.dict into dir, each sorted by
// its key. All three are staged as .tmp siblings and only renamed into place
// once every one has been written.
func (s *Session) Save(dir string) error {
	terms := sortedKeys(s.terms)
	paths := sortedKeys(s.docs)
	termIDs := make([]uint32, 0, len(s.postings))
	for id := range s.postings {
		termIDs = append(termIDs, id)
	}
	slices.Sort(termIDs)

	files := []struct {
		name string
		fill func(w *bufio.Writer) error
	}{
		{TermDictFile, func(w *bufio.Writer) error {
			for _, term := range terms {
				if _, err := fmt.Fprintf(w, "%s\t%d\n", term, s.terms[term]); err != nil {
					return err
				}
			}
			return nil
		}},
		{DocDictFile, func(w *bufio.Writer) error {
			for _, path := range paths {
				if _, err := fmt.Fprintf(w, "%s\t%d\n", path, s.docs[path]); err != nil {
					return err
				}
			}
			return nil
		}},
		{PostingDictFile, func(w *bufio.Writer) error {
			for _, id := range termIDs {
				e := s.postings[id]
				if _, err := fmt.Fprintf(w, "%d\t%d\t%d\n", id, e.Offset, e.DocFreq); err != nil {
					return err
				}
			}
			return nil
		}},
	}

	var staged []string
	discard := func() {
		for _, p := range staged {
			os.Remove(p)
		}
	}
	for _, f := range files {
		tmpPath := filepath.Join(dir, f.name) + ".tmp"
		if err := writeTemp(tmpPath, f.fill); err != nil {
			discard()
			return err
		}
		staged = append(staged, tmpPath)
	}

	for i, f := range files {
		path := filepath.Join(dir, f.name)
		if err := os.Rename(staged[i], path); err != nil {
			for _, done := range files[:i] {
				os.Remove(filepath.Join(dir, done.name))
			}
			discard()
			return apperrors.IO("renaming", staged[i], err)
		}
	}
	return nil
}

func sortedKeys(m map[string]uint32) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// writeTemp creates tmpPath and fills it. On failure tmpPath is removed.
func writeTemp(tmpPath string, fill func(w *bufio.Writer) error) error {
	f, err := os.Create(tmpPath)
	if err != nil {
		return apperrors.IO("creating", tmpPath, err)
	}
	w := bufio.NewWriter(f)
	if err := fill(w); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return apperrors.IO("writing", tmpPath, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return apperrors.IO("flushing", tmpPath, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return apperrors.IO("closing", tmpPath, err)
	}
	return nil
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
