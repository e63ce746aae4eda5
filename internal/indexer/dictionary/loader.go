package dictionary

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
)

// Dictionaries is the read-only view of a finished index used at query time.
type Dictionaries struct {
	Terms    map[string]uint32
	Docs     map[uint32]string
	Postings map[uint32]PostingEntry
}

// Load reads the three dictionary files from dir.
func Load(dir string) (*Dictionaries, error) {
	d := &Dictionaries{
		Terms:    make(map[string]uint32),
		Docs:     make(map[uint32]string),
		Postings: make(map[uint32]PostingEntry),
	}

	err := readLines(filepath.Join(dir, TermDictFile), func(line string) error {
		key, id, err := splitKeyID(line)
		if err != nil {
			return err
		}
		d.Terms[key] = id
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = readLines(filepath.Join(dir, DocDictFile), func(line string) error {
		path, id, err := splitKeyID(line)
		if err != nil {
			return err
		}
		d.Docs[id] = path
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = readLines(filepath.Join(dir, PostingDictFile), func(line string) error {
		fields := strings.Split(line, "\t")
		if len(fields) != 3 {
			return fmt.Errorf("expected 3 fields, got %d", len(fields))
		}
		termID, err := parseUint32(fields[0])
		if err != nil {
			return fmt.Errorf("term id: %w", err)
		}
		offset, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil || offset < 0 {
			return fmt.Errorf("invalid offset %q", fields[1])
		}
		freq, err := parseUint32(fields[2])
		if err != nil {
			return fmt.Errorf("document frequency: %w", err)
		}
		d.Postings[termID] = PostingEntry{Offset: offset, DocFreq: freq}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// splitKeyID splits "<key>\t<id>" on the last tab so keys that contain tabs
// still parse.
func splitKeyID(line string) (string, uint32, error) {
	i := strings.LastIndexByte(line, '\t')
	if i < 0 {
		return "", 0, fmt.Errorf("missing tab separator")
	}
	id, err := parseUint32(line[i+1:])
	if err != nil {
		return "", 0, fmt.Errorf("id: %w", err)
	}
	return line[:i], id, nil
}

func readLines(path string, fn func(line string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return apperrors.IO("opening", path, err)
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 64*1024)
	lineNo := 0
	for {
		line, readErr := r.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return apperrors.IO("reading", path, readErr)
		}
		if readErr != nil && line == "" {
			return nil
		}
		lineNo++
		line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
		if line != "" {
			if err := fn(line); err != nil {
				return fmt.Errorf("%w: %s line %d: %v", apperrors.ErrCorruptIndex, filepath.Base(path), lineNo, err)
			}
		}
		if readErr != nil {
			return nil
		}
	}
}
