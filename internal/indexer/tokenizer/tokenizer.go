// Package tokenizer splits document and query text into terms. Terms are
// maximal runs of non-whitespace characters taken verbatim: no case folding,
// stop-word removal or stemming is applied, so a query term matches only the
// exact token that was indexed.
package tokenizer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Terms returns the whitespace-separated terms of text.
func Terms(text string) []string {
	return strings.Fields(text)
}

// Scan streams the whitespace-separated terms of r to fn without holding the
// whole document in memory. Terms have no length limit. It stops at the first
// error returned by fn.
func Scan(r io.Reader, fn func(term string) error) error {
	br := bufio.NewReaderSize(r, 64*1024)
	var term strings.Builder
	emit := func() error {
		if term.Len() == 0 {
			return nil
		}
		t := term.String()
		term.Reset()
		return fn(t)
	}

	for {
		c, size, err := br.ReadRune()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return emit()
			}
			return fmt.Errorf("scanning tokens: %w", err)
		}
		switch {
		case c == utf8.RuneError && size == 1:
			// Invalid UTF-8 is kept byte for byte.
			br.UnreadRune()
			b, _ := br.ReadByte()
			term.WriteByte(b)
		case unicode.IsSpace(c):
			if err := emit(); err != nil {
				return err
			}
		default:
			term.WriteRune(c)
		}
	}
}
