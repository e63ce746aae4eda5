// Package corpus discovers the partitions and documents of an input
// collection. The root directory holds one sub-directory per partition and
// each partition holds plain document files; both levels are visited in
// lexicographic order so doc ids are reproducible across runs.
package corpus

import (
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"

	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
)

// Partition is one sub-directory of the input root; it becomes one block.
type Partition struct {
	Name string
	Dir  string
}

// Document is a file inside a partition.
type Document struct {
	// Path is "<partition>/<file>", the name reported in query results.
	Path     string
	FullPath string
}

// Partitions lists the partition directories under root.
func Partitions(root string) ([]Partition, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, apperrors.Config("invalid data directory: %s", root)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, apperrors.IO("listing", root, err)
	}

	logger := slog.Default().With("component", "corpus")
	parts := make([]Partition, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			logger.Warn("skipping non-directory entry in data root", "name", e.Name())
			continue
		}
		parts = append(parts, Partition{Name: e.Name(), Dir: filepath.Join(root, e.Name())})
	}
	slices.SortFunc(parts, func(a, b Partition) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return parts, nil
}

// Documents lists the regular files of p in name order.
func (p Partition) Documents() ([]Document, error) {
	entries, err := os.ReadDir(p.Dir)
	if err != nil {
		return nil, apperrors.IO("listing partition", p.Dir, err)
	}
	docs := make([]Document, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			slog.Default().With("component", "corpus").Warn("skipping nested directory",
				"partition", p.Name,
				"name", e.Name(),
			)
			continue
		}
		docs = append(docs, Document{
			Path:     path.Join(p.Name, e.Name()),
			FullPath: filepath.Join(p.Dir, e.Name()),
		})
	}
	// os.ReadDir already sorts by filename.
	return docs, nil
}

// Open opens the document for reading.
func (d Document) Open() (*os.File, error) {
	f, err := os.Open(d.FullPath)
	if err != nil {
		return nil, apperrors.IO("opening document", d.FullPath, err)
	}
	return f, nil
}
