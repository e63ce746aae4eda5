package segment

import (
	"fmt"
	"path/filepath"
)

// Queue is the FIFO worklist of pending blocks. It also allocates the names
// of new block files so that every file it hands out is unique within dir.
type Queue struct {
	dir    string
	prefix string
	seq    int
	blocks []*Block
}

func NewQueue(dir, prefix string) *Queue {
	if prefix == "" {
		prefix = "block"
	}
	return &Queue{dir: dir, prefix: prefix}
}

// NextPath returns a fresh temporary block path.
func (q *Queue) NextPath() string {
	q.seq++
	return filepath.Join(q.dir, fmt.Sprintf("%s-%06d.tmp", q.prefix, q.seq))
}

// Push takes ownership of b.
func (q *Queue) Push(b *Block) {
	q.blocks = append(q.blocks, b)
}

// PopPair removes and returns the two oldest blocks. ok is false if fewer
// than two are queued.
func (q *Queue) PopPair() (a, b *Block, ok bool) {
	if len(q.blocks) < 2 {
		return nil, nil, false
	}
	a, b = q.blocks[0], q.blocks[1]
	q.blocks[0], q.blocks[1] = nil, nil
	q.blocks = q.blocks[2:]
	return a, b, true
}

// Pop removes and returns the oldest block.
func (q *Queue) Pop() (*Block, bool) {
	if len(q.blocks) == 0 {
		return nil, false
	}
	b := q.blocks[0]
	q.blocks[0] = nil
	q.blocks = q.blocks[1:]
	return b, true
}

func (q *Queue) Len() int {
	return len(q.blocks)
}

// Paths lists the files still owned by the queue, oldest first.
func (q *Queue) Paths() []string {
	out := make([]string, 0, len(q.blocks))
	for _, b := range q.blocks {
		out = append(out, b.Path)
	}
	return out
}
