// Package dedupe maps upload content digests to the run that first
// processed them, so resubmitting identical bytes returns the existing run.
package dedupe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"
)

// Index records content digests to ensure identical uploads are analyzed once.
type Index interface {
	// SeenAndRecord atomically looks up digest. If it is known the existing
	// run ID is returned with true; otherwise runID is recorded and
	// returned with false.
	SeenAndRecord(ctx context.Context, digest, runID string) (string, bool)

	// Lookup returns the run recorded for digest, if any.
	Lookup(ctx context.Context, digest string) (string, bool)

	// Forget removes digest so the same content can be submitted again.
	// Used when a recorded run could not be enqueued or failed.
	Forget(ctx context.Context, digest string)

	Size() int64
}

// Digest returns the hex SHA-256 of the format hint and the payload.
func Digest(format string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(format))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// node is a single entry in the recency list, newest at head.
type node struct {
	digest string
	runID  string
	next   *node
}

func (n *node) reset() {
	n.digest = ""
	n.runID = ""
	n.next = nil
}

// inMemoryIndex implements Index with a map and a singly linked list.
// Bounded mode (maxSize > 0) evicts the oldest entry when full and pools
// nodes; unbounded mode keeps every digest.
type inMemoryIndex struct {
	mu       sync.RWMutex
	seen     map[string]*node
	head     *node
	maxSize  int
	size     atomic.Int64
	nodePool sync.Pool
}

// NewInMemoryIndex creates an index with the given options.
func NewInMemoryIndex(opts ...Option) Index {
	d := &inMemoryIndex{
		maxSize: 10000,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*node)
	d.nodePool = sync.Pool{
		New: func() interface{} {
			return &node{}
		},
	}
	return d
}

func (d *inMemoryIndex) SeenAndRecord(ctx context.Context, digest, runID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if n, exists := d.seen[digest]; exists {
		return n.runID, true
	}

	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		d.evictOldest()
	}

	n := d.nodePool.Get().(*node)
	n.digest = digest
	n.runID = runID
	n.next = d.head
	d.head = n
	d.seen[digest] = n
	d.size.Add(1)
	return runID, false
}

func (d *inMemoryIndex) Lookup(ctx context.Context, digest string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if n, ok := d.seen[digest]; ok {
		return n.runID, true
	}
	return "", false
}

func (d *inMemoryIndex) Forget(ctx context.Context, digest string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, exists := d.seen[digest]
	if !exists {
		return
	}
	delete(d.seen, digest)

	if d.head == n {
		d.head = n.next
	} else {
		current := d.head
		for current != nil && current.next != n {
			current = current.next
		}
		if current != nil {
			current.next = n.next
		}
	}

	n.reset()
	d.nodePool.Put(n)
	d.size.Add(-1)
}

// evictOldest removes the tail of the list. Must be called with d.mu held.
func (d *inMemoryIndex) evictOldest() {
	if d.head == nil {
		return
	}
	var prev *node
	current := d.head
	for current.next != nil {
		prev = current
		current = current.next
	}
	if prev == nil {
		d.head = nil
	} else {
		prev.next = nil
	}
	delete(d.seen, current.digest)
	current.reset()
	d.nodePool.Put(current)
	d.size.Add(-1)
}

func (d *inMemoryIndex) Size() int64 {
	return d.size.Load()
}
