package blockcache

import (
	"golang.org/x/sys/cpu"

	"github.com/hupe1980/tilecache/internal/spinlock"
)

// freeList holds blocks that were removed from an index while other
// goroutines could still reference them. Entries are destroyed by drain once
// their reference count is zero.
type freeList struct {
	_    cpu.CacheLinePad
	mu   spinlock.Mutex
	head *Block
	n    int
	_    cpu.CacheLinePad
}

func (l *freeList) push(b *Block) {
	l.mu.Lock()
	if !b.onFreeList && !b.freed.Load() {
		b.onFreeList = true
		b.nextFree = l.head
		l.head = b
		l.n++
	}
	l.mu.Unlock()
}

// drain destroys every unreferenced entry and drops entries that were
// already destroyed elsewhere. It returns the number of blocks destroyed.
func (l *freeList) drain() int {
	freed := 0
	l.mu.Lock()
	var prev *Block
	for b := l.head; b != nil; {
		next := b.nextFree
		if b.freed.Load() || b.refs.Load() == 0 {
			if prev == nil {
				l.head = next
			} else {
				prev.nextFree = next
			}
			b.nextFree = nil
			b.onFreeList = false
			l.n--
			if b.destroy() {
				freed++
			}
		} else {
			prev = b
		}
		b = next
	}
	l.mu.Unlock()
	return freed
}

func (l *freeList) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.n
}
