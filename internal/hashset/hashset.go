package hashset

// HashFunc computes the hash of an element.
type HashFunc[T any] func(T) uint64

// EqualFunc reports whether two elements represent the same key.
type EqualFunc[T any] func(a, b T) bool

// FreeFunc releases an element. It is only invoked by Destroy.
type FreeFunc[T any] func(T)

// Bucket counts. Each step roughly doubles the table.
var primes = [...]int{
	53, 97, 193, 389, 769, 1543, 3079, 6151, 12289, 24593, 49157, 98317,
	196613, 393241, 786433, 1572869, 3145739, 6291469, 12582917, 25165843,
	50331653, 100663319, 201326611, 402653189, 805306457, 1610612741,
}

type node[T any] struct {
	elem T
	next *node[T]
}

// Set is an unordered collection of elements with caller supplied hashing
// and equality. It is not safe for concurrent use.
type Set[T any] struct {
	hash  HashFunc[T]
	equal EqualFunc[T]
	free  FreeFunc[T]

	buckets []*node[T]
	sizeIdx int
	n       int

	// recycled chain nodes, linked through next
	spare    *node[T]
	numSpare int
}

const maxSpare = 128

// New creates an empty set. free may be nil.
func New[T any](hash HashFunc[T], equal EqualFunc[T], free FreeFunc[T]) *Set[T] {
	if hash == nil || equal == nil {
		panic("hashset: hash and equal functions are required")
	}
	return &Set[T]{
		hash:    hash,
		equal:   equal,
		free:    free,
		buckets: make([]*node[T], primes[0]),
	}
}

// Len returns the number of elements.
func (s *Set[T]) Len() int {
	return s.n
}

func (s *Set[T]) bucket(elem T) int {
	return int(s.hash(elem) % uint64(len(s.buckets)))
}

// Insert adds elem. It returns false if an equal element is already present;
// the set is left unchanged and ownership of elem stays with the caller.
func (s *Set[T]) Insert(elem T) bool {
	if s.buckets == nil {
		s.buckets = make([]*node[T], primes[0])
		s.sizeIdx = 0
	}
	i := s.bucket(elem)
	for nd := s.buckets[i]; nd != nil; nd = nd.next {
		if s.equal(nd.elem, elem) {
			return false
		}
	}

	if s.n >= 2*len(s.buckets) && s.sizeIdx+1 < len(primes) {
		s.rehash(s.sizeIdx + 1)
		i = s.bucket(elem)
	}

	nd := s.newNode()
	nd.elem = elem
	nd.next = s.buckets[i]
	s.buckets[i] = nd
	s.n++
	return true
}

// Lookup returns the stored element equal to key.
func (s *Set[T]) Lookup(key T) (T, bool) {
	if s.n == 0 {
		var zero T
		return zero, false
	}
	for nd := s.buckets[s.bucket(key)]; nd != nil; nd = nd.next {
		if s.equal(nd.elem, key) {
			return nd.elem, true
		}
	}
	var zero T
	return zero, false
}

// Remove deletes the element equal to key. The element is not freed.
func (s *Set[T]) Remove(key T) bool {
	if s.n == 0 {
		return false
	}
	i := s.bucket(key)
	var prev *node[T]
	for nd := s.buckets[i]; nd != nil; nd = nd.next {
		if !s.equal(nd.elem, key) {
			prev = nd
			continue
		}
		if prev == nil {
			s.buckets[i] = nd.next
		} else {
			prev.next = nd.next
		}
		s.n--
		s.recycle(nd)

		if s.sizeIdx > 0 && s.n <= len(s.buckets)/2 {
			s.rehash(s.sizeIdx - 1)
		}
		return true
	}
	return false
}

// Range calls fn for every element until fn returns false. The set must not
// be modified during iteration.
func (s *Set[T]) Range(fn func(T) bool) {
	for _, head := range s.buckets {
		for nd := head; nd != nil; nd = nd.next {
			if !fn(nd.elem) {
				return
			}
		}
	}
}

// Destroy invokes the free function on every element and releases the
// table. The set is empty afterwards and may be reused.
func (s *Set[T]) Destroy() {
	for _, head := range s.buckets {
		for nd := head; nd != nil; {
			next := nd.next
			if s.free != nil {
				s.free(nd.elem)
			}
			nd = next
		}
	}
	s.buckets = nil
	s.sizeIdx = 0
	s.n = 0
	s.spare = nil
	s.numSpare = 0
}

// rehash moves every chain node into a table of primes[idx] buckets.
// Nodes are relinked, never copied or freed.
func (s *Set[T]) rehash(idx int) {
	buckets := make([]*node[T], primes[idx])
	for _, head := range s.buckets {
		for nd := head; nd != nil; {
			next := nd.next
			i := int(s.hash(nd.elem) % uint64(len(buckets)))
			nd.next = buckets[i]
			buckets[i] = nd
			nd = next
		}
	}
	s.buckets = buckets
	s.sizeIdx = idx
}

func (s *Set[T]) newNode() *node[T] {
	if s.spare == nil {
		return &node[T]{}
	}
	nd := s.spare
	s.spare = nd.next
	s.numSpare--
	nd.next = nil
	return nd
}

func (s *Set[T]) recycle(nd *node[T]) {
	var zero T
	nd.elem = zero
	if s.numSpare >= maxSpare {
		nd.next = nil
		return
	}
	nd.next = s.spare
	s.spare = nd
	s.numSpare++
}
