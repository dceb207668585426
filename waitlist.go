package priosched

import (
	"iter"
	"sort"
)

// ranked is implemented by elements of an orderedList.
type ranked interface {
	comparable
	rank() Priority
}

// orderedList keeps its elements sorted by descending rank. Elements of equal
// rank keep the order in which they were inserted, including across fix. The
// zero value is an empty list.
type orderedList[T ranked] struct {
	items []orderedItem[T]

	// The seq is stamped on each inserted element to keep the order of equal
	// ranked elements stable.
	seq uint64
}

type orderedItem[T ranked] struct {
	v   T
	seq uint64
}

func (a orderedItem[T]) before(b orderedItem[T]) bool {
	ra, rb := a.v.rank(), b.v.rank()
	if ra != rb {
		return ra > rb
	}
	return a.seq < b.seq
}

func (l *orderedList[T]) insert(v T) {
	l.place(orderedItem[T]{v: v, seq: l.seq})
	l.seq++
}

func (l *orderedList[T]) place(it orderedItem[T]) {
	i := sort.Search(len(l.items), func(i int) bool {
		return it.before(l.items[i])
	})
	l.items = append(l.items, orderedItem[T]{})
	copy(l.items[i+1:], l.items[i:])
	l.items[i] = it
}

func (l *orderedList[T]) index(v T) int {
	for i, it := range l.items {
		if it.v == v {
			return i
		}
	}
	return -1
}

func (l *orderedList[T]) take(i int) orderedItem[T] {
	it := l.items[i]
	copy(l.items[i:], l.items[i+1:])
	var zero orderedItem[T]
	l.items[len(l.items)-1] = zero // avoid memory leak
	l.items = l.items[:len(l.items)-1]
	return it
}

// remove deletes v, reporting whether it was present.
func (l *orderedList[T]) remove(v T) bool {
	i := l.index(v)
	if i < 0 {
		return false
	}
	l.take(i)
	return true
}

// fix restores the position of v after its rank changed. It reports whether v
// was present.
func (l *orderedList[T]) fix(v T) bool {
	i := l.index(v)
	if i < 0 {
		return false
	}
	l.place(l.take(i))
	return true
}

func (l *orderedList[T]) contains(v T) bool {
	return l.index(v) >= 0
}

func (l *orderedList[T]) front() (T, bool) {
	if len(l.items) == 0 {
		var zero T
		return zero, false
	}
	return l.items[0].v, true
}

func (l *orderedList[T]) popFront() (T, bool) {
	if len(l.items) == 0 {
		var zero T
		return zero, false
	}
	return l.take(0).v, true
}

func (l *orderedList[T]) len() int {
	return len(l.items)
}

// all yields the elements in order. The list must not be modified while
// iterating; see snapshot.
func (l *orderedList[T]) all() iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, it := range l.items {
			if !yield(it.v) {
				return
			}
		}
	}
}

func (l *orderedList[T]) snapshot() []T {
	out := make([]T, len(l.items))
	for i, it := range l.items {
		out[i] = it.v
	}
	return out
}
