// Copyright 2017, Kerby Shedden and the Muscato contributors.

// Package bucketreader implements the single-file sequential reader and
// the k-way merge reader used to present the union of many sorted
// bucket files as one globally sorted, lazily-pulled stream.
package bucketreader

import (
	"bufio"
	"fmt"
	"os"
)

// Ordered is the minimal capability a record type needs to be merged:
// a total order against another value of the same type.
type Ordered[T any] interface {
	Less(other T) bool
}

// Decoder reads one record of type T from r, in the same little-endian
// layout a bucket.Record[T] wrote it in.
type Decoder[T any] func(r *bufio.Reader) (T, error)

// SingleFileReader is a buffered sequential reader over one spilled
// bucket file. It eagerly holds the current "head" record; construction
// fails if the file yields no record at all.
type SingleFileReader[T Ordered[T]] struct {
	file   *os.File
	buf    *bufio.Reader
	decode Decoder[T]
	head   T
}

// NewSingleFileReader opens filename and reads its first record into the
// head slot. An empty file is a construction error.
func NewSingleFileReader[T Ordered[T]](filename string, decode Decoder[T]) (*SingleFileReader[T], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("bucketreader: opening %s: %w", filename, err)
	}
	r := &SingleFileReader[T]{
		file:   f,
		buf:    bufio.NewReader(f),
		decode: decode,
	}
	head, err := decode(r.buf)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("bucketreader: no entries found in %s: %w", filename, err)
	}
	r.head = head
	return r, nil
}

// Head returns the current head record.
func (r *SingleFileReader[T]) Head() T {
	return r.head
}

// Advance attempts to replace the head with the next record in the file.
// It returns true when the file is exhausted (no next record), in which
// case the reader's underlying file has also been closed.
func (r *SingleFileReader[T]) Advance() bool {
	next, err := r.decode(r.buf)
	if err != nil {
		r.file.Close()
		return true
	}
	r.head = next
	return false
}

// MergeReader is a k-way merge over a fixed set of sorted bucket files:
// a lazy, non-restartable, monotonically non-decreasing sequence of
// records, produced by repeatedly pulling the globally smallest head
// among the still-open files.
type MergeReader[T Ordered[T]] struct {
	readers []*SingleFileReader[T]
}

// NewMergeReader opens one SingleFileReader per filename. If any file
// fails to open or yields no record, the whole merge fails to
// construct and every reader already opened is closed.
func NewMergeReader[T Ordered[T]](filenames []string, decode Decoder[T]) (*MergeReader[T], error) {
	readers := make([]*SingleFileReader[T], 0, len(filenames))
	for _, name := range filenames {
		r, err := NewSingleFileReader[T](name, decode)
		if err != nil {
			for _, opened := range readers {
				opened.file.Close()
			}
			return nil, err
		}
		readers = append(readers, r)
	}
	return &MergeReader[T]{readers: readers}, nil
}

// Next selects the reader with the smallest head (ties broken by lowest
// index, i.e. whichever file was listed first), returns its head, and
// advances that reader — discarding it from the merge if it is now
// exhausted. It returns ok=false once every reader has been discarded.
func (m *MergeReader[T]) Next() (value T, ok bool) {
	if len(m.readers) == 0 {
		return value, false
	}

	minIdx := 0
	for i := 1; i < len(m.readers); i++ {
		if m.readers[i].Head().Less(m.readers[minIdx].Head()) {
			minIdx = i
		}
	}

	value = m.readers[minIdx].Head()
	if m.readers[minIdx].Advance() {
		m.readers = append(m.readers[:minIdx], m.readers[minIdx+1:]...)
	}
	return value, true
}
