// Copyright 2017, Kerby Shedden and the Muscato contributors.

// Package bucket implements the bounded, disk-spilling bucket engine
// shared by both pipeline phases. A Bucket[T] accumulates records of a
// single type in memory; once it reaches capacity the full buffer is
// detached and handed to a background goroutine that sorts it and
// writes it to a deterministically-named file, while the caller keeps
// accumulating into a fresh buffer. Finish drains the final buffer on
// the caller's goroutine and waits for every spawned writer to finish
// before returning the ordered list of filenames it produced.
package bucket

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Record is the capability a type must provide to be bucketed: a total
// order (Less) and a little-endian serializer (WriteTo).
type Record[T any] interface {
	Less(other T) bool
	WriteTo(w *bufio.Writer) error
}

// pollInterval is how often finish and the writer-count wait loop poll
// the shared writer counter. It mirrors the 10ms interval used by the
// original bucket implementation this engine is ported from.
const pollInterval = 10 * time.Millisecond

// shared is the process-wide state a bucket series hands down to every
// sibling bucket created by a spill, matching the spec's "writer
// counter" and "filename-slot array" coordination record.
type shared struct {
	mu        sync.Mutex
	writing   int
	filenames []string
}

func (s *shared) startWriting() {
	s.mu.Lock()
	s.writing++
	s.mu.Unlock()
}

func (s *shared) endWriting() {
	s.mu.Lock()
	s.writing--
	s.mu.Unlock()
}

func (s *shared) waitForZero() {
	for {
		s.mu.Lock()
		n := s.writing
		s.mu.Unlock()
		if n == 0 {
			return
		}
		time.Sleep(pollInterval)
	}
}

func (s *shared) setFilename(id int, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.filenames) <= id {
		s.filenames = append(s.filenames, "")
	}
	s.filenames[id] = name
}

func (s *shared) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.filenames))
	copy(out, s.filenames)
	return out
}

// Bucket is a bounded in-memory batch of records of type T destined for
// one sorted on-disk file, plus the machinery to spill full batches to
// background writers and coordinate their completion.
type Bucket[T Record[T]] struct {
	records    []T
	bucketID   int
	capacity   int
	dir        string
	sampleName string
	ending     string
	shared     *shared
}

// New constructs an empty bucket series. capacity is the record count at
// which a bucket spills; dir is the output directory; sampleName and
// ending feed the deterministic filename template
// "{dir}/{sample}_{capacity}_{id}.{ending}".
func New[T Record[T]](capacity int, dir, sampleName, ending string) *Bucket[T] {
	return &Bucket[T]{
		records:    make([]T, 0, capacity+1),
		capacity:   capacity,
		dir:        dir,
		sampleName: sampleName,
		ending:     ending,
		shared:     &shared{},
	}
}

// Add appends record to the current buffer, spilling it to disk in a
// background goroutine once it reaches capacity.
func (b *Bucket[T]) Add(record T) {
	b.records = append(b.records, record)
	if b.isFull() {
		b.spill()
	}
}

func (b *Bucket[T]) isFull() bool {
	return len(b.records) >= b.capacity
}

// spill detaches the current buffer into a sibling bucket that owns the
// same shared coordination state, advances this bucket's id, and
// dispatches the sibling to a background writer. The caller's bucket is
// left with a fresh, empty buffer and is never touched by the spawned
// goroutine again.
func (b *Bucket[T]) spill() {
	sibling := &Bucket[T]{
		records:    b.records,
		bucketID:   b.bucketID,
		capacity:   b.capacity,
		dir:        b.dir,
		sampleName: b.sampleName,
		ending:     b.ending,
		shared:     b.shared,
	}
	b.records = make([]T, 0, b.capacity+1)
	b.bucketID++

	b.shared.startWriting()
	go func() {
		if err := sibling.writeToDisk(); err != nil {
			log.Fatalf("bucket: fatal I/O error writing bucket %s: %v", sibling.filename(), err)
		}
	}()
}

// Finish spills the final (possibly empty) buffer on the caller's
// goroutine, blocks until every in-flight writer has terminated, and
// returns a snapshot of the committed filename list in bucket-id order.
func (b *Bucket[T]) Finish() ([]string, error) {
	b.shared.startWriting()
	if err := b.writeToDisk(); err != nil {
		return nil, fmt.Errorf("bucket: fatal I/O error writing final bucket %s: %w", b.filename(), err)
	}
	b.shared.waitForZero()
	return b.shared.snapshot(), nil
}

func (b *Bucket[T]) filename() string {
	return filepath.Join(b.dir, fmt.Sprintf("%s_%d_%d.%s", b.sampleName, b.capacity, b.bucketID, b.ending))
}

// writeToDisk sorts the buffer in place and writes it, unless the buffer
// is empty (no file, no filename slot) or the target file already
// exists (idempotent re-run: the filename slot is still registered).
// It always pairs with exactly one endWriting call, on every path.
func (b *Bucket[T]) writeToDisk() error {
	defer b.shared.endWriting()

	if len(b.records) == 0 {
		return nil
	}

	name := b.filename()
	if _, err := os.Stat(name); err == nil {
		b.shared.setFilename(b.bucketID, name)
		return nil
	}

	sort.Slice(b.records, func(i, j int) bool { return b.records[i].Less(b.records[j]) })

	file, err := os.Create(name)
	if err != nil {
		return err
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	for _, rec := range b.records {
		if err := rec.WriteTo(w); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	b.shared.setFilename(b.bucketID, name)
	return nil
}
