// Copyright 2017, Kerby Shedden and the Muscato contributors.

// Package sketch implements an optional, approximate hot-k-mer counter:
// several independent buzhash32 hash functions each feed a fixed-size
// bit-array-backed counter table, following the same multi-hash Bloom
// sketch construction the screening stage of this pipeline family uses
// for candidate windows. Phase 1 consults it to skip k-mers estimated
// to be pathologically frequent, bounding worst-case bucket blow-up
// from low-complexity repeats. It is off by default and never required
// for correctness: a disabled sketch simply never calls HotKmer's
// gating shut.
package sketch

import (
	"math/rand"

	"github.com/chmduquesne/rollinghash"
	"github.com/chmduquesne/rollinghash/buzhash32"
	"github.com/golang-collections/go-datastructures/bitarray"

	"github.com/kshedden/readgrouper/kmerval"
)

// HotKmerSketch is a counting Bloom sketch over canonical k-mer bytes.
// Each of NumHash independent hash functions indexes into its own
// bit-array-backed saturating counter table of NumCounters slots;
// Observe increments every table's bucket for a k-mer, and Estimate
// returns the minimum across tables (the standard count-min estimate).
type HotKmerSketch struct {
	tables      [][256]uint32
	counters    []bitarray.BitArray
	numCounters uint64
	counterBits int
	maxCount    uint64
}

// New builds a sketch with numHash independent hash functions, each
// backed by a bit array of numCounters saturating counters of
// counterBits width.
func New(numHash int, numCounters uint64, counterBits int) *HotKmerSketch {
	s := &HotKmerSketch{
		tables:      genTables(numHash),
		counters:    make([]bitarray.BitArray, numHash),
		numCounters: numCounters,
		counterBits: counterBits,
		maxCount:    1<<uint(counterBits) - 1,
	}
	for j := range s.counters {
		s.counters[j] = bitarray.NewBitArray(numCounters * uint64(counterBits))
	}
	return s
}

// genTables generates the per-hash-function random base tables that
// buzhash32 mixes over, mirroring the screening stage's own table
// construction: each table entry is a distinct random uint32 so the
// resulting hashes behave independently of one another.
func genTables(numHash int) [][256]uint32 {
	tables := make([][256]uint32, numHash)
	for j := 0; j < numHash; j++ {
		seen := make(map[uint32]bool)
		for i := 0; i < 256; i++ {
			for {
				x := uint32(rand.Int63())
				if !seen[x] {
					tables[j][i] = x
					seen[x] = true
					break
				}
			}
		}
	}
	return tables
}

func (s *HotKmerSketch) hashes() []rollinghash.Hash32 {
	hashes := make([]rollinghash.Hash32, len(s.tables))
	for j := range hashes {
		hashes[j] = buzhash32.NewFromUint32Array(s.tables[j])
	}
	return hashes
}

func (s *HotKmerSketch) kmerBytes(kmer kmerval.Value) []byte {
	return []byte(kmer.String())
}

func (s *HotKmerSketch) slot(hash rollinghash.Hash32, data []byte) uint64 {
	hash.Reset()
	hash.Write(data)
	return uint64(hash.Sum32()) % s.numCounters
}

// Observe increments the counter each hash function selects for kmer,
// saturating at the configured counter width rather than overflowing.
func (s *HotKmerSketch) Observe(kmer kmerval.Value) {
	data := s.kmerBytes(kmer)
	for j, hash := range s.hashes() {
		idx := s.slot(hash, data)
		s.incrementCounter(j, idx)
	}
}

// Estimate returns the count-min estimate for kmer: the minimum value
// across every hash function's counter. Below the counter's saturation
// value it never underestimates the true observation count; above it,
// the estimate stays at the saturation value.
func (s *HotKmerSketch) Estimate(kmer kmerval.Value) uint64 {
	data := s.kmerBytes(kmer)
	var min uint64 = ^uint64(0)
	for j, hash := range s.hashes() {
		idx := s.slot(hash, data)
		v := s.readCounter(j, idx)
		if v < min {
			min = v
		}
	}
	return min
}

// incrementCounter treats the counterBits-wide slot at idx within table
// j as a little-endian binary counter packed into individual bits of
// the backing bit array, saturating rather than wrapping at maxCount.
func (s *HotKmerSketch) incrementCounter(table int, idx uint64) {
	v := s.readCounter(table, idx)
	if v >= s.maxCount {
		return
	}
	v++
	base := idx * uint64(s.counterBits)
	for b := 0; b < s.counterBits; b++ {
		bit := (v >> uint(b)) & 1
		if bit == 1 {
			s.counters[table].SetBit(base + uint64(b))
		} else {
			s.counters[table].ClearBit(base + uint64(b))
		}
	}
}

func (s *HotKmerSketch) readCounter(table int, idx uint64) uint64 {
	base := idx * uint64(s.counterBits)
	var v uint64
	for b := 0; b < s.counterBits; b++ {
		set, err := s.counters[table].GetBit(base + uint64(b))
		if err != nil {
			continue
		}
		if set {
			v |= 1 << uint(b)
		}
	}
	return v
}

// HotKmerFilter wraps a HotKmerSketch into the predicate pipeline.Phase1
// expects: it records every k-mer it sees, and reports a k-mer as "keep"
// (not hot) until its estimated frequency crosses threshold.
type HotKmerFilter struct {
	sketch    *HotKmerSketch
	threshold uint64
}

// NewHotKmerFilter builds a filter over a fresh sketch.
func NewHotKmerFilter(numHash int, numCounters uint64, counterBits int, threshold int) *HotKmerFilter {
	return &HotKmerFilter{
		sketch:    New(numHash, numCounters, counterBits),
		threshold: uint64(threshold),
	}
}

// Keep observes kmer and reports whether it is still below the
// hot-k-mer threshold.
func (f *HotKmerFilter) Keep(kmer kmerval.Value) bool {
	f.sketch.Observe(kmer)
	return f.sketch.Estimate(kmer) < f.threshold
}
