// Copyright 2017, Kerby Shedden and the Muscato contributors.

// Package dedup implements the optional duplicate-read screen: a
// bounded, fixed-size Bloom filter over raw read sequences, built the
// same way the alignment pipeline's own writeNonMatch stage builds its
// seen-sequence filter. It is a probabilistic, bounded-memory screen,
// not an in-memory global map of k-mers: a read is skipped only once
// its exact sequence has probably already been seen.
package dedup

import (
	"github.com/willf/bloom"
)

// Filter screens raw read sequences for probable duplicates.
type Filter struct {
	bf *bloom.BloomFilter
}

// New builds a Filter backed by a Bloom filter of m bits and k hash
// functions.
func New(m uint, k uint) *Filter {
	return &Filter{bf: bloom.New(m, k)}
}

// Keep reports whether sequence should be processed: true the first
// time a given sequence is seen, false on probable repeats. Every call
// records sequence in the filter regardless of the result, so repeated
// calls with the same bytes only ever return true once.
func (f *Filter) Keep(sequence []byte) bool {
	if f.bf.Test(sequence) {
		return false
	}
	f.bf.Add(sequence)
	return true
}
