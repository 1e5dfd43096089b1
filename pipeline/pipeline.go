// Copyright 2017, Kerby Shedden and the Muscato contributors.

// Package pipeline drives the two phases of the grouping run: phase 1
// fans a read stream into sorted KmerRead buckets, phase 2 merges those
// buckets and emits a ReadPairKmer for every pair of reads sharing a
// qualifying k-mer, alongside a group-size histogram.
package pipeline

import (
	"bufio"
	"fmt"

	"github.com/kshedden/readgrouper/bucket"
	"github.com/kshedden/readgrouper/bucketreader"
	"github.com/kshedden/readgrouper/extractor"
	"github.com/kshedden/readgrouper/kmerval"
	"github.com/kshedden/readgrouper/record"
)

// Source is the external collaborator that supplies decoded reads: one
// base sequence and one parallel quality array per call to Next. Err
// reports any fault the source hit; the driver treats it as fatal.
type Source interface {
	Next() bool
	Sequence() []byte
	Quality() []byte
	Err() error
}

// Phase1Config bundles the knobs phase 1 needs beyond the source itself.
type Phase1Config struct {
	SampleName     string
	BucketDir      string
	BucketCapacity int
	KmerWidth      kmerval.Width
	MinBaseQuality byte

	// Filter, when non-nil, is consulted for every read's raw sequence
	// before extraction; a false return skips the read entirely. This
	// is the hook the dedup package's Bloom screen attaches to.
	Filter func(sequence []byte) (keep bool)

	// HotKmer, when non-nil, is consulted per canonical k-mer; a false
	// return skips emitting that KmerRead. This is the hook the sketch
	// package's hot-k-mer sampler attaches to.
	HotKmer func(kmerval.Value) (keep bool)
}

// Phase1 ingests every read from source, extracts its canonical k-mer
// set, and packs a KmerRead into the phase-1 bucket series for each one
// survived past the optional filters. It panics on source.Err() per the
// input-stream failure contract: a faulting external collaborator is
// fatal to phase 1, not a recoverable error.
func Phase1(source Source, cfg Phase1Config) (*record.BucketList, error) {
	b := bucket.New[record.KmerRead](cfg.BucketCapacity, cfg.BucketDir, cfg.SampleName, "pairs")

	var readID uint32
	for source.Next() {
		seq := source.Sequence()
		if cfg.Filter != nil && !cfg.Filter(seq) {
			readID++
			continue
		}

		kmers := extractor.Extract(seq, source.Quality(), cfg.MinBaseQuality, cfg.KmerWidth)
		for _, kmer := range kmers {
			if cfg.HotKmer != nil && !cfg.HotKmer(kmer) {
				continue
			}
			b.Add(record.KmerRead{Kmer: kmer, ReadID: readID})
		}
		readID++
	}
	if err := source.Err(); err != nil {
		panic(fmt.Sprintf("pipeline: phase 1 input stream faulted: %v", err))
	}

	filenames, err := b.Finish()
	if err != nil {
		return nil, fmt.Errorf("pipeline: phase 1: %w", err)
	}
	return record.NewBucketList(cfg.SampleName, filenames, readID), nil
}

// Histogram counts how many k-mer groups were observed at each group
// size, measured after within-group deduplication of read ids.
type Histogram map[int]int

// Phase2Config bundles the knobs phase 2 needs beyond the phase-1
// manifest and the read-count bounds.
type Phase2Config struct {
	BucketDir      string
	BucketCapacity int
	KmerWidth      kmerval.Width
}

// Phase2 merges the phase-1 bucket files in k-mer order, groups reads
// sharing each k-mer, and emits a ReadPairKmer for every i<j pair within
// groups whose size falls in minMax. It returns the phase-2 manifest
// (read-count field always 0) and the group-size histogram.
func Phase2(phase1 *record.BucketList, minMax record.MinMaxReads, cfg Phase2Config) (*record.BucketList, Histogram, error) {
	decode := func(r *bufio.Reader) (record.KmerRead, error) {
		return record.ReadKmerRead(r, cfg.KmerWidth)
	}
	merge, err := bucketreader.NewMergeReader[record.KmerRead](phase1.Filenames, decode)
	if err != nil {
		return nil, nil, fmt.Errorf("pipeline: phase 2: %w", err)
	}

	out := bucket.New[record.ReadPairKmer](cfg.BucketCapacity, cfg.BucketDir, phase1.SampleName, "read_pairs")
	histogram := Histogram{}

	var currentKmer kmerval.Value
	var currentReads []uint32
	haveCurrent := false

	flush := func() {
		if !haveCurrent {
			return
		}
		flushGroup(out, histogram, currentKmer, currentReads, minMax)
		currentReads = currentReads[:0]
	}

	for {
		kr, ok := merge.Next()
		if !ok {
			break
		}
		if !haveCurrent || !kr.Kmer.Equal(currentKmer) {
			flush()
			currentKmer = kr.Kmer
			haveCurrent = true
		}
		currentReads = append(currentReads, kr.ReadID)
	}
	flush()

	filenames, err := out.Finish()
	if err != nil {
		return nil, nil, fmt.Errorf("pipeline: phase 2: %w", err)
	}
	return record.NewBucketList(phase1.SampleName, filenames, 0), histogram, nil
}

// flushGroup implements the per-k-mer flush step: dedup adjacent equal
// read ids (the merge stream is already sorted by (k, read id) within a
// group), record the deduplicated group size in the histogram, then
// emit every i<j pair if that size satisfies minMax.
func flushGroup(out *bucket.Bucket[record.ReadPairKmer], histogram Histogram, kmer kmerval.Value, reads []uint32, minMax record.MinMaxReads) {
	reads = dedupAdjacent(reads)
	histogram[len(reads)]++

	if !minMax.IsValid(len(reads)) {
		return
	}
	for i := 0; i < len(reads); i++ {
		for j := i + 1; j < len(reads); j++ {
			out.Add(record.ReadPairKmer{Read1: reads[i], Read2: reads[j], Kmer: kmer})
		}
	}
}

func dedupAdjacent(reads []uint32) []uint32 {
	if len(reads) < 2 {
		return reads
	}
	n := 1
	for i := 1; i < len(reads); i++ {
		if reads[i] != reads[n-1] {
			reads[n] = reads[i]
			n++
		}
	}
	return reads[:n]
}
