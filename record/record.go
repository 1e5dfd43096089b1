// Copyright 2017, Kerby Shedden and the Muscato contributors.

// Package record defines the two on-disk record types produced by this
// pipeline: KmerRead (phase 1 output) and ReadPairKmer (phase 2 output).
// Both are little-endian, fixed-width, and totally ordered so that a
// bucket file containing either type can be sorted once in memory and
// merged losslessly thereafter.
package record

import (
	"bufio"
	"encoding/binary"

	"github.com/kshedden/readgrouper/kmerval"
)

// KmerRead pairs a canonical k-mer with the id of a read it was observed in.
// Ordering: k-mer ascending, then read id ascending.
type KmerRead struct {
	Kmer   kmerval.Value
	ReadID uint32
}

// Less implements the ordering required by the bucket engine.
func (k KmerRead) Less(other KmerRead) bool {
	if k.Kmer.Equal(other.Kmer) {
		return k.ReadID < other.ReadID
	}
	return k.Kmer.Less(other.Kmer)
}

// WriteTo serializes k as k-mer bytes followed by the little-endian read id.
func (k KmerRead) WriteTo(w *bufio.Writer) error {
	if err := k.Kmer.WriteTo(w); err != nil {
		return err
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], k.ReadID)
	_, err := w.Write(buf[:])
	return err
}

// ReadKmerRead decodes one KmerRead of the given k-mer width from r.
func ReadKmerRead(r *bufio.Reader, width kmerval.Width) (KmerRead, error) {
	kmer, err := kmerval.Read(r, width)
	if err != nil {
		return KmerRead{}, err
	}
	var buf [4]byte
	if err := readFull(r, buf[:]); err != nil {
		return KmerRead{}, err
	}
	return KmerRead{Kmer: kmer, ReadID: binary.LittleEndian.Uint32(buf[:])}, nil
}

// ReadPairKmer records that read1 and read2 share kmer. The invariant
// read1 < read2 holds for every instance produced by phase 2.
// Ordering: read1, then read2, then k-mer.
type ReadPairKmer struct {
	Read1, Read2 uint32
	Kmer         kmerval.Value
}

// Less implements the ordering required by the bucket engine.
func (p ReadPairKmer) Less(other ReadPairKmer) bool {
	if p.Read1 != other.Read1 {
		return p.Read1 < other.Read1
	}
	if p.Read2 != other.Read2 {
		return p.Read2 < other.Read2
	}
	return p.Kmer.Less(other.Kmer)
}

// WriteTo serializes p as read1, read2, then k-mer, all little-endian.
func (p ReadPairKmer) WriteTo(w *bufio.Writer) error {
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[0:4], p.Read1)
	binary.LittleEndian.PutUint32(buf[4:8], p.Read2)
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}
	return p.Kmer.WriteTo(w)
}

// ReadReadPairKmer decodes one ReadPairKmer of the given k-mer width from r.
func ReadReadPairKmer(r *bufio.Reader, width kmerval.Width) (ReadPairKmer, error) {
	var buf [8]byte
	if err := readFull(r, buf[:]); err != nil {
		return ReadPairKmer{}, err
	}
	kmer, err := kmerval.Read(r, width)
	if err != nil {
		return ReadPairKmer{}, err
	}
	return ReadPairKmer{
		Read1: binary.LittleEndian.Uint32(buf[0:4]),
		Read2: binary.LittleEndian.Uint32(buf[4:8]),
		Kmer:  kmer,
	}, nil
}

func readFull(r *bufio.Reader, buf []byte) error {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return err
		}
	}
	return nil
}

// MinMaxReads bounds the group size that phase 2 will turn into pair
// records. min is clamped to at least 2 — a group of size 1 can never
// produce a pair.
type MinMaxReads struct {
	Min, Max int
}

// NewMinMaxReads clamps min to >= 2.
func NewMinMaxReads(min, max int) MinMaxReads {
	if min < 2 {
		min = 2
	}
	return MinMaxReads{Min: min, Max: max}
}

// DefaultMinMaxReads accepts any group of size >= 2.
func DefaultMinMaxReads() MinMaxReads {
	return MinMaxReads{Min: 2, Max: int(^uint(0) >> 1)}
}

// IsValid reports whether value falls within [min, max] inclusive.
func (m MinMaxReads) IsValid(value int) bool {
	return value >= m.Min && value <= m.Max
}

// BucketList is the immutable manifest returned by each phase: the sample
// name, the ordered list of on-disk bucket filenames, and the total read
// count (only meaningful for phase 1; phase 2 reports 0).
type BucketList struct {
	SampleName    string
	Filenames     []string
	NumberOfReads uint32
}

// NewBucketList constructs a BucketList.
func NewBucketList(sampleName string, filenames []string, numberOfReads uint32) *BucketList {
	return &BucketList{SampleName: sampleName, Filenames: filenames, NumberOfReads: numberOfReads}
}
