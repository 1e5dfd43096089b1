// Copyright 2017, Kerby Shedden and the Muscato contributors.

// Package config defines the JSON-decodable run configuration, in the
// same flat-struct style as the rest of this pipeline family.
package config

import (
	"encoding/json"
	"os"
)

// HotKmerSketch configures the optional approximate hot-k-mer screen.
type HotKmerSketch struct {
	// Enabled turns the sketch on. Off by default: the screen is an
	// approximation and only useful on inputs with pathological
	// low-complexity repeats.
	Enabled bool

	// NumHash is the number of independent buzhash32 hash functions
	// feeding the counting sketch.
	NumHash int

	// CounterBits is the width, in bits, of each sketch counter.
	CounterBits int

	// NumCounters is the number of counters per hash function.
	NumCounters uint64

	// Threshold is the estimated occurrence count at or above which a
	// k-mer is treated as hot and skipped by phase 1.
	Threshold int
}

// Config is the flat, JSON-decodable run configuration.
type Config struct {
	// The name of the fastq (optionally snappy-compressed) file
	// containing the reads.
	ReadFileName string

	// The directory where bucket files are written.
	BucketDir string

	// The record count at which a bucket spills to disk.
	BucketCapacity int

	// The k-mer width, 16 or 32.
	KmerWidth int

	// Bases with quality below this value abort extraction at that
	// position.
	MinBaseQuality int

	// The inclusive [min, max] bounds on group size for phase-2 pair
	// emission. Min is clamped to >= 2 by record.NewMinMaxReads.
	MinReads int
	MaxReads int

	// If true, reads are screened against a bounded Bloom filter of
	// previously seen sequences before extraction; probable repeats
	// are dropped.
	SkipDuplicateReads bool

	// The Bloom filter's bit-array size and hash-function count, used
	// only when SkipDuplicateReads is true. Zero values select
	// 4,000,000,000 bits and 5 hash functions.
	DuplicateFilterBits uint
	DuplicateFilterHash uint

	HotKmerSketch HotKmerSketch

	// Use this location to place temporary files. If blank, a
	// temporary directory is generated of the form readgrouper_tmp/######
	// in the local directory.
	TempDir string

	// The directory where log files are written. By default the logs
	// are placed into readgrouper_logs/###### in the local directory.
	LogDir string

	// If true, temporary files are not removed upon program
	// completion.
	NoCleanTmp bool
}

// ReadConfig decodes a Config from the JSON file at filename. Any
// failure to open or decode the file is fatal: configuration errors
// are caught at startup, not recovered from mid-run.
func ReadConfig(filename string) *Config {
	fid, err := os.Open(filename)
	if err != nil {
		panic(err)
	}
	defer fid.Close()

	dec := json.NewDecoder(fid)
	cfg := new(Config)
	if err := dec.Decode(cfg); err != nil {
		panic(err)
	}
	return cfg
}
