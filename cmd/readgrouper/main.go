// Copyright 2017, Kerby Shedden and the Muscato contributors.

// readgrouper is the command-line driver for the two-phase read
// grouping pipeline: phase 1 fans a FASTQ file into sorted k-mer
// buckets, phase 2 merges them and emits read-pair records per
// qualifying k-mer.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/profile"

	"github.com/kshedden/readgrouper/config"
	"github.com/kshedden/readgrouper/dedup"
	"github.com/kshedden/readgrouper/fastqsource"
	"github.com/kshedden/readgrouper/kmerval"
	"github.com/kshedden/readgrouper/pipeline"
	"github.com/kshedden/readgrouper/record"
	"github.com/kshedden/readgrouper/sketch"
)

var (
	cfg    *config.Config
	logger *log.Logger
)

func handleArgs() {
	configFileName := flag.String("config", "", "JSON file containing configuration parameters")
	readFileName := flag.String("reads", "", "Sequencing read file (fastq format, optionally .sz-compressed)")
	bucketDir := flag.String("bucketDir", "", "Directory where bucket files are written")
	bucketCapacity := flag.Int("bucketCapacity", 0, "Record count at which a bucket spills to disk")
	kmerWidth := flag.Int("kmerWidth", 0, "K-mer width, 16 or 32")
	minBaseQuality := flag.Int("minBaseQuality", 0, "Bases below this quality abort extraction at that position")
	minReads := flag.Int("minReads", 0, "Minimum group size that produces pair output")
	maxReads := flag.Int("maxReads", 0, "Maximum group size that produces pair output")
	skipDuplicateReads := flag.Bool("skipDuplicateReads", false, "Screen out probable duplicate reads before extraction")
	profileRun := flag.Bool("profile", false, "Wrap the run in CPU profiling")
	flag.Parse()

	if *configFileName != "" {
		cfg = config.ReadConfig(*configFileName)
	} else {
		cfg = new(config.Config)
	}

	if *readFileName != "" {
		cfg.ReadFileName = *readFileName
	}
	if *bucketDir != "" {
		cfg.BucketDir = *bucketDir
	}
	if *bucketCapacity != 0 {
		cfg.BucketCapacity = *bucketCapacity
	}
	if *kmerWidth != 0 {
		cfg.KmerWidth = *kmerWidth
	}
	if *minBaseQuality != 0 {
		cfg.MinBaseQuality = *minBaseQuality
	}
	if *minReads != 0 {
		cfg.MinReads = *minReads
	}
	if *maxReads != 0 {
		cfg.MaxReads = *maxReads
	}
	if *skipDuplicateReads {
		cfg.SkipDuplicateReads = true
	}

	if cfg.ReadFileName == "" {
		fmt.Fprint(os.Stderr, "-reads (or ReadFileName in -config) must be specified\n")
		os.Exit(1)
	}
	if cfg.BucketDir == "" {
		fmt.Fprint(os.Stderr, "-bucketDir (or BucketDir in -config) must be specified\n")
		os.Exit(1)
	}
	if cfg.BucketCapacity == 0 {
		cfg.BucketCapacity = 1000000
	}
	if cfg.KmerWidth == 0 {
		cfg.KmerWidth = 16
	}
	if cfg.MinBaseQuality == 0 {
		cfg.MinBaseQuality = 20
	}
	if cfg.MinReads == 0 {
		cfg.MinReads = 2
	}
	if cfg.MaxReads == 0 {
		cfg.MaxReads = 1000000
	}

	doProfile = *profileRun
}

var doProfile bool

// makeTemp assigns a fresh run id, creates the log and temporary
// directories it namespaces, and creates the bucket directory.
func makeTemp() string {
	uid := uuid.New().String()

	if cfg.LogDir == "" {
		cfg.LogDir = path.Join("readgrouper_logs", uid)
	} else {
		cfg.LogDir = path.Join(cfg.LogDir, uid)
	}
	if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
		panic(err)
	}

	if cfg.TempDir == "" {
		cfg.TempDir = path.Join("readgrouper_tmp", uid)
	} else {
		cfg.TempDir = path.Join(cfg.TempDir, uid)
	}
	if err := os.MkdirAll(cfg.TempDir, 0755); err != nil {
		panic(err)
	}

	if err := os.MkdirAll(cfg.BucketDir, 0755); err != nil {
		panic(err)
	}

	return uid
}

func setupLog() {
	logname := path.Join(cfg.LogDir, "readgrouper.log")
	fid, err := os.Create(logname)
	if err != nil {
		panic(err)
	}
	logger = log.New(fid, "", log.Ltime)
}

func saveConfig() {
	fid, err := os.Create(path.Join(cfg.LogDir, "config.json"))
	if err != nil {
		panic(err)
	}
	defer fid.Close()
	enc := json.NewEncoder(fid)
	if err := enc.Encode(cfg); err != nil {
		panic(err)
	}
}

func sampleName(readFileName string) string {
	base := filepath.Base(readFileName)
	for _, suffix := range []string{".sz", ".fastq", ".fq", ".txt"} {
		base = strings.TrimSuffix(base, suffix)
	}
	if base == "" || strings.ToValidUTF8(base, "") != base {
		panic(fmt.Errorf("readgrouper: cannot derive a sample name from %q", readFileName))
	}
	return base
}

func kmerWidth() kmerval.Width {
	if cfg.KmerWidth == 32 {
		return kmerval.Width32
	}
	return kmerval.Width16
}

func run() {
	src, err := fastqsource.Open(cfg.ReadFileName)
	if err != nil {
		panic(err)
	}
	defer src.Close()

	phase1Cfg := pipeline.Phase1Config{
		SampleName:     sampleName(cfg.ReadFileName),
		BucketDir:      cfg.BucketDir,
		BucketCapacity: cfg.BucketCapacity,
		KmerWidth:      kmerWidth(),
		MinBaseQuality: byte(cfg.MinBaseQuality),
	}

	if cfg.SkipDuplicateReads {
		bits, hashes := cfg.DuplicateFilterBits, cfg.DuplicateFilterHash
		if bits == 0 {
			bits = 4 * 1000 * 1000 * 1000
		}
		if hashes == 0 {
			hashes = 5
		}
		filter := dedup.New(bits, hashes)
		phase1Cfg.Filter = filter.Keep
	}

	if cfg.HotKmerSketch.Enabled {
		hk := sketch.NewHotKmerFilter(
			cfg.HotKmerSketch.NumHash,
			cfg.HotKmerSketch.NumCounters,
			cfg.HotKmerSketch.CounterBits,
			cfg.HotKmerSketch.Threshold,
		)
		phase1Cfg.HotKmer = hk.Keep
	}

	logger.Printf("Starting phase 1 ingest of %s", cfg.ReadFileName)
	start := time.Now()
	phase1, err := pipeline.Phase1(src, phase1Cfg)
	if err != nil {
		panic(err)
	}
	logger.Printf("Phase 1 done: %d reads, %d bucket files, elapsed %s",
		phase1.NumberOfReads, len(phase1.Filenames), time.Since(start))

	minMax := record.NewMinMaxReads(cfg.MinReads, cfg.MaxReads)
	phase2Cfg := pipeline.Phase2Config{
		BucketDir:      cfg.BucketDir,
		BucketCapacity: cfg.BucketCapacity,
		KmerWidth:      kmerWidth(),
	}

	logger.Printf("Starting phase 2 merge-and-group")
	start = time.Now()
	phase2, histogram, err := pipeline.Phase2(phase1, minMax, phase2Cfg)
	if err != nil {
		panic(err)
	}
	logger.Printf("Phase 2 done: %d bucket files, elapsed %s", len(phase2.Filenames), time.Since(start))

	writeHistogram(histogram)
}

func writeHistogram(histogram pipeline.Histogram) {
	name := path.Join(cfg.LogDir, "histogram.txt")
	fid, err := os.Create(name)
	if err != nil {
		panic(err)
	}
	defer fid.Close()

	sizes := make([]int, 0, len(histogram))
	for size := range histogram {
		sizes = append(sizes, size)
	}
	for i := 0; i < len(sizes); i++ {
		for j := i + 1; j < len(sizes); j++ {
			if sizes[j] < sizes[i] {
				sizes[i], sizes[j] = sizes[j], sizes[i]
			}
		}
	}
	for _, size := range sizes {
		fmt.Fprintf(fid, "%d\t%d\n", size, histogram[size])
	}
}

func main() {
	handleArgs()
	uid := makeTemp()
	saveConfig()
	setupLog()

	logger.Printf("Run id %s", uid)
	logger.Printf("Storing temporary files in %s", cfg.TempDir)
	logger.Printf("Storing log files in %s", cfg.LogDir)

	if doProfile {
		p := profile.Start(profile.ProfilePath(cfg.LogDir))
		defer p.Stop()
	}

	run()

	if !cfg.NoCleanTmp {
		os.RemoveAll(cfg.TempDir)
	}

	logger.Printf("All done, exit after cleanup")
}
