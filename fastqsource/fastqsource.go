// Copyright 2017, Kerby Shedden and the Muscato contributors.

// Package fastqsource implements the pipeline.Source contract over a
// plain FASTQ file, transparently decompressing a ".sz"-suffixed input
// with snappy exactly as every intermediate file in this pipeline
// family is read, and falling back to a plain reader otherwise.
package fastqsource

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/golang/snappy"
)

// FastqSource reads one read (sequence + quality) at a time from a
// four-line-per-record FASTQ stream: a name line, a sequence line, a
// "+" separator line, and a quality line.
type FastqSource struct {
	file    *os.File
	scanner *bufio.Scanner

	name string
	seq  []byte
	qual []byte
	err  error
}

// Open opens filename, wrapping the reader in a snappy decompressor
// when the name ends in ".sz".
func Open(filename string) (*FastqSource, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("fastqsource: opening %s: %w", filename, err)
	}

	var r io.Reader = f
	if strings.HasSuffix(filename, ".sz") {
		r = snappy.NewReader(f)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)

	return &FastqSource{file: f, scanner: scanner}, nil
}

// Close releases the underlying file handle.
func (s *FastqSource) Close() error {
	return s.file.Close()
}

// Next advances to the next read, reading its four FASTQ lines. It
// returns false at end of stream or on a malformed record; the caller
// must check Err afterward to distinguish the two.
func (s *FastqSource) Next() bool {
	var lines [4]string
	for i := 0; i < 4; i++ {
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				s.err = fmt.Errorf("fastqsource: reading record: %w", err)
			} else if i != 0 {
				s.err = fmt.Errorf("fastqsource: truncated record at end of file")
			}
			return false
		}
		lines[i] = s.scanner.Text()
	}

	if len(lines[1]) != len(lines[3]) {
		s.err = fmt.Errorf("fastqsource: sequence/quality length mismatch for read %q", lines[0])
		return false
	}

	s.name = lines[0]
	s.seq = []byte(lines[1])
	s.qual = decodePhred(lines[3])
	return true
}

// Sequence returns the current read's bases.
func (s *FastqSource) Sequence() []byte { return s.seq }

// Quality returns the current read's Phred quality scores.
func (s *FastqSource) Quality() []byte { return s.qual }

// Name returns the current read's name line, including its leading "@".
func (s *FastqSource) Name() string { return s.name }

// Err reports the fault, if any, that stopped Next.
func (s *FastqSource) Err() error { return s.err }

// decodePhred converts a FASTQ Phred+33 quality line into raw Phred
// scores.
func decodePhred(line string) []byte {
	out := make([]byte, len(line))
	for i := 0; i < len(line); i++ {
		out[i] = line[i] - 33
	}
	return out
}
