// Copyright 2017, Kerby Shedden and the Muscato contributors.

// Package extractor turns one sequencing read (bases + quality scores)
// into its sorted, deduplicated set of canonical k-mers, using the
// incremental bit-shift update described in the design: each step
// shifts the running forward k-mer left by one base and recomputes its
// reverse complement from scratch, rather than re-encoding the whole
// window.
package extractor

import (
	"sort"

	"github.com/kshedden/readgrouper/kmerval"
)

// DefaultMinBaseQuality is the quality floor applied when a caller does
// not override it, matching the teacher pipeline's own default.
const DefaultMinBaseQuality = 20

// Extract returns the canonical k-mer set observed in one read of the
// given width. The rules, in order:
//
//  1. A read shorter than the k-mer width yields no k-mers.
//  2. The first window is built base by base; any base with quality
//     below minBaseQuality, or any non-ACGT letter, in that window
//     aborts extraction entirely (empty result).
//  3. Every following base extends the running k-mer by one position;
//     the first bad-quality or non-ACGT base encountered abandons the
//     rest of the read (everything already pushed is kept).
//  4. The result is sorted ascending and deduplicated.
func Extract(sequence, quality []byte, minBaseQuality byte, width kmerval.Width) []kmerval.Value {
	bases := width.Bases()
	if len(sequence) < bases {
		return nil
	}

	out := make([]kmerval.Value, 0, len(sequence)-bases+1)

	forward, ok := buildFirstKmer(sequence[:bases], quality[:bases], minBaseQuality, width)
	if !ok {
		return nil
	}
	out = append(out, canonicalOf(forward))

	for i := bases; i < len(sequence); i++ {
		if quality[i] < minBaseQuality {
			break
		}
		code, ok := kmerval.BaseValue(sequence[i])
		if !ok {
			break
		}
		forward = forward.AddBase(code)
		out = append(out, canonicalOf(forward))
	}

	return sortAndDedup(out)
}

func buildFirstKmer(seq, qual []byte, minBaseQuality byte, width kmerval.Width) (kmerval.Value, bool) {
	kmer := kmerval.Zero(width)
	for i := range seq {
		if qual[i] < minBaseQuality {
			return nil, false
		}
		code, ok := kmerval.BaseValue(seq[i])
		if !ok {
			return nil, false
		}
		kmer = kmer.AddBase(code)
	}
	return kmer, true
}

func canonicalOf(forward kmerval.Value) kmerval.Value {
	rc := forward.ReverseComplement()
	if forward.Less(rc) {
		return forward
	}
	return rc
}

func sortAndDedup(values []kmerval.Value) []kmerval.Value {
	if len(values) < 2 {
		return values
	}
	sort.Slice(values, func(i, j int) bool { return values[i].Less(values[j]) })
	n := 1
	for i := 1; i < len(values); i++ {
		if !values[i].Equal(values[n-1]) {
			values[n] = values[i]
			n++
		}
	}
	return values[:n]
}
