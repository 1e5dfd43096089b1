package sketch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kshedden/readgrouper/kmerval"
)

func TestHotKmerSketchEstimateGrowsWithObservations(t *testing.T) {
	s := New(3, 1024, 4)
	kmer := kmerval.NewKmer16(12345)

	before := s.Estimate(kmer)
	assert.Equal(t, uint64(0), before)

	for i := 0; i < 5; i++ {
		s.Observe(kmer)
	}
	after := s.Estimate(kmer)
	assert.GreaterOrEqual(t, after, uint64(5))
}

func TestHotKmerSketchSaturatesAtCounterWidth(t *testing.T) {
	s := New(2, 64, 2) // 2-bit counters saturate at 3
	kmer := kmerval.NewKmer16(7)
	for i := 0; i < 50; i++ {
		s.Observe(kmer)
	}
	assert.Equal(t, uint64(3), s.Estimate(kmer))
}

func TestHotKmerFilterKeepsUntilThreshold(t *testing.T) {
	f := NewHotKmerFilter(2, 4096, 8, 3)
	kmer := kmerval.NewKmer16(99)

	assert.True(t, f.Keep(kmer))  // count -> 1, estimate 1 < 3
	assert.True(t, f.Keep(kmer))  // count -> 2, estimate 2 < 3
	assert.False(t, f.Keep(kmer)) // count -> 3, estimate 3, not < 3
	assert.False(t, f.Keep(kmer)) // count -> 4, estimate 4, not < 3
}
