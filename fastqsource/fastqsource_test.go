package fastqsource

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/snappy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fastqBody = "@read1\nACGTACGT\n+\nIIIIIIII\n@read2\nTTTTGGGG\n+\n!!!!!!!!\n"

func TestFastqSourceReadsPlainFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reads.fastq")
	require.NoError(t, os.WriteFile(path, []byte(fastqBody), 0644))

	src, err := Open(path)
	require.NoError(t, err)
	defer src.Close()

	require.True(t, src.Next())
	assert.Equal(t, "@read1", src.Name())
	assert.Equal(t, []byte("ACGTACGT"), src.Sequence())
	assert.Equal(t, byte('I'-33), src.Quality()[0])

	require.True(t, src.Next())
	assert.Equal(t, "@read2", src.Name())
	assert.Equal(t, byte(0), src.Quality()[0])

	assert.False(t, src.Next())
	assert.NoError(t, src.Err())
}

func TestFastqSourceDecompressesSnappyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reads.fastq.sz")

	f, err := os.Create(path)
	require.NoError(t, err)
	w := snappy.NewWriter(f)
	_, err = w.Write([]byte(fastqBody))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	src, err := Open(path)
	require.NoError(t, err)
	defer src.Close()

	require.True(t, src.Next())
	assert.Equal(t, []byte("ACGTACGT"), src.Sequence())
}

func TestFastqSourceTruncatedRecordIsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.fastq")
	require.NoError(t, os.WriteFile(path, []byte("@read1\nACGT\n+\n"), 0644))

	src, err := Open(path)
	require.NoError(t, err)
	defer src.Close()

	assert.False(t, src.Next())
	assert.Error(t, src.Err())
}

func TestFastqSourceMismatchedLengthIsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mismatch.fastq")
	require.NoError(t, os.WriteFile(path, []byte("@r\nACGT\n+\nII\n"), 0644))

	src, err := Open(path)
	require.NoError(t, err)
	defer src.Close()

	assert.False(t, src.Next())
	assert.Error(t, src.Err())
}
