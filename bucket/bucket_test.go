package bucket

import (
	"bufio"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// intRecord is a minimal Record[T] implementation used only by these tests.
type intRecord uint32

func (r intRecord) Less(other intRecord) bool { return r < other }

func (r intRecord) WriteTo(w *bufio.Writer) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(r))
	_, err := w.Write(buf[:])
	return err
}

func readIntRecords(t *testing.T, name string) []intRecord {
	t.Helper()
	data, err := os.ReadFile(name)
	require.NoError(t, err)
	require.Equal(t, 0, len(data)%4)
	out := make([]intRecord, 0, len(data)/4)
	for i := 0; i < len(data); i += 4 {
		out = append(out, intRecord(binary.LittleEndian.Uint32(data[i:i+4])))
	}
	return out
}

func TestBucketSpillsWhenFull(t *testing.T) {
	dir := t.TempDir()
	b := New[intRecord](3, dir, "sample", "pairs")

	for _, v := range []intRecord{5, 1, 9, 2, 8, 4, 7} {
		b.Add(v)
	}
	files, err := b.Finish()
	require.NoError(t, err)

	// 7 records, capacity 3 -> spills at 3 and 6, final flush carries the last 1.
	require.Len(t, files, 3)
	for _, f := range files {
		require.NotEmpty(t, f)
	}

	got0 := readIntRecords(t, files[0])
	assert.Equal(t, []intRecord{1, 5, 9}, got0)
	got1 := readIntRecords(t, files[1])
	assert.Equal(t, []intRecord{2, 4, 8}, got1)
	got2 := readIntRecords(t, files[2])
	assert.Equal(t, []intRecord{7}, got2)
}

func TestBucketFilenameIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	b := New[intRecord](10, dir, "mysample", "read_pairs")
	b.Add(intRecord(1))
	files, err := b.Finish()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(dir, "mysample_10_0.read_pairs"), files[0])
}

func TestBucketEmptyFinishProducesNoFiles(t *testing.T) {
	dir := t.TempDir()
	b := New[intRecord](10, dir, "empty", "pairs")
	files, err := b.Finish()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestBucketIdempotentRerun(t *testing.T) {
	dir := t.TempDir()

	run := func() []string {
		b := New[intRecord](2, dir, "idem", "pairs")
		for _, v := range []intRecord{3, 1, 4, 1, 5, 9} {
			b.Add(v)
		}
		files, err := b.Finish()
		require.NoError(t, err)
		return files
	}

	files1 := run()
	contents1 := map[string][]intRecord{}
	for _, f := range files1 {
		contents1[f] = readIntRecords(t, f)
	}

	files2 := run()
	require.Equal(t, files1, files2)
	for _, f := range files2 {
		assert.Equal(t, contents1[f], readIntRecords(t, f))
	}
}

func TestBucketManySpillsCompleteBeforeFinishReturns(t *testing.T) {
	dir := t.TempDir()
	b := New[intRecord](100, dir, "big", "pairs")
	for i := 0; i < 5000; i++ {
		b.Add(intRecord(i))
	}
	files, err := b.Finish()
	require.NoError(t, err)
	assert.Len(t, files, 50)

	total := 0
	for _, f := range files {
		recs := readIntRecords(t, f)
		total += len(recs)
		for i := 1; i < len(recs); i++ {
			assert.LessOrEqual(t, recs[i-1], recs[i])
		}
	}
	assert.Equal(t, 5000, total)
}
