package sstable

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niuchangsheng/kv/bin"
	"github.com/niuchangsheng/kv/status"
)

func buildBlock(t *testing.T, interval int, kvs ...[2]string) []byte {
	b := NewBlockBuilder(interval)
	for _, kv := range kvs {
		b.Add([]byte(kv[0]), []byte(kv[1]))
	}
	return b.Finish()
}

func newReader(t *testing.T, data []byte) *BlockReader {
	r, err := NewBlockReader(data)
	require.NoError(t, err)
	return r
}

func collect(r *BlockReader) (kvs [][2]string) {
	for r.SeekToFirst(); r.Valid(); r.Next() {
		kvs = append(kvs, [2]string{string(r.Key()), string(r.Value())})
	}
	return
}

func TestBlockRoundtrip(t *testing.T) {
	kvs := [][2]string{
		{"user:001", "a"}, {"user:002", "b"}, {"user:003", "c"},
		{"user:010", "d"}, {"user:100", "e"},
	}
	data := buildBlock(t, DefaultRestartInterval, kvs...)
	assert.Equal(t, kvs, collect(newReader(t, data)))
}

func TestBlockPrefixCompressionShrinksEntries(t *testing.T) {
	// shared prefixes mean repeated key heads are stored once per restart
	long := buildBlock(t, 16,
		[2]string{"prefixprefixprefix-a", "1"},
		[2]string{"prefixprefixprefix-b", "2"},
		[2]string{"prefixprefixprefix-c", "3"},
	)
	uncompressed := buildBlock(t, 1,
		[2]string{"prefixprefixprefix-a", "1"},
		[2]string{"prefixprefixprefix-b", "2"},
		[2]string{"prefixprefixprefix-c", "3"},
	)
	assert.Less(t, len(long), len(uncompressed))
}

func TestBlockSeek(t *testing.T) {
	data := buildBlock(t, DefaultRestartInterval,
		[2]string{"user:001", "a"}, [2]string{"user:002", "b"},
		[2]string{"user:003", "c"}, [2]string{"user:010", "d"},
		[2]string{"user:100", "e"},
	)
	r := newReader(t, data)

	r.Seek([]byte("user:005"))
	require.True(t, r.Valid())
	assert.Equal(t, "user:010", string(r.Key()))

	r.Seek([]byte("user:000"))
	require.True(t, r.Valid())
	assert.Equal(t, "user:001", string(r.Key()))

	r.Seek([]byte("user:999"))
	assert.False(t, r.Valid())
	assert.NoError(t, r.Err())

	r.Seek([]byte("user:002"))
	require.True(t, r.Valid())
	assert.Equal(t, "user:002", string(r.Key()))
	assert.Equal(t, "b", string(r.Value()))
}

func TestBlockSeekAcrossRestartBoundaries(t *testing.T) {
	var kvs [][2]string
	for i := 0; i < 100; i++ {
		kvs = append(kvs, [2]string{fmt.Sprintf("key%04d", i), fmt.Sprintf("v%d", i)})
	}
	// small interval so the search spans many restart points
	data := buildBlock(t, 4, kvs...)
	r := newReader(t, data)
	for i := 0; i < 100; i++ {
		r.Seek([]byte(fmt.Sprintf("key%04d", i)))
		require.True(t, r.Valid(), "seek key%04d", i)
		assert.Equal(t, fmt.Sprintf("key%04d", i), string(r.Key()))
		assert.Equal(t, fmt.Sprintf("v%d", i), string(r.Value()))
	}
	// interior targets land on the next key
	r.Seek([]byte("key0042x"))
	require.True(t, r.Valid())
	assert.Equal(t, "key0043", string(r.Key()))
}

func TestBlockSeekToLastAndPrev(t *testing.T) {
	data := buildBlock(t, 2,
		[2]string{"a", "1"}, [2]string{"b", "2"}, [2]string{"c", "3"},
		[2]string{"d", "4"}, [2]string{"e", "5"},
	)
	r := newReader(t, data)
	r.SeekToLast()
	require.True(t, r.Valid())
	assert.Equal(t, "e", string(r.Key()))

	var backward []string
	for ; r.Valid(); r.Prev() {
		backward = append(backward, string(r.Key()))
	}
	assert.Equal(t, []string{"e", "d", "c", "b", "a"}, backward)
}

func TestBlockRestartPointsStoreFullKeys(t *testing.T) {
	var kvs [][2]string
	for i := 0; i < 40; i++ {
		kvs = append(kvs, [2]string{fmt.Sprintf("common-prefix-%04d", i), "v"})
	}
	data := buildBlock(t, 16, kvs...)
	r := newReader(t, data)
	require.Len(t, r.restarts, 3)
	for i := range r.restarts {
		k, err := r.restartKey(i)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("common-prefix-%04d", i*16), string(k))
	}
}

func TestBlockBuilderSizeEstimateUpperBounds(t *testing.T) {
	b := NewBlockBuilder(DefaultRestartInterval)
	for i := 0; i < 50; i++ {
		b.Add([]byte(fmt.Sprintf("key%04d", i)), []byte("some value"))
		assert.GreaterOrEqual(t, b.CurrentSizeEstimate(), len(b.buffer))
	}
	estimate := b.CurrentSizeEstimate()
	assert.GreaterOrEqual(t, estimate, len(b.Finish()))
}

func TestBlockBuilderLastKey(t *testing.T) {
	b := NewBlockBuilder(DefaultRestartInterval)
	b.Add([]byte("a"), []byte("1"))
	b.Add([]byte("b"), []byte("2"))
	assert.Equal(t, "b", string(b.LastKey()))
}

func TestBlockBuilderAddAfterFinishIsNoop(t *testing.T) {
	b := NewBlockBuilder(DefaultRestartInterval)
	b.Add([]byte("a"), []byte("1"))
	first := append([]byte{}, b.Finish()...)
	b.Add([]byte("b"), []byte("2"))
	assert.Equal(t, first, b.Finish())
}

func TestBlockBuilderReset(t *testing.T) {
	b := NewBlockBuilder(DefaultRestartInterval)
	b.Add([]byte("a"), []byte("1"))
	b.Finish()
	b.Reset()
	assert.True(t, b.Empty())
	b.Add([]byte("x"), []byte("9"))
	data := append([]byte{}, b.Finish()...)
	assert.Equal(t, [][2]string{{"x", "9"}}, collect(newReader(t, data)))
}

func TestEmptyValueRoundtrips(t *testing.T) {
	data := buildBlock(t, DefaultRestartInterval, [2]string{"k", ""})
	r := newReader(t, data)
	r.SeekToFirst()
	require.True(t, r.Valid())
	assert.Empty(t, r.Value())
}

func TestBlockTooSmallIsCorruption(t *testing.T) {
	_, err := NewBlockReader([]byte{1, 2})
	assert.True(t, status.IsCorruption(err))
}

func TestBlockBadRestartCountIsCorruption(t *testing.T) {
	// restart count claims more restarts than the block can hold
	data := bin.AppendFixed32(nil, 1000)
	_, err := NewBlockReader(data)
	assert.True(t, status.IsCorruption(err))
}

func TestBlockBadRestartOffsetIsCorruption(t *testing.T) {
	var data []byte
	data = bin.AppendFixed32(data, 500) // offset past the entry region
	data = bin.AppendFixed32(data, 1)
	_, err := NewBlockReader(data)
	assert.True(t, status.IsCorruption(err))
}

func TestBlockTruncatedEntryIsCorruption(t *testing.T) {
	good := buildBlock(t, DefaultRestartInterval, [2]string{"key", "value"})
	// shrink the entry region by rebuilding the trailer over a cut body
	cut := append([]byte{}, good[:2]...)
	cut = bin.AppendFixed32(cut, 0)
	cut = bin.AppendFixed32(cut, 1)
	r := newReader(t, cut)
	r.SeekToFirst()
	assert.False(t, r.Valid())
	assert.True(t, status.IsCorruption(r.Err()))
}
