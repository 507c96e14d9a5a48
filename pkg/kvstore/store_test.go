package kvstore

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openers() map[string]Opener {
	return map[string]Opener{
		"bolt": OpenBolt,
		"log":  OpenLog,
	}
}

func TestStore_PutGetContains(t *testing.T) {
	for name, open := range openers() {
		t.Run(name, func(t *testing.T) {
			store, err := open(t.TempDir())
			require.NoError(t, err)
			defer store.Close()

			key := []byte("tx-42")
			value := []byte("deposit:100.25")

			found, err := store.Contains(key)
			require.NoError(t, err)
			assert.False(t, found)

			_, found, err = store.Get(key)
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, store.Put(key, value))

			found, err = store.Contains(key)
			require.NoError(t, err)
			assert.True(t, found)

			got, found, err := store.Get(key)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, value, got)
		})
	}
}

func TestStore_OverwriteLastWriteWins(t *testing.T) {
	for name, open := range openers() {
		t.Run(name, func(t *testing.T) {
			store, err := open(t.TempDir())
			require.NoError(t, err)
			defer store.Close()

			key := []byte("k")
			require.NoError(t, store.Put(key, []byte("v1")))
			require.NoError(t, store.Put(key, []byte("v2")))

			got, found, err := store.Get(key)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, []byte("v2"), got)
		})
	}
}

func TestStore_ManyEntries(t *testing.T) {
	for name, open := range openers() {
		t.Run(name, func(t *testing.T) {
			store, err := open(t.TempDir())
			require.NoError(t, err)
			defer store.Close()

			for i := 0; i < 1000; i++ {
				key := []byte(fmt.Sprintf("key-%d", i))
				value := []byte(fmt.Sprintf("value-%d", i))
				require.NoError(t, store.Put(key, value))
			}

			for i := 0; i < 1000; i++ {
				got, found, err := store.Get([]byte(fmt.Sprintf("key-%d", i)))
				require.NoError(t, err)
				require.True(t, found)
				assert.Equal(t, []byte(fmt.Sprintf("value-%d", i)), got)
			}
		})
	}
}

func TestStore_ClosedRejectsOperations(t *testing.T) {
	store, err := OpenLog(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	assert.ErrorIs(t, store.Put([]byte("k"), []byte("v")), ErrStoreClosed)
	_, _, err = store.Get([]byte("k"))
	assert.ErrorIs(t, err, ErrStoreClosed)
	_, err = store.Contains([]byte("k"))
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestLogStore_GrowsPastInitialSize(t *testing.T) {
	store, err := OpenLog(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	// each record is ~64KiB, so a few dozen cross the initial mmap size
	value := make([]byte, 64*1024)
	for i := range value {
		value[i] = byte(i)
	}

	for i := 0; i < 64; i++ {
		key := []byte(fmt.Sprintf("big-%d", i))
		require.NoError(t, store.Put(key, value))
	}

	for i := 0; i < 64; i++ {
		got, found, err := store.Get([]byte(fmt.Sprintf("big-%d", i)))
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, value, got)
	}
}

func TestLogStore_CRCDetectsCorruption(t *testing.T) {
	store, err := OpenLog(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ls := store.(*LogStore)
	require.NoError(t, ls.Put([]byte("key"), []byte("value")))

	pos := ls.index["key"]
	// flip a payload byte behind the checksum's back
	ls.mmapData[pos.offset+logRecordHeaderSize+int64(pos.keyLen)] ^= 0xFF

	_, _, err = ls.Get([]byte("key"))
	assert.ErrorIs(t, err, ErrInvalidCRC)
}

func TestStore_DoubleCloseIsSafe(t *testing.T) {
	store, err := OpenLog(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}
