package txcache

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paystream/paystream/pkg/kvstore"
)

// u32Codec is a minimal codec for uint16 keys and uint32 values.
type u32Codec struct{}

func (u32Codec) EncodeKey(key uint16) []byte {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, key)
	return buf
}

func (u32Codec) EncodeValue(value *uint32) ([]byte, error) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, *value)
	return buf, nil
}

func (u32Codec) DecodeValue(data []byte) (*uint32, error) {
	if len(data) < 4 {
		return nil, errors.New("value too short")
	}
	v := binary.LittleEndian.Uint32(data)
	return &v, nil
}

func newTestCache(t *testing.T, capacity int) *Cache[uint16, uint32] {
	t.Helper()
	cache, err := New[uint16, uint32](capacity, u32Codec{}, kvstore.OpenBolt)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func put(t *testing.T, cache *Cache[uint16, uint32], key uint16, value uint32) {
	t.Helper()
	v := value
	require.NoError(t, cache.Put(key, &v))
}

func TestNewRejectsInvalidCapacity(t *testing.T) {
	_, err := New[uint16, uint32](0, u32Codec{}, kvstore.OpenBolt)
	assert.ErrorIs(t, err, ErrInvalidCapacity)

	_, err = New[uint16, uint32](-3, u32Codec{}, kvstore.OpenBolt)
	assert.ErrorIs(t, err, ErrInvalidCapacity)
}

func TestEvictsLeastRecentlyUsedEntries(t *testing.T) {
	cache := newTestCache(t, 16)

	for i := uint16(0); i < 128; i++ {
		put(t, cache, i, uint32(i))
	}

	assert.Equal(t, 16, cache.ResidentLen())

	// the 16 most recently touched keys stay resident
	for i := uint16(112); i <= 127; i++ {
		assert.True(t, cache.resident.Contains(i), "key %d should be resident", i)
	}
	for i := uint16(0); i < 112; i++ {
		assert.False(t, cache.resident.Contains(i), "key %d should be evicted", i)
	}
}

func TestReadsEvictedEntries(t *testing.T) {
	cache := newTestCache(t, 16)

	for i := uint16(0); i < 128; i++ {
		put(t, cache, i, uint32(i))
	}

	// every key ever inserted is retrievable, resident or not, and
	// rehydration never loses another entry's value
	for i := uint16(0); i < 128; i++ {
		got, found, err := cache.GetMut(i)
		require.NoError(t, err)
		require.True(t, found, "key %d should be retrievable", i)
		assert.Equal(t, uint32(i), *got)
	}

	assert.Equal(t, 16, cache.ResidentLen())
}

func TestResidentOverwriteDoesNotEvict(t *testing.T) {
	cache := newTestCache(t, 4)

	for i := uint16(0); i < 4; i++ {
		put(t, cache, i, uint32(i))
	}

	put(t, cache, 0, 99)

	assert.Equal(t, 4, cache.ResidentLen())
	for i := uint16(0); i < 4; i++ {
		assert.True(t, cache.resident.Contains(i))
	}

	got, found, err := cache.GetMut(0)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint32(99), *got)
}

func TestGetMutReturnsMutableHandle(t *testing.T) {
	cache := newTestCache(t, 2)

	put(t, cache, 1, 10)

	handle, found, err := cache.GetMut(1)
	require.NoError(t, err)
	require.True(t, found)
	*handle = 11

	again, found, err := cache.GetMut(1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint32(11), *again)
}

func TestMutationSurvivesEvictionRoundTrip(t *testing.T) {
	cache := newTestCache(t, 2)

	put(t, cache, 1, 10)

	handle, found, err := cache.GetMut(1)
	require.NoError(t, err)
	require.True(t, found)
	*handle = 11

	// push key 1 out to disk, then rehydrate it
	put(t, cache, 2, 20)
	put(t, cache, 3, 30)
	put(t, cache, 4, 40)

	got, found, err := cache.GetMut(1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint32(11), *got)
}

func TestGetMutMissIsNotAnError(t *testing.T) {
	cache := newTestCache(t, 2)

	_, found, err := cache.GetMut(7)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestContainsKeyDoesNotPromote(t *testing.T) {
	cache := newTestCache(t, 2)

	put(t, cache, 1, 10)
	put(t, cache, 2, 20)

	// key 1 is the LRU entry; ContainsKey must not refresh it
	found, err := cache.ContainsKey(1)
	require.NoError(t, err)
	assert.True(t, found)

	put(t, cache, 3, 30)

	assert.False(t, cache.resident.Contains(1), "key 1 should have been evicted")
	assert.True(t, cache.resident.Contains(2))
	assert.True(t, cache.resident.Contains(3))

	// the evicted entry is still reachable through the store
	found, err = cache.ContainsKey(1)
	require.NoError(t, err)
	assert.True(t, found)
}

// failingStore rejects writes to exercise the atomic put contract.
type failingStore struct {
	putErr error
}

func (s *failingStore) Get([]byte) ([]byte, bool, error) { return nil, false, nil }
func (s *failingStore) Put([]byte, []byte) error         { return s.putErr }
func (s *failingStore) Contains([]byte) (bool, error)    { return false, nil }
func (s *failingStore) Close() error                     { return nil }

func TestFailedSpillAbortsPut(t *testing.T) {
	spillErr := errors.New("disk on fire")
	opener := func(string) (kvstore.Store, error) {
		return &failingStore{putErr: spillErr}, nil
	}

	cache, err := New[uint16, uint32](2, u32Codec{}, opener)
	require.NoError(t, err)
	defer cache.Close()

	put(t, cache, 1, 10)
	put(t, cache, 2, 20)

	v := uint32(30)
	err = cache.Put(3, &v)
	assert.ErrorIs(t, err, spillErr)

	// eviction and insertion are one atomic step: nothing changed
	assert.Equal(t, 2, cache.ResidentLen())
	assert.True(t, cache.resident.Contains(1))
	assert.True(t, cache.resident.Contains(2))
	assert.False(t, cache.resident.Contains(3))
}

func TestOpenerFailureIsFatal(t *testing.T) {
	openErr := errors.New("no storage location")
	opener := func(string) (kvstore.Store, error) {
		return nil, openErr
	}

	_, err := New[uint16, uint32](2, u32Codec{}, opener)
	assert.ErrorIs(t, err, openErr)
}
