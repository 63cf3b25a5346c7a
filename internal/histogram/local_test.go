package histogram

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalCountAndAdd(t *testing.T) {
	a := NewLocal(3)
	b := NewLocal(3)

	a.Count([]int32{0, 0, 1})
	b.Increment(2)
	b.Increment(0)
	a.Add(b)

	assert.Equal(t, 3, a.Len())
	assert.Equal(t, int64(3), a.Bin(0))
	assert.Equal(t, int64(1), a.Bin(1))
	assert.Equal(t, int64(1), a.Bin(2))
	assert.Equal(t, int64(5), a.Sum())

	a.Reset()
	assert.Equal(t, int64(0), a.Sum())
}

func TestLocalPaddingIsolatesBins(t *testing.T) {
	l := NewLocal(4)
	assert.Equal(t, 4, len(l.bins))
	assert.Equal(t, 4, cap(l.bins), "bins must not be able to grow into the trailing pad")
	assert.Panics(t, func() { l.Increment(4) })
}

func TestArenaAcquireRelease(t *testing.T) {
	a, err := NewArena(8)
	require.NoError(t, err)

	l := a.Acquire()
	assert.Equal(t, 8, l.Len())
	assert.Equal(t, int64(1), a.Outstanding())

	l.Count([]int32{1, 2, 3})
	a.Release(l)
	assert.Equal(t, int64(0), a.Outstanding())

	l2 := a.Acquire()
	assert.Equal(t, int64(0), l2.Sum(), "acquired scratch must be zeroed")
	a.Release(l2)
}

func TestArenaInvalidRange(t *testing.T) {
	_, err := NewArena(0)
	assert.Error(t, err)
}

func TestArenaConcurrent(t *testing.T) {
	a, err := NewArena(16)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				l := a.Acquire()
				if l.Sum() != 0 {
					t.Errorf("dirty scratch from arena")
				}
				l.Increment(int32(i % 16))
				a.Release(l)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(0), a.Outstanding())
}
