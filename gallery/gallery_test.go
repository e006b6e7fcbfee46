package gallery

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGallery_Lifecycle(t *testing.T) {
	g := New(WithDimension(3))
	assert.True(t, g.Ready())
	require.NoError(t, g.Insert([]float32{0, 0, 0}, "P0"))
	require.NoError(t, g.Insert([]float32{1, 1, 1}, "P1"))
	require.NoError(t, g.Insert([]float32{2, 2, 2}, "P2"))
	assert.Equal(t, 3, g.Len())

	out := make([]Record, 2)
	n := g.Search([]float32{0.1, 0.1, 0.1}, 2, out)
	require.Equal(t, 2, n)
	assert.Equal(t, "P0", out[0].ID)
	assert.InDelta(t, 0.173, out[0].Distance, 1e-3)
	assert.Equal(t, "P1", out[1].ID)
	assert.InDelta(t, 1.559, out[1].Distance, 1e-3)

	g.Reset()
	g.Reset()
	assert.True(t, g.Ready())
	assert.Equal(t, 0, g.Len())
	assert.Equal(t, 0, g.Search([]float32{0, 0, 0}, 1, out))

	g.Close()
	assert.False(t, g.Ready())
	assert.ErrorIs(t, g.Insert([]float32{0, 0, 0}, "late"), ErrNotReady)
	_, err := g.Nearest([]float32{0, 0, 0}, 1)
	assert.ErrorIs(t, err, ErrNotReady)
	g.Close()

	g.Reset()
	require.NoError(t, g.Insert([]float32{0, 0, 0}, "again"))
	assert.Equal(t, 1, g.Len())
}

func TestGallery_InsertValidation(t *testing.T) {
	g := New(WithDimension(2))
	assert.ErrorIs(t, g.Insert([]float32{1, 2}, ""), ErrEmptyID)
	var dimErr *DimensionError
	require.ErrorAs(t, g.Insert([]float32{1, 2, 3}, "x"), &dimErr)
	assert.Equal(t, 2, dimErr.Expected)
	assert.Equal(t, 3, dimErr.Actual)
	assert.Equal(t, 0, g.Len())
}

func TestGallery_InsertCopiesInput(t *testing.T) {
	g := New(WithDimension(2), WithMaxIDLength(4))
	buf := []float32{1, 1}
	require.NoError(t, g.Insert(buf, "abcdef"))
	buf[0] = 100
	result, err := g.Nearest([]float32{1, 1}, 1)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, 0.0, result[0].Distance)
	assert.Equal(t, "abc", result[0].ID)
}

func TestGallery_SearchDegenerate(t *testing.T) {
	g := New(WithDimension(2))
	sentinel := Record{ID: "untouched"}
	out := []Record{sentinel, sentinel}

	assert.Equal(t, 0, g.Search([]float32{0, 0}, 2, out))
	require.NoError(t, g.Insert([]float32{1, 1}, "a"))
	assert.Equal(t, 0, g.Search([]float32{0, 0}, 0, out))
	assert.Equal(t, 0, g.Search([]float32{0, 0}, -2, out))
	assert.Equal(t, 0, g.Search([]float32{0, 0, 0}, 1, out))
	assert.Equal(t, 0, g.Search([]float32{0, 0}, 1, nil))
	assert.Equal(t, []Record{sentinel, sentinel}, out)

	assert.Equal(t, 1, g.Search([]float32{0, 0}, 5, out))
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, sentinel, out[1])
}

func TestGallery_TreeAutoInitializes(t *testing.T) {
	g := New(WithDimension(4))
	g.Close()
	tr := g.Tree()
	require.NotNil(t, tr)
	assert.True(t, g.Ready())
	assert.Equal(t, 4, tr.Dimension())
}

func TestGallery_ConcurrentAccess(t *testing.T) {
	g := New(WithDimension(8))
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(2)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < 200; i++ {
				v := make([]float32, 8)
				for j := range v {
					v[j] = rng.Float32()
				}
				assert.NoError(t, g.Insert(v, "w"))
			}
		}(int64(w))
		go func() {
			defer wg.Done()
			out := make([]Record, 5)
			for i := 0; i < 200; i++ {
				g.Search(make([]float32, 8), 5, out)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 800, g.Len())
	require.NoError(t, g.Tree().CheckInvariant())
}

func TestGallery_Replace(t *testing.T) {
	g := New(WithDimension(2))
	require.NoError(t, g.Insert([]float32{5, 5}, "old"))

	loaded := g.Replace([]Record{
		{Vector: []float32{0, 0}, ID: "P0"},
		{Vector: []float32{1, 1, 1}, ID: "wrong-dim"},
		{Vector: []float32{1, 1}},
		{Vector: []float32{1, 1}, ID: "P1"},
	})
	assert.Equal(t, 2, loaded)
	assert.Equal(t, 2, g.Len())
	result, err := g.Nearest([]float32{5, 5}, 1)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "P1", result[0].ID)

	g.Close()
	assert.Equal(t, 1, g.Replace([]Record{{Vector: []float32{2, 2}, ID: "P2"}}))
	assert.True(t, g.Ready())
}

func TestGallery_ReplaceIsAtomicForSearches(t *testing.T) {
	const size = 50
	sets := make([][]Record, 2)
	for s := range sets {
		for i := 0; i < size; i++ {
			sets[s] = append(sets[s], Record{Vector: []float32{float32(i), float32(s)}, ID: "f"})
		}
	}
	g := New(WithDimension(2))
	g.Replace(sets[0])

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			g.Replace(sets[i%2])
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			result, err := g.Nearest([]float32{0, 0}, 2*size)
			assert.NoError(t, err)
			assert.Len(t, result, size)
		}
	}()
	wg.Wait()
}
