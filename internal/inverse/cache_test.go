package inverse_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/factsync/internal/inverse"
	"github.com/roach88/factsync/internal/testutil"
)

func TestCache_SharesStructurallyEqualSpecifications(t *testing.T) {
	c, err := inverse.NewCache(0)
	require.NoError(t, err)

	a, err := c.Get(testutil.OpenOfficesSpec())
	require.NoError(t, err)
	b, err := c.Get(testutil.OpenOfficesSpec())
	require.NoError(t, err)

	assert.Equal(t, 1, c.Len())
	require.Len(t, b, len(a))
	assert.Same(t, &a[0], &b[0], "the published list is reused")

	_, err = c.Get(testutil.OfficeNamesSpec())
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
}

func TestCache_ConcurrentGet(t *testing.T) {
	c, err := inverse.NewCache(4)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([][]inverse.Inverse, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			invs, err := c.Get(testutil.CurrentManagerNamesSpec())
			assert.NoError(t, err)
			results[i] = invs
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, inverse.RenderAll(results[0]), inverse.RenderAll(r))
	}
	assert.Equal(t, 1, c.Len())
}
