package memcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheCountersStartAtZero(t *testing.T) {
	c := New()
	assert.Equal(t, uint64(0), c.Hits)
	assert.Equal(t, uint64(0), c.Misses)
}

func TestFetchWordRejectsUnalignedHighAddress(t *testing.T) {
	mem := make([]byte, 8)
	c := New()
	_, _, err := c.FetchWord(mem, 5)
	require.Error(t, err, "an access leaving no room for a full word should be rejected")
	var addrErr *InvalidAddressError
	assert.ErrorAs(t, err, &addrErr)
}
