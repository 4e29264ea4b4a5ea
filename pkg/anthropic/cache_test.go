package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCachedSystemBlocks(t *testing.T) {
	blocks := BuildCachedSystemBlocks("instructions", "1h")
	require.Len(t, blocks, 1)
	assert.Equal(t, "instructions", blocks[0].Text)
	require.NotNil(t, blocks[0].CacheControl)
	assert.Equal(t, "1h", blocks[0].CacheControl.TTL)
}

func TestBuildCachedSystemBlocks_Empty(t *testing.T) {
	assert.Nil(t, BuildCachedSystemBlocks("", "1h"))
}

func TestToSDKSystemBlocks(t *testing.T) {
	out := toSDKSystemBlocks([]SystemBlock{
		{Text: "plain"},
		{Text: "cached", CacheControl: &CacheControl{TTL: "5m"}},
		{Text: "default ttl", CacheControl: &CacheControl{}},
	})
	require.Len(t, out, 3)
	assert.Equal(t, "plain", out[0].Text)
	assert.Equal(t, "5m", string(out[1].CacheControl.TTL))
	assert.Empty(t, string(out[2].CacheControl.TTL))
}
