package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_LoadsAndCachesLocale(t *testing.T) {
	cache := NewCache("locales")

	b1, err := cache.Get("en-US")
	require.NoError(t, err)
	assert.Contains(t, b1.AutomaticSingle, "{link}")

	b2, err := cache.Get("en-US")
	require.NoError(t, err)
	assert.Same(t, b1, b2)
}

func TestCache_FallsBackToDefaultLocale(t *testing.T) {
	cache := NewCache("locales")

	b, err := cache.Get("xx-XX")
	require.NoError(t, err)
	assert.Contains(t, b.AutomaticSingle, "{link}")
}

func TestRenderGroupMessage_SingleMatch(t *testing.T) {
	cache := NewCache("locales")
	b, err := cache.Get("en-US")
	require.NoError(t, err)

	text := b.RenderGroupMessage([]SourceMatch{{URL: "https://e621.net/posts/1", Rating: "safe"}})
	assert.Equal(t, "I found a source: https://e621.net/posts/1 (safe)", text)
}

func TestRenderGroupMessage_MultipleMatches(t *testing.T) {
	cache := NewCache("locales")
	b, err := cache.Get("en-US")
	require.NoError(t, err)

	text := b.RenderGroupMessage([]SourceMatch{
		{URL: "https://e621.net/posts/1", Rating: "safe"},
		{URL: "https://e621.net/posts/2", Rating: "questionable"},
	})
	assert.Contains(t, text, "I found a few sources:")
	assert.Contains(t, text, "- https://e621.net/posts/1 (safe)")
	assert.Contains(t, text, "- https://e621.net/posts/2 (questionable)")
}
