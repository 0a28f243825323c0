package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/foxden/sourcewatch/internal/albummemory"
	"github.com/foxden/sourcewatch/internal/hashsearch"
	"github.com/foxden/sourcewatch/internal/platform"
	"github.com/foxden/sourcewatch/internal/siteadapter"
)

// fakeAdapter supports every URL under https://e621.net/, treats two URLs as
// the same post only when they are equal, and never reports images, so
// linkHasSimilarHash never finds anything to compare in these tests.
type fakeAdapter struct {
	site siteadapter.Site
}

func (a fakeAdapter) Site() siteadapter.Site { return a.site }
func (a fakeAdapter) IsSupported(url string) bool {
	return len(url) >= len("https://e621.net/") && url[:len("https://e621.net/")] == "https://e621.net/"
}
func (a fakeAdapter) GetImages(ctx context.Context, url string) ([]siteadapter.Image, error) {
	return nil, nil
}
func (a fakeAdapter) URLRefersToSamePost(a2, b string) bool { return a2 == b }

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	albums := albummemory.New(rdb, zap.NewNop(), 300*time.Second)
	registry := siteadapter.NewRegistry(fakeAdapter{site: siteadapter.SiteE621})

	return New(registry, albums, nil, 3, 4, 50*1024*1024)
}

func dist(d uint64) *uint64 { return &d }

func candidateMatches() []Match {
	return []Match{
		{Site: siteadapter.SiteE621, URL: "https://e621.net/posts/1", Distance: dist(0)},
		{Site: siteadapter.SiteTwitter, URL: "https://twitter.com/user/status/1", Distance: dist(2)},
	}
}

func TestFilterByDistance_DropsFarMatches(t *testing.T) {
	matches := []Match{
		{Distance: dist(1)}, {Distance: dist(3)}, {Distance: dist(4)}, {Distance: dist(10)},
	}
	got := FilterByDistance(matches, 3)
	assert.Len(t, got, 2)
}

func TestFilterByDistance_AbsentDistanceTreatedAsFar(t *testing.T) {
	matches := []Match{
		{Distance: dist(0)}, {Distance: nil},
	}
	got := FilterByDistance(matches, 3)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Distance)
	assert.Equal(t, uint64(0), *got[0].Distance)
}

func TestResolveChannelUpdate_NoMatchesWithinDistance(t *testing.T) {
	r := newTestResolver(t)
	msg := platform.Message{Ref: platform.MessageRef{ChatID: "1"}}

	out, err := r.ResolveChannelUpdate(context.Background(), msg, 0, []Match{
		{Site: siteadapter.SiteE621, URL: "https://e621.net/posts/1", Distance: dist(10)},
	})
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestResolveChannelUpdate_SuppressesAlreadyLinkedSource(t *testing.T) {
	r := newTestResolver(t)
	msg := platform.Message{
		Ref:  platform.MessageRef{ChatID: "1"},
		Text: "source: https://e621.net/posts/1",
		Entities: []platform.Entity{
			{Type: "url", Offset: len("source: "), Length: len("https://e621.net/posts/1")},
		},
	}

	out, err := r.ResolveChannelUpdate(context.Background(), msg, 0, []Match{
		{Site: siteadapter.SiteE621, URL: "https://e621.net/posts/1", Distance: dist(0)},
	})
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestResolveChannelUpdate_DedupsAcrossAlbum(t *testing.T) {
	r := newTestResolver(t)
	msg := platform.Message{Ref: platform.MessageRef{ChatID: "1", MediaGroupID: "group-1"}}
	candidates := candidateMatches()

	first, err := r.ResolveChannelUpdate(context.Background(), msg, 0, candidates)
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	second, err := r.ResolveChannelUpdate(context.Background(), msg, 0, candidates)
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestResolveChannelUpdate_NoAlbumNeverDedups(t *testing.T) {
	r := newTestResolver(t)
	msg := platform.Message{Ref: platform.MessageRef{ChatID: "1"}}
	candidates := candidateMatches()

	first, err := r.ResolveChannelUpdate(context.Background(), msg, 0, candidates)
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	second, err := r.ResolveChannelUpdate(context.Background(), msg, 0, candidates)
	require.NoError(t, err)
	assert.NotEmpty(t, second)
}

func TestResolveChannelUpdate_OrdersAndDedupsPerSite(t *testing.T) {
	r := newTestResolver(t)
	msg := platform.Message{Ref: platform.MessageRef{ChatID: "1"}}

	out, err := r.ResolveChannelUpdate(context.Background(), msg, 0, []Match{
		{Site: siteadapter.SiteTwitter, URL: "https://twitter.com/a", Distance: dist(0)},
		{Site: siteadapter.SiteE621, URL: "https://e621.net/posts/1", Distance: dist(0)},
		{Site: siteadapter.SiteE621, URL: "https://e621.net/posts/2", Distance: dist(0)},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, siteadapter.SiteE621, out[0].Site)
	assert.Equal(t, siteadapter.SiteTwitter, out[1].Site)
}

func TestResolveGroupPhoto_NoiseFilterSuppressesTwitterOnly(t *testing.T) {
	r := newTestResolver(t)
	msg := platform.Message{Ref: platform.MessageRef{ChatID: "1"}}

	var matches []Match
	for i := 0; i < 4; i++ {
		matches = append(matches, Match{Site: siteadapter.SiteTwitter, URL: "https://twitter.com/x", Distance: dist(0)})
	}

	out, err := r.ResolveGroupPhoto(context.Background(), msg, matches)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestResolveGroupPhoto_CorroboratedTwitterSurvives(t *testing.T) {
	r := newTestResolver(t)
	msg := platform.Message{Ref: platform.MessageRef{ChatID: "1"}}

	matches := []Match{
		{Site: siteadapter.SiteE621, URL: "https://e621.net/posts/1", Distance: dist(0)},
		{Site: siteadapter.SiteE621, URL: "https://e621.net/posts/2", Distance: dist(0)},
		{Site: siteadapter.SiteTwitter, URL: "https://twitter.com/x", Distance: dist(0)},
		{Site: siteadapter.SiteTwitter, URL: "https://twitter.com/y", Distance: dist(0)},
	}

	out, err := r.ResolveGroupPhoto(context.Background(), msg, matches)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestExtractLinks_TextLinkAndURLEntities(t *testing.T) {
	msg := platform.Message{
		Text: "look at this: https://e621.net/posts/1",
		Entities: []platform.Entity{
			{Type: "url", Offset: len("look at this: "), Length: len("https://e621.net/posts/1")},
			{Type: "text_link", URL: "https://furaffinity.net/view/1"},
		},
	}

	links := ExtractLinks(msg)
	assert.ElementsMatch(t, links, []string{
		"https://e621.net/posts/1",
		"https://furaffinity.net/view/1",
	})
}

// ensure hashsearch.Match and resolver.Match stay interchangeable
var _ = hashsearch.Match{}
