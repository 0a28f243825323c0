// Package resolver implements the decision chain that turns a batch of
// hash-search candidates into the sources worth announcing for a message:
// distance filtering, link suppression, similarity reconfirmation, album
// dedup, noise filtering, and final ordering.
package resolver

import (
	"context"
	"net/http"
	"sort"

	"github.com/foxden/sourcewatch/internal/albummemory"
	"github.com/foxden/sourcewatch/internal/download"
	"github.com/foxden/sourcewatch/internal/hashsearch"
	"github.com/foxden/sourcewatch/internal/imagehash"
	"github.com/foxden/sourcewatch/internal/platform"
	"github.com/foxden/sourcewatch/internal/siteadapter"
)

// Match is a single candidate source, as returned by the hash index.
type Match = hashsearch.Match

// Resolver ties the site adapters, album memory, and a download client
// together to run the channel and group decision chains.
type Resolver struct {
	sites            *siteadapter.Registry
	albums           *albummemory.Memory
	httpClient       *http.Client
	maxDistance      uint64
	noisySourceCount int
	downloadCapBytes int64
}

// New builds a Resolver.
func New(sites *siteadapter.Registry, albums *albummemory.Memory, httpClient *http.Client, maxDistance uint64, noisySourceCount int, downloadCapBytes int64) *Resolver {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Resolver{
		sites:            sites,
		albums:           albums,
		httpClient:       httpClient,
		maxDistance:      maxDistance,
		noisySourceCount: noisySourceCount,
		downloadCapBytes: downloadCapBytes,
	}
}

// absentDistance stands in for a match the index returned without a
// distance: always outside maxDistance, never a false positive from zero.
const absentDistance = 10

// FilterByDistance drops candidates whose reported distance exceeds
// maxDistance. A match with no reported distance is treated as absentDistance
// rather than 0, since omission means the index didn't consider it a close
// enough match to score, not that it's a perfect one.
func FilterByDistance(matches []Match, maxDistance uint64) []Match {
	out := make([]Match, 0, len(matches))
	for _, m := range matches {
		distance := uint64(absentDistance)
		if m.Distance != nil {
			distance = *m.Distance
		}
		if distance <= maxDistance {
			out = append(out, m)
		}
	}
	return out
}

// ExtractLinks pulls the URLs out of a message's entities.
func ExtractLinks(msg platform.Message) []string {
	var links []string
	for _, e := range msg.Entities {
		switch e.Type {
		case "text_link":
			if e.URL != "" {
				links = append(links, e.URL)
			}
		case "url":
			if e.Offset >= 0 && e.Offset+e.Length <= len(msg.Text) {
				links = append(links, msg.Text[e.Offset:e.Offset+e.Length])
			}
		}
	}
	return links
}

// NoiseFilter reports whether matches should be suppressed as noise: mostly
// Twitter matches with at most one corroborating match from anywhere else.
func NoiseFilter(matches []Match, noisySourceCount int) bool {
	twitter := 0
	for _, m := range matches {
		if m.Site == siteadapter.SiteTwitter {
			twitter++
		}
	}
	other := len(matches) - twitter
	return other <= 1 && twitter >= noisySourceCount
}

// SortChannelOrder reorders matches by the fixed site tie-break order.
func SortChannelOrder(matches []Match) []Match {
	order := siteadapter.DefaultOrder()
	rank := make(map[siteadapter.Site]int, len(order))
	for i, s := range order {
		rank[s] = i
	}

	sorted := append([]Match(nil), matches...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return rank[sorted[i].Site] < rank[sorted[j].Site]
	})
	return sorted
}

// FirstOfEachSite keeps only the first match seen for each site, preserving
// the incoming order.
func FirstOfEachSite(matches []Match) []Match {
	seen := make(map[siteadapter.Site]bool, len(matches))
	out := make([]Match, 0, len(matches))
	for _, m := range matches {
		if seen[m.Site] {
			continue
		}
		seen[m.Site] = true
		out = append(out, m)
	}
	return out
}

func urlsOf(matches []Match) []string {
	urls := make([]string, len(matches))
	for i, m := range matches {
		urls[i] = m.URL
	}
	return urls
}

func (r *Resolver) adapterForLink(url string) siteadapter.Adapter {
	for _, a := range r.sites.All() {
		if a.IsSupported(url) {
			return a
		}
	}
	return nil
}

// linkAlreadyCredits reports whether any of links already names the same
// post as one of matches, meaning the message already credits that source
// manually.
func (r *Resolver) linkAlreadyCredits(matches []Match, links []string) bool {
	for _, link := range links {
		a := r.adapterForLink(link)
		if a == nil {
			continue
		}
		for _, m := range matches {
			if m.Site == a.Site() && a.URLRefersToSamePost(link, m.URL) {
				return true
			}
		}
	}
	return false
}

// linkHasSimilarHash downloads the images named by links and reports whether
// any is visually similar to searchedHash, meaning the message's own links
// already point at the matched image. Per-link and per-image failures
// (network errors, undecodable responses) are skipped rather than treated as
// a hard failure: a link that can't be confirmed is simply not proof of
// prior credit, not reason to abort the whole check.
func (r *Resolver) linkHasSimilarHash(ctx context.Context, searchedHash uint64, links []string) bool {
	for _, link := range links {
		a := r.adapterForLink(link)
		if a == nil {
			continue
		}

		images, err := a.GetImages(ctx, link)
		if err != nil {
			continue
		}

		for _, img := range images {
			hash := img.Hash
			if hash == 0 {
				data, err := download.Bounded(ctx, r.httpClient, img.URL, r.downloadCapBytes)
				if err != nil {
					continue
				}
				hash, err = imagehash.Hash(data)
				if err != nil {
					continue
				}
			}
			if imagehash.Similar(searchedHash, hash) {
				return true
			}
		}
	}
	return false
}

// ResolveChannelUpdate runs the channel_update decision chain and returns
// the matches worth announcing, or nil if nothing qualifies.
func (r *Resolver) ResolveChannelUpdate(ctx context.Context, msg platform.Message, searchedHash uint64, candidates []Match) ([]Match, error) {
	wanted := FilterByDistance(candidates, r.maxDistance)
	if len(wanted) == 0 {
		return nil, nil
	}

	links := ExtractLinks(msg)
	if r.linkAlreadyCredits(wanted, links) {
		return nil, nil
	}
	if len(links) > 0 && r.linkHasSimilarHash(ctx, searchedHash, links) {
		return nil, nil
	}

	had, err := r.albums.AlreadyHadSource(ctx, msg.Ref.MediaGroupID, urlsOf(wanted))
	if err != nil {
		return nil, err
	}
	if had {
		return nil, nil
	}

	wanted = SortChannelOrder(wanted)
	wanted = FirstOfEachSite(wanted)
	return wanted, nil
}

// ResolveGroupPhoto runs the group_photo decision chain. Unlike the channel
// path it applies the noise filter instead of album dedup (group messages
// aren't posted as albums), and orders by the same fixed site order as the
// channel path rather than a per-user preference, a deliberate simplification
// recorded as an open-question decision.
func (r *Resolver) ResolveGroupPhoto(ctx context.Context, msg platform.Message, candidates []Match) ([]Match, error) {
	wanted := FilterByDistance(candidates, r.maxDistance)
	if len(wanted) == 0 {
		return nil, nil
	}

	links := ExtractLinks(msg)
	if r.linkAlreadyCredits(wanted, links) {
		return nil, nil
	}

	if NoiseFilter(wanted, r.noisySourceCount) {
		return nil, nil
	}

	return SortChannelOrder(wanted), nil
}
