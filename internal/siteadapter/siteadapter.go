// Package siteadapter models the per-art-site collaborators used to recognize
// links, resolve them to the images they show, and decide whether two links
// point at the same post. The real adapters (FurAffinity, e621, Twitter, Weasyl, Inkbunny, ...)
// are external collaborators; this package only fixes the shared contract
// and the mutex discipline around the adapter list.
package siteadapter

import (
	"context"
	"sync"
)

// Site names an art site a link or match might belong to.
type Site string

const (
	SiteFurAffinity Site = "FurAffinity"
	SiteE621        Site = "e621"
	SiteTwitter     Site = "Twitter"
	SiteWeasyl      Site = "Weasyl"
	SiteInkbunny    Site = "Inkbunny"
)

// DefaultOrder is the fixed tie-break order used when sorting channel-path
// results (see resolver.SortChannelOrder).
func DefaultOrder() []Site {
	return []Site{SiteFurAffinity, SiteE621, SiteTwitter, SiteWeasyl, SiteInkbunny}
}

// Image is a single image URL discovered on a post, carrying enough of the
// post's own perceptual hash to skip a redundant download when the adapter
// already knows it.
type Image struct {
	URL  string
	Hash uint64 // zero when the adapter doesn't precompute a hash
}

// Adapter is the contract a single art-site integration fulfills.
type Adapter interface {
	// Site names the art site this adapter handles.
	Site() Site

	// IsSupported reports whether url points at a post on this site.
	IsSupported(url string) bool

	// GetImages resolves url to the image URLs found on that post.
	GetImages(ctx context.Context, url string) ([]Image, error)

	// URLRefersToSamePost reports whether a and b name the same post,
	// tolerating the site's own URL variations (query params, mirrors, ...).
	URLRefersToSamePost(a, b string) bool
}

// Registry holds the configured adapters behind a mutex, matching the
// original pipeline's single shared, lockable adapter list. The lock is held
// only while All copies the list; callers inspect links and make network
// calls on that snapshot without holding it.
type Registry struct {
	mu       sync.Mutex
	adapters []Adapter
}

// NewRegistry builds a Registry over the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	return &Registry{adapters: adapters}
}

// All returns a snapshot of the configured adapters, safe to range over
// without holding the lock for the rest of the caller's work.
func (r *Registry) All() []Adapter {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Adapter, len(r.adapters))
	copy(out, r.adapters)
	return out
}
