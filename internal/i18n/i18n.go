// Package i18n renders the announcement text posted back to chats, loading
// per-locale message bundles from TOML files and keeping them in a
// process-lifetime cache: bundles are loaded at most once per locale and are
// never invalidated, matching the worker's singleton, long-running process
// model.
package i18n

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

// Bundle holds the message templates for a single locale.
type Bundle struct {
	AutomaticSingle         string `toml:"automatic-single"`
	AutomaticMultiple       string `toml:"automatic-multiple"`
	AutomaticMultipleResult string `toml:"automatic-multiple-result"`
}

// DefaultLocale is used whenever a requested locale has no bundle on disk.
const DefaultLocale = "en-US"

// Cache is a single-writer, many-reader store of loaded bundles, keyed by
// locale. Reads take the read lock; a miss promotes to the write lock only
// for the duration of the load, then releases it before the template is
// rendered.
type Cache struct {
	dir string

	mu      sync.RWMutex
	bundles map[string]*Bundle
}

// NewCache builds an empty Cache that loads bundle files from dir.
func NewCache(dir string) *Cache {
	return &Cache{dir: dir, bundles: make(map[string]*Bundle)}
}

// Get returns the bundle for locale, loading it from disk on first use and
// falling back to DefaultLocale if the requested locale isn't found.
func (c *Cache) Get(locale string) (*Bundle, error) {
	if b := c.lookup(locale); b != nil {
		return b, nil
	}

	c.mu.Lock()
	b := c.bundles[locale]
	var err error
	if b == nil {
		b, err = c.load(locale)
		if err == nil {
			c.bundles[locale] = b
		}
	}
	c.mu.Unlock()

	if err != nil {
		if locale != DefaultLocale {
			return c.Get(DefaultLocale)
		}
		return nil, err
	}

	return b, nil
}

func (c *Cache) lookup(locale string) *Bundle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bundles[locale]
}

func (c *Cache) load(locale string) (*Bundle, error) {
	path := filepath.Join(c.dir, locale+".toml")
	var b Bundle
	if _, err := toml.DecodeFile(path, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// SourceMatch is the minimal shape a rendered match needs: a label, a link,
// and an optional content rating.
type SourceMatch struct {
	Label  string
	URL    string
	Rating string
}

// maxMessageLength is Telegram's message text length limit. RenderGroupMessage
// counts the rendered text in bytes and stops adding result lines once that
// count would cross it, so the message never exceeds the limit in characters.
const maxMessageLength = 4096

// RenderGroupMessage renders the group_source reply text for one or more
// matches, using the "automatic-single" template for exactly one match and
// "automatic-multiple" / "automatic-multiple-result" otherwise. Result lines
// beyond maxMessageLength are dropped rather than truncated mid-line.
func (b *Bundle) RenderGroupMessage(matches []SourceMatch) string {
	if len(matches) == 1 {
		return render(b.AutomaticSingle, map[string]string{
			"link":   matches[0].URL,
			"rating": matches[0].Rating,
		})
	}

	lines := []string{b.AutomaticMultiple}
	length := len(lines[0])
	for _, m := range matches {
		line := render(b.AutomaticMultipleResult, map[string]string{
			"link":   m.URL,
			"rating": m.Rating,
		})
		if length+1+len(line) > maxMessageLength {
			break
		}
		lines = append(lines, line)
		length += 1 + len(line)
	}
	return strings.Join(lines, "\n")
}

func render(template string, args map[string]string) string {
	out := template
	for k, v := range args {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}
