package render

import "planetcf/internal/pkg/config"

// Config holds the tunables of the Renderer & Retention Engine's read
// path: the display window, the fallback size for an empty window, and
// the fixed-size cut for the syndication outputs.
type Config struct {
	// ContentDays bounds render_home's display window: entries published
	// in the last ContentDays days, newest first.
	ContentDays int

	// FallbackEntries is the size of the globally-most-recent fallback
	// render_home serves when the display window is empty. Never larger
	// than the Scheduler's retention floor, or the fallback could ask for
	// entries retention has already deleted.
	FallbackEntries int

	// FeedOutputSize is the fixed number of most recent entries
	// render_atom/render_rss emit, independent of MAX_ENTRIES_PER_FEED.
	FeedOutputSize int

	// SiteTitle, SiteLink, OwnerName, OwnerEmail populate the Atom/RSS/
	// OPML/HTML document metadata.
	SiteTitle  string
	SiteLink   string
	OwnerName  string
	OwnerEmail string
}

// DefaultConfig returns the spec-mandated defaults.
func DefaultConfig() Config {
	return Config{
		ContentDays:     7,
		FallbackEntries: 50,
		FeedOutputSize:  50,
		SiteTitle:       "Planet CF",
		SiteLink:        "https://planet.example.com/",
		OwnerName:       "Planet CF",
		OwnerEmail:      "planet@example.com",
	}
}

// LoadConfigFromEnv loads Renderer configuration from environment
// variables, falling back to documented defaults on any missing or
// invalid value rather than failing startup — the Renderer serves reads,
// so a bad config value should degrade gracefully, not take the process
// down.
func LoadConfigFromEnv() Config {
	cfg := DefaultConfig()

	intResult := config.LoadEnvInt("CONTENT_DAYS", cfg.ContentDays, func(v int) error {
		return config.ValidateIntRange(v, 1, 3650)
	})
	cfg.ContentDays = intResult.Value.(int)

	intResult = config.LoadEnvInt("FALLBACK_ENTRIES", cfg.FallbackEntries, func(v int) error {
		return config.ValidateIntRange(v, 0, 100000)
	})
	cfg.FallbackEntries = intResult.Value.(int)

	cfg.SiteTitle = config.LoadEnvString("SITE_TITLE", cfg.SiteTitle)
	cfg.SiteLink = config.LoadEnvString("SITE_LINK", cfg.SiteLink)
	cfg.OwnerName = config.LoadEnvString("SITE_OWNER_NAME", cfg.OwnerName)
	cfg.OwnerEmail = config.LoadEnvString("SITE_OWNER_EMAIL", cfg.OwnerEmail)

	return cfg
}
