// Package feedparser converts a raw feed response body into the
// normalized value the Fetcher Worker operates on. The parser is
// tolerant: malformed XML that still yields entries is acceptable, and a
// per-item failure does not fail the whole parse.
package feedparser

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/mmcdole/gofeed"
)

// Channel is the normalized channel-level metadata of a parsed feed.
type Channel struct {
	Title  string
	Link   string
	Author string
}

// ParsedEntry is the normalized, duck-typing-free shape of one feed item.
// Optional fields are zero-valued when absent; the Fetcher never reaches
// into parser-specific attributes.
type ParsedEntry struct {
	GUIDCandidate string
	Link          string
	Title         string
	Author        string
	ContentHTML   string
	Summary       string
	Published     *time.Time
	Updated       *time.Time
}

// Feed is the full normalized parse result.
type Feed struct {
	Channel Channel
	Entries []ParsedEntry
}

// Parser wraps gofeed with the tolerant, zero-entries-is-not-necessarily-
// an-error semantics the Fetcher Worker depends on.
type Parser struct {
	inner *gofeed.Parser
}

func New() *Parser {
	return &Parser{inner: gofeed.NewParser()}
}

// ErrFatalEmpty is returned when the parser could not extract any
// entries AND reported a hard parse error — the spec's ParseFatal case.
// An empty body with zero entries but no parser error is a valid
// zero-entry success, not this error.
type ErrFatalEmpty struct{ Cause error }

func (e *ErrFatalEmpty) Error() string { return fmt.Sprintf("feedparser: fatal parse, no entries: %v", e.Cause) }
func (e *ErrFatalEmpty) Unwrap() error { return e.Cause }

// Parse reads r (already capped in size by the caller) and produces a
// normalized Feed. On a gofeed parse failure, Parse only returns an error
// if zero entries could be salvaged; gofeed still sometimes returns a
// partially-populated feed value even when it reports an error, and that
// partial result is used when non-empty.
func Parse(ctx context.Context, p *Parser, r io.Reader) (*Feed, error) {
	gf, err := p.inner.Parse(r)
	if err != nil {
		if gf == nil || len(gf.Items) == 0 {
			return nil, &ErrFatalEmpty{Cause: err}
		}
	}
	if gf == nil {
		return &Feed{}, nil
	}

	out := &Feed{
		Channel: Channel{
			Title: gf.Title,
			Link:  gf.Link,
		},
	}
	if gf.Author != nil {
		out.Channel.Author = gf.Author.Name
	}

	for _, item := range gf.Items {
		entry, ok := normalizeItem(item)
		if !ok {
			continue
		}
		out.Entries = append(out.Entries, entry)
	}

	return out, nil
}

func normalizeItem(item *gofeed.Item) (ParsedEntry, bool) {
	if item == nil {
		return ParsedEntry{}, false
	}

	entry := ParsedEntry{
		GUIDCandidate: item.GUID,
		Link:          item.Link,
		Title:         item.Title,
	}

	if item.Author != nil {
		entry.Author = item.Author.Name
	} else if len(item.Authors) > 0 && item.Authors[0] != nil {
		entry.Author = item.Authors[0].Name
	}

	// Content over Description: most feeds put the full body in
	// <content:encoded> and a teaser in <description>; prefer the fuller
	// field and fall back only when it is empty.
	entry.ContentHTML = item.Content
	if entry.ContentHTML == "" {
		entry.ContentHTML = item.Description
	}
	entry.Summary = item.Description
	if entry.Summary == "" {
		entry.Summary = entry.ContentHTML
	}

	entry.Published = item.PublishedParsed
	entry.Updated = item.UpdatedParsed

	return entry, true
}
