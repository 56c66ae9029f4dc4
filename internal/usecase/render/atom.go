package render

import (
	"context"
	"encoding/xml"
	"fmt"
	"time"

	"planetcf/internal/domain/entity"
)

// atomFeed is the Atom 1.0 document root (RFC 4287).
type atomFeed struct {
	XMLName  xml.Name    `xml:"feed"`
	Xmlns    string      `xml:"xmlns,attr"`
	Title    string      `xml:"title"`
	ID       string      `xml:"id"`
	Updated  string      `xml:"updated"`
	Link     atomLink    `xml:"link"`
	Author   atomPerson  `xml:"author"`
	Entries  []atomEntry `xml:"entry"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr,omitempty"`
}

type atomPerson struct {
	Name  string `xml:"name"`
	Email string `xml:"email,omitempty"`
}

type atomEntry struct {
	Title     string   `xml:"title"`
	ID        string   `xml:"id"`
	Link      atomLink `xml:"link"`
	Published string   `xml:"published"`
	Updated   string   `xml:"updated"`
	Author    string   `xml:"author>name,omitempty"`
	Summary   string   `xml:"summary,omitempty"`
	Content   atomContent `xml:"content"`
}

type atomContent struct {
	Type string `xml:"type,attr"`
	Body string `xml:",cdata"`
}

// RenderAtom returns the Atom 1.0 XML document of the FeedOutputSize most
// recent entries across every active feed. now stamps the feed-level
// <updated> element only — it is not read from the wall clock, so the
// document is bit-stable given identical store contents.
func (r *Renderer) RenderAtom(ctx context.Context, now time.Time) ([]byte, error) {
	entries, err := r.entries.RecentAcrossFeeds(ctx, r.cfg.FeedOutputSize)
	if err != nil {
		return nil, fmt.Errorf("render atom: %w", err)
	}

	feed := atomFeed{
		Xmlns:   "http://www.w3.org/2005/Atom",
		Title:   r.cfg.SiteTitle,
		ID:      r.cfg.SiteLink,
		Updated: now.UTC().Format(atomTimeFormat),
		Link:    atomLink{Href: r.cfg.SiteLink},
		Author:  atomPerson{Name: r.cfg.OwnerName, Email: r.cfg.OwnerEmail},
		Entries: make([]atomEntry, 0, len(entries)),
	}

	for _, e := range entries {
		feed.Entries = append(feed.Entries, atomEntryFrom(e))
	}

	return marshalXML(feed)
}

const atomTimeFormat = "2006-01-02T15:04:05Z07:00"

func atomEntryFrom(e entity.Entry) atomEntry {
	return atomEntry{
		Title:     e.Title,
		ID:        entryTagID(e),
		Link:      atomLink{Href: e.URL, Rel: "alternate"},
		Published: e.PublishedAt.UTC().Format(atomTimeFormat),
		Updated:   e.UpdatedAt.UTC().Format(atomTimeFormat),
		Author:    e.Author,
		Summary:   e.Summary,
		Content:   atomContent{Type: "html", Body: e.Content},
	}
}

// entryTagID builds a stable, URI-shaped id for the Atom/RSS guid using
// the entry's own URL when present, falling back to its natural key.
func entryTagID(e entity.Entry) string {
	if e.URL != "" {
		return e.URL
	}
	return fmt.Sprintf("urn:planetcf:entry:%d", e.ID)
}

func marshalXML(v any) ([]byte, error) {
	out, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal xml: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}
