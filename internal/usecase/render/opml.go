package render

import (
	"context"
	"encoding/xml"
	"fmt"
	"time"

	"planetcf/internal/domain/entity"
)

// opmlDocument is the OPML 2.0 document root.
type opmlDocument struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    opmlHead `xml:"head"`
	Body    opmlBody `xml:"body"`
}

type opmlHead struct {
	Title       string `xml:"title"`
	DateCreated string `xml:"dateCreated"`
	OwnerName   string `xml:"ownerName,omitempty"`
	OwnerEmail  string `xml:"ownerEmail,omitempty"`
}

type opmlBody struct {
	Outlines []opmlOutline `xml:"outline"`
}

type opmlOutline struct {
	Text    string `xml:"text,attr"`
	Title   string `xml:"title,attr"`
	Type    string `xml:"type,attr"`
	XMLUrl  string `xml:"xmlUrl,attr"`
	HTMLUrl string `xml:"htmlUrl,attr,omitempty"`
}

// RenderOPML returns the OPML 2.0 XML listing of every active feed
// (url, title, site_url). now stamps only the head's dateCreated.
func (r *Renderer) RenderOPML(ctx context.Context, now time.Time) ([]byte, error) {
	feeds, err := r.feeds.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("render opml: %w", err)
	}

	doc := opmlDocument{
		Version: "2.0",
		Head: opmlHead{
			Title:       r.cfg.SiteTitle,
			DateCreated: now.UTC().Format(time.RFC1123Z),
			OwnerName:   r.cfg.OwnerName,
			OwnerEmail:  r.cfg.OwnerEmail,
		},
		Body: opmlBody{Outlines: make([]opmlOutline, 0, len(feeds))},
	}

	for _, f := range feeds {
		doc.Body.Outlines = append(doc.Body.Outlines, opmlOutlineFrom(f))
	}

	return marshalXML(doc)
}

func opmlOutlineFrom(f *entity.Feed) opmlOutline {
	title := f.Title
	if title == "" {
		title = f.URL
	}
	return opmlOutline{
		Text:    title,
		Title:   title,
		Type:    "rss",
		XMLUrl:  f.URL,
		HTMLUrl: f.SiteURL,
	}
}
