package render

import (
	"context"
	"encoding/xml"
	"fmt"
	"time"

	"planetcf/internal/domain/entity"
)

// rssFeed is the RSS 2.0 document root.
type rssFeed struct {
	XMLName xml.Name  `xml:"rss"`
	Version string    `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	LastBuildDate string    `xml:"lastBuildDate"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	GUID        string `xml:"guid"`
	PubDate     string `xml:"pubDate"`
	Author      string `xml:"author,omitempty"`
	Description string `xml:"description"`
}

const rssTimeFormat = time.RFC1123Z

// RenderRSS returns the RSS 2.0 XML document of the FeedOutputSize most
// recent entries across every active feed, fully sanitized. now stamps
// only the channel's <lastBuildDate>.
func (r *Renderer) RenderRSS(ctx context.Context, now time.Time) ([]byte, error) {
	entries, err := r.entries.RecentAcrossFeeds(ctx, r.cfg.FeedOutputSize)
	if err != nil {
		return nil, fmt.Errorf("render rss: %w", err)
	}

	channel := rssChannel{
		Title:         r.cfg.SiteTitle,
		Link:          r.cfg.SiteLink,
		Description:   r.cfg.SiteTitle,
		LastBuildDate: now.UTC().Format(rssTimeFormat),
		Items:         make([]rssItem, 0, len(entries)),
	}

	for _, e := range entries {
		channel.Items = append(channel.Items, rssItemFrom(e))
	}

	return marshalXML(rssFeed{Version: "2.0", Channel: channel})
}

func rssItemFrom(e entity.Entry) rssItem {
	return rssItem{
		Title:       e.Title,
		Link:        e.URL,
		GUID:        entryTagID(e),
		PubDate:     e.PublishedAt.UTC().Format(rssTimeFormat),
		Author:      e.Author,
		Description: e.Content,
	}
}
