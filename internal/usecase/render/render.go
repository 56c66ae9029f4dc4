// Package render implements the Renderer & Retention Engine's read path:
// the HTML home page, Atom/RSS syndication, OPML export, and semantic
// search. Every operation here is pure with respect to the stores — it
// performs no writes — and the Atom/RSS/OPML outputs are bit-stable given
// identical inputs and a fixed generation timestamp, since none of them
// read the wall clock directly; "now" is always passed in by the caller.
package render

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"sort"
	"time"

	"planetcf/internal/domain/entity"
	"planetcf/internal/repository"
	"planetcf/internal/security/sanitizer"
	"planetcf/internal/usecase/embed"
)

// Renderer reads from the Relational Store, Vector Store, and Embedding
// Service to answer the HTTP surface's five public routes. It never
// mutates any of them.
type Renderer struct {
	feeds     repository.FeedRepository
	entries   repository.EntryRepository
	vectors   repository.VectorRepository
	embedder  embed.Provider
	cfg       Config
	homeTmpl  *template.Template
	sanitizer *sanitizer.Sanitizer
}

// New builds a Renderer, parsing the embedded home-page template once.
func New(feeds repository.FeedRepository, entries repository.EntryRepository, vectors repository.VectorRepository, embedder embed.Provider, cfg Config) (*Renderer, error) {
	tmpl, err := template.New("home").Funcs(templateFuncs()).Parse(homeTemplate)
	if err != nil {
		return nil, fmt.Errorf("render: parse home template: %w", err)
	}
	return &Renderer{
		feeds:     feeds,
		entries:   entries,
		vectors:   vectors,
		embedder:  embedder,
		cfg:       cfg,
		homeTmpl:  tmpl,
		sanitizer: sanitizer.New(),
	}, nil
}

// homeData is the template.Execute payload for the home page.
type homeData struct {
	Title      string
	Generated  time.Time
	DateGroups []dateGroup
	Sidebar    []feedSidebarEntry
}

type dateGroup struct {
	Label   string
	Entries []entryView
}

type entryView struct {
	ID        int64
	Title     string
	Link      string
	Author    string
	FeedTitle string
	Published time.Time
	Summary   template.HTML
	Content   template.HTML
}

type feedSidebarEntry struct {
	Title     string
	SiteURL   string
	Freshness string
	Stale     bool
}

// RenderHome writes the HTML home page: entries published within
// ContentDays, grouped by local calendar date, newest group first;
// falling back to the FallbackEntries most recent entries globally when
// the display window is empty. A sidebar lists every active feed
// annotated with how long ago it last produced an entry.
func (r *Renderer) RenderHome(ctx context.Context, w io.Writer, now time.Time) error {
	since := now.AddDate(0, 0, -r.cfg.ContentDays)
	entries, err := r.entries.RecentSince(ctx, since)
	if err != nil {
		return fmt.Errorf("render home: recent since: %w", err)
	}
	if len(entries) == 0 {
		entries, err = r.entries.RecentGlobal(ctx, r.cfg.FallbackEntries)
		if err != nil {
			return fmt.Errorf("render home: recent global fallback: %w", err)
		}
	}

	feeds, err := r.feeds.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("render home: list active feeds: %w", err)
	}
	feedByID := make(map[int64]*entity.Feed, len(feeds))
	for _, f := range feeds {
		feedByID[f.ID] = f
	}

	data := homeData{
		Title:      r.cfg.SiteTitle,
		Generated:  now,
		DateGroups: r.groupByLocalDate(entries, feedByID, now),
		Sidebar:    buildSidebar(feeds, now),
	}

	if err := r.homeTmpl.Execute(w, data); err != nil {
		return fmt.Errorf("render home: execute template: %w", err)
	}
	return nil
}

func (r *Renderer) groupByLocalDate(entries []entity.Entry, feedByID map[int64]*entity.Feed, now time.Time) []dateGroup {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].PublishedAt.After(entries[j].PublishedAt)
	})

	var groups []dateGroup
	var currentKey string
	for _, e := range entries {
		key := e.PublishedAt.Local().Format("2006-01-02")
		if key != currentKey {
			groups = append(groups, dateGroup{Label: dateLabel(e.PublishedAt, now)})
			currentKey = key
		}
		groups[len(groups)-1].Entries = append(groups[len(groups)-1].Entries, r.toEntryView(e, feedByID))
	}
	return groups
}

func dateLabel(t, now time.Time) string {
	today := truncateToDay(now.Local())
	yesterday := today.AddDate(0, 0, -1)
	target := truncateToDay(t.Local())

	switch {
	case target.Equal(today):
		return "Today"
	case target.Equal(yesterday):
		return "Yesterday"
	case today.Sub(target) < 7*24*time.Hour:
		return t.Local().Format("Monday, January 2")
	default:
		return t.Local().Format("Monday, January 2, 2006")
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func (r *Renderer) toEntryView(e entity.Entry, feedByID map[int64]*entity.Feed) entryView {
	var feedTitle string
	if f, ok := feedByID[e.FeedID]; ok {
		feedTitle = f.Title
	}
	return entryView{
		ID:        e.ID,
		Title:     e.Title,
		Link:      e.URL,
		Author:    e.Author,
		FeedTitle: feedTitle,
		Published: e.PublishedAt,
		Summary:   template.HTML(r.sanitizer.Sanitize(e.Summary)),
		Content:   template.HTML(e.Content),
	}
}

func buildSidebar(feeds []*entity.Feed, now time.Time) []feedSidebarEntry {
	out := make([]feedSidebarEntry, 0, len(feeds))
	for _, f := range feeds {
		entry := feedSidebarEntry{Title: f.Title, SiteURL: f.SiteURL}
		if f.LastEntryAt != nil {
			entry.Freshness = relativeTime(*f.LastEntryAt, now)
			entry.Stale = now.Sub(*f.LastEntryAt) > 30*24*time.Hour
		} else {
			entry.Freshness = "never"
			entry.Stale = true
		}
		out = append(out, entry)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out
}

func relativeTime(t, now time.Time) string {
	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 48*time.Hour:
		return "yesterday"
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		return fmt.Sprintf("%d days ago", days)
	case diff < 30*24*time.Hour:
		weeks := int(diff.Hours() / (24 * 7))
		if weeks == 1 {
			return "1 week ago"
		}
		return fmt.Sprintf("%d weeks ago", weeks)
	case diff < 365*24*time.Hour:
		months := int(diff.Hours() / (24 * 30))
		if months == 1 {
			return "1 month ago"
		}
		return fmt.Sprintf("%d months ago", months)
	default:
		years := int(diff.Hours() / (24 * 365))
		if years == 1 {
			return "1 year ago"
		}
		return fmt.Sprintf("%d years ago", years)
	}
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatDate": func(t time.Time) string {
			return t.Local().Format("January 2, 2006 at 3:04 PM")
		},
	}
}

const homeTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
<div id="main">
<h1>{{.Title}}</h1>
{{range .DateGroups}}
<h2>{{.Label}}</h2>
{{range .Entries}}
<article>
<h3><a href="{{.Link}}">{{.Title}}</a></h3>
<p class="meta">{{.FeedTitle}}{{if .Author}} &mdash; {{.Author}}{{end}} &mdash; {{formatDate .Published}}</p>
{{if .Summary}}<div class="summary">{{.Summary}}</div>{{end}}
</article>
{{end}}
{{end}}
</div>
<div id="sidebar">
<h2>Feeds</h2>
<ul>
{{range .Sidebar}}
<li{{if .Stale}} class="stale"{{end}}><a href="{{.SiteURL}}">{{.Title}}</a> <span class="freshness">{{.Freshness}}</span></li>
{{end}}
</ul>
</div>
<p class="footer">Generated {{formatDate .Generated}}</p>
</body>
</html>
`
