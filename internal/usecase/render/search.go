package render

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SearchResult is one hydrated hit, in vector-score order.
type SearchResult struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Author      string  `json:"author"`
	PublishedAt string  `json:"published_at"`
	Score       float64 `json:"score"`
	FeedTitle   string  `json:"feed_title"`
}

// Search embeds query once, asks the Vector Store for the topK nearest
// neighbors, and hydrates the hits from the Relational Store. Hits whose
// entry has since been deleted are dropped rather than erroring. An
// empty or failing Vector Store yields an empty result set, never an
// error — search degrades, it does not take the page down.
func (r *Renderer) Search(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		slog.Warn("search: query embedding failed, degrading to empty results", slog.Any("error", err))
		return []SearchResult{}, nil
	}

	matches, err := r.vectors.SearchSimilar(ctx, vec, topK)
	if err != nil {
		slog.Warn("search: vector store query failed, degrading to empty results", slog.Any("error", err))
		return []SearchResult{}, nil
	}
	if len(matches) == 0 {
		return []SearchResult{}, nil
	}

	ids := make([]int64, len(matches))
	scoreByID := make(map[int64]float64, len(matches))
	for i, m := range matches {
		ids[i] = m.EntryID
		scoreByID[m.EntryID] = m.Score
	}

	entries, err := r.entries.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("search: hydrate entries: %w", err)
	}
	entryByID := make(map[int64]entryHydration, len(entries))
	for _, e := range entries {
		entryByID[e.ID] = entryHydration{title: e.Title, url: e.URL, author: e.Author, publishedAt: e.PublishedAt, feedID: e.FeedID}
	}

	var feedTitleByID map[int64]string
	if len(entries) > 0 {
		feeds, err := r.feeds.ListActive(ctx)
		if err != nil {
			return nil, fmt.Errorf("search: list feeds: %w", err)
		}
		feedTitleByID = make(map[int64]string, len(feeds))
		for _, f := range feeds {
			feedTitleByID[f.ID] = f.Title
		}
	}

	results := make([]SearchResult, 0, len(matches))
	for _, m := range matches {
		hyd, ok := entryByID[m.EntryID]
		if !ok {
			continue
		}
		results = append(results, SearchResult{
			ID:          m.EntryID,
			Title:       hyd.title,
			URL:         hyd.url,
			Author:      hyd.author,
			PublishedAt: hyd.publishedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
			Score:       scoreByID[m.EntryID],
			FeedTitle:   feedTitleByID[hyd.feedID],
		})
	}
	return results, nil
}

type entryHydration struct {
	title       string
	url         string
	author      string
	publishedAt time.Time
	feedID      int64
}
