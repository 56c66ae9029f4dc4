package entity

import "time"

// Entry represents one syndicated item belonging to a Feed.
//
// first_seen is set exactly once, at insert time, and is never touched by
// later refreshes — it is the only non-idempotent field in the upsert.
type Entry struct {
	ID          int64
	FeedID      int64
	GUID        string
	URL         string
	Title       string
	Author      string
	Content     string
	Summary     string
	PublishedAt time.Time
	UpdatedAt   time.Time
	FirstSeen   time.Time
	CreatedAt   time.Time
}

const summaryMaxChars = 500

// TruncateSummary truncates s to the fixed summary length the Fetcher
// applies to every entry before storing it.
func TruncateSummary(s string) string {
	r := []rune(s)
	if len(r) <= summaryMaxChars {
		return s
	}
	return string(r[:summaryMaxChars])
}

// ResolveGUID picks the entry's natural key per the guid_candidate ->
// link -> title fallback chain. Returns "" if none of the three is
// present, signaling the Fetcher to skip the entry.
func ResolveGUID(guidCandidate, link, title string) string {
	if guidCandidate != "" {
		return guidCandidate
	}
	if link != "" {
		return link
	}
	return title
}
