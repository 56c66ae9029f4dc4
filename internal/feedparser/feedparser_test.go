package feedparser

import (
	"context"
	"strings"
	"testing"
)

const sampleRSS = `<?xml version="1.0"?>
<rss version="2.0"><channel>
<title>Example Feed</title>
<link>https://example.com</link>
<item>
  <title>First Post</title>
  <link>https://example.com/1</link>
  <guid>urn:uuid:e1</guid>
  <description>hello world</description>
  <pubDate>Mon, 02 Jan 2006 15:04:05 MST</pubDate>
</item>
</channel></rss>`

func TestParse_Basic(t *testing.T) {
	p := New()
	feed, err := Parse(context.Background(), p, strings.NewReader(sampleRSS))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if feed.Channel.Title != "Example Feed" {
		t.Errorf("expected channel title, got %q", feed.Channel.Title)
	}
	if len(feed.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(feed.Entries))
	}
	if feed.Entries[0].GUIDCandidate != "urn:uuid:e1" {
		t.Errorf("expected guid candidate, got %q", feed.Entries[0].GUIDCandidate)
	}
	if feed.Entries[0].Published == nil {
		t.Error("expected published date to be parsed")
	}
}

func TestParse_EmptyBodyIsZeroEntrySuccess(t *testing.T) {
	p := New()
	feed, err := Parse(context.Background(), p, strings.NewReader(`<?xml version="1.0"?><rss version="2.0"><channel></channel></rss>`))
	if err != nil {
		t.Fatalf("expected empty feed to be a success, got %v", err)
	}
	if len(feed.Entries) != 0 {
		t.Errorf("expected zero entries, got %d", len(feed.Entries))
	}
}

func TestParse_GarbageIsFatal(t *testing.T) {
	p := New()
	_, err := Parse(context.Background(), p, strings.NewReader("not a feed at all, just noise"))
	if err == nil {
		t.Fatal("expected fatal parse error for unparseable garbage")
	}
	var fatal *ErrFatalEmpty
	if !isFatalEmpty(err, &fatal) {
		t.Errorf("expected ErrFatalEmpty, got %T: %v", err, err)
	}
}

func isFatalEmpty(err error, target **ErrFatalEmpty) bool {
	fe, ok := err.(*ErrFatalEmpty)
	if ok {
		*target = fe
	}
	return ok
}
