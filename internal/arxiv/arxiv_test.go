package arxiv

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/matsen/arxgraph/internal/ratelimit"
)

// testGovernor returns a governor that never sleeps.
func testGovernor() *ratelimit.Governor {
	return ratelimit.New(0, time.Second, 0)
}

func TestDayQuery(t *testing.T) {
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		categories []string
		want       string
	}{
		{
			name:       "two categories",
			categories: []string{"cs.AI", "cs.LG"},
			want:       "(cat:cs.AI OR cat:cs.LG) AND submittedDate:[202506020000 TO 202506022359]",
		},
		{
			name:       "single category",
			categories: []string{"stat.ML"},
			want:       "(cat:stat.ML) AND submittedDate:[202506020000 TO 202506022359]",
		},
		{
			name:       "empty falls back to defaults",
			categories: nil,
			want:       "(cat:cs.AI OR cat:cs.LG OR cat:cs.CL OR cat:cs.CV OR cat:cs.NE OR cat:stat.ML) AND submittedDate:[202506020000 TO 202506022359]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DayQuery(tt.categories, day); got != tt.want {
				t.Errorf("DayQuery() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStripVersion(t *testing.T) {
	tests := []struct {
		in          string
		wantID      string
		wantVersion string
	}{
		{"2506.01234v1", "2506.01234", "1"},
		{"2506.01234v12", "2506.01234", "12"},
		{"2506.01234", "2506.01234", ""},
		{"hep-th/9901001v2", "hep-th/9901001", "2"},
	}

	for _, tt := range tests {
		id, version := StripVersion(tt.in)
		if id != tt.wantID || version != tt.wantVersion {
			t.Errorf("StripVersion(%q) = (%q, %q), want (%q, %q)",
				tt.in, id, version, tt.wantID, tt.wantVersion)
		}
	}
}

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:opensearch="http://a9.com/-/spec/opensearch/1.1/" xmlns:arxiv="http://arxiv.org/schemas/atom">
  <opensearch:totalResults>2</opensearch:totalResults>
  <entry>
    <id>http://arxiv.org/abs/2506.01234v2</id>
    <title>Deep Learning
      for Everything</title>
    <summary>We study deep learning. Code at github.com/alice/deepthing.</summary>
    <published>2025-06-02T14:30:00Z</published>
    <author><name>Alice Zhang</name><arxiv:affiliation>MIT</arxiv:affiliation></author>
    <author><name>Bob Liu</name></author>
    <arxiv:primary_category term="cs.LG"/>
    <category term="cs.LG"/>
    <category term="stat.ML"/>
    <link href="http://arxiv.org/pdf/2506.01234v2" title="pdf"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2506.09999v1</id>
    <title>Another Paper</title>
    <summary>Abstract text.</summary>
    <published>2025-06-02T09:00:00Z</published>
    <author><name>Carol Chen</name></author>
    <arxiv:primary_category term="cs.CL"/>
    <category term="cs.CL"/>
    <link href="http://arxiv.org/pdf/2506.09999v1" title="pdf"/>
  </entry>
</feed>`

func TestParseFeed(t *testing.T) {
	feed, err := parseFeed([]byte(sampleFeed))
	if err != nil {
		t.Fatalf("parseFeed: %v", err)
	}
	if feed.TotalResults != 2 {
		t.Errorf("TotalResults = %d, want 2", feed.TotalResults)
	}
	if len(feed.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(feed.Entries))
	}

	p, err := paperFromEntry(feed.Entries[0])
	if err != nil {
		t.Fatalf("paperFromEntry: %v", err)
	}

	if p.ArxivID != "2506.01234" {
		t.Errorf("ArxivID = %q, want 2506.01234", p.ArxivID)
	}
	if p.Version != "2" {
		t.Errorf("Version = %q, want 2", p.Version)
	}
	if p.Title != "Deep Learning for Everything" {
		t.Errorf("Title = %q (whitespace not collapsed?)", p.Title)
	}
	if p.PrimaryCategory != "cs.LG" {
		t.Errorf("PrimaryCategory = %q, want cs.LG", p.PrimaryCategory)
	}
	if len(p.Categories) != 2 {
		t.Errorf("Categories = %v, want 2 entries", p.Categories)
	}
	if p.PDFURL != "http://arxiv.org/pdf/2506.01234v2" {
		t.Errorf("PDFURL = %q", p.PDFURL)
	}
	if len(p.Authors) != 2 {
		t.Fatalf("got %d authors, want 2", len(p.Authors))
	}
	if p.Authors[0].Name != "Alice Zhang" || p.Authors[0].Affiliation != "MIT" || p.Authors[0].Position != 1 {
		t.Errorf("author 1 = %+v", p.Authors[0])
	}
	if p.Authors[1].Position != 2 || p.Authors[1].Affiliation != "" {
		t.Errorf("author 2 = %+v", p.Authors[1])
	}
	if p.PublishedDate.Day() != 2 || p.PublishedDate.Month() != time.June {
		t.Errorf("PublishedDate = %v", p.PublishedDate)
	}
}

func TestPaperFromEntryRejectsBrokenEntries(t *testing.T) {
	entries := []atomEntry{
		{ID: "http://arxiv.org/abs/2506.00001v1", Published: "2025-06-02T00:00:00Z",
			Categories: []atomCategory{{Term: "cs.AI"}}}, // no title
		{ID: "http://arxiv.org/abs/2506.00002v1", Title: "T", Published: "2025-06-02T00:00:00Z"}, // no categories
		{ID: "http://arxiv.org/abs/2506.00003v1", Title: "T", Published: "not-a-date",
			Categories: []atomCategory{{Term: "cs.AI"}}},
	}
	for i, e := range entries {
		if _, err := paperFromEntry(e); err == nil {
			t.Errorf("entry %d: expected error, got none", i)
		}
	}
}

func TestDayPagesAndDeduplicates(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		start := r.URL.Query().Get("start")
		if start != "0" {
			// Second page: the empty-page anomaly.
			fmt.Fprint(w, `<?xml version="1.0"?><feed xmlns="http://www.w3.org/2005/Atom" xmlns:opensearch="http://a9.com/-/spec/opensearch/1.1/"><opensearch:totalResults>150</opensearch:totalResults></feed>`)
			return
		}
		fmt.Fprint(w, sampleFeedWithDuplicate)
	}))
	defer srv.Close()

	gov := testGovernor()
	client := NewClient(gov, WithBaseURL(srv.URL))

	papers, err := client.Day(context.Background(), time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Day: %v", err)
	}
	if len(papers) != 1 {
		t.Errorf("got %d papers, want 1 (duplicate not removed?)", len(papers))
	}
	if requests != 2 {
		t.Errorf("made %d requests, want 2 (empty page should end the day)", requests)
	}
}

const sampleFeedWithDuplicate = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:opensearch="http://a9.com/-/spec/opensearch/1.1/" xmlns:arxiv="http://arxiv.org/schemas/atom">
  <opensearch:totalResults>150</opensearch:totalResults>
  <entry>
    <id>http://arxiv.org/abs/2506.01234v1</id>
    <title>Paper</title>
    <summary>A</summary>
    <published>2025-06-02T14:30:00Z</published>
    <author><name>Alice Zhang</name></author>
    <arxiv:primary_category term="cs.LG"/>
    <category term="cs.LG"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2506.01234v2</id>
    <title>Paper</title>
    <summary>A</summary>
    <published>2025-06-02T14:30:00Z</published>
    <author><name>Alice Zhang</name></author>
    <arxiv:primary_category term="cs.LG"/>
    <category term="cs.LG"/>
  </entry>
</feed>`
