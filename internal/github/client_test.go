package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/matsen/arxgraph/internal/ratelimit"
)

func testGovernor() *ratelimit.Governor {
	return ratelimit.New(0, time.Second, 0)
}

func TestExtractRepoRefs(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "plain reference",
			text: "Code is available at github.com/alice/deepthing for reproduction.",
			want: []string{"alice/deepthing"},
		},
		{
			name: "https url with trailing period",
			text: "See https://github.com/alice/deepthing.",
			want: []string{"alice/deepthing"},
		},
		{
			name: "git suffix",
			text: "Clone github.com/alice/deepthing.git today",
			want: []string{"alice/deepthing"},
		},
		{
			name: "multiple distinct repos",
			text: "We release github.com/a/one and github.com/b/two.",
			want: []string{"a/one", "b/two"},
		},
		{
			name: "duplicates collapse case-insensitively",
			text: "github.com/Alice/Thing plus github.com/alice/thing",
			want: []string{"Alice/Thing"},
		},
		{
			name: "no references",
			text: "We propose a novel method with no code release.",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractRepoRefs(tt.text); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractRepoRefs(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestSplitRef(t *testing.T) {
	owner, repo, err := SplitRef("alice/deepthing")
	if err != nil || owner != "alice" || repo != "deepthing" {
		t.Errorf("SplitRef = (%q, %q, %v)", owner, repo, err)
	}
	if _, _, err := SplitRef("nodash"); err == nil {
		t.Error("SplitRef(nodash) expected error")
	}
}

func TestFetchRepo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/alice/deepthing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{"full_name":"alice/deepthing","stargazers_count":1234}`)
	}))
	defer srv.Close()

	client := NewClient(testGovernor(), "", WithBaseURL(srv.URL))

	repo, err := client.FetchRepo(context.Background(), "alice", "deepthing")
	if err != nil {
		t.Fatalf("FetchRepo: %v", err)
	}
	if repo == nil || repo.StargazersCount != 1234 {
		t.Errorf("repo = %+v, want 1234 stars", repo)
	}

	// Missing repos come back as nil, not an error.
	missing, err := client.FetchRepo(context.Background(), "alice", "gone")
	if err != nil {
		t.Fatalf("FetchRepo(missing): %v", err)
	}
	if missing != nil {
		t.Errorf("missing repo = %+v, want nil", missing)
	}
}

func TestFetchRepoRateLimitHeader(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprint(w, `{"full_name":"a/b","stargazers_count":7}`)
	}))
	defer srv.Close()

	client := NewClient(testGovernor(), "", WithBaseURL(srv.URL))
	repo, err := client.FetchRepo(context.Background(), "a", "b")
	if err != nil {
		t.Fatalf("FetchRepo: %v", err)
	}
	if repo.StargazersCount != 7 || calls != 2 {
		t.Errorf("calls = %d, repo = %+v", calls, repo)
	}
}
