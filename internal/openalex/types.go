// Package openalex provides batched clients for the OpenAlex Works and
// Authors endpoints.
package openalex

// Work is the subset of an OpenAlex work the pipeline consumes.
type Work struct {
	ID          string       `json:"id"`
	DOI         string       `json:"doi"`
	Title       string       `json:"title"`
	Authorships []Authorship `json:"authorships"`
}

// Authorship is one author slot on a work, in position order.
type Authorship struct {
	RawAuthorName string    `json:"raw_author_name"`
	Author        AuthorRef `json:"author"`
}

// AuthorRef identifies the disambiguated OpenAlex author on an authorship.
type AuthorRef struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Author is an OpenAlex author profile with the bibliometric fields the
// enrichment loop writes to the graph.
type Author struct {
	ID                    string        `json:"id"`
	DisplayName           string        `json:"display_name"`
	SummaryStats          SummaryStats  `json:"summary_stats"`
	CitedByCount          int           `json:"cited_by_count"`
	WorksCount            int           `json:"works_count"`
	LastKnownInstitutions []Institution `json:"last_known_institutions"`
}

// SummaryStats carries the h-index off an author profile.
type SummaryStats struct {
	HIndex int `json:"h_index"`
}

// Institution is an author's last known institution.
type Institution struct {
	DisplayName string `json:"display_name"`
	CountryCode string `json:"country_code"`
}

// listResponse is the envelope OpenAlex wraps list results in.
type listResponse[T any] struct {
	Results []T `json:"results"`
}
