// Package arxiv provides a client for the arXiv Atom search API with
// date-window queries and descending submittedDate paging.
package arxiv

import "time"

// DefaultCategories is the category set queried when none is configured.
var DefaultCategories = []string{"cs.AI", "cs.LG", "cs.CL", "cs.CV", "cs.NE", "stat.ML"}

// Authorship is one author slot on a paper. Position is 1-based.
type Authorship struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
	Position    int    `json:"position"`
}

// Paper is one arXiv paper as returned by the search API.
// ArxivID carries no version suffix; the version is kept separately.
type Paper struct {
	ArxivID         string       `json:"arxiv_id"`
	Version         string       `json:"version,omitempty"`
	Title           string       `json:"title"`
	Abstract        string       `json:"abstract"`
	Categories      []string     `json:"categories"`
	PrimaryCategory string       `json:"primary_category"`
	PublishedDate   time.Time    `json:"published_date"`
	PDFURL          string       `json:"pdf_url"`
	Authors         []Authorship `json:"authors"`
}
