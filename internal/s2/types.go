// Package s2 provides a client for the Semantic Scholar graph API's
// single-paper endpoint, keyed by arXiv ID.
package s2

// Paper is the subset of an S2 paper response the pipeline consumes.
// Authors are returned in paper position order.
type Paper struct {
	PaperID string   `json:"paperId"`
	Title   string   `json:"title"`
	Authors []Author `json:"authors"`
}

// Author is one S2 author on a paper.
type Author struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}
