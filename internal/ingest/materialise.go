package ingest

import (
	"github.com/matsen/arxgraph/internal/arxiv"
	"github.com/matsen/arxgraph/internal/graph"
)

// MaterialisePaper converts an arXiv record into the graph write form.
// Each authorship becomes its own author slot; identity reconciliation is
// the fuzzy matcher's job, never ingestion's.
func MaterialisePaper(p arxiv.Paper) graph.PaperInput {
	authors := make([]graph.AuthorInput, len(p.Authors))
	for i, a := range p.Authors {
		authors[i] = graph.AuthorInput{
			Name:        a.Name,
			Affiliation: a.Affiliation,
			Position:    a.Position,
		}
	}
	return graph.PaperInput{
		ArxivID:         p.ArxivID,
		Version:         p.Version,
		Title:           p.Title,
		Abstract:        p.Abstract,
		PrimaryCategory: p.PrimaryCategory,
		Categories:      p.Categories,
		PublishedDate:   p.PublishedDate.Format("2006-01-02"),
		PDFURL:          p.PDFURL,
		Authors:         authors,
	}
}
